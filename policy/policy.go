package policy

import (
	"strings"
	"sync"
)

// Label is a closed-vocabulary content category assigned by the external
// classifier.  Unknown labels returned by the remote endpoint are tolerated
// at resolution time (see Table.Resolve) but are never part of the table.
type Label string

const (
	LabelNormal         Label = "normal"
	LabelPorn           Label = "porn"
	LabelPolitics       Label = "politics"
	LabelViolence       Label = "violence"
	LabelIllegal        Label = "illegal"
	LabelDiscrimination Label = "discrimination"
	LabelUnethical      Label = "unethical"
)

// RiskLevel is the severity associated with a content label.  It is a
// different scale from the security gateway's risk verdict and the two must
// not be unified.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Action controls how the gate reacts to classified content.  Strictness is
// totally ordered: allow < confirm < block.
type Action string

const (
	ActionAllow   Action = "allow"
	ActionConfirm Action = "confirm"
	ActionBlock   Action = "block"
)

// ParseAction returns the Action for its textual form, reporting whether the
// value is one of the recognised actions.
func ParseAction(value string) (Action, bool) {
	switch Action(strings.ToLower(strings.TrimSpace(value))) {
	case ActionAllow:
		return ActionAllow, true
	case ActionConfirm:
		return ActionConfirm, true
	case ActionBlock:
		return ActionBlock, true
	}
	return "", false
}

// Stricter reports whether a is stricter than b.
func (a Action) Stricter(b Action) bool {
	return a.rank() > b.rank()
}

func (a Action) rank() int {
	switch a {
	case ActionConfirm:
		return 1
	case ActionBlock:
		return 2
	}
	return 0
}

// Entry associates a label with its risk level, gate action and
// human-readable descriptions.
type Entry struct {
	Label         Label     `json:"label" yaml:"label"`
	RiskLevel     RiskLevel `json:"riskLevel" yaml:"riskLevel"`
	Action        Action    `json:"action" yaml:"action"`
	Description   string    `json:"description" yaml:"description"`
	DescriptionZh string    `json:"descriptionZh" yaml:"descriptionZh"`
}

// Override customises the action of a single label entry.  Risk level and
// descriptions are immutable.
type Override struct {
	Action Action `json:"action" yaml:"action"`
}

// DefaultEntries returns the built-in policy, one entry per label.
func DefaultEntries() []Entry {
	return []Entry{
		{Label: LabelNormal, RiskLevel: RiskLow, Action: ActionAllow, Description: "Compliant content", DescriptionZh: "合规内容"},
		{Label: LabelPorn, RiskLevel: RiskCritical, Action: ActionBlock, Description: "Pornographic content", DescriptionZh: "色情内容"},
		{Label: LabelPolitics, RiskLevel: RiskHigh, Action: ActionConfirm, Description: "Political content", DescriptionZh: "政治内容"},
		{Label: LabelViolence, RiskLevel: RiskCritical, Action: ActionBlock, Description: "Violent/terrorist content", DescriptionZh: "恐暴内容"},
		{Label: LabelIllegal, RiskLevel: RiskCritical, Action: ActionBlock, Description: "Prohibited content", DescriptionZh: "违禁内容"},
		{Label: LabelDiscrimination, RiskLevel: RiskHigh, Action: ActionConfirm, Description: "Discriminatory content", DescriptionZh: "歧视内容"},
		{Label: LabelUnethical, RiskLevel: RiskMedium, Action: ActionConfirm, Description: "Unethical content", DescriptionZh: "不良内容"},
	}
}

// Table resolves content labels to policy entries.  It is read-mostly: built
// once per configuration fingerprint and shared by concurrent audits.
type Table struct {
	mu      sync.RWMutex
	entries map[Label]Entry
}

// NewTable builds a table from the default entries with optional per-label
// action overrides.  Overrides referencing unknown labels or carrying an
// unrecognised action are ignored.
func NewTable(overrides map[Label]Override) *Table {
	entries := make(map[Label]Entry)
	for _, entry := range DefaultEntries() {
		entries[entry.Label] = entry
	}
	for label, override := range overrides {
		entry, ok := entries[label]
		if !ok {
			continue
		}
		if action, ok := ParseAction(string(override.Action)); ok {
			entry.Action = action
			entries[label] = entry
		}
	}
	return &Table{entries: entries}
}

// Resolve returns the entry for a label.  An unrecognised label yields a
// conservative fallback entry (medium risk, confirm) rather than an error so
// that a misbehaving classifier can never crash the gate or grant an
// implicit allow.
func (t *Table) Resolve(label Label) Entry {
	t.mu.RLock()
	entry, ok := t.entries[label]
	t.mu.RUnlock()
	if ok {
		return entry
	}
	return Entry{
		Label:         label,
		RiskLevel:     RiskMedium,
		Action:        ActionConfirm,
		Description:   string(label),
		DescriptionZh: string(label),
	}
}

// Entry returns the entry for a label, reporting whether the label belongs
// to the closed vocabulary.
func (t *Table) Entry(label Label) (Entry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.entries[label]
	return entry, ok
}

// SetAction updates the action of an existing entry.  Unknown labels are
// ignored so that the closed-vocabulary invariant holds.
func (t *Table) SetAction(label Label, action Action) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.entries[label]
	if !ok {
		return
	}
	entry.Action = action
	t.entries[label] = entry
}

// Labels returns the closed label vocabulary.
func (t *Table) Labels() []Label {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Label, 0, len(t.entries))
	for label := range t.entries {
		out = append(out, label)
	}
	return out
}
