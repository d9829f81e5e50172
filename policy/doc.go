// Package policy defines the content label vocabulary and the label→action
// policy table consumed by the content audit service.  The table ships with
// one default entry per label; a configuration may override the action of an
// entry but never its risk level or description.
package policy
