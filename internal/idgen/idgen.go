// Package idgen hands out identifiers for approval requests and queue
// messages. Callers must treat them as opaque strings; tests replace NewFunc
// with a deterministic sequence.
package idgen

import "github.com/google/uuid"

// NewFunc is the active generator. The default yields random UUIDs.
var NewFunc = uuid.NewString

// New returns the next identifier from NewFunc.
func New() string { return NewFunc() }
