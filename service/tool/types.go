// Package tool defines the executable tool contract the gate dispatches to,
// together with a registry of named tool services.
package tool

import (
	"context"
	"fmt"
	"reflect"
	"strings"
)

// Signature describes a single tool method.
type Signature struct {
	Name   string
	Input  reflect.Type
	Output reflect.Type
}

type Signatures []Signature

// Lookup returns a signature by method name.
func (s Signatures) Lookup(name string) *Signature {
	for i := range s {
		sig := &s[i]
		if sig.Name == name {
			return sig
		}
	}
	return nil
}

// Executable is an invokable tool method.
type Executable func(ctx context.Context, input, output interface{}) error

// Service is a named tool service exposing one or more methods.
type Service interface {
	Name() string
	Methods() Signatures
	Method(name string) (Executable, error)
}

func NewMethodNotFoundError(name string) error {
	return fmt.Errorf("method %v not found", name)
}

func NewInvalidInputError(in interface{}) error {
	return fmt.Errorf("invalid input %T", in)
}

func NewInvalidOutputError(in interface{}) error {
	return fmt.Errorf("invalid output %T", in)
}

// Normalize canonicalises a tool name for lookups and display: trimmed,
// lower-cased, with separators folded to underscores.
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.ReplaceAll(name, "-", "_")
	name = strings.ReplaceAll(name, ".", "_")
	return name
}
