// Package annotate is the configuration query surface the scaffolding
// engine consults for per-member decisions. The engine treats answers as
// opaque data: skip flags, explicit return predicates, exception
// allowlists and explicit type-argument sets for generic methods. It
// never parses configuration syntax itself — that stays here.
package annotate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Queries answers per-member configuration lookups. Members and types
// are identified by their fully qualified names
// (e.g. "example.com/demo.Parser.Parse").
type Queries interface {
	// IsSkipped reports whether scaffolding for the member or type must
	// be suppressed entirely.
	IsSkipped(fullName string) bool

	// ReturnPredicate returns the configured boolean expression text
	// asserting a member's return value, if one was declared.
	ReturnPredicate(fullName string) (string, bool)

	// ExceptionAllowlist lists the panic/error types a member is
	// documented to raise; scaffolding treats them as expected.
	ExceptionAllowlist(fullName string) []string

	// InvocationArgumentSets returns explicit argument expression
	// tuples declared for a member. Each tuple becomes one extra
	// generated case beyond the combination product.
	InvocationArgumentSets(fullName string) [][]string
}

// Nop answers every query with "nothing configured".
type Nop struct{}

func (Nop) IsSkipped(string) bool                    { return false }
func (Nop) ReturnPredicate(string) (string, bool)    { return "", false }
func (Nop) ExceptionAllowlist(string) []string       { return nil }
func (Nop) InvocationArgumentSets(string) [][]string { return nil }

// File is the YAML-backed annotation document.
type File struct {
	// Skip lists fully qualified type or member names excluded from
	// scaffolding.
	Skip []string `yaml:"skip,omitempty"`

	// Returns maps a member to a boolean expression over its result
	// (spliced verbatim into the generated assertion).
	Returns map[string]string `yaml:"returns,omitempty"`

	// Exceptions maps a member to the error/panic types it is allowed
	// to raise.
	Exceptions map[string][]string `yaml:"exceptions,omitempty"`

	// Invocations maps a member to explicit argument expression tuples
	// emitted as additional cases.
	Invocations map[string][][]string `yaml:"invocations,omitempty"`

	skipSet map[string]bool
}

// Load reads an annotation document from disk. A missing file is not an
// error: it behaves as an empty document.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading annotations: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes an annotation document from YAML bytes.
func Parse(data []byte) (*File, error) {
	f := &File{}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("parsing annotations: %w", err)
		}
	}
	f.skipSet = make(map[string]bool, len(f.Skip))
	for _, name := range f.Skip {
		f.skipSet[name] = true
	}
	return f, nil
}

func (f *File) IsSkipped(fullName string) bool {
	return f.skipSet[fullName]
}

func (f *File) ReturnPredicate(fullName string) (string, bool) {
	expr, ok := f.Returns[fullName]
	return expr, ok
}

func (f *File) ExceptionAllowlist(fullName string) []string {
	return f.Exceptions[fullName]
}

func (f *File) InvocationArgumentSets(fullName string) [][]string {
	return f.Invocations[fullName]
}
