// Package emit renders generated scaffold test files: mock type
// declarations materialized from synthesized proxy types, and one test
// function per target method walking its argument combinations. Output
// goes through go/format so the generated source is canonical.
package emit

import (
	"bytes"
	"fmt"
	"go/format"
	"go/types"
	"strings"
	"text/template"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stubforge/stubforge/internal/config"
	"github.com/stubforge/stubforge/internal/descriptor"
	"github.com/stubforge/stubforge/internal/proxy"
)

// File is one scaffold test file ready for rendering. The file lives in
// the external test package of the target so every spliced expression
// can use the package-qualified form.
type File struct {
	// Package is the target package's name; the rendered file declares
	// package <Package>_test.
	Package string

	// ImportPath is the target package's import path.
	ImportPath string

	// Imports lists extra import paths the spliced expressions need
	// (e.g. "time"). The target's own path is implied.
	Imports []string

	// RunID identifies the generation run in the file header. Filled
	// with a fresh UUID when empty.
	RunID string

	Mocks []Mock
	Tests []Test
}

// Mock is a rendered mock type declaration.
type Mock struct {
	Name    string
	Target  string
	Methods []MockMethod
}

// MockMethod carries pre-rendered signature fragments and body.
type MockMethod struct {
	Name    string
	Params  string
	Results string
	Body    string
}

// Test is one generated test function with one subtest per argument
// combination.
type Test struct {
	Name  string
	Cases []Case
}

// Case is one invocation: construct the receiver, call the method,
// optionally assert a return predicate. Guard, when set, is a deferred
// recover statement emitted before the call.
type Case struct {
	Name  string
	Recv  string
	Call  string
	Check string
	Guard string
}

// Renderer turns Files into formatted Go source.
type Renderer struct {
	qual types.Qualifier
	log  *zap.Logger
}

func NewRenderer(qual types.Qualifier, log *zap.Logger) *Renderer {
	if qual == nil {
		qual = func(p *types.Package) string { return p.Name() }
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Renderer{qual: qual, log: log}
}

// FileName returns the generated file's base name for a package.
func FileName(pkgName string) string {
	return pkgName + config.GeneratedFileSuffix
}

// MockDecl lowers a synthesized proxy type to its source declaration.
// Every method returns declared zero values; when emptySequence is set,
// the iterator-obtaining method instead returns a yield func that stops
// immediately, the empty sequence.
func (r *Renderer) MockDecl(p *proxy.ProxyType, emptySequence bool) Mock {
	m := Mock{
		Name:   p.Name(),
		Target: types.TypeString(p.Target(), r.qual),
	}
	var seqKey string
	if sig, _, ok := p.IteratorMethod(); ok && emptySequence {
		seqKey = sig.Key()
	}
	for _, sig := range p.Methods() {
		mm := MockMethod{
			Name:    sig.Name,
			Params:  r.paramDecl(sig),
			Results: r.resultDecl(sig),
		}
		if sig.Key() == seqKey {
			mm.Body = r.emptySequenceBody(sig)
		} else {
			mm.Body = r.zeroBody(sig)
		}
		m.Methods = append(m.Methods, mm)
	}
	return m
}

func (r *Renderer) paramDecl(sig *descriptor.Signature) string {
	parts := make([]string, len(sig.Params))
	for i, p := range sig.Params {
		ts := types.TypeString(p.Type, r.qual)
		if sig.Variadic && i == len(sig.Params)-1 {
			if strings.HasPrefix(ts, "[]") {
				ts = "..." + ts[2:]
			}
		}
		parts[i] = fmt.Sprintf("p%d %s", i, ts)
	}
	return strings.Join(parts, ", ")
}

func (r *Renderer) resultDecl(sig *descriptor.Signature) string {
	switch len(sig.Results) {
	case 0:
		return ""
	case 1:
		return " " + types.TypeString(sig.Results[0], r.qual)
	default:
		parts := make([]string, len(sig.Results))
		for i, res := range sig.Results {
			parts[i] = types.TypeString(res, r.qual)
		}
		return " (" + strings.Join(parts, ", ") + ")"
	}
}

// zeroBody pre-initializes pointer parameters and returns declared
// zeros, the same fallback the runtime proxy dispatch uses.
func (r *Renderer) zeroBody(sig *descriptor.Signature) string {
	var lines []string
	for i, p := range sig.Params {
		if ptr, ok := types.Unalias(p.Type).(*types.Pointer); ok {
			lines = append(lines, fmt.Sprintf("\tif p%d != nil {\n\t\t*p%d = %s\n\t}",
				i, i, descriptor.ZeroExpr(ptr.Elem(), r.qual)))
		}
	}
	if len(sig.Results) > 0 {
		zeros := make([]string, len(sig.Results))
		for i, res := range sig.Results {
			zeros[i] = descriptor.ZeroExpr(res, r.qual)
		}
		lines = append(lines, "\treturn "+strings.Join(zeros, ", "))
	}
	return strings.Join(lines, "\n")
}

func (r *Renderer) emptySequenceBody(sig *descriptor.Signature) string {
	outer, ok := sig.Results[0].Underlying().(*types.Signature)
	if !ok {
		return r.zeroBody(sig)
	}
	yieldType := types.TypeString(outer.Params().At(0).Type(), r.qual)
	return fmt.Sprintf("\treturn func(_ %s) {}", yieldType)
}

var scaffoldTemplate = template.Must(template.New("scaffold").Funcs(template.FuncMap{
	"title": titleCase,
}).Parse(`// Code generated by stubforge (run {{.RunID}}); DO NOT EDIT.

package {{.Package}}_test

import (
	"testing"
{{- range .Imports}}
	"{{.}}"
{{- end}}

	"{{.ImportPath}}"
)
{{range .Mocks}}{{$m := .}}
// {{.Name}} is a generated stub for {{.Target}}.
type {{.Name}} struct{}

func new{{title .Name}}(_ any) *{{.Name}} { return &{{.Name}}{} }
{{range .Methods}}
func (m *{{$m.Name}}) {{.Name}}({{.Params}}){{.Results}} {
{{.Body}}
}
{{end}}{{end}}
{{- range .Tests}}
func {{.Name}}(t *testing.T) {
{{- range .Cases}}
	t.Run("{{.Name}}", func(t *testing.T) {
{{- if .Guard}}
		{{.Guard}}
{{- end}}
		recv := {{.Recv}}
		{{.Call}}
{{- if .Check}}
		{{.Check}}
{{- end}}
	})
{{- end}}
}
{{end}}`))

func titleCase(s string) string {
	if s == "" {
		return s
	}
	runes := []rune(s)
	if runes[0] >= 'a' && runes[0] <= 'z' {
		runes[0] -= 32
	}
	return string(runes)
}

// Render executes the scaffold template and formats the result. A file
// that fails to format is a bug in the expression renderers; the raw
// bytes are returned alongside the error to aid debugging.
func (r *Renderer) Render(f *File) ([]byte, error) {
	if f.RunID == "" {
		f.RunID = uuid.NewString()
	}
	var buf bytes.Buffer
	if err := scaffoldTemplate.Execute(&buf, f); err != nil {
		return nil, fmt.Errorf("rendering scaffold for %s: %w", f.Package, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return buf.Bytes(), fmt.Errorf("formatting scaffold for %s: %w", f.Package, err)
	}
	r.log.Debug("rendered scaffold",
		zap.String("package", f.Package),
		zap.Int("mocks", len(f.Mocks)),
		zap.Int("tests", len(f.Tests)))
	return src, nil
}
