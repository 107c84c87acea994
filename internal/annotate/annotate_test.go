package annotate

import "testing"

const sampleDoc = `
skip:
  - example.com/demo.Legacy
  - example.com/demo.Parser.Reset
returns:
  example.com/demo.Parser.Parse: "result != nil"
exceptions:
  example.com/demo.Parser.Parse:
    - "*fs.PathError"
invocations:
  example.com/demo.Convert:
    - [int, string]
    - [float64, string]
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleDoc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if !f.IsSkipped("example.com/demo.Legacy") {
		t.Errorf("Legacy should be skipped")
	}
	if f.IsSkipped("example.com/demo.Parser.Parse") {
		t.Errorf("Parse should not be skipped")
	}

	pred, ok := f.ReturnPredicate("example.com/demo.Parser.Parse")
	if !ok || pred != "result != nil" {
		t.Errorf("ReturnPredicate = %q, %v", pred, ok)
	}
	if _, ok := f.ReturnPredicate("example.com/demo.Parser.Reset"); ok {
		t.Errorf("unexpected predicate for Reset")
	}

	if got := f.ExceptionAllowlist("example.com/demo.Parser.Parse"); len(got) != 1 || got[0] != "*fs.PathError" {
		t.Errorf("ExceptionAllowlist = %v", got)
	}

	sets := f.InvocationArgumentSets("example.com/demo.Convert")
	if len(sets) != 2 || sets[0][0] != "int" || sets[1][0] != "float64" {
		t.Errorf("InvocationArgumentSets = %v", sets)
	}
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil): %v", err)
	}
	if f.IsSkipped("anything") {
		t.Errorf("empty document should skip nothing")
	}
}

func TestLoadMissingFile(t *testing.T) {
	f, err := Load("testdata/does-not-exist.yaml")
	if err != nil {
		t.Fatalf("Load of missing file: %v", err)
	}
	if f.IsSkipped("anything") {
		t.Errorf("missing file should behave as empty document")
	}
}
