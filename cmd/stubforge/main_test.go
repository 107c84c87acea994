package main

import "testing"

func TestParseArgsDefaults(t *testing.T) {
	o, err := parseArgs(nil)
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if o.pattern != "./..." {
		t.Errorf("pattern = %q, want ./...", o.pattern)
	}
	if o.configPath != "stubforge.yaml" {
		t.Errorf("configPath = %q", o.configPath)
	}
	if o.catalog == "" {
		t.Errorf("catalog persistence disabled by default")
	}
}

func TestParseArgsFlags(t *testing.T) {
	o, err := parseArgs([]string{
		"-o", "gen", "-C", "/src", "--config", "ann.yaml",
		"-x", "vendor", "-x", "third_party", "-v", "./pkg/...",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if o.out != "gen" || o.dir != "/src" || o.configPath != "ann.yaml" {
		t.Errorf("flags not applied: %+v", o)
	}
	if len(o.exclude) != 2 || o.exclude[1] != "third_party" {
		t.Errorf("exclude = %v", o.exclude)
	}
	if !o.verbose {
		t.Errorf("verbose not set")
	}
	if o.pattern != "./pkg/..." {
		t.Errorf("pattern = %q", o.pattern)
	}
}

func TestParseArgsNoCatalog(t *testing.T) {
	o, err := parseArgs([]string{"--no-catalog"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if o.catalog != "" {
		t.Errorf("catalog = %q, want empty", o.catalog)
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown flag", []string{"--frobnicate"}},
		{"missing value", []string{"--out"}},
		{"second pattern", []string{"./a", "./b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := parseArgs(tt.args); err == nil {
				t.Errorf("parseArgs(%v) accepted invalid input", tt.args)
			}
		})
	}
}
