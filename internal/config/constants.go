package config

// MaxRecursionDepth bounds class/interface expansion so self-referential
// type graphs terminate. Reaching the bound yields an empty domain.
const MaxRecursionDepth = 4

// MaxDerivedSamples is the number of concrete implementors sampled when
// building a domain for an interface or abstract type.
const MaxDerivedSamples = 3

// Random string bounds for sampled string candidates.
const (
	RandomStringMinLen = 16
	RandomStringMaxLen = 128
)

// DefaultConfigFile is the annotation/configuration file looked up next
// to the entry package when none is given explicitly.
const DefaultConfigFile = "stubforge.yaml"

// DefaultCatalogFile is the SQLite catalog of generated scaffolding
// descriptors, created inside the output directory.
const DefaultCatalogFile = ".stubforge/catalog.db"

// GeneratedFileSuffix is appended to the class name when naming emitted
// scaffolding files (e.g. parser_scaffold_test.go).
const GeneratedFileSuffix = "_scaffold_test.go"
