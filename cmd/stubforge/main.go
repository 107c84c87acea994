package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/stubforge/stubforge/internal/config"
	"github.com/stubforge/stubforge/internal/diagnostics"
	"github.com/stubforge/stubforge/pkg/scaffold"
)

// Version can be set at build time using: -ldflags "-X main.Version=1.2.3"
var Version = "dev"

const usage = `stubforge - generate unit test scaffolding from type metadata

Usage:
  stubforge [options] [package-pattern]

The package pattern defaults to "./...". Generated files are written as
<package>_scaffold_test.go in the output directory.

Options:
  -o, --out DIR        output directory (default: working directory)
  -C, --dir DIR        working directory for package resolution
      --config FILE    annotation document (default: stubforge.yaml)
      --catalog FILE   run catalog database (default: .stubforge/catalog.db)
      --no-catalog     disable run persistence
  -x, --exclude PATH   exclude packages under PATH (repeatable)
  -v, --verbose        verbose diagnostics
      --version        print version and exit
  -h, --help           show this help
`

type options struct {
	pattern    string
	out        string
	dir        string
	configPath string
	catalog    string
	exclude    []string
	verbose    bool
}

func parseArgs(args []string) (*options, error) {
	o := &options{
		pattern:    "./...",
		configPath: config.DefaultConfigFile,
		catalog:    config.DefaultCatalogFile,
	}
	needValue := func(i int, flag string) (string, error) {
		if i+1 >= len(args) {
			return "", fmt.Errorf("%s requires a value", flag)
		}
		return args[i+1], nil
	}
	patternSet := false
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-o", "--out":
			v, err := needValue(i, arg)
			if err != nil {
				return nil, err
			}
			o.out = v
			i++
		case "-C", "--dir":
			v, err := needValue(i, arg)
			if err != nil {
				return nil, err
			}
			o.dir = v
			i++
		case "--config":
			v, err := needValue(i, arg)
			if err != nil {
				return nil, err
			}
			o.configPath = v
			i++
		case "--catalog":
			v, err := needValue(i, arg)
			if err != nil {
				return nil, err
			}
			o.catalog = v
			i++
		case "--no-catalog":
			o.catalog = ""
		case "-x", "--exclude":
			v, err := needValue(i, arg)
			if err != nil {
				return nil, err
			}
			o.exclude = append(o.exclude, v)
			i++
		case "-v", "--verbose":
			o.verbose = true
		case "--version":
			fmt.Println("stubforge " + Version)
			os.Exit(0)
		case "-h", "--help":
			fmt.Print(usage)
			os.Exit(0)
		default:
			if len(arg) > 1 && arg[0] == '-' {
				return nil, fmt.Errorf("unknown flag %s", arg)
			}
			if patternSet {
				return nil, fmt.Errorf("unexpected argument %s", arg)
			}
			o.pattern = arg
			patternSet = true
		}
	}
	return o, nil
}

func main() {
	o, err := parseArgs(os.Args[1:])
	if err != nil {
		fail(err)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	log, err := diagnostics.New(o.verbose)
	if err != nil {
		fail(err)
		os.Exit(1)
	}
	defer log.Sync()

	annotations, err := scaffold.LoadAnnotations(o.configPath)
	if err != nil {
		fail(err)
		os.Exit(1)
	}

	engine := scaffold.New(
		scaffold.WithDir(o.dir),
		scaffold.WithOutDir(o.out),
		scaffold.WithCatalog(o.catalog),
		scaffold.WithAnnotations(annotations),
		scaffold.WithExclude(o.exclude),
		scaffold.WithLogger(log),
	)

	result, err := engine.Generate(o.pattern)
	if err != nil {
		fail(err)
		os.Exit(1)
	}

	for _, file := range result.Files {
		fmt.Println(colorize("  wrote ", "32") + file)
	}
	fmt.Printf("%s %d test functions in %d files (%d members skipped)\n",
		colorize("generated", "32"), result.Tests, len(result.Files), result.Skipped)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, colorize("error: ", "31")+err.Error())
}

// colorize wraps s in an ANSI color code when stdout is a terminal.
func colorize(s, code string) string {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}
