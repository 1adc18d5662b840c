package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/rs/zerolog"

	"github.com/jimdowning-cyclops/myver-go/internal/config"
	"github.com/jimdowning-cyclops/myver-go/internal/version"
)

// Result is the JSON output structure.
type Result struct {
	Config  string `json:"config,omitempty"`
	Current string `json:"current"`
	Next    string `json:"next"`
}

// listFlag collects comma separated values from one or more flag occurrences.
type listFlag []string

func (l *listFlag) String() string {
	return strings.Join(*l, ",")
}

func (l *listFlag) Set(value string) error {
	for _, s := range strings.Split(value, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

type options struct {
	configPath    string
	configContent string
	bump          listFlag
	reset         listFlag
	parse         listFlag
	dryRun        bool
	json          bool
	verbose       bool
}

// app holds everything the command touches outside of its flags.
type app struct {
	fs     billy.Filesystem
	dir    string // Working directory, absolute within fs
	getenv func(string) string
	export func(key, value string) error // Publishes step outputs in Bitrise mode
	stdout io.Writer
	stderr io.Writer
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	a := &app{
		fs:     osfs.New("/"),
		dir:    wd,
		getenv: os.Getenv,
		export: exportToEnvman,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	os.Exit(a.run(os.Args[1:]))
}

// run executes the command and returns the process exit code.
func (a *app) run(args []string) int {
	opts, err := a.parseFlags(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	logger := newLogger(a.stderr, opts.verbose)
	if err := a.execute(opts, logger); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		if errors.Is(err, os.ErrNotExist) && opts.configPath == "" {
			printUsage(a.stderr)
		}
		return 1
	}
	return 0
}

func (a *app) parseFlags(args []string) (options, error) {
	var opts options

	flags := flag.NewFlagSet("myver", flag.ContinueOnError)
	flags.SetOutput(a.stderr)
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default: myver.yml in the working directory)")
	flags.StringVar(&opts.configContent, "config-content", "", "Inline YAML config content (takes precedence over --config)")
	flags.Var(&opts.bump, "bump", "Parts to bump, e.g. minor or pre=rc (comma separated, repeatable)")
	flags.Var(&opts.reset, "reset", "Parts to reset (comma separated, repeatable)")
	flags.Var(&opts.parse, "parse", "Print the version only up to the last of these parts (comma separated)")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "Do not write the new version to the config file")
	flags.BoolVar(&opts.json, "json", false, "Print the result as JSON")
	flags.BoolVar(&opts.verbose, "verbose", false, "Enable verbose debug logging")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	if flags.NArg() > 0 {
		fmt.Fprintf(a.stderr, "unexpected arguments: %v\n", flags.Args())
		flags.Usage()
		return options{}, fmt.Errorf("unexpected arguments")
	}

	// Step inputs override flags when running as a Bitrise step
	if !a.isBitriseMode() {
		return opts, nil
	}
	if c := a.getenv("config"); c != "" {
		opts.configPath = c
	}
	if cc := a.getenv("config_content"); cc != "" {
		opts.configContent = cc
	}
	if v := a.getenv("verbose"); v == "true" || v == "yes" {
		opts.verbose = true
	}

	return opts, nil
}

// isBitriseMode returns true if running as a Bitrise step.
func (a *app) isBitriseMode() bool {
	return a.getenv("BITRISE_BUILD_NUMBER") != ""
}

// exportToEnvman exports a key-value pair using envman for subsequent Bitrise steps.
func exportToEnvman(key, value string) error {
	cmd := exec.Command("envman", "add", "--key", key, "--value", value)
	return cmd.Run()
}

// exportOutputs exports the result fields as environment variables.
func (a *app) exportOutputs(result Result) error {
	outputs := []struct{ key, value string }{
		{"MYVER_CURRENT", result.Current},
		{"MYVER_NEXT", result.Next},
	}
	for _, o := range outputs {
		if err := a.export(o.key, o.value); err != nil {
			return fmt.Errorf("failed to export %s: %w", o.key, err)
		}
	}
	return nil
}

// newLogger writes human readable diagnostics to w.
func newLogger(w io.Writer, verbose bool) zerolog.Logger {
	level := zerolog.WarnLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	output := zerolog.ConsoleWriter{Out: w, NoColor: true, TimeFormat: time.RFC3339}
	return zerolog.New(output).Level(level).With().Timestamp().Logger()
}

func (a *app) execute(opts options, logger zerolog.Logger) error {
	cfg, path, err := a.loadConfig(opts, logger)
	if err != nil {
		return err
	}

	v, err := cfg.Version()
	if err != nil {
		return err
	}
	current := v.String()
	logger.Debug().Str("version", current).Int("parts", len(v.Parts())).Msg("loaded version")

	if len(opts.reset) > 0 {
		logger.Debug().Strs("keys", opts.reset).Msg("resetting parts")
		if err := v.Reset(opts.reset); err != nil {
			return fmt.Errorf("failed to reset: %w", err)
		}
	}
	if len(opts.bump) > 0 {
		logger.Debug().Strs("tokens", opts.bump).Msg("bumping parts")
		if err := v.Bump(opts.bump); err != nil {
			return fmt.Errorf("failed to bump: %w", err)
		}
	}

	next := v.String()
	if cfg.StrictSemver {
		if err := checkSemver(next); err != nil {
			return err
		}
	}
	if len(opts.parse) > 0 {
		next, err = v.Parse(opts.parse)
		if err != nil {
			return fmt.Errorf("failed to parse: %w", err)
		}
	}
	logger.Debug().Str("current", current).Str("next", next).Msg("calculated version")

	changed := len(opts.reset) > 0 || len(opts.bump) > 0
	switch {
	case !changed:
	case path == "":
		logger.Debug().Msg("inline config, not writing")
	case opts.dryRun:
		logger.Debug().Str("path", path).Msg("dry run, not writing")
	default:
		if err := cfg.Update(v); err != nil {
			return err
		}
		if err := cfg.Save(a.fs, path); err != nil {
			return err
		}
		logger.Debug().Str("path", path).Msg("config updated")
	}

	result := Result{Config: path, Current: current, Next: next}
	if opts.json {
		err = json.NewEncoder(a.stdout).Encode(result)
	} else {
		_, err = fmt.Fprintln(a.stdout, next)
	}
	if err != nil {
		return err
	}

	if a.isBitriseMode() {
		if err := a.exportOutputs(result); err != nil {
			return fmt.Errorf("failed to export outputs: %w", err)
		}
		logger.Debug().Msg("exported outputs via envman")
	}
	return nil
}

// loadConfig returns the config and the path it was read from. The path is
// empty for inline config.
func (a *app) loadConfig(opts options, logger zerolog.Logger) (*config.Config, string, error) {
	if opts.configContent != "" {
		logger.Debug().Msg("using inline config")
		cfg, err := config.Parse(opts.configContent)
		if err != nil {
			return nil, "", fmt.Errorf("failed to parse inline config: %w", err)
		}
		return cfg, "", nil
	}

	path := opts.configPath
	if path == "" {
		found, err := config.Find(a.fs, a.dir)
		switch {
		case err == nil:
			path = found
		case errors.Is(err, os.ErrNotExist):
			path = config.DefaultFileName
		default:
			return nil, "", err
		}
	}
	if !filepath.IsAbs(path) {
		path = a.fs.Join(a.dir, path)
	}
	logger.Debug().Str("path", path).Msg("loading config")

	cfg, err := config.Load(a.fs, path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// checkSemver reports whether s is a strict SemVer 2.0.0 version.
func checkSemver(s string) error {
	if _, err := semver.StrictNewVersion(s); err != nil {
		return fmt.Errorf("%w: %q is not a valid semantic version: %v", version.ErrConfig, s, err)
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  myver                               # Print the current version")
	fmt.Fprintln(w, "  myver --bump=minor                  # Bump a part and save")
	fmt.Fprintln(w, "  myver --bump=pre=rc --dry-run       # Set a part without saving")
	fmt.Fprintln(w, "  myver --reset=pre                   # Reset a part and the parts after it")
	fmt.Fprintln(w, "  myver --parse=major,minor           # Print only up to the given parts")
	fmt.Fprintln(w, "  myver --config=path/to/myver.yml")
	fmt.Fprintln(w, "  myver --config-content='...'        # Inline YAML config")
}
