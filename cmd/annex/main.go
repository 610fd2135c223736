package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jward/annex"
	"github.com/jward/annex/extensions/faulttolerance"
	"github.com/jward/annex/internal/config"
	"github.com/jward/annex/internal/logging"
)

var (
	flagConfig  string
	flagDB      string
	flagFormat  string
	flagVerbose bool
)

// cfg is the loaded configuration, set by the root PersistentPreRunE.
var cfg *config.Config

// errorHandled is set by outputError so main() doesn't double-print.
var errorHandled bool

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errorHandled {
			fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "annex",
	Short:         "Build-time annotation metadata engine",
	Long:          "Annex indexes Java sources into SQLite, runs annotation extensions over the index and records the frozen result of every run.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(flagFormat); err != nil {
			return err
		}
		loaded, err := config.NewLoader().LoadWithDefaults(flagConfig)
		if err != nil {
			return err
		}
		cfg = loaded
		logging.SetupLogging(cfg.Verbose || flagVerbose)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "config file (default: annex.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "database path (default: .annex/index.db relative to repo root)")
	rootCmd.PersistentFlags().StringVar(&flagFormat, "format", "json", "output format: json|text|yaml")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(showCmd)
}

// --- index ---

var (
	flagForce   bool
	flagLibrary bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path...]",
	Short: "Index Java sources",
	Long: "Parses Java files with tree-sitter and stores their declarations. Without arguments the " +
		"configured sources and libraries are indexed, or the current directory when none are configured.",
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&flagForce, "force", false, "delete the database and reindex from scratch")
	indexCmd.Flags().BoolVar(&flagLibrary, "library", false, "index the given paths as library sources")
}

// indexRoot is one directory to index.
type indexRoot struct {
	path     string
	archived bool
}

func runIndex(cmd *cobra.Command, args []string) error {
	start := time.Now()

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	roots, err := indexRoots(repoRoot, args)
	if err != nil {
		return err
	}

	dbPath := resolveDBPath(repoRoot)
	if flagForce {
		if err := os.Remove(dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing database for --force: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Cleared database: %s\n", dbPath)
	}

	engine, err := openEngine(repoRoot)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	total := &annex.IndexStats{}
	var errs []error
	for _, r := range roots {
		stats, err := engine.IndexDirectory(ctx, r.path, r.archived)
		if stats != nil {
			addStats(total, stats)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("indexing %s: %w", r.path, err))
		}
	}

	fmt.Fprintf(os.Stderr, "Indexed %d files (%d unchanged) in %s: %d classes, %d methods, %d fields, %d annotations\n",
		total.Files, total.Skipped, time.Since(start).Round(time.Millisecond),
		total.Classes, total.Methods, total.Fields, total.Annotations)
	fmt.Fprintf(os.Stderr, "Database: %s\n", dbPath)
	return errors.Join(errs...)
}

// indexRoots returns the directories to index: args when given, otherwise
// the configured sources and libraries, otherwise the working directory.
func indexRoots(repoRoot string, args []string) ([]indexRoot, error) {
	var roots []indexRoot
	if len(args) > 0 {
		for _, a := range args {
			dir, err := resolveTargetDir(a)
			if err != nil {
				return nil, err
			}
			roots = append(roots, indexRoot{path: dir, archived: !flagLibrary})
		}
		return roots, nil
	}
	for _, s := range cfg.Sources {
		roots = append(roots, indexRoot{path: relativeTo(repoRoot, s), archived: true})
	}
	for _, l := range cfg.Libraries {
		roots = append(roots, indexRoot{path: relativeTo(repoRoot, l), archived: false})
	}
	if len(roots) == 0 {
		dir, err := resolveTargetDir(".")
		if err != nil {
			return nil, err
		}
		roots = append(roots, indexRoot{path: dir, archived: !flagLibrary})
	}
	return roots, nil
}

func addStats(total, s *annex.IndexStats) {
	total.Files += s.Files
	total.Skipped += s.Skipped
	total.Classes += s.Classes
	total.Methods += s.Methods
	total.Fields += s.Fields
	total.Annotations += s.Annotations
}

// --- run ---

var flagExport string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run extensions over the index",
	Long: "Runs the configured script extensions and the bundled fault-tolerance extension through the " +
		"four phases, streams diagnostics to stderr and records the frozen result.",
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&flagExport, "export", "", "write the frozen result to a file (.json for JSON, msgpack otherwise)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return outputError("run", fmt.Errorf("getting cwd: %w", err))
	}
	repoRoot := findRepoRoot(cwd)
	if err := requireDB(repoRoot); err != nil {
		return outputError("run", err)
	}
	engine, err := openEngine(repoRoot)
	if err != nil {
		return outputError("run", err)
	}
	defer engine.Close()

	if err := engine.RegisterScripts(cfg.Extensions...); err != nil {
		return outputError("run", err)
	}
	if *cfg.FaultTolerance.Enabled {
		var opts []faulttolerance.Option
		if p := cfg.FaultTolerance.InterceptorPriority; p != nil {
			opts = append(opts, faulttolerance.WithInterceptorPriority(*p))
		}
		faulttolerance.New(opts...).Register(engine)
	}

	res, runErr := engine.Run(context.Background(), annex.WithDiagnosticHandler(func(d annex.Diagnostic) {
		printDiagnostic(os.Stderr, d)
	}))
	if res == nil {
		return outputError("run", runErr)
	}

	export := res.Export()
	if flagExport != "" {
		if err := annex.WriteExportFile(flagExport, export); err != nil {
			return outputError("run", err)
		}
		fmt.Fprintf(os.Stderr, "Exported: %s\n", flagExport)
	}

	if err := outputResult(CLIResult{Command: "run", Results: runToCLI(res, runErr)}); err != nil {
		return err
	}
	if runErr != nil {
		errorHandled = flagFormat != "text"
		return runErr
	}
	return nil
}

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show the effective annotations of a declaration in the last run",
	Long: "Prints the frozen annotations the most recent run recorded for a declaration. Classes are " +
		"named pkg.Outer.Inner, methods pkg.Type#name(p1,p2) and fields pkg.Type#name.",
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return outputError("show", fmt.Errorf("getting cwd: %w", err))
	}
	repoRoot := findRepoRoot(cwd)
	if err := requireDB(repoRoot); err != nil {
		return outputError("show", err)
	}
	engine, err := openEngine(repoRoot)
	if err != nil {
		return outputError("show", err)
	}
	defer engine.Close()

	run, err := engine.LastRun()
	if err != nil {
		return outputError("show", err)
	}
	if run == nil {
		return outputError("show", fmt.Errorf("no runs recorded (run 'annex run' first)"))
	}
	anns, err := engine.EffectiveAnnotations(args[0])
	if err != nil {
		return outputError("show", err)
	}
	out := make([]CLIAnnotation, len(anns))
	for i, a := range anns {
		out[i] = annotationToCLI(a)
	}
	total := len(out)
	return outputResult(CLIResult{Command: "show", Results: out, TotalCount: &total})
}

// --- Helpers ---

// openEngine opens the Engine for the database of repoRoot, configured from
// the loaded config.
func openEngine(repoRoot string) (*annex.Engine, error) {
	opts := []annex.Option{
		annex.WithBuildOptions(annex.WithMaxDiagnostics(cfg.MaxDiagnostics)),
	}
	if cfg.ScriptsDir != "" {
		opts = append(opts, annex.WithScriptsDir(relativeTo(repoRoot, cfg.ScriptsDir)))
	} else {
		opts = append(opts, annex.WithScriptsDir(repoRoot))
	}
	engine, err := annex.New(resolveDBPath(repoRoot), opts...)
	if err != nil {
		return nil, fmt.Errorf("creating engine: %w", err)
	}
	return engine, nil
}

// requireDB fails when the database has not been created by 'annex index'.
func requireDB(repoRoot string) error {
	dbPath := resolveDBPath(repoRoot)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		return fmt.Errorf("database not found: %s (run 'annex index' first)", dbPath)
	}
	return nil
}

// resolveTargetDir returns the absolute path of a directory to index.
func resolveTargetDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path %q: %w", dir, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("directory not found: %s", abs)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}
	return abs, nil
}

// findRepoRoot walks up from startDir looking for a .git directory.
// Returns the directory containing .git, or startDir if not found.
func findRepoRoot(startDir string) string {
	dir := startDir
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return startDir
		}
		dir = parent
	}
}

// resolveDBPath returns the database path from --db, the config, or the
// default, relative to the repo root.
func resolveDBPath(repoRoot string) string {
	if flagDB != "" {
		return relativeTo(repoRoot, flagDB)
	}
	if cfg != nil && cfg.Database != "" {
		return relativeTo(repoRoot, cfg.Database)
	}
	return filepath.Join(repoRoot, config.DefaultDatabase)
}

func relativeTo(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
