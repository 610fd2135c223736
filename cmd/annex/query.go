package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jward/annex"
)

var (
	flagExact              []string
	flagSubtypeOf          []string
	flagSupertypeOf        []string
	flagAnnotatedWith      []string
	flagClassAnnotatedWith []string
	flagReturnType         []string
	flagType               []string
	flagConstructors       bool
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the indexed archive",
	Long: "Evaluates a class, method or field query against the index with native annotations. " +
		"Values of one flag are alternatives; different flags must all match.",
}

func init() {
	queryCmd.PersistentFlags().StringSliceVar(&flagExact, "exact", nil, "classes with these qualified names")
	queryCmd.PersistentFlags().StringSliceVar(&flagSubtypeOf, "subtype-of", nil, "strict subtypes of these types")
	queryCmd.PersistentFlags().StringSliceVar(&flagSupertypeOf, "supertype-of", nil, "these classes and their superclass chains")

	queryClassesCmd.Flags().StringSliceVar(&flagAnnotatedWith, "annotated-with", nil, "classes carrying any of these annotations")

	for _, c := range []*cobra.Command{queryMethodsCmd, queryFieldsCmd} {
		c.Flags().StringSliceVar(&flagAnnotatedWith, "annotated-with", nil, "members carrying any of these annotations")
		c.Flags().StringSliceVar(&flagClassAnnotatedWith, "class-annotated-with", nil, "members of classes carrying any of these annotations")
	}
	queryMethodsCmd.Flags().StringSliceVar(&flagReturnType, "return-type", nil, "methods returning any of these type expressions")
	queryMethodsCmd.Flags().BoolVar(&flagConstructors, "constructors", false, "select constructors instead of methods")
	queryFieldsCmd.Flags().StringSliceVar(&flagType, "type", nil, "fields of any of these type expressions")

	queryCmd.AddCommand(queryClassesCmd)
	queryCmd.AddCommand(queryMethodsCmd)
	queryCmd.AddCommand(queryFieldsCmd)
}

var queryClassesCmd = &cobra.Command{
	Use:   "classes",
	Short: "Find classes",
	Args:  cobra.NoArgs,
	RunE:  runQueryClasses,
}

var queryMethodsCmd = &cobra.Command{
	Use:   "methods",
	Short: "Find methods or constructors",
	Args:  cobra.NoArgs,
	RunE:  runQueryMethods,
}

var queryFieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "Find fields",
	Args:  cobra.NoArgs,
	RunE:  runQueryFields,
}

// openBuild snapshots the index into a build that is queried without being
// run. Query warnings (unknown names) are printed to stderr.
func openBuild() (*annex.Build, func(), error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, nil, fmt.Errorf("getting cwd: %w", err)
	}
	repoRoot := findRepoRoot(cwd)
	if err := requireDB(repoRoot); err != nil {
		return nil, nil, err
	}
	engine, err := openEngine(repoRoot)
	if err != nil {
		return nil, nil, err
	}
	b, err := engine.NewBuild(annex.WithDiagnosticHandler(func(d annex.Diagnostic) {
		printDiagnostic(os.Stderr, d)
	}))
	if err != nil {
		engine.Close()
		return nil, nil, err
	}
	return b, func() { engine.Close() }, nil
}

// classQuery builds the class query selected by the type flags, plus the
// given annotation alternatives.
func classQuery(b *annex.Build, annotations []string) *annex.ClassQuery {
	return b.Archive().Classes().
		Exactly(flagExact...).
		SubtypeOf(flagSubtypeOf...).
		SupertypeOf(flagSupertypeOf...).
		AnnotatedWith(annotations...)
}

// declaringClasses returns the class query members are restricted to, or nil
// when no class flag is set.
func declaringClasses(b *annex.Build) *annex.ClassQuery {
	q := classQuery(b, flagClassAnnotatedWith)
	if q.Constraints() == 0 {
		return nil
	}
	return q
}

// typeExpr turns a type expression flag into a Type matching the same
// canonical source form.
func typeExpr(types *annex.Types, expr string) annex.Type {
	switch expr {
	case "void":
		return types.OfVoid()
	case "boolean", "byte", "short", "int", "long", "float", "double", "char":
		return types.OfPrimitive(annex.Primitive(expr))
	}
	return types.OfClass(expr)
}

func runQueryClasses(cmd *cobra.Command, args []string) error {
	b, done, err := openBuild()
	if err != nil {
		return outputError("query classes", err)
	}
	defer done()

	infos := classQuery(b, flagAnnotatedWith).List()
	out := make([]CLIClass, len(infos))
	for i, ci := range infos {
		out[i] = classToCLI(ci)
	}
	total := len(out)
	return outputResult(CLIResult{Command: "query classes", Results: out, TotalCount: &total})
}

func runQueryMethods(cmd *cobra.Command, args []string) error {
	b, done, err := openBuild()
	if err != nil {
		return outputError("query methods", err)
	}
	defer done()

	q := b.Archive().Methods()
	if flagConstructors {
		q = b.Archive().Constructors()
	}
	if on := declaringClasses(b); on != nil {
		q = q.DeclaredOn(on)
	}
	types := b.Archive().Types()
	for _, expr := range flagReturnType {
		q = q.WithReturnType(typeExpr(types, expr))
	}
	q = q.AnnotatedWith(flagAnnotatedWith...)

	infos := q.List()
	out := make([]CLIMethod, len(infos))
	for i, mi := range infos {
		out[i] = methodToCLI(mi)
	}
	total := len(out)
	return outputResult(CLIResult{Command: "query methods", Results: out, TotalCount: &total})
}

func runQueryFields(cmd *cobra.Command, args []string) error {
	b, done, err := openBuild()
	if err != nil {
		return outputError("query fields", err)
	}
	defer done()

	q := b.Archive().Fields()
	if on := declaringClasses(b); on != nil {
		q = q.DeclaredOn(on)
	}
	types := b.Archive().Types()
	for _, expr := range flagType {
		q = q.OfType(typeExpr(types, expr))
	}
	q = q.AnnotatedWith(flagAnnotatedWith...)

	infos := q.List()
	out := make([]CLIField, len(infos))
	for i, fi := range infos {
		out[i] = fieldToCLI(fi)
	}
	total := len(out)
	return outputResult(CLIResult{Command: "query fields", Results: out, TotalCount: &total})
}
