// Package annex is a build-time metadata engine for Java programs. It indexes
// class, method and field declarations with their annotations, lets
// extensions query and rewrite those annotations in an overlay, and freezes
// the result for the build steps that follow.
//
// # Pipeline
//
// A run has two halves:
//
//  1. Index: [Engine.IndexDirectory] parses Java sources with tree-sitter and
//     stores declarations and native annotations in SQLite. Unchanged files
//     are skipped by content hash. Library sources are indexed with
//     archived=false; they serve hierarchy lookups but are not part of the
//     application archive.
//
//  2. Build: [Engine.Run] snapshots the store into an [Index] and runs the
//     registered callbacks through four phases: Discovery, Enhancement,
//     Synthesis and Validation. Annotation changes live in the build's
//     [Overlay], which is frozen when the run ends and persisted per run.
//
// # Usage
//
//	e, err := annex.New(".annex/index.db")
//	if err != nil { ... }
//	defer e.Close()
//
//	ctx := context.Background()
//	_, err = e.IndexDirectory(ctx, "src/main/java", true)
//
//	e.Register(annex.Func1(annex.PhaseEnhancement, "bind",
//		annex.EachClassConfig(annex.AnnotatedWith("com.acme.Retry")),
//		func(ctx context.Context, cc *annex.ClassConfig) error {
//			return cc.AddAnnotation("com.acme.Binding")
//		}))
//	res, err := e.Run(ctx)
//
// # Queries
//
// [ClassQuery] selects classes by exact name, strict subtype, supertype chain
// and annotation. Values given to one predicate are alternatives; different
// predicates must all hold. [MethodQuery] and [FieldQuery] narrow the members
// of a class query by return or field type and by annotation.
//
// # Scripts
//
// Extensions can also be Risor scripts described by config entries and
// registered with [Engine.RegisterScripts]. Scripts see the matched elements
// and host functions for reading and changing annotations and reporting
// diagnostics; see the internal/runtime package for the globals.
package annex
