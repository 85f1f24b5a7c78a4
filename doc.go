// Package fieldz evaluates field pipelines for a schema-driven data framework.
//
// # Overview
//
// A schema declares, per field, small programs that validate, transform and
// authorize values on the way in and out of storage. fieldz is the engine
// that runs them. A Pipeline is an ordered list of Items; each Item takes a
// Context and returns a new Context or an error, and the first error stops
// the Pipeline.
//
// # Core Concepts
//
//   - Value: a tagged union of everything a field can hold (null, booleans,
//     numbers, decimals, strings, dates, arrays, dicts, enums, object refs,
//     regexes, ranges, tuples and pipelines).
//   - Context: an immutable carrier of the current Value plus the key path
//     into the originating record, the bound object, the query intent and
//     the App handle.
//   - Item: the unit of work. Op wraps a plain function; If, Filter and
//     Modifier are control-flow items with their own metrics.
//   - Error: every failure carries a Class. Internal errors are fatal and
//     abort; validation errors describe bad user input; permission errors
//     come only from Pipeline.Authorize.
//
// # Arguments
//
// Operator arguments are Values, and a Value may itself be a Pipeline. Such
// arguments are resolved against the Context the operator is called with,
// so gte($minimum) compares against whatever $minimum computes for the
// current record.
//
// # Example
//
//	normalize := fieldz.NewPipeline("normalize",
//		fieldz.Trim(),
//		fieldz.ToLowerCase(),
//		fieldz.IsEmail(),
//	)
//	v, err := normalize.Process(ctx, fieldz.NewContext(fieldz.String("  Ann@Example.com ")))
//	// v == "ann@example.com"
//
// # Observability
//
// Pipelines and control-flow items carry a metricz.Registry, a tracez.Tracer
// and hookz event hooks, and may be given a clockz.Clock for deterministic
// timing in tests. Logging goes through the zap logger on the App.
package fieldz
