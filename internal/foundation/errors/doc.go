// Package errors provides the classified error primitives used across tocbuilder.
//
// Every failure that can abort a build carries a category (what kind of problem it is),
// a severity (whether the build can continue) and structured context (the toc path,
// the including toc, the includer name, ...). The fluent builder keeps construction
// uniform:
//
//	err := errors.IncludeError("circular include").
//		WithContext("chain", chain).
//		Build()
//
// The CLI adapter turns a classified error into a user-facing message and exit code.
package errors
