// Package rules contains the built-in lint rules.
//
// QP0xx rules run in the sync phase on every keystroke and rely only on the
// lexical scanner. QP1xx rules run in the worker phase and use lexer tokens and
// table references.
//
// Import for side effects to register them:
//
//	import _ "github.com/queryplus/queryplus/pkg/lint/rules"
package rules
