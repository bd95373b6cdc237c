// Package lint provides the rule registry and analyzer behind editor
// diagnostics.
//
// # Phases
//
// Rules run in one of two phases:
//
//  1. PhaseSync: cheap lexical scans that run on every keystroke.
//  2. PhaseWorker: token based checks that run off the editing path, after
//     the debounce, in a diagnostics worker.
//
// # Rule Registration
//
// Rules are registered via init() functions when their package is imported:
//
//	import _ "github.com/queryplus/queryplus/pkg/lint/rules"
//
// # Configuration
//
// Use Config to control which rules are enabled and their severity:
//
//	config := lint.NewConfig()
//	config.Disable("QP006")
//	config.SetSeverity("QP101", lint.SeverityError)
//
// # Creating Custom Rules
//
//	var MyRule = lint.RuleDef{
//		ID:          "QP900",
//		Name:        "custom.no_temp",
//		Group:       "custom",
//		Description: "Temporary data extensions must not be queried.",
//		Severity:    lint.SeverityWarning,
//		Phase:       lint.PhaseWorker,
//		Check:       checkNoTemp,
//	}
//
//	func init() {
//		lint.Register(MyRule)
//	}
package lint
