package lint

import "sort"

// Analyzer runs registered lint rules against SQL text.
type Analyzer struct {
	config *Config
}

// NewAnalyzer creates a new analyzer with optional configuration.
func NewAnalyzer(config *Config) *Analyzer {
	if config == nil {
		config = NewConfig()
	}
	return &Analyzer{config: config}
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() *Config {
	return a.config
}

// Run runs every enabled rule of phase against in. Diagnostics are ordered by
// position, then rule ID.
func (a *Analyzer) Run(phase Phase, in *Input) []Diagnostic {
	var diagnostics []Diagnostic
	for _, rule := range GetByPhase(phase) {
		// Skip disabled rules
		if a.config.IsDisabled(rule.ID) {
			continue
		}

		diags := rule.Check(in)

		// Stamp rule ID and apply severity overrides
		for i := range diags {
			diags[i].RuleID = rule.ID
			diags[i].Severity = a.config.GetSeverity(rule.ID, diags[i].Severity)
		}

		diagnostics = append(diagnostics, diags...)
	}

	sort.SliceStable(diagnostics, func(i, j int) bool {
		if diagnostics[i].StartIndex != diagnostics[j].StartIndex {
			return diagnostics[i].StartIndex < diagnostics[j].StartIndex
		}
		return diagnostics[i].RuleID < diagnostics[j].RuleID
	})
	return diagnostics
}

// Analyze runs both phases in order.
func (a *Analyzer) Analyze(sql string, dataExtensions []string) []Diagnostic {
	in := NewInput(sql, dataExtensions)
	return append(a.Run(PhaseSync, in), a.Run(PhaseWorker, in)...)
}
