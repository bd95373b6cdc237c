package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/pkg/lint"
)

// RulesOptions holds options for the rules command.
type RulesOptions struct {
	Group string // Filter by group
	Phase string // Filter by phase: sync, worker
}

// NewRulesCommand creates the rules command.
func NewRulesCommand() *cobra.Command {
	opts := &RulesOptions{}
	cmd := &cobra.Command{
		Use:   "rules [rule-id]",
		Short: "List available lint rules",
		Long: `List all available lint rules.

Sync rules run on every keystroke in the editor. Worker rules run after
typing pauses. The severity column reflects lint.severity overrides and
disabled rules from the configuration.

Output adapts to environment:
  - Terminal: Styled output with colors
  - Piped/Scripted: JSON`,
		Example: `  # List all rules
  queryplus rules

  # Show details for a specific rule
  queryplus rules QP101

  # List worker rules only
  queryplus rules --phase worker

  # List rules in the dialect group
  queryplus rules --group dialect`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return showRule(cmd, args[0])
			}
			return listRules(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Group, "group", "g", "", "Filter by group")
	cmd.Flags().StringVar(&opts.Phase, "phase", "", "Filter by phase: sync, worker")

	return cmd
}

// ruleInfo is the rendered view of a registered rule.
type ruleInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Group           string `json:"group"`
	Phase           string `json:"phase"`
	Description     string `json:"description"`
	DefaultSeverity string `json:"defaultSeverity"`
	Severity        string `json:"severity"`
	Disabled        bool   `json:"disabled"`
}

// RulesJSONOutput is the JSON output structure for rules listing.
type RulesJSONOutput struct {
	Rules []ruleInfo `json:"rules"`
	Count struct {
		Sync   int `json:"sync"`
		Worker int `json:"worker"`
		Total  int `json:"total"`
	} `json:"count"`
}

func toRuleInfo(rule lint.RuleDef, cfg *lint.Config) ruleInfo {
	return ruleInfo{
		ID:              rule.ID,
		Name:            rule.Name,
		Group:           rule.Group,
		Phase:           rule.Phase.String(),
		Description:     rule.Description,
		DefaultSeverity: rule.Severity.String(),
		Severity:        cfg.GetSeverity(rule.ID, rule.Severity).String(),
		Disabled:        cfg.IsDisabled(rule.ID),
	}
}

func listRules(cmd *cobra.Command, opts *RulesOptions) error {
	cmdCtx := NewCommandContextWithoutMetadata(cmd)
	r := cmdCtx.Renderer

	lintCfg, err := cmdCtx.Cfg.LintSettings()
	if err != nil {
		return err
	}

	var rules []ruleInfo
	for _, rule := range lint.GetAll() {
		if opts.Group != "" && !strings.EqualFold(rule.Group, opts.Group) {
			continue
		}
		if opts.Phase != "" && !strings.EqualFold(rule.Phase.String(), opts.Phase) {
			continue
		}
		rules = append(rules, toRuleInfo(rule, lintCfg))
	}

	// Sort by phase, then group, then ID
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Phase != rules[j].Phase {
			return rules[i].Phase < rules[j].Phase
		}
		if rules[i].Group != rules[j].Group {
			return rules[i].Group < rules[j].Group
		}
		return rules[i].ID < rules[j].ID
	})

	if r.EffectiveMode() == output.ModeJSON {
		return listRulesJSON(r, rules)
	}
	listRulesText(r, rules)
	return nil
}

func listRulesJSON(r *output.Renderer, rules []ruleInfo) error {
	out := RulesJSONOutput{Rules: rules}
	if out.Rules == nil {
		out.Rules = []ruleInfo{}
	}
	for _, rule := range rules {
		if rule.Phase == lint.PhaseWorker.String() {
			out.Count.Worker++
		} else {
			out.Count.Sync++
		}
	}
	out.Count.Total = len(rules)
	return r.JSON(out)
}

// listRulesText outputs rules in styled text format.
func listRulesText(r *output.Renderer, rules []ruleInfo) {
	styles := r.Styles()

	syncCount, workerCount := 0, 0
	for _, rule := range rules {
		if rule.Phase == lint.PhaseWorker.String() {
			workerCount++
		} else {
			syncCount++
		}
	}

	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("Lint Rules (%d sync, %d worker)", syncCount, workerCount)))
	r.Println("")

	currentPhase := ""
	currentGroup := ""
	for _, rule := range rules {
		if rule.Phase != currentPhase {
			currentPhase = rule.Phase
			currentGroup = ""
			label := "Sync Rules"
			if currentPhase == lint.PhaseWorker.String() {
				label = "Worker Rules"
			}
			r.Println(styles.Header2.Render(label))
			r.Println("")
		}

		if rule.Group != currentGroup {
			currentGroup = rule.Group
			r.Println(styles.Bold.Render("  " + capitalizeFirst(currentGroup)))
		}

		sev := getSeverityStyle(styles, rule.Severity).Render(rule.Severity)
		if rule.Disabled {
			sev = styles.Muted.Render("disabled")
		}
		r.Printf("    %s  %s - %s\n", styles.Muted.Render(rule.ID), rule.Name, sev)
	}

	r.Println("")
	r.Println(styles.Muted.Render("Use 'queryplus rules <rule-id>' for details"))
	r.Println("")
}

func showRule(cmd *cobra.Command, ruleID string) error {
	cmdCtx := NewCommandContextWithoutMetadata(cmd)
	r := cmdCtx.Renderer

	rule, ok := lint.GetByID(strings.ToUpper(ruleID))
	if !ok {
		return fmt.Errorf("rule %q not found", ruleID)
	}
	lintCfg, err := cmdCtx.Cfg.LintSettings()
	if err != nil {
		return err
	}
	info := toRuleInfo(rule, lintCfg)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(info)
	}

	styles := r.Styles()
	r.Println("")
	r.Println(styles.Header1.Render(fmt.Sprintf("%s - %s", info.ID, info.Name)))
	r.Println("")
	r.Printf("  %s: %s\n", styles.Bold.Render("Group"), info.Group)
	r.Printf("  %s: %s\n", styles.Bold.Render("Phase"), info.Phase)
	r.Printf("  %s: %s\n", styles.Bold.Render("Severity"), getSeverityStyle(styles, info.Severity).Render(info.Severity))
	if info.Severity != info.DefaultSeverity {
		r.Printf("  %s: %s\n", styles.Bold.Render("Default"), info.DefaultSeverity)
	}
	if info.Disabled {
		r.Printf("  %s: %s\n", styles.Bold.Render("Status"), styles.Muted.Render("disabled by configuration"))
	}
	r.Println("")
	r.Println(styles.Bold.Render("Description"))
	r.Println("  " + info.Description)
	r.Println("")
	return nil
}

func getSeverityStyle(styles *output.Styles, sev string) lipgloss.Style {
	switch sev {
	case "error":
		return styles.Error
	case "warning":
		return styles.Warning
	case "prereq":
		return styles.Info
	default:
		return styles.Muted
	}
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
