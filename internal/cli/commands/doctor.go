package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/queryplus/queryplus/internal/cli/output"
	"github.com/queryplus/queryplus/internal/config"
	"github.com/queryplus/queryplus/internal/store"
	"github.com/queryplus/queryplus/pkg/lint"
	"github.com/queryplus/queryplus/pkg/metadata"
)

// Health check statuses.
const (
	statusPass  = "pass"
	statusWarn  = "warn"
	statusError = "error"
)

// NewDoctorCommand creates the doctor command.
func NewDoctorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the Query++ setup and metadata",
		Long: `Check the configuration, the metadata store and the data extension
metadata that completion and linting depend on.

The report includes:
- A summary of the configuration and the known data extensions
- Health checks grouped by area (Config, Store, Metadata)
- A health score (0-100)
- Recommendations for anything that needs attention

The doctor never imports metadata into the store.`,
		Example: `  # Run the health check
  queryplus doctor

  # Output as JSON
  queryplus doctor -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd)
		},
	}
}

// DoctorOutput is the JSON output for the doctor command.
type DoctorOutput struct {
	Summary         SetupSummary  `json:"summary"`
	HealthChecks    []HealthCheck `json:"health_checks"`
	Score           int           `json:"score"`
	Recommendations []string      `json:"recommendations"`
	IssueCount      int           `json:"issue_count"`
}

// SetupSummary describes the configuration and metadata the checks ran on.
type SetupSummary struct {
	ConfigFile           string        `json:"config_file,omitempty"`
	StorePath            string        `json:"store_path,omitempty"`
	MetadataFile         string        `json:"metadata_file,omitempty"`
	MetadataSource       string        `json:"metadata_source"`
	Folders              int           `json:"folders"`
	DataExtensions       int           `json:"data_extensions"`
	SharedDataExtensions int           `json:"shared_data_extensions"`
	Fields               int           `json:"fields"`
	LintRules            int           `json:"lint_rules"`
	DisabledRules        int           `json:"disabled_rules"`
	LastImport           *store.Import `json:"last_import,omitempty"`
}

// HealthCheck represents a single health check result.
type HealthCheck struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Group      string   `json:"group"`
	Status     string   `json:"status"` // "pass", "warn", "error"
	IssueCount int      `json:"issue_count"`
	Details    []string `json:"details,omitempty"`
}

func (c *HealthCheck) fail(status string, details ...string) {
	c.Status = worseStatus(c.Status, status)
	c.IssueCount += max(1, len(details))
	c.Details = append(c.Details, details...)
}

func worseStatus(a, b string) string {
	rank := map[string]int{statusPass: 0, statusWarn: 1, statusError: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

// doctor collects results while the checks run.
type doctor struct {
	ctx     context.Context
	cfg     *config.Config
	cmdCtx  *CommandContext
	summary SetupSummary
	checks  []*HealthCheck

	folders []metadata.Folder
	des     []metadata.DataExtension
}

func (d *doctor) check(id, name string) *HealthCheck {
	group, _, _ := strings.Cut(id, ".")
	c := &HealthCheck{ID: id, Name: name, Group: group, Status: statusPass}
	d.checks = append(d.checks, c)
	return c
}

func runDoctor(cmd *cobra.Command) error {
	cmdCtx := NewCommandContextWithoutMetadata(cmd)
	cfg := cmdCtx.Cfg
	d := &doctor{
		ctx:    cmd.Context(),
		cfg:    cfg,
		cmdCtx: cmdCtx,
		summary: SetupSummary{
			ConfigFile:     cfg.ConfigFile,
			StorePath:      cfg.StorePath,
			MetadataFile:   cfg.MetadataFile,
			MetadataSource: "none",
		},
	}

	d.checkConfigFile()
	d.checkLintRules()
	d.checkStore()
	d.checkSnapshot()
	d.checkMetadata()

	out := d.output()
	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}
	renderDoctorText(r, out)
	return nil
}

func (d *doctor) checkConfigFile() {
	c := d.check("config.file", "Configuration file")
	if d.cfg.ConfigFile == "" {
		c.fail(statusWarn, "no queryplus.yaml found, using built-in defaults")
	}
}

func (d *doctor) checkLintRules() {
	c := d.check("config.lint", "Lint rule settings")
	d.summary.LintRules = lint.Count()

	if _, err := d.cfg.LintSettings(); err != nil {
		c.fail(statusError, err.Error())
	}

	disabled := make(map[string]bool)
	for _, id := range d.cfg.Lint.Disabled {
		id = strings.ToUpper(strings.TrimSpace(id))
		if _, ok := lint.GetByID(id); !ok {
			c.fail(statusWarn, "unknown rule "+id+" in lint.disabled")
			continue
		}
		disabled[id] = true
	}
	for id := range d.cfg.Lint.Severity {
		if _, ok := lint.GetByID(strings.ToUpper(id)); !ok {
			c.fail(statusWarn, "unknown rule "+strings.ToUpper(id)+" in lint.severity")
		}
	}
	d.summary.DisabledRules = len(disabled)
}

// checkStore inspects an existing store without creating or migrating one.
func (d *doctor) checkStore() {
	c := d.check("store.database", "Metadata store")
	path := d.cfg.StorePath
	switch {
	case path == "":
		c.fail(statusWarn, "store_path is not configured")
		return
	case path == ":memory:":
		return
	case !fileExists(path):
		c.fail(statusWarn, "store not created yet, run queryplus import")
		return
	}

	st, err := store.Open(path, d.cmdCtx.Logger)
	if err != nil {
		c.fail(statusError, err.Error())
		return
	}
	defer func() { _ = st.Close() }()

	if v, err := st.MigrationVersion(); err == nil {
		c.Details = append(c.Details, fmt.Sprintf("schema version %d", v))
	}

	imports := d.check("store.import", "Imported metadata")
	last, err := st.LastImport(d.ctx)
	if err != nil {
		imports.fail(statusError, err.Error())
		return
	}
	if last == nil {
		imports.fail(statusWarn, "store has no imports")
		return
	}
	d.summary.LastImport = last
	imports.Details = append(imports.Details, fmt.Sprintf("%s at %s", last.Source, last.ImportedAt.Format("2006-01-02 15:04:05")))

	folders, err := st.Folders(d.ctx)
	if err != nil {
		imports.fail(statusError, err.Error())
		return
	}
	des, err := st.DataExtensions(d.ctx)
	if err != nil {
		imports.fail(statusError, err.Error())
		return
	}
	d.folders, d.des = folders, des
	d.summary.MetadataSource = "store"
}

func (d *doctor) checkSnapshot() {
	if d.cfg.MetadataFile == "" {
		return
	}
	c := d.check("metadata.snapshot", "Metadata snapshot")
	snap, err := store.ReadSnapshotFile(d.cfg.MetadataFile)
	if err != nil {
		c.fail(statusError, err.Error())
		return
	}
	// The snapshot is what the store would hold after the next import.
	d.folders, d.des = snap.Folders, snap.DataExtensions
	d.summary.MetadataSource = "snapshot"
}

func (d *doctor) checkMetadata() {
	c := d.check("metadata.available", "Data extension metadata")
	if d.summary.MetadataSource == "none" {
		c.fail(statusWarn, "no metadata, table and field suggestions are unavailable")
		return
	}

	shared := metadata.SharedFolderIDs(d.folders)
	knownFolders := make(map[string]bool, len(d.folders))
	for _, f := range d.folders {
		knownFolders[f.ID] = true
	}

	fields := d.check("metadata.fields", "Data extensions have fields")
	keys := d.check("metadata.primary_keys", "Data extensions have a primary key")
	names := d.check("metadata.names", "Data extension names are unique")
	folders := d.check("metadata.folders", "Data extension folders exist")

	seen := make(map[string]int)
	for _, de := range d.des {
		d.summary.Fields += len(de.Fields)
		_, isShared := shared[de.FolderID]
		if isShared {
			d.summary.SharedDataExtensions++
		}

		if len(de.Fields) == 0 {
			fields.fail(statusWarn, de.Name)
		} else if !hasPrimaryKey(de.Fields) {
			keys.fail(statusWarn, de.Name)
		}
		if de.FolderID != "" && !knownFolders[de.FolderID] {
			folders.fail(statusWarn, fmt.Sprintf("%s (folder %s)", de.Name, de.FolderID))
		}

		scope := "local"
		if isShared {
			scope = "shared"
		}
		seen[scope+"|"+strings.ToLower(de.Name)]++
	}
	d.summary.Folders = len(d.folders)
	d.summary.DataExtensions = len(d.des)

	dupes := make([]string, 0)
	for key, n := range seen {
		if n > 1 {
			scope, name, _ := strings.Cut(key, "|")
			dupes = append(dupes, fmt.Sprintf("%s (%d %s data extensions)", name, n, scope))
		}
	}
	sort.Strings(dupes)
	if len(dupes) > 0 {
		names.fail(statusError, dupes...)
	}
}

func hasPrimaryKey(fields []metadata.Field) bool {
	for _, f := range fields {
		if f.IsPrimaryKey {
			return true
		}
	}
	return false
}

func (d *doctor) output() *DoctorOutput {
	checks := make([]HealthCheck, 0, len(d.checks))
	for _, c := range d.checks {
		checks = append(checks, *c)
	}
	sort.SliceStable(checks, func(i, j int) bool {
		return groupOrder(checks[i].Group) < groupOrder(checks[j].Group)
	})

	issues := 0
	for _, c := range checks {
		issues += c.IssueCount
	}

	return &DoctorOutput{
		Summary:         d.summary,
		HealthChecks:    checks,
		Score:           calculateHealthScore(checks, d.summary.DataExtensions),
		Recommendations: generateRecommendations(checks),
		IssueCount:      issues,
	}
}

func groupOrder(group string) int {
	switch group {
	case "config":
		return 0
	case "store":
		return 1
	default:
		return 2
	}
}

// calculateHealthScore computes a health score from 0-100. Errors weigh
// double, and each issue weighs less as the number of data extensions grows.
func calculateHealthScore(checks []HealthCheck, dataExtensions int) int {
	score := 100.0

	basePenalty := 5.0
	if dataExtensions > 10 {
		basePenalty = 3.0
	}
	if dataExtensions > 50 {
		basePenalty = 2.0
	}
	if dataExtensions > 100 {
		basePenalty = 1.0
	}

	for _, check := range checks {
		switch check.Status {
		case statusError:
			score -= float64(check.IssueCount) * basePenalty * 2
		case statusWarn:
			score -= float64(check.IssueCount) * basePenalty
		}
	}

	return int(max(0, min(100, score)))
}

// generateRecommendations creates actionable recommendations based on findings.
func generateRecommendations(checks []HealthCheck) []string {
	var recommendations []string
	seen := make(map[string]bool)

	for _, check := range checks {
		if check.IssueCount == 0 {
			continue
		}
		rec := getRecommendation(check.ID)
		if rec != "" && !seen[rec] {
			recommendations = append(recommendations, rec)
			seen[rec] = true
		}
	}

	if len(recommendations) > 5 {
		recommendations = recommendations[:5]
	}
	return recommendations
}

func getRecommendation(id string) string {
	switch id {
	case "config.file":
		return "Run 'queryplus init' to create a queryplus.yaml"
	case "config.lint":
		return "Fix the rule IDs in the lint section; 'queryplus rules' lists them"
	case "store.database", "store.import", "metadata.available":
		return "Import a metadata snapshot with 'queryplus import <snapshot.yaml>'"
	case "metadata.snapshot":
		return "Fix metadata_file so it points at a readable YAML snapshot"
	case "metadata.fields":
		return "Export the fields of every data extension so columns can be completed"
	case "metadata.primary_keys":
		return "Mark primary keys in the snapshot to improve JOIN suggestions"
	case "metadata.names":
		return "Rename duplicate data extensions so table references are unambiguous"
	case "metadata.folders":
		return "Include every referenced folder so shared data extensions get the ENT. prefix"
	default:
		return ""
	}
}

func renderDoctorText(r *output.Renderer, out *DoctorOutput) {
	styles := r.Styles()

	r.Println("")
	r.Println(styles.Header1.Render("Query++ Health Report"))
	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	r.Println("")

	s := out.Summary
	configFile := s.ConfigFile
	if configFile == "" {
		configFile = "(defaults)"
	}
	r.Println(styles.Header2.Render("Summary"))
	r.Printf("   Config: %s\n", configFile)
	r.Printf("   Metadata: %s | Folders: %d | Data extensions: %d (%d shared) | Fields: %d\n",
		s.MetadataSource, s.Folders, s.DataExtensions, s.SharedDataExtensions, s.Fields)
	r.Printf("   Lint rules: %d (%d disabled)\n", s.LintRules, s.DisabledRules)
	r.Println("")

	r.Println(styles.Header2.Render("Health Checks"))
	r.Println("")

	currentGroup := ""
	titleCaser := cases.Title(language.English)
	for _, check := range out.HealthChecks {
		if check.Group != currentGroup {
			currentGroup = check.Group
			r.Println(styles.Bold.Render("   " + titleCaser.String(currentGroup)))
			r.Println(styles.Muted.Render("   " + strings.Repeat("-", 40)))
		}

		icon := styles.Success.Render("✓")
		switch check.Status {
		case statusWarn:
			icon = styles.Warning.Render("!")
		case statusError:
			icon = styles.Error.Render("✗")
		}

		status := fmt.Sprintf("%s %s", icon, check.Name)
		if check.Status != statusPass {
			status += fmt.Sprintf(" (%d issues)", check.IssueCount)
		}
		r.Println("   " + status)

		for i, detail := range check.Details {
			if i >= 3 {
				r.Println(styles.Muted.Render(fmt.Sprintf("       ... and %d more", len(check.Details)-3)))
				break
			}
			r.Println(styles.Muted.Render("       - " + detail))
		}
	}
	r.Println("")

	r.Println(styles.Muted.Render(strings.Repeat("=", 55)))
	scoreStyle := styles.Success
	if out.Score < 70 {
		scoreStyle = styles.Warning
	}
	if out.Score < 50 {
		scoreStyle = styles.Error
	}
	r.Printf("   Health Score: %s\n", scoreStyle.Render(fmt.Sprintf("%d/100", out.Score)))
	r.Println("")

	if len(out.Recommendations) > 0 {
		r.Println(styles.Header2.Render("Recommendations"))
		for i, rec := range out.Recommendations {
			r.Printf("   %d. %s\n", i+1, rec)
		}
		r.Println("")
	}
}
