package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/spf13/cobra"
)

// NewCompareCmd creates the compare command.
// It compares two saved runs of the same domain.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [domain]",
		Short: "Compare two saved crawls of a site",
		Long: `Compare shows what changed on a site between two saved crawls:
- Pages that appeared or disappeared
- Pages that started or stopped failing
- Files added to or removed from the resource inventory
- Contact data that appeared or disappeared

By default the two most recent runs of the domain are compared. Use
'sitecrawler export --list' to see the saved runs.

Examples:
  # Compare the latest two crawls of a site
  sitecrawler compare example.com

  # Compare the latest crawl with run 5
  sitecrawler compare --with-run 5 example.com

  # Compare with the first crawl since a date
  sitecrawler compare --since 2026-01-01 example.com

  # Output the comparison as JSON
  sitecrawler compare --json example.com`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().Int64P("with-run", "i", 0,
		"Compare the latest run with this run ID")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run on or after this date (format: YYYY-MM-DD)")
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the sitecrawler database")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	withRun, err := flags.GetInt64("with-run")
	if err != nil {
		return err
	}
	since, err := flags.GetString("since")
	if err != nil {
		return err
	}
	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return err
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	var sinceDate time.Time
	if since != "" {
		sinceDate, err = time.Parse("2006-01-02", since)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
	}

	setupLogger(cmd)
	ctx := cmd.Context()
	domain := strings.ToLower(args[0])

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	runs, err := db.ListRuns(ctx, domain)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	previousID, err := selectPreviousRun(runs, withRun, sinceDate)
	if err != nil {
		return fmt.Errorf("%s: %w", domain, err)
	}

	current, err := db.GetRun(ctx, runs[0].ID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", runs[0].ID, err)
	}
	previous, err := db.GetRun(ctx, previousID)
	if err != nil {
		return fmt.Errorf("failed to load run %d: %w", previousID, err)
	}
	if previous == nil {
		return fmt.Errorf("run %d not found", previousID)
	}
	if previous.Domain != domain {
		return fmt.Errorf("run %d belongs to %s, not %s", previousID, previous.Domain, domain)
	}

	result := compareSiteMaps(previous, current)
	result.PreviousRun.ID = previousID
	result.CurrentRun.ID = runs[0].ID

	out := cmd.OutOrStdout()
	switch {
	case jsonOutput:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case markdownOutput:
		return writeComparisonMarkdown(out, result)
	default:
		return writeComparisonText(out, result)
	}
}

// selectPreviousRun picks the run to compare the latest one with. runs are
// newest first.
func selectPreviousRun(runs []database.RunMetadata, withRun int64, since time.Time) (int64, error) {
	if len(runs) == 0 {
		return 0, errors.New("no saved runs found")
	}

	switch {
	case withRun > 0:
		if withRun == runs[0].ID {
			return 0, errors.New("cannot compare the latest run with itself")
		}
		return withRun, nil
	case !since.IsZero():
		for i := len(runs) - 1; i > 0; i-- {
			if !runs[i].Timestamp.Before(since) {
				return runs[i].ID, nil
			}
		}
		return 0, fmt.Errorf("no earlier run found since %s", since.Format("2006-01-02"))
	default:
		if len(runs) < 2 {
			return 0, fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(runs))
		}
		return runs[1].ID, nil
	}
}

// ComparisonResult holds the differences between two runs of a site.
type ComparisonResult struct {
	Domain      string  `json:"domain"`
	PreviousRun RunInfo `json:"previous_run"`
	CurrentRun  RunInfo `json:"current_run"`

	NewPages     []string `json:"new_pages,omitempty"`
	RemovedPages []string `json:"removed_pages,omitempty"`

	// NewlyBroken lists pages that succeeded before and fail now; Fixed the reverse.
	NewlyBroken []string `json:"newly_broken,omitempty"`
	Fixed       []string `json:"fixed,omitempty"`

	NewResources     map[model.ResourceCategory][]string `json:"new_resources,omitempty"`
	RemovedResources map[model.ResourceCategory][]string `json:"removed_resources,omitempty"`

	NewContacts     []string `json:"new_contacts,omitempty"`
	RemovedContacts []string `json:"removed_contacts,omitempty"`

	UnchangedPages int `json:"unchanged_pages"`
}

// RunInfo summarizes one side of a comparison.
type RunInfo struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	Pages       int       `json:"pages"`
	PagesFailed int       `json:"pages_failed"`
	Files       int       `json:"files"`
}

func runInfo(sm *model.SiteMap) RunInfo {
	return RunInfo{
		StartedAt:   sm.Statistics.StartedAt,
		Pages:       len(sm.Pages),
		PagesFailed: sm.Statistics.PagesFailed,
		Files:       sm.ResourceCount(),
	}
}

// compareSiteMaps computes the differences between previous and current.
func compareSiteMaps(previous, current *model.SiteMap) *ComparisonResult {
	result := &ComparisonResult{
		Domain:           current.Domain,
		PreviousRun:      runInfo(previous),
		CurrentRun:       runInfo(current),
		NewResources:     make(map[model.ResourceCategory][]string),
		RemovedResources: make(map[model.ResourceCategory][]string),
	}

	for _, key := range current.SortedPageURLs() {
		before, ok := previous.Pages[key]
		if !ok {
			result.NewPages = append(result.NewPages, key.String())
			continue
		}
		now := current.Pages[key]
		switch {
		case before.OK() && !now.OK():
			result.NewlyBroken = append(result.NewlyBroken, key.String())
		case !before.OK() && now.OK():
			result.Fixed = append(result.Fixed, key.String())
		default:
			result.UnchangedPages++
		}
	}
	for _, key := range previous.SortedPageURLs() {
		if _, ok := current.Pages[key]; !ok {
			result.RemovedPages = append(result.RemovedPages, key.String())
		}
	}

	for _, category := range model.AllCategories {
		added, removed := diff(previous.Resources[category], current.Resources[category])
		if len(added) > 0 {
			result.NewResources[category] = added
		}
		if len(removed) > 0 {
			result.RemovedResources[category] = removed
		}
	}

	result.NewContacts, result.RemovedContacts = diff(contacts(previous), contacts(current))
	return result
}

// contacts flattens the contact data of sm into labelled values.
func contacts(sm *model.SiteMap) []string {
	var out []string
	for _, e := range sm.Data.Emails {
		out = append(out, "email: "+e)
	}
	for _, p := range sm.Data.Phones {
		out = append(out, "phone: "+p)
	}
	for _, s := range sm.Data.SocialLinks {
		out = append(out, s.Platform+": "+s.URL)
	}
	return out
}

// diff returns the values only in current and the values only in previous,
// both sorted.
func diff(previous, current []string) (added, removed []string) {
	for _, v := range current {
		if !slices.Contains(previous, v) {
			added = append(added, v)
		}
	}
	for _, v := range previous {
		if !slices.Contains(current, v) {
			removed = append(removed, v)
		}
	}
	slices.Sort(added)
	slices.Sort(removed)
	return added, removed
}

// writeComparisonMarkdown writes the comparison as Markdown.
func writeComparisonMarkdown(w io.Writer, r *ComparisonResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Crawl Comparison: %s\n\n", r.Domain)
	sb.WriteString("| Metric | Previous | Current | Change |\n")
	sb.WriteString("|--------|----------|---------|--------|\n")
	fmt.Fprintf(&sb, "| Run | %d | %d | - |\n", r.PreviousRun.ID, r.CurrentRun.ID)
	fmt.Fprintf(&sb, "| Date | %s | %s | - |\n",
		r.PreviousRun.StartedAt.Format("2006-01-02 15:04"),
		r.CurrentRun.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "| Pages | %d | %d | %s |\n",
		r.PreviousRun.Pages, r.CurrentRun.Pages, formatDelta(r.CurrentRun.Pages-r.PreviousRun.Pages))
	fmt.Fprintf(&sb, "| Failed | %d | %d | %s |\n",
		r.PreviousRun.PagesFailed, r.CurrentRun.PagesFailed, formatDelta(r.CurrentRun.PagesFailed-r.PreviousRun.PagesFailed))
	fmt.Fprintf(&sb, "| Files | %d | %d | %s |\n",
		r.PreviousRun.Files, r.CurrentRun.Files, formatDelta(r.CurrentRun.Files-r.PreviousRun.Files))

	list := func(title string, values []string, strike bool) {
		if len(values) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n## %s (%d)\n\n", title, len(values))
		for _, v := range values {
			if strike {
				fmt.Fprintf(&sb, "- ~~`%s`~~\n", v)
			} else {
				fmt.Fprintf(&sb, "- `%s`\n", v)
			}
		}
	}
	list("New Pages", r.NewPages, false)
	list("Removed Pages", r.RemovedPages, true)
	list("Newly Broken Pages", r.NewlyBroken, false)
	list("Fixed Pages", r.Fixed, false)
	for _, category := range model.AllCategories {
		list("New "+string(category), r.NewResources[category], false)
		list("Removed "+string(category), r.RemovedResources[category], true)
	}
	list("New Contacts", r.NewContacts, false)
	list("Removed Contacts", r.RemovedContacts, true)

	if r.UnchangedPages > 0 {
		fmt.Fprintf(&sb, "\n---\n\n*%d pages unchanged*\n", r.UnchangedPages)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// writeComparisonText writes the comparison in human-readable text format.
func writeComparisonText(w io.Writer, r *ComparisonResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Crawl Comparison: %s\n", r.Domain)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Previous run: #%d  %s\n", r.PreviousRun.ID, r.PreviousRun.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "Current run:  #%d  %s\n\n", r.CurrentRun.ID, r.CurrentRun.StartedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&sb, "  %-10s  %-10s  %-10s  %-10s\n", "Metric", "Previous", "Current", "Change")
	sb.WriteString("  " + strings.Repeat("-", 45) + "\n")
	rows := []struct {
		name        string
		prev, after int
	}{
		{"Pages", r.PreviousRun.Pages, r.CurrentRun.Pages},
		{"Failed", r.PreviousRun.PagesFailed, r.CurrentRun.PagesFailed},
		{"Files", r.PreviousRun.Files, r.CurrentRun.Files},
	}
	for _, row := range rows {
		fmt.Fprintf(&sb, "  %-10s  %-10d  %-10d  %-10s\n", row.name, row.prev, row.after, formatDelta(row.after-row.prev))
	}

	list := func(title, marker string, values []string) {
		if len(values) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n%s (%d):\n", title, len(values))
		for _, v := range values {
			fmt.Fprintf(&sb, "  [%s] %s\n", marker, v)
		}
	}
	list("New pages", "+", r.NewPages)
	list("Removed pages", "-", r.RemovedPages)
	list("Newly broken pages", "!", r.NewlyBroken)
	list("Fixed pages", "*", r.Fixed)
	for _, category := range model.AllCategories {
		list("New "+string(category), "+", r.NewResources[category])
		list("Removed "+string(category), "-", r.RemovedResources[category])
	}
	list("New contacts", "+", r.NewContacts)
	list("Removed contacts", "-", r.RemovedContacts)

	if r.UnchangedPages > 0 {
		fmt.Fprintf(&sb, "\nUnchanged: %d pages\n", r.UnchangedPages)
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
