package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/report"
	"github.com/spf13/cobra"
)

// exportFormats lists the formats accepted by --format.
var exportFormats = []string{"text", "json", "markdown", "csv", "sitemap"}

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a saved crawl without crawling again",
		Long: `Export writes a saved crawl in one of the report formats. Every finished
crawl is saved unless --no-save was given, so the same results can be
projected as JSON, Markdown, a CSV resource inventory or an XML sitemap
later on.

Examples:
  # List saved runs
  sitecrawler export --list

  # Export run 3 as a CSV resource inventory
  sitecrawler export --run 3 --format csv -o files.csv

  # Export the latest run of a domain as an XML sitemap
  sitecrawler export --latest example.com --format sitemap`,
		Args: cobra.NoArgs,
		RunE: runExportCmd,
	}

	cmd.Flags().Int64("run", 0, "ID of the saved run to export")
	cmd.Flags().String("latest", "", "Export the most recent run of this domain")
	cmd.Flags().Bool("list", false, "List saved runs instead of exporting")
	cmd.Flags().StringP("format", "f", "text",
		"Output format: "+strings.Join(exportFormats, ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write to specified file path instead of stdout")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the sitecrawler database")

	return cmd
}

// runExportCmd executes the export command.
func runExportCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	runID, err := flags.GetInt64("run")
	if err != nil {
		return err
	}
	latest, err := flags.GetString("latest")
	if err != nil {
		return err
	}
	list, err := flags.GetBool("list")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	if !list && runID == 0 && latest == "" {
		return errors.New("specify --run, --latest or --list")
	}

	setupLogger(cmd)
	ctx := cmd.Context()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if list {
		runs, err := db.ListRuns(ctx, latest)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		return printRuns(cmd.OutOrStdout(), runs)
	}

	newWriter, err := exportWriter(format)
	if err != nil {
		return err
	}

	var sm *model.SiteMap
	if runID != 0 {
		sm, err = db.GetRun(ctx, runID)
	} else {
		sm, err = db.GetLatestRun(ctx, latest)
	}
	if err != nil {
		return fmt.Errorf("failed to load run: %w", err)
	}
	if sm == nil {
		return errors.New("no saved run found")
	}

	output, closeOutput, err := openReportOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer closeOutput()

	_, err = newWriter(output).Write(sm)
	return err
}

// exportWriter returns a constructor for the writer of format.
func exportWriter(format string) (func(io.Writer) report.Writer, error) {
	switch strings.ToLower(format) {
	case "text":
		return func(w io.Writer) report.Writer { return report.NewSimpleWriter(w, report.WithVerbose(true)) }, nil
	case "json":
		return func(w io.Writer) report.Writer {
			return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
		}, nil
	case "markdown", "md":
		return func(w io.Writer) report.Writer { return report.NewMarkdownWriter(w) }, nil
	case "csv":
		return func(w io.Writer) report.Writer { return report.NewCSVWriter(w) }, nil
	case "sitemap", "xml":
		return func(w io.Writer) report.Writer { return report.NewSitemapWriter(w) }, nil
	default:
		return nil, fmt.Errorf("unknown format %q (expected one of: %s)", format, strings.Join(exportFormats, ", "))
	}
}

// printRuns writes the saved runs as a table.
func printRuns(w io.Writer, runs []database.RunMetadata) error {
	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No saved runs.")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDOMAIN\tSTATE\tPAGES\tERRORS\tSAVED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Domain, r.State, r.Pages, r.Errors, r.Timestamp.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}
