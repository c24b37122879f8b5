package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/nao1215/sitecrawler/internal/config"
	"github.com/nao1215/sitecrawler/internal/database"
	"github.com/spf13/cobra"
)

// NewPagesCmd creates the pages command.
func NewPagesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List stored raw pages",
		Long: `Pages lists the raw page bodies stored by crawls run with --save-raw.

Examples:
  # List the first 50 stored pages in URL order
  sitecrawler pages

  # List the pages of one site
  sitecrawler pages --site example.com --limit 200

  # Print the stored body of one page
  sitecrawler pages --url https://example.com/about`,
		Args: cobra.NoArgs,
		RunE: runPagesCmd,
	}

	cmd.Flags().String("site", "", "Only list pages of this host")
	cmd.Flags().Int("limit", 50, "Maximum number of pages to list")
	cmd.Flags().String("url", "", "Print the stored body of this page")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the sitecrawler database")

	return cmd
}

// runPagesCmd executes the pages command.
func runPagesCmd(cmd *cobra.Command, _ []string) error {
	flags := cmd.Flags()
	site, err := flags.GetString("site")
	if err != nil {
		return err
	}
	limit, err := flags.GetInt("limit")
	if err != nil {
		return err
	}
	pageURL, err := flags.GetString("url")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	setupLogger(cmd)
	ctx := cmd.Context()

	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	out := cmd.OutOrStdout()
	if pageURL != "" {
		page, err := db.GetRawPage(ctx, pageURL)
		if err != nil {
			return fmt.Errorf("failed to load page: %w", err)
		}
		if page == nil {
			return fmt.Errorf("page not stored: %s", pageURL)
		}
		_, err = fmt.Fprint(out, page.RawHTML)
		return err
	}

	pages, err := db.ListRawPages(ctx, site, limit)
	if err != nil {
		return fmt.Errorf("failed to list pages: %w", err)
	}
	if len(pages) == 0 {
		_, err := fmt.Fprintln(out, "No stored pages.")
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "URL\tSTATUS\tSIZE\tHASH\tSCRAPED")
	for _, p := range pages {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			p.URL, p.StatusCode, p.Size, shortHash(p.ContentHash), p.ScrapedAt.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

// shortHash abbreviates a content hash for display.
func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
