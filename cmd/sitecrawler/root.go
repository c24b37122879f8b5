package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nao1215/sitecrawler/internal/config"
	ilog "github.com/nao1215/sitecrawler/internal/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for sitecrawler.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sitecrawler",
		Short: "Recursive same-domain website crawler",
		Long: `sitecrawler crawls a website starting from a seed URL and stays on the
seed's domain. It records every page and the links between pages, catalogues
the files the site references (images, documents, media, code, archives,
fonts, data, feeds, config), and extracts contact data such as email
addresses, phone numbers, social profiles and forms.

Crawls are polite by default: robots.txt is honoured and every worker waits
between requests. Results can be written as text, JSON, Markdown, a CSV
resource inventory or an XML sitemap, and are saved so they can be exported
again later, or compared with a later crawl, without crawling.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", config.LogFormatText, "Log format: text or json")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewPagesCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getLogFormatFlag retrieves the log format from the command or its parent.
func getLogFormatFlag(cmd *cobra.Command) string {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format, err = cmd.Root().PersistentFlags().GetString("log-format")
		if err != nil {
			return config.LogFormatText
		}
	}
	return format
}

// setupLogger creates the sanitizing logger for the command and installs it
// as the default.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	logger := ilog.New(cmd.ErrOrStderr(), getVerboseFlag(cmd), getLogFormatFlag(cmd))
	slog.SetDefault(logger)
	return logger
}
