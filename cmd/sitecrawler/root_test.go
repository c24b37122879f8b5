package main

import (
	"testing"
)

// TestNewRootCmd tests the root command creation.
func TestNewRootCmd(t *testing.T) {
	t.Parallel()

	cmd := NewRootCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "sitecrawler" {
			t.Errorf("expected use 'sitecrawler', got %q", cmd.Use)
		}
	})

	t.Run("has descriptions and version", func(t *testing.T) {
		t.Parallel()
		if cmd.Short == "" || cmd.Long == "" {
			t.Error("expected non-empty descriptions")
		}
		if cmd.Version == "" {
			t.Error("expected non-empty version")
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		t.Parallel()
		verbose := cmd.PersistentFlags().Lookup("verbose")
		if verbose == nil {
			t.Fatal("expected verbose flag")
		}
		if verbose.Shorthand != "v" || verbose.DefValue != "false" {
			t.Errorf("unexpected verbose flag %+v", verbose)
		}
		logFormat := cmd.PersistentFlags().Lookup("log-format")
		if logFormat == nil || logFormat.DefValue != "text" {
			t.Error("expected log-format flag defaulting to text")
		}
	})

	t.Run("has subcommands", func(t *testing.T) {
		t.Parallel()
		want := map[string]bool{"crawl": false, "export": false, "pages": false, "compare": false, "init": false, "version": false}
		for _, sub := range cmd.Commands() {
			if _, ok := want[sub.Name()]; ok {
				want[sub.Name()] = true
			}
		}
		for name, found := range want {
			if !found {
				t.Errorf("expected %s subcommand", name)
			}
		}
	})

	t.Run("silences usage and errors", func(t *testing.T) {
		t.Parallel()
		if !cmd.SilenceUsage || !cmd.SilenceErrors {
			t.Error("expected SilenceUsage and SilenceErrors to be true")
		}
	})
}
