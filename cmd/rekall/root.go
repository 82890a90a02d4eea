package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/rekall-kb/rekall/internal/config"
	"github.com/rekall-kb/rekall/internal/connectors"
	"github.com/rekall-kb/rekall/internal/core"
)

var (
	dataDir string
	facade  *core.Facade
)

var (
	errStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

var rootCmd = &cobra.Command{
	Use:           "rekall",
	Short:         "A local-first personal knowledge base, search, and spaced-repetition engine",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		f, err := core.Open(cmd.Context(), core.Options{
			DataDir:    dataDir,
			Connectors: defaultConnectors(),
		})
		if err != nil {
			return fmt.Errorf("open rekall store at %s: %w", dataDir, err)
		}
		facade = f
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if facade == nil {
			return nil
		}
		return facade.Close()
	},
}

func init() {
	def, err := config.DefaultDataDir()
	if err != nil {
		def = "."
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", def, "directory holding rekall.db and config.toml")
}

// Execute runs the root command, printing a styled error and exiting
// non-zero on failure.
func Execute() {
	ctx := context.Background()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("error:"), err)
		os.Exit(1)
	}
}

// defaultConnectors points each known connector at the host's
// conventional history location. Available() itself decides whether
// that location actually exists on this machine.
func defaultConnectors() []connectors.Connector {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		cfgDir = home
	}
	return []connectors.Connector{
		&connectors.ClaudeCLI{RootDir: filepath.Join(home, ".claude", "projects")},
		&connectors.CursorIDE{RootDir: filepath.Join(cfgDir, "Cursor", "User", "workspaceStorage")},
	}
}

func printDegraded(degraded bool) {
	if degraded {
		fmt.Fprintln(os.Stderr, warnStyle.Render("warning: operation completed in degraded mode (embedding or fetch channel unavailable)"))
	}
}
