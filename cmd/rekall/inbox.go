package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var inboxConnector string

var inboxImportCmd = &cobra.Command{
	Use:   "inbox-import",
	Short: "Drain configured connectors into the inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := facade.InboxImport(cmd.Context(), inboxConnector)
		if err != nil {
			return err
		}
		printDegraded(env.Degraded)
		fmt.Printf("imported %d entries, %d validation errors\n", env.Result.EntriesImported, env.Result.ErrorsCount)
		return nil
	},
}

func init() {
	inboxImportCmd.Flags().StringVar(&inboxConnector, "connector", "", "restrict the drain to one connector")
	rootCmd.AddCommand(inboxImportCmd)
}
