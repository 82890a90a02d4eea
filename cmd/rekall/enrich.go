package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enrichBatchCmd = &cobra.Command{
	Use:   "enrich-batch",
	Short: "Run one bronze-to-silver enrichment batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := facade.EnrichBatch(cmd.Context())
		if err != nil {
			return err
		}
		printDegraded(env.Degraded)
		fmt.Printf("enriched %d rows\n", env.Result)
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <url>",
	Short: "Promote a single staging URL to a gold source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := facade.Promote(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(src.ID)
		return nil
	},
}

var promoteAutoCmd = &cobra.Command{
	Use:   "promote-auto",
	Short: "Run the scoring-threshold auto-promotion batch",
	RunE: func(cmd *cobra.Command, args []string) error {
		promoted, err := facade.PromoteAuto(cmd.Context())
		if err != nil {
			return err
		}
		for _, src := range promoted {
			fmt.Println(src.ID, src.URLPattern)
		}
		return nil
	},
}

var demoteCmd = &cobra.Command{
	Use:   "demote <source-id>",
	Short: "Revert a promoted source back to an eligible staging row",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return facade.Demote(cmd.Context(), args[0])
	},
}

func init() {
	rootCmd.AddCommand(enrichBatchCmd)
	rootCmd.AddCommand(promoteCmd)
	rootCmd.AddCommand(promoteAutoCmd)
	rootCmd.AddCommand(demoteCmd)
}
