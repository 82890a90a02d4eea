package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rekall-kb/rekall/internal/search"
)

var (
	searchLimit             int
	searchIncludeDeprecated bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search entries via the fused FTS/semantic/keyword channels",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := facade.Search(cmd.Context(), args[0], search.Options{
			Limit:             searchLimit,
			IncludeDeprecated: searchIncludeDeprecated,
		})
		if err != nil {
			return err
		}
		printDegraded(env.Degraded)
		for i, r := range env.Result {
			fmt.Printf("%d. [%s] %s (score %.3f)\n", i+1, r.Entry.ID, r.Entry.Title, r.Score)
			if r.Snippet != "" {
				fmt.Printf("   %s\n", r.Snippet)
			}
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results to return")
	searchCmd.Flags().BoolVar(&searchIncludeDeprecated, "include-deprecated", false, "include deprecated entries")
	rootCmd.AddCommand(searchCmd)
}
