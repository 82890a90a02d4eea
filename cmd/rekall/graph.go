package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rekall-kb/rekall/internal/types"
)

var linkReason string

var linkCmd = &cobra.Command{
	Use:   "link <source-id> <relation> <target-id>",
	Short: "Create a typed edge between two entries",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return facade.Link(cmd.Context(), args[0], args[2], types.LinkRelation(args[1]), linkReason)
	},
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <source-id> <relation> <target-id>",
	Short: "Remove a typed edge between two entries",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return facade.Unlink(cmd.Context(), args[0], args[2], types.LinkRelation(args[1]))
	},
}

var relatedCmd = &cobra.Command{
	Use:   "related <id>",
	Short: "List an entry's neighbors in either direction",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		links, err := facade.Related(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for _, l := range links {
			fmt.Printf("%s --%s--> %s\n", l.SourceID, l.Relation, l.TargetID)
		}
		return nil
	},
}

var graphDepth int

var graphCmd = &cobra.Command{
	Use:   "graph <root-id>",
	Short: "Walk the knowledge graph's breadth-first neighborhood of root",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sub, err := facade.Graph(cmd.Context(), args[0], graphDepth)
		if err != nil {
			return err
		}
		for _, n := range sub.Nodes {
			fmt.Printf("node %s: %s\n", n.ID, n.Title)
		}
		for _, l := range sub.Edges {
			fmt.Printf("edge %s --%s--> %s\n", l.SourceID, l.Relation, l.TargetID)
		}
		return nil
	},
}

var deprecateReplacement string

var deprecateCmd = &cobra.Command{
	Use:   "deprecate <id>",
	Short: "Mark an entry deprecated, optionally superseded by another",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return facade.Deprecate(cmd.Context(), args[0], deprecateReplacement)
	},
}

var generalizeProject string

var generalizeCmd = &cobra.Command{
	Use:   "generalize <title> <source-id> [source-id...]",
	Short: "Create a semantic pattern entry derived from episodic sources",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := facade.Generalize(cmd.Context(), args[1:], &types.Entry{
			Title:   args[0],
			Project: generalizeProject,
		})
		if err != nil {
			return err
		}
		printDegraded(env.Degraded)
		fmt.Println(env.Result)
		return nil
	},
}

func init() {
	linkCmd.Flags().StringVar(&linkReason, "reason", "", "why this edge exists")
	deprecateCmd.Flags().StringVar(&deprecateReplacement, "replacement", "", "entry id that supersedes this one")
	generalizeCmd.Flags().StringVar(&generalizeProject, "project", "", "project for the generalized entry")
	graphCmd.Flags().IntVar(&graphDepth, "depth", 1, "number of hops to traverse")

	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)
	rootCmd.AddCommand(relatedCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(deprecateCmd)
	rootCmd.AddCommand(generalizeCmd)
}
