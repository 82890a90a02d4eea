package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rekall-kb/rekall/internal/types"
)

var (
	addKind       string
	addProject    string
	addTags       string
	addSituation  string
	addSolution   string
	addWhatFailed string
)

var addCmd = &cobra.Command{
	Use:   "add <title> <body>",
	Short: "Capture a new entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := &types.Entry{
			Kind:  types.EntryKind(addKind),
			Title: args[0],
			Body:  args[1],
		}
		if addProject != "" {
			e.Project = addProject
		}
		if addTags != "" {
			e.Tags = strings.Split(addTags, ",")
		}
		var sc *types.StructuredContext
		if addSituation != "" || addSolution != "" || addWhatFailed != "" {
			sc = &types.StructuredContext{
				Situation:  addSituation,
				Solution:   addSolution,
				WhatFailed: addWhatFailed,
			}
		}
		env, err := facade.AddEntry(cmd.Context(), e, sc)
		if err != nil {
			return err
		}
		printDegraded(env.Degraded)
		fmt.Println(env.Result)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an entry and its incident links",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return facade.DeleteEntry(cmd.Context(), args[0])
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch an entry and record the access",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := facade.GetEntry(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printEntry(e)
		return nil
	},
}

func printEntry(e *types.Entry) {
	fmt.Println(labelStyle.Render("id:"), e.ID)
	fmt.Println(labelStyle.Render("kind:"), e.Kind)
	fmt.Println(labelStyle.Render("title:"), e.Title)
	if e.Project != "" {
		fmt.Println(labelStyle.Render("project:"), e.Project)
	}
	if len(e.Tags) > 0 {
		fmt.Println(labelStyle.Render("tags:"), strings.Join(e.Tags, ", "))
	}
	fmt.Println(labelStyle.Render("body:"))
	fmt.Println(e.Body)
	if e.Context != nil {
		if e.Context.Situation != "" {
			fmt.Println(labelStyle.Render("situation:"), e.Context.Situation)
		}
		if e.Context.Solution != "" {
			fmt.Println(labelStyle.Render("solution:"), e.Context.Solution)
		}
	}
}

func init() {
	addCmd.Flags().StringVar(&addKind, "kind", string(types.KindTIL), "entry kind (bug/pattern/decision/pitfall/config/reference/snippet/til)")
	addCmd.Flags().StringVar(&addProject, "project", "", "project this entry belongs to")
	addCmd.Flags().StringVar(&addTags, "tags", "", "comma-separated tags")
	addCmd.Flags().StringVar(&addSituation, "situation", "", "structured context: situation")
	addCmd.Flags().StringVar(&addSolution, "solution", "", "structured context: solution")
	addCmd.Flags().StringVar(&addWhatFailed, "what-failed", "", "structured context: what was tried and failed")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(deleteCmd)
}
