package main

import (
	"fmt"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"
)

// dateParser resolves natural-language snooze phrases ("in 3 days",
// "next monday") against a fixed English rule set. Built once and
// reused across grade invocations within a process.
var dateParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

var (
	reviewProject string
	reviewLimit   int
)

var reviewDueCmd = &cobra.Command{
	Use:   "review-due",
	Short: "List entries due for review",
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := facade.ReviewDue(cmd.Context(), reviewProject, reviewLimit)
		if err != nil {
			return err
		}
		for _, e := range due {
			fmt.Printf("%s  %s\n", e.ID, e.Title)
		}
		return nil
	},
}

var gradeSnooze string

var gradeCmd = &cobra.Command{
	Use:   "grade <id> <rating 0-5>",
	Short: "Apply a spaced-repetition review rating to an entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var rating int
		if _, err := fmt.Sscanf(args[1], "%d", &rating); err != nil {
			return fmt.Errorf("rating must be an integer 0-5: %w", err)
		}
		e, err := facade.Grade(cmd.Context(), args[0], rating)
		if err != nil {
			return err
		}
		if gradeSnooze != "" {
			res, err := dateParser.Parse(gradeSnooze, time.Now())
			if err != nil {
				return fmt.Errorf("parse --snooze %q: %w", gradeSnooze, err)
			}
			if res == nil {
				return fmt.Errorf("could not understand --snooze %q", gradeSnooze)
			}
			due := res.Time
			e.DueAt = &due
			if _, err := facade.UpdateEntry(cmd.Context(), e, e.Context); err != nil {
				return err
			}
		}
		fmt.Printf("next review: %s\n", e.DueAt.Format(time.RFC3339))
		return nil
	},
}

var (
	staleProject   string
	staleThreshold int
)

var staleCmd = &cobra.Command{
	Use:   "stale",
	Short: "List entries not accessed within the staleness threshold",
	RunE: func(cmd *cobra.Command, args []string) error {
		entries, err := facade.Stale(cmd.Context(), staleProject, staleThreshold)
		if err != nil {
			return err
		}
		for _, e := range entries {
			fmt.Printf("%s  %s (last accessed %s)\n", e.ID, e.Title, e.AccessedAt.Format(time.RFC3339))
		}
		return nil
	},
}

func init() {
	reviewDueCmd.Flags().StringVar(&reviewProject, "project", "", "restrict to a project")
	reviewDueCmd.Flags().IntVar(&reviewLimit, "limit", 0, "maximum entries to return (0 = unbounded)")

	gradeCmd.Flags().StringVar(&gradeSnooze, "snooze", "", `push the next review out to a natural-language date, e.g. "in 3 days"`)

	staleCmd.Flags().StringVar(&staleProject, "project", "", "restrict to a project")
	staleCmd.Flags().IntVar(&staleThreshold, "threshold-days", 30, "days since last access before an entry is stale")

	rootCmd.AddCommand(reviewDueCmd)
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(staleCmd)
}
