package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/client"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List occurrences ordered by start date",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.ListOccurrencesRequest{}
		req.Series, _ = cmd.Flags().GetString("series")
		req.Skip, _ = cmd.Flags().GetInt("skip")
		req.Limit, _ = cmd.Flags().GetInt("limit")
		if cmd.Flags().Changed("active") {
			active, _ := cmd.Flags().GetBool("active")
			req.IsActive = &active
		}

		occurrences, err := apiClient.ListOccurrences(context.Background(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(occurrences)
		}
		printOccurrenceTable(occurrences)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	Short:   "Show one occurrence",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		o, err := apiClient.GetOccurrence(ctx, args[0])
		if err != nil {
			return err
		}
		withActivity, _ := cmd.Flags().GetBool("activity")
		if jsonOutput && !withActivity {
			return printJSON(o)
		}
		if !withActivity {
			printOccurrence(o)
			return nil
		}

		activity, err := apiClient.Activity(ctx, o.ID)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]any{"occurrence": o, "activity": activity})
		}
		printOccurrence(o)
		printActivity(activity)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:     "create <title>",
	Short:   "Create the first occurrence of a series",
	Long:    "Create an occurrence. The title is rewritten to \"<title> - <Month> <Year>\" from the start date.\nDates are RFC 3339 timestamps or YYYY-MM-DD (midnight in the server's input timezone).",
	GroupID: "events",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &client.CreateOccurrenceRequest{Title: args[0]}
		req.Theme, _ = cmd.Flags().GetString("theme")
		req.Description, _ = cmd.Flags().GetString("description")
		req.StartDate, _ = cmd.Flags().GetString("start")
		req.EndDate, _ = cmd.Flags().GetString("end")
		req.RegistrationDeadline, _ = cmd.Flags().GetString("deadline")
		if cmd.Flags().Changed("inactive") {
			inactive, _ := cmd.Flags().GetBool("inactive")
			active := !inactive
			req.IsActive = &active
		}

		o, err := apiClient.CreateOccurrence(context.Background(), req)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(o)
		}
		fmt.Fprintf(stdout, "Created %s\n", o.ID)
		printOccurrence(o)
		return nil
	},
}

func init() {
	listCmd.Flags().String("series", "", "only this series (base title)")
	listCmd.Flags().Bool("active", false, "filter by is_active (unset lists all)")
	listCmd.Flags().Int("skip", 0, "rows to skip")
	listCmd.Flags().Int("limit", 100, "maximum rows (server caps at 1000)")

	showCmd.Flags().Bool("activity", false, "include the activity log")

	createCmd.Flags().String("theme", "", "theme (required)")
	createCmd.Flags().String("description", "", "description")
	createCmd.Flags().String("start", "", "start date (required)")
	createCmd.Flags().String("end", "", "end date (required)")
	createCmd.Flags().String("deadline", "", "registration deadline, before start (required)")
	createCmd.Flags().Bool("inactive", false, "create the occurrence inactive")
	for _, f := range []string{"theme", "start", "end", "deadline"} {
		_ = createCmd.MarkFlagRequired(f)
	}
}
