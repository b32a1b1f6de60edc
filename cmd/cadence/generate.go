package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/client"
	"github.com/alfredjeanlab/cadence/internal/recurrence"
)

var generateCmd = &cobra.Command{
	Use:     "generate",
	Short:   "Run one generation pass",
	Long:    "Run one generation pass through the server, or with --direct against the configured database.",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		direct, _ := cmd.Flags().GetBool("direct")
		var (
			resp *client.GenerateResponse
			err  error
		)
		if direct {
			resp, err = generateDirect(context.Background())
		} else {
			resp, err = apiClient.Generate(context.Background())
		}
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(resp)
		}
		printGenerateResult(resp)
		return nil
	},
}

func init() {
	generateCmd.Flags().Bool("direct", false, "run against CADENCE_DATABASE_URL instead of the server")
}

// generateDirect runs a pass in-process. Events still go to NATS when
// configured.
func generateDirect(ctx context.Context) (*client.GenerateResponse, error) {
	cfg, logger, err := loadConfig(nil)
	if err != nil {
		return nil, err
	}
	st, err := openStack(cfg, logger, false)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	res, err := st.engine.Run(ctx, recurrence.TriggerCLI)
	if err != nil {
		return nil, err
	}
	now := st.clock.Now()
	resp := &client.GenerateResponse{
		SkippedExisting: res.SkippedExisting,
		NotDue:          res.NotDue,
		Failed:          res.Failed,
		DurationMS:      res.Duration.Milliseconds(),
	}
	for _, o := range res.Created {
		v := o.View(now)
		resp.Occurrences = append(resp.Occurrences, &v)
	}
	resp.Created = len(resp.Occurrences)
	return resp, nil
}

func printGenerateResult(resp *client.GenerateResponse) {
	fmt.Fprintf(stdout, "Created %d, skipped %d existing, %d not due, %d failed (%dms)\n",
		resp.Created, resp.SkippedExisting, resp.NotDue, resp.Failed, resp.DurationMS)
	for _, o := range resp.Occurrences {
		fmt.Fprintf(stdout, "  %s  %s  %s\n", o.ID, formatTime(o.StartDate), o.Title)
	}
}
