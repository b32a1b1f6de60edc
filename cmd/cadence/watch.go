package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/client"
	"github.com/alfredjeanlab/cadence/internal/events"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Stream cadence events as they happen",
	Long:    "Subscribe to cadence events on NATS, or with --poll list new occurrences from the server at an interval.",
	GroupID: "events",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		poll, _ := cmd.Flags().GetDuration("poll")
		if poll > 0 {
			return pollOccurrences(ctx, apiClient, poll)
		}

		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			return errors.New("no NATS URL: set --nats or CADENCE_NATS_URL, or use --poll")
		}
		topic, _ := cmd.Flags().GetString("topic")

		sub, err := events.NewNATSSubscriber(natsURL,
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					fmt.Fprintln(os.Stderr, ui.RenderMuted("disconnected: "+err.Error()))
				}
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				fmt.Fprintln(os.Stderr, ui.RenderMuted("reconnected"))
			}),
		)
		if err != nil {
			return err
		}
		defer sub.Close()

		return streamMessages(ctx, sub, topic)
	},
}

// streamMessages prints every message on topic until ctx is done or the
// subscription closes.
func streamMessages(ctx context.Context, sub events.Subscriber, topic string) error {
	ch, cancel, err := sub.Subscribe(topic)
	if err != nil {
		return err
	}
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			printMessage(msg)
		}
	}
}

func init() {
	watchCmd.Flags().String("nats", os.Getenv("CADENCE_NATS_URL"), "NATS server URL")
	watchCmd.Flags().String("topic", events.TopicAll, "subject to subscribe to")
	watchCmd.Flags().Duration("poll", 0, "poll the server at this interval instead of using NATS")
}

func printMessage(msg events.Message) {
	if jsonOutput {
		fmt.Fprintln(stdout, string(msg.Data))
		return
	}
	at := msg.PublishedAt
	if at.IsZero() {
		at = time.Now()
	}
	fmt.Fprintf(stdout, "%s  %s  %s\n",
		ui.RenderMuted(at.UTC().Format(time.TimeOnly)),
		ui.RenderAccent(msg.Topic),
		string(msg.Data))
}

// unseen returns the occurrences whose IDs are not in seen and adds them.
func unseen(seen map[string]bool, list []*model.OccurrenceView) []*model.OccurrenceView {
	var out []*model.OccurrenceView
	for _, o := range list {
		if seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		out = append(out, o)
	}
	return out
}

// pollOccurrences prints occurrences that appear after the first listing.
func pollOccurrences(ctx context.Context, c client.Client, interval time.Duration) error {
	seen := make(map[string]bool)
	list := func() ([]*model.OccurrenceView, error) {
		return c.ListOccurrences(ctx, &client.ListOccurrencesRequest{Limit: 1000})
	}

	initial, err := list()
	if err != nil {
		return err
	}
	unseen(seen, initial)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			current, err := list()
			if err != nil {
				fmt.Fprintln(os.Stderr, ui.RenderError("poll: ")+err.Error())
				continue
			}
			for _, o := range unseen(seen, current) {
				if jsonOutput {
					if err := printJSON(o); err != nil {
						return err
					}
					continue
				}
				fmt.Fprintf(stdout, "%s  %s  %s\n", ui.RenderAccent("new"), o.ID, o.Title)
			}
		}
	}
}
