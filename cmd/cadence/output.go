package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/ui"
)

const dateLayout = "2006-01-02 15:04 MST"

var stdout io.Writer = os.Stdout

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(stdout, string(data))
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printOccurrence(o *model.OccurrenceView) {
	w := stdout
	fmt.Fprintf(w, "ID:          %s\n", o.ID)
	fmt.Fprintf(w, "Title:       %s\n", ui.RenderAccent(o.Title))
	fmt.Fprintf(w, "Series:      %s\n", o.SeriesKey())
	fmt.Fprintf(w, "Theme:       %s\n", o.Theme)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(o.EventStatus))
	fmt.Fprintf(w, "Active:      %t\n", o.IsActive)
	fmt.Fprintf(w, "Start:       %s\n", formatTime(o.StartDate))
	fmt.Fprintf(w, "End:         %s\n", formatTime(o.EndDate))
	fmt.Fprintf(w, "Deadline:    %s\n", formatTime(o.RegistrationDeadline))
	if o.Description != "" {
		fmt.Fprintf(w, "Description: %s\n", o.Description)
	}
	fmt.Fprintf(w, "Created At:  %s\n", ui.RenderMuted(formatTime(o.CreatedAt)))
}

func printOccurrenceTable(occurrences []*model.OccurrenceView) {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tSTART\tDEADLINE\tTITLE")
	for _, o := range occurrences {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			o.ID,
			o.EventStatus,
			formatTime(o.StartDate),
			formatTime(o.RegistrationDeadline),
			truncate(o.Title, 50),
		)
	}
	tw.Flush()
	fmt.Fprintf(stdout, "\n%d occurrences\n", len(occurrences))
}

func printRegistrationTable(regs []*model.Registration) {
	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tROLE\tSTATUS\tREGISTERED")
	for _, r := range regs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.UserID, r.Role, r.Status, formatTime(r.RegisteredAt))
	}
	tw.Flush()
	fmt.Fprintf(stdout, "\n%d participants\n", len(regs))
}

func printActivity(activity []*model.Activity) {
	if len(activity) == 0 {
		return
	}
	fmt.Fprintf(stdout, "\nActivity:\n")
	for _, a := range activity {
		fmt.Fprintf(stdout, "  %s  %-32s %s\n", ui.RenderMuted(formatTime(a.CreatedAt)), a.Topic, a.Actor)
	}
}
