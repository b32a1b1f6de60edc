package main

import (
	"bufio"
	"context"
	"os"

	"github.com/spf13/cobra"

	cadencesync "github.com/alfredjeanlab/cadence/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write a JSONL snapshot of all occurrences to stdout or a file",
	GroupID: "system",
	Args:    cobra.NoArgs,
	// Reads the database directly.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(nil)
		if err != nil {
			return err
		}
		st, err := openStack(cfg, logger, false)
		if err != nil {
			return err
		}
		defer st.Close()

		out := stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" {
			f, err := os.Create(path)
			if err != nil {
				return err
			}
			defer f.Close()
			out = f
		}
		w := bufio.NewWriter(out)
		if err := cadencesync.ExportJSONL(context.Background(), st.store, w); err != nil {
			return err
		}
		return w.Flush()
	},
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}
