package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/client"
)

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the cadence service",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		status, err := apiClient.Health(ctx)
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		out := map[string]string{"http": status}

		if addr, _ := cmd.Flags().GetString("grpc"); addr != "" {
			grpcStatus, err := client.GRPCHealth(ctx, addr)
			if err != nil {
				return err
			}
			out["grpc"] = grpcStatus
		}

		if jsonOutput {
			if err := printJSON(out); err != nil {
				return err
			}
		} else {
			for _, k := range []string{"http", "grpc"} {
				if v, ok := out[k]; ok {
					fmt.Fprintf(stdout, "%-5s %s\n", k+":", v)
				}
			}
		}

		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		if s, ok := out["grpc"]; ok && s != "SERVING" {
			return fmt.Errorf("grpc unhealthy: %s", s)
		}
		return nil
	},
}

func init() {
	healthCmd.Flags().String("grpc", "", "also probe the gRPC health service at this address")
}
