package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var registerCmd = &cobra.Command{
	Use:     "register <event-id>",
	Short:   "Register the caller for an occurrence",
	GroupID: "registrations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, _ := cmd.Flags().GetString("as")
		if as == "" {
			as = role
		}
		reg, err := apiClient.Register(context.Background(), args[0], as)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(reg)
		}
		fmt.Fprintf(stdout, "Registered user %d as %s for %s\n", reg.UserID, reg.Role, reg.EventID)
		return nil
	},
}

var cancelCmd = &cobra.Command{
	Use:     "cancel <event-id>",
	Short:   "Cancel the caller's registration",
	GroupID: "registrations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient.Cancel(context.Background(), args[0]); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]string{"event_id": args[0], "status": "cancelled"})
		}
		fmt.Fprintf(stdout, "Cancelled registration for %s\n", args[0])
		return nil
	},
}

var participantsCmd = &cobra.Command{
	Use:     "participants <event-id>",
	Short:   "List registered participants",
	GroupID: "registrations",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regs, err := apiClient.Participants(context.Background(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(regs)
		}
		printRegistrationTable(regs)
		return nil
	},
}

func init() {
	registerCmd.Flags().String("as", "", "role to register under (defaults to --role)")
}
