package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	_ "time/tzdata" // Europe/Kyiv and friends on hosts without zoneinfo

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/cadence/internal/client"
	"github.com/alfredjeanlab/cadence/internal/identity"
	"github.com/alfredjeanlab/cadence/internal/model"
	"github.com/alfredjeanlab/cadence/internal/ui"
)

var (
	httpURL      string
	adminToken   string
	userID       int64
	role         string
	allowedRoles string
	jsonOutput   bool

	apiClient client.Client
)

func defaultHTTPURL() string {
	if s := os.Getenv("CADENCE_URL"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

func defaultUserID() int64 {
	n, _ := strconv.ParseInt(os.Getenv("CADENCE_USER_ID"), 10, 64)
	return n
}

// newAPIClient builds the HTTP client from the global flags. Identity headers
// are sent only when a user id is set.
func newAPIClient() *client.HTTPClient {
	opts := []client.Option{client.WithToken(adminToken)}
	if userID != 0 {
		opts = append(opts, client.WithIdentity(identity.Identity{
			UserID:       userID,
			Role:         role,
			AllowedRoles: identity.ParseRoles(allowedRoles),
		}))
	}
	return client.NewHTTPClient(httpURL, opts...)
}

var rootCmd = &cobra.Command{
	Use:           "cadence <command>",
	Short:         "Recurring event series: generation, registration, and feeds",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		apiClient = newAPIClient()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if apiClient != nil {
			apiClient.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&httpURL, "url", defaultHTTPURL(), "server base URL (CADENCE_URL)")
	rootCmd.PersistentFlags().StringVar(&adminToken, "token", os.Getenv("CADENCE_ADMIN_TOKEN"), "admin bearer token")
	rootCmd.PersistentFlags().Int64Var(&userID, "user-id", defaultUserID(), "caller user id (CADENCE_USER_ID)")
	rootCmd.PersistentFlags().StringVar(&role, "role", os.Getenv("CADENCE_ROLE"), "caller role")
	rootCmd.PersistentFlags().StringVar(&allowedRoles, "allowed-roles", os.Getenv("CADENCE_ALLOWED_ROLES"), "comma-separated roles the caller holds")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")

	rootCmd.AddGroup(
		&cobra.Group{ID: "events", Title: "Events:"},
		&cobra.Group{ID: "registrations", Title: "Registrations:"},
		&cobra.Group{ID: "system", Title: "System:"},
	)

	cobra.EnableCommandSorting = false
	rootCmd.SetHelpFunc(colorizedHelpFunc())

	// Events
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(watchCmd)

	// Registrations
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(participantsCmd)

	// System
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(healthCmd)
}

// errorKind prefers the kind reported by the server.
func errorKind(err error) model.Kind {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Kind != "" {
		return apiErr.Kind
	}
	return model.KindOf(err)
}

// exitCode maps an error kind to a process exit status.
func exitCode(err error) int {
	switch errorKind(err) {
	case model.KindValidation:
		return 2
	case model.KindNotFound:
		return 3
	case model.KindConflict, model.KindStructuralConflict:
		return 4
	case model.KindUnauthenticated, model.KindForbidden:
		return 5
	case model.KindExpired, model.KindInvalidState:
		return 6
	case model.KindTransient, model.KindRateLimited:
		return 7
	}
	return 1
}

func main() {
	ui.Configure()
	if err := rootCmd.Execute(); err != nil {
		msg := err.Error()
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		fmt.Fprintln(os.Stderr, ui.RenderError("Error: ")+msg)
		os.Exit(exitCode(err))
	}
}
