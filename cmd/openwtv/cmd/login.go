package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Check that the server accepts the configured password",
	Long: `Perform the Extend login handshake and report the session.

The session id is not printed; run with --log-level debug to see the
requests (session ids and login digests are redacted in logs).`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := commandLogger(cmd)
	tracker := newTracker(logger)
	defer tracker.CloseAll()

	session, err := connect(cmd.Context(), appConfig, logger)
	if err != nil {
		return fail(tracker, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged in to %s\n", session.BaseURL())
	return nil
}
