package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the transcode status reported by the server",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	logger := commandLogger(cmd)
	tracker := newTracker(logger)
	defer tracker.CloseAll()

	session, err := connect(cmd.Context(), appConfig, logger)
	if err != nil {
		return fail(tracker, err)
	}

	status, err := session.RequestTranscodeStatus(cmd.Context())
	if err != nil {
		return fail(tracker, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "status:     %s\nfinal:      %t\npercentage: %d%%\n",
		status.Status, status.FinishedBuffering, status.Percentage)
	return nil
}
