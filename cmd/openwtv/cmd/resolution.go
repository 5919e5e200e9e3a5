package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/openwtv/pkg/extend"
)

var resolutionCmd = &cobra.Command{
	Use:   "resolution <720p|1080p|768p>",
	Short: "Apply a transcode resolution profile on the server",
	Long: `Send the local and remote transcode profiles and bitrates for the
given resolution. The dimension forms 1280x720, 1920x1080 and 1024x768 are
accepted as well.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: resolutionNames(),
	RunE:      runResolution,
}

func init() {
	rootCmd.AddCommand(resolutionCmd)
}

func resolutionNames() []string {
	var names []string
	for _, r := range extend.Resolutions() {
		names = append(names, r.String())
	}
	return names
}

func runResolution(cmd *cobra.Command, args []string) error {
	res, err := extend.ParseResolution(args[0])
	if err != nil {
		return err
	}

	logger := commandLogger(cmd)
	tracker := newTracker(logger)
	defer tracker.CloseAll()

	session, err := connect(cmd.Context(), appConfig, logger)
	if err != nil {
		return fail(tracker, err)
	}

	if err := session.SetResolution(cmd.Context(), res); err != nil {
		return fail(tracker, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Resolution set to %s (%s)\n", res, res.Profile())
	return nil
}
