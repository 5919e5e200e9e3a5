package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/openwtv/internal/channels"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the channels offered by the server",
	Long: `List the channels of a channel group (default 0, all channels).

With --watch the list is reloaded on the refresh schedule and additions and
removals are printed as they happen, until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)

	channelsCmd.Flags().Int("group", 0, "channel group id")
	channelsCmd.Flags().Bool("watch", false, "keep refreshing and print changes")
	channelsCmd.Flags().String("schedule", channels.DefaultSchedule, "refresh schedule for --watch (cron expression or @every)")

	mustBindPFlag("transcode.group_id", channelsCmd.Flags().Lookup("group"))
	mustBindPFlag("refresh.schedule", channelsCmd.Flags().Lookup("schedule"))
}

func runChannels(cmd *cobra.Command, _ []string) error {
	logger := commandLogger(cmd)
	tracker := newTracker(logger)
	defer tracker.CloseAll()

	cfg := appConfig
	out := cmd.OutOrStdout()

	if err := validateServer(cfg.Server); err != nil {
		return fail(tracker, err)
	}

	fetcher := channels.ExtendFetcher{
		Address:  cfg.Server.Address,
		Port:     cfg.Server.Port,
		Password: cfg.Server.Password,
		GroupID:  cfg.Transcode.GroupID,
		Options:  sessionOptions(cfg, logger),
	}
	list := channels.NewList()

	watch, _ := cmd.Flags().GetBool("watch")
	if !watch {
		entries, err := fetcher.FetchChannels(cmd.Context())
		if err != nil {
			return fail(tracker, err)
		}
		list.Update(entries)
		printChannels(out, list.Entries())
		return nil
	}

	refresher, err := channels.NewRefresher(fetcher, list, cfg.Refresh.Schedule)
	if err != nil {
		return fail(tracker, err)
	}
	refresher.WithLogger(logger).
		OnChange(func(d channels.Diff) {
			for _, e := range d.Added {
				fmt.Fprintf(out, "+ %s\n", formatChannel(e))
			}
			for _, e := range d.Removed {
				fmt.Fprintf(out, "- %s\n", formatChannel(e))
			}
		}).
		OnError(func(err error) {
			title, message := classify(err)
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", title, message)
		})

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return watchChannels(ctx, refresher)
}

// watchChannels runs the refresher until ctx is done.
func watchChannels(ctx context.Context, refresher *channels.Refresher) error {
	if err := refresher.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	refresher.Stop()
	return nil
}

func formatChannel(e extend.ChannelEntry) string {
	return fmt.Sprintf("%4d  %s  (%d)", e.Number, e.Name, e.ChannelID)
}

func printChannels(w io.Writer, entries []extend.ChannelEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No channels.")
		return
	}
	for _, e := range entries {
		fmt.Fprintln(w, formatChannel(e))
	}
}
