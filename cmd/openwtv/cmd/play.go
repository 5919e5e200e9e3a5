package cmd

import (
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/openwtv/internal/playback"
	"github.com/jmylchreest/openwtv/internal/progress"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

var playCmd = &cobra.Command{
	Use:   "play <channel-id>",
	Short: "Transcode a channel and print its playback URL",
	Long: `Apply the transcode profile, start transcoding the channel and wait
until the server has buffered enough to play. The playback URL is printed on
stdout and can be handed to any HLS capable player:

  mpv "$(openwtv play 101)"

With --verify the playlist is fetched and checked before the URL is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().String("resolution", "720p", "transcode resolution (720p, 1080p, 768p)")
	playCmd.Flags().Bool("verify", false, "fetch and validate the HLS playlist before printing the URL")

	mustBindPFlag("transcode.resolution", playCmd.Flags().Lookup("resolution"))
	mustBindPFlag("transcode.verify_playlist", playCmd.Flags().Lookup("verify"))
}

func runPlay(cmd *cobra.Command, args []string) error {
	logger := commandLogger(cmd)
	tracker := newTracker(logger)
	defer tracker.CloseAll()

	cfg := appConfig

	channelID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid channel id %q: must be a number", args[0])
	}
	if err := validateServer(cfg.Server); err != nil {
		return fail(tracker, err)
	}

	opts := []playback.LoaderOption{
		playback.WithResolution(cfg.Transcode.ParsedResolution()),
		playback.WithPollInterval(cfg.Transcode.PollInterval),
		playback.WithLogger(logger),
	}
	if cfg.Transcode.VerifyPlaylist {
		opts = append(opts, playback.WithVerifier(playback.NewVerifier(newTransport(cfg, logger))))
	}

	loader := playback.NewLoader(playback.ExtendConnector{
		Address:  cfg.Server.Address,
		Port:     cfg.Server.Port,
		Password: cfg.Server.Password,
		Options:  sessionOptions(cfg, logger),
	}, opts...)

	indicator, err := tracker.Begin("Loading Channel", "Starting transcoder...")
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := loader.Load(ctx, channelID, func(s extend.TranscodeStatus) {
		_ = indicator.Update(progress.TranscodeMessage(s.Percentage))
	})
	if err != nil {
		return fail(tracker, err)
	}
	indicator.Close()

	if result.Playlist != nil {
		p := result.Playlist
		switch p.Kind {
		case playback.PlaylistMultivariant:
			fmt.Fprintf(cmd.ErrOrStderr(), "Playlist OK: %d variant(s)\n", p.Variants)
		default:
			fmt.Fprintf(cmd.ErrOrStderr(), "Playlist OK: %d segment(s), target duration %ds\n", p.Segments, p.TargetDuration)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), result.URL)
	return nil
}
