package playback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmylchreest/openwtv/internal/observability"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

// Session is the part of an Extend session the loader drives.
type Session interface {
	StatusPoller
	SetResolution(ctx context.Context, res extend.Resolution) error
	BeginTranscode(ctx context.Context, channelID int) error
	PlaybackURL(channelID int) string
}

// Connector opens a fresh authenticated session.
type Connector interface {
	Connect(ctx context.Context) (Session, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context) (Session, error)

// Connect calls f.
func (f ConnectorFunc) Connect(ctx context.Context) (Session, error) {
	return f(ctx)
}

// ExtendConnector establishes sessions with extend.Establish.
type ExtendConnector struct {
	Address  string
	Port     int
	Password string
	Options  []extend.Option
}

// Connect establishes a new session against the configured server.
func (c ExtendConnector) Connect(ctx context.Context) (Session, error) {
	session, err := extend.Establish(ctx, c.Address, c.Port, c.Password, c.Options...)
	if err != nil {
		return nil, err
	}
	return session, nil
}

// Result is the outcome of a successful load.
type Result struct {
	ChannelID int
	URL       string
	Status    extend.TranscodeStatus
	Playlist  *PlaylistInfo
}

// Loader runs the playback preparation sequence for a channel.
type Loader struct {
	connector    Connector
	resolution   extend.Resolution
	pollInterval time.Duration
	verifier     *Verifier
	logger       *slog.Logger
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithResolution sets the transcode profile applied before each load.
func WithResolution(res extend.Resolution) LoaderOption {
	return func(l *Loader) {
		l.resolution = res
	}
}

// WithPollInterval sets the wait between transcode status requests.
func WithPollInterval(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.pollInterval = d
	}
}

// WithVerifier enables playlist verification once the transcode is ready.
func WithVerifier(v *Verifier) LoaderOption {
	return func(l *Loader) {
		l.verifier = v
	}
}

// WithLogger sets the loader logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoader creates a loader that opens sessions through connector.
func NewLoader(connector Connector, opts ...LoaderOption) *Loader {
	l := &Loader{
		connector:    connector,
		resolution:   extend.Resolution720p,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = observability.WithComponent(l.logger, "playback")
	return l
}

// Load establishes a session, applies the resolution, starts transcoding
// channelID and polls until the server has finished buffering. The playback
// URL is only derived after that point. onProgress may be nil.
func (l *Loader) Load(ctx context.Context, channelID int, onProgress ProgressFunc) (result *Result, err error) {
	logger := l.logger.With(slog.Int("channel_id", channelID))
	done := observability.TimedOperationWithError(ctx, logger, "load", &err)
	defer done()

	session, err := l.connector.Connect(ctx)
	if err != nil {
		return nil, err
	}

	if err = session.SetResolution(ctx, l.resolution); err != nil {
		return nil, err
	}

	if err = session.BeginTranscode(ctx, channelID); err != nil {
		return nil, err
	}

	status, err := PollUntilReady(ctx, session, l.pollInterval, func(s extend.TranscodeStatus) {
		logger.Log(ctx, observability.LevelTrace, "transcode status",
			slog.String("status", s.Status),
			slog.Int("percentage", s.Percentage),
			slog.Bool("final", s.FinishedBuffering),
		)
		if onProgress != nil {
			onProgress(s)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("waiting for transcode: %w", err)
	}

	result = &Result{
		ChannelID: channelID,
		URL:       session.PlaybackURL(channelID),
		Status:    status,
	}

	if l.verifier != nil {
		info, verr := l.verifier.Verify(ctx, result.URL)
		if verr != nil {
			err = fmt.Errorf("verifying playlist: %w", verr)
			return nil, err
		}
		result.Playlist = info
	}

	return result, nil
}
