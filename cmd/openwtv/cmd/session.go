package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jmylchreest/openwtv/internal/config"
	"github.com/jmylchreest/openwtv/internal/progress"
	"github.com/jmylchreest/openwtv/pkg/extend"
)

// Error titles shown to the user.
const (
	titleInvalidAddress  = "Invalid Address"
	titleInvalidPort     = "Invalid Port"
	titleInvalidPassword = "Invalid Password"
	titleConnectionError = "Connection Error"
)

// shownError marks an error that has already been rendered to the user.
type shownError struct {
	err error
}

func (e *shownError) Error() string { return e.err.Error() }
func (e *shownError) Unwrap() error { return e.err }

func reported(err error) bool {
	var shown *shownError
	return errors.As(err, &shown)
}

// inputError is a problem with the server settings, reported before any request.
type inputError struct {
	title   string
	message string
}

func (e *inputError) Error() string { return e.title + ": " + e.message }

// validateServer applies the server selection rules: address and password
// must be present and the port must be a valid TCP port.
func validateServer(cfg config.ServerConfig) error {
	if strings.TrimSpace(cfg.Address) == "" {
		return &inputError{titleInvalidAddress, "The address cannot be blank."}
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &inputError{titleInvalidPort, "The port must be between 1 and 65535."}
	}
	if cfg.Password == "" {
		return &inputError{titleInvalidPassword, "The password cannot be blank."}
	}
	return nil
}

// classify maps an error to the title and message shown to the user.
func classify(err error) (title, message string) {
	var input *inputError
	if errors.As(err, &input) {
		return input.title, input.message
	}

	var nerr *extend.NetworkError
	if errors.As(err, &nerr) && nerr.Op == "resolve" {
		return titleInvalidAddress, "The address could not be found."
	}
	return titleConnectionError, err.Error()
}

// fail renders err once through the tracker and returns it marked as shown.
func fail(tracker *progress.Tracker, err error) error {
	if err == nil {
		return nil
	}
	title, message := classify(err)
	tracker.ShowError(title, message, true)
	return &shownError{err: err}
}

// newTracker creates the progress tracker for a command, rendering to stderr.
func newTracker(logger *slog.Logger) *progress.Tracker {
	return progress.NewTracker(os.Stderr, logger)
}

// newTransport builds the HTTP transport from the http config section.
func newTransport(cfg *config.Config, logger *slog.Logger) *extend.HTTPTransport {
	opts := []extend.TransportOption{
		extend.WithTimeout(cfg.HTTP.Timeout),
		extend.WithMaxResponseSize(cfg.HTTP.MaxResponseSize),
		extend.WithTransportLogger(logger),
	}
	if cfg.HTTP.UserAgent != "" {
		opts = append(opts, extend.WithUserAgent(cfg.HTTP.UserAgent))
	}
	return extend.NewHTTPTransport(opts...)
}

// sessionOptions returns the extend options shared by every command.
func sessionOptions(cfg *config.Config, logger *slog.Logger) []extend.Option {
	return []extend.Option{
		extend.WithTransport(newTransport(cfg, logger)),
		extend.WithParser(extend.Parser{CarryOverFields: cfg.Transcode.LegacyChannelParser}),
		extend.WithLogger(logger),
	}
}

// connect validates the server settings and establishes a session.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*extend.Session, error) {
	if err := validateServer(cfg.Server); err != nil {
		return nil, err
	}
	session, err := extend.Establish(ctx, cfg.Server.Address, cfg.Server.Port, cfg.Server.Password,
		sessionOptions(cfg, logger)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.Server.Address, err)
	}
	return session, nil
}
