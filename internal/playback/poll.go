// Package playback prepares an Extend channel for streaming: it applies the
// transcode profile, starts the transcode, waits for the server to finish
// buffering and hands back the playback URL.
package playback

import (
	"context"
	"errors"
	"time"

	"github.com/jmylchreest/openwtv/pkg/extend"
)

// DefaultPollInterval is the wait before each transcode status request.
const DefaultPollInterval = 500 * time.Millisecond

// ErrInvalidInterval is returned when a non-positive poll interval is given.
var ErrInvalidInterval = errors.New("poll interval must be positive")

// StatusPoller issues a single transcode status request.
type StatusPoller interface {
	RequestTranscodeStatus(ctx context.Context) (extend.TranscodeStatus, error)
}

// ProgressFunc receives every status observed while polling.
type ProgressFunc func(extend.TranscodeStatus)

// PollUntilReady waits interval, requests the transcode status and repeats
// until the server reports FinishedBuffering. The first finished status is
// returned and no further requests are made. A request error ends polling
// with that error. Cancellation returns ctx.Err() and discards the result of
// any request that was in flight.
func PollUntilReady(ctx context.Context, poller StatusPoller, interval time.Duration, onProgress ProgressFunc) (extend.TranscodeStatus, error) {
	if interval <= 0 {
		return extend.TranscodeStatus{}, ErrInvalidInterval
	}

	timer := time.NewTimer(interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return extend.TranscodeStatus{}, ctx.Err()
		case <-timer.C:
		}

		status, err := poller.RequestTranscodeStatus(ctx)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return extend.TranscodeStatus{}, ctxErr
		}
		if err != nil {
			return extend.TranscodeStatus{}, err
		}

		if onProgress != nil {
			onProgress(status)
		}
		if status.FinishedBuffering {
			return status, nil
		}

		timer.Reset(interval)
	}
}
