package channels

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/jmylchreest/openwtv/pkg/extend"
)

// DefaultSchedule reloads the channel list every thirty seconds.
const DefaultSchedule = "@every 30s"

// ErrRefreshInProgress is returned when a refresh is requested while one is running.
var ErrRefreshInProgress = errors.New("channel refresh already in progress")

// Fetcher loads the current channel list from the server.
type Fetcher interface {
	FetchChannels(ctx context.Context) ([]extend.ChannelEntry, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) ([]extend.ChannelEntry, error)

// FetchChannels calls f.
func (f FetcherFunc) FetchChannels(ctx context.Context) ([]extend.ChannelEntry, error) {
	return f(ctx)
}

// ExtendFetcher opens a fresh session per fetch and lists one channel group.
type ExtendFetcher struct {
	Address  string
	Port     int
	Password string
	GroupID  int
	Options  []extend.Option
}

// FetchChannels establishes a session and requests the configured group.
func (f ExtendFetcher) FetchChannels(ctx context.Context) ([]extend.ChannelEntry, error) {
	session, err := extend.Establish(ctx, f.Address, f.Port, f.Password, f.Options...)
	if err != nil {
		return nil, err
	}
	return session.RequestChannelListForGroup(ctx, f.GroupID)
}

// Refresher periodically reconciles the server's channel list into a List.
type Refresher struct {
	mu sync.Mutex

	fetcher  Fetcher
	list     *List
	schedule cron.Schedule
	logger   *slog.Logger

	onChange func(Diff)
	onError  func(error)

	running atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefresher creates a refresher for list. spec is a standard cron
// expression or a descriptor such as "@every 30s".
func NewRefresher(fetcher Fetcher, list *List, spec string) (*Refresher, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parsing refresh schedule %q: %w", spec, err)
	}

	return &Refresher{
		fetcher:  fetcher,
		list:     list,
		schedule: schedule,
		logger:   slog.Default(),
	}, nil
}

// WithLogger sets a custom logger.
func (r *Refresher) WithLogger(logger *slog.Logger) *Refresher {
	r.logger = logger
	return r
}

// OnChange registers a callback invoked after a refresh that changed the list.
func (r *Refresher) OnChange(fn func(Diff)) *Refresher {
	r.onChange = fn
	return r
}

// OnError registers a callback invoked when a refresh fails.
func (r *Refresher) OnError(fn func(error)) *Refresher {
	r.onError = fn
	return r
}

// Refresh fetches the channel list once and reconciles it. A refresh that
// overlaps a running one is skipped with ErrRefreshInProgress. On failure the
// list is left untouched.
func (r *Refresher) Refresh(ctx context.Context) (Diff, error) {
	if !r.running.CompareAndSwap(false, true) {
		return Diff{}, ErrRefreshInProgress
	}
	defer r.running.Store(false)

	entries, err := r.fetcher.FetchChannels(ctx)
	if err != nil {
		r.logger.WarnContext(ctx, "channel refresh failed", slog.String("error", err.Error()))
		if r.onError != nil {
			r.onError(err)
		}
		return Diff{}, err
	}

	diff := r.list.Update(entries)
	r.logger.DebugContext(ctx, "channel list refreshed",
		slog.Int("channels", r.list.Len()),
		slog.Int("added", len(diff.Added)),
		slog.Int("removed", len(diff.Removed)))

	if diff.Changed() && r.onChange != nil {
		r.onChange(diff)
	}
	return diff, nil
}

// Start runs a refresh immediately and then on every tick of the schedule
// until Stop is called or ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx != nil {
		return fmt.Errorf("refresher already started")
	}

	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.loop(r.ctx)

	r.logger.Info("channel refresher started")
	return nil
}

// Stop stops the refresher and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.mu.Unlock()

	r.wg.Wait()

	r.mu.Lock()
	r.ctx = nil
	r.cancel = nil
	r.mu.Unlock()

	r.logger.Info("channel refresher stopped")
}

func (r *Refresher) loop(ctx context.Context) {
	defer r.wg.Done()

	r.tick(ctx)

	for {
		wait := time.Until(r.schedule.Next(time.Now()))
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			r.tick(ctx)
		}
	}
}

func (r *Refresher) tick(ctx context.Context) {
	if _, err := r.Refresh(ctx); errors.Is(err, ErrRefreshInProgress) {
		r.logger.Debug("skipping overlapping channel refresh")
	}
}
