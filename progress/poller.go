package progress

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"playground.evalgo.org/common"
	"playground.evalgo.org/notify"
	"playground.evalgo.org/operations"
)

// Fetcher retrieves one status snapshot for an operation id. It returns
// nil without error when the operation is unknown.
type Fetcher interface {
	FetchStatus(ctx context.Context, operationID string) (*operations.Snapshot, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, operationID string) (*operations.Snapshot, error)

// FetchStatus calls f.
func (f FetcherFunc) FetchStatus(ctx context.Context, operationID string) (*operations.Snapshot, error) {
	return f(ctx, operationID)
}

// Options tunes a Poller.
type Options struct {
	// Interval between poll ticks (default 2s).
	Interval time.Duration
	// MaxAttempts bounds the number of ticks before giving up (default 150).
	MaxAttempts int
	// Clock defaults to the wall clock.
	Clock Clock
	// OnProgress receives a formatted progress message per running snapshot.
	OnProgress func(message string)
	// OnSettled fires once after the final snapshot has been reported.
	OnSettled func(snap *operations.Snapshot)
}

// Poller drives a Tracker and a notify.Dispatcher from periodic status
// fetches until the operation settles or the attempts are exhausted.
// Exactly one fetch is in flight at a time; the next tick is scheduled
// only after the previous fetch settled.
type Poller struct {
	fetcher  Fetcher
	tracker  *Tracker
	notifier *notify.Dispatcher
	opts     Options
}

// NewPoller creates a poller. tracker may be nil when no visual surface
// exists for the operation.
func NewPoller(fetcher Fetcher, tracker *Tracker, notifier *notify.Dispatcher, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = 2 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 150
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	return &Poller{fetcher: fetcher, tracker: tracker, notifier: notifier, opts: opts}
}

// Poll fetches the operation's status until it reaches a terminal state,
// the context is cancelled or MaxAttempts ticks have passed. The terminal
// snapshot is returned; a nil snapshot with nil error means the poller
// gave up without learning the outcome.
func (p *Poller) Poll(ctx context.Context, operationID, label string) (*operations.Snapshot, error) {
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		snap, err := p.fetcher.FetchStatus(ctx, operationID)
		switch {
		case err != nil:
			// Transient: keep polling, MaxAttempts bounds it.
			common.Logger.Warnf("status fetch for operation %s failed (attempt %d): %v", operationID, attempt, err)

		case snap == nil:
			common.Logger.Warnf("operation %s unknown (attempt %d)", operationID, attempt)

		case snap.Status == operations.StatusError:
			p.apply(snap)
			p.notifier.Error(fmt.Sprintf("'%s' failed", label))
			_ = p.notifier.ErrorList(ctx, snap.Errors)
			p.settle(snap)
			return snap, nil

		case snap.Status == operations.StatusCompleted:
			p.apply(snap)
			summary := summaryMessage(label, snap)
			if snap.Failed > 0 || len(snap.Errors) > 0 {
				p.notifier.Warning(summary)
				_ = p.notifier.ErrorList(ctx, snap.Errors)
			} else {
				p.notifier.Success(summary)
			}
			p.settle(snap)
			return snap, nil

		default:
			p.apply(snap)
			if p.opts.OnProgress != nil {
				p.opts.OnProgress(progressMessage(label, snap))
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.opts.Clock.After(p.opts.Interval):
		}
	}

	// Give-up, not failure: the true outcome is unknown.
	p.notifier.Warning(fmt.Sprintf("'%s' is taking longer than expected, check the containers manually", label))
	return nil, nil
}

func (p *Poller) apply(snap *operations.Snapshot) {
	if p.tracker != nil {
		p.tracker.Apply(snap)
	}
}

func (p *Poller) settle(snap *operations.Snapshot) {
	if p.opts.OnSettled != nil {
		p.opts.OnSettled(snap)
	}
}

// remainingText is total minus the terminal counters, clamped at zero, or
// "?" when the total is unknown.
func remainingText(snap *operations.Snapshot) string {
	if snap.Total == nil {
		return "?"
	}
	r := *snap.Total - snap.TerminalCount()
	if r < 0 {
		r = 0
	}
	return strconv.Itoa(r)
}

// progressMessage formats a running snapshot with kind-specific counters.
func progressMessage(label string, snap *operations.Snapshot) string {
	switch snap.Kind {
	case operations.KindStop, operations.KindStopGroup:
		return fmt.Sprintf("Stopping '%s': stopped %d, not running %d, failed %d, remaining %s",
			label, snap.Stopped, snap.NotRunning, snap.Failed, remainingText(snap))
	case operations.KindCleanupAll:
		return fmt.Sprintf("Cleaning up: removed %d, failed %d, remaining %s",
			snap.Removed, snap.Failed, remainingText(snap))
	case operations.KindRestartAll:
		return fmt.Sprintf("Restarting '%s': started %d, failed %d, remaining %s",
			label, snap.Started, snap.Failed, remainingText(snap))
	default:
		return fmt.Sprintf("Starting '%s': started %d, already running %d, failed %d, remaining %s",
			label, snap.Started, snap.AlreadyRunning, snap.Failed, remainingText(snap))
	}
}

// summaryMessage composes the terminal toast from the non-zero counters.
func summaryMessage(label string, snap *operations.Snapshot) string {
	var parts []string
	add := func(n int, noun string) {
		if n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, noun))
		}
	}
	add(snap.Started, "started")
	add(snap.Stopped, "stopped")
	add(snap.AlreadyRunning, "already running")
	add(snap.NotRunning, "not running")
	add(snap.Removed, "removed")
	add(snap.Failed, "failed")

	detail := strings.Join(parts, ", ")
	if detail == "" {
		detail = "nothing to do"
	}

	switch snap.Kind {
	case operations.KindStop, operations.KindStopGroup:
		return fmt.Sprintf("'%s' stopped! %s", label, detail)
	case operations.KindCleanupAll:
		return fmt.Sprintf("Cleanup finished! %s", detail)
	case operations.KindRestartAll:
		return fmt.Sprintf("Restart finished! %s", detail)
	default:
		return fmt.Sprintf("'%s' started! %s", label, detail)
	}
}
