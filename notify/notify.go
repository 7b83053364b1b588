// Package notify delivers user-facing notices about operation outcomes.
//
// The lifecycle poller classifies settled operations into success, warning
// and error notices. Individual error messages are delivered one by one
// with a pacing delay so a burst of failures stays readable.
package notify

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"playground.evalgo.org/common"
)

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is one delivered notification.
type Notice struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Sink receives individual notices.
type Sink interface {
	Notify(level Level, message string)
}

// Dispatcher fans notices out to a sink and paces error bursts.
type Dispatcher struct {
	sink    Sink
	limiter *rate.Limiter
}

// DefaultErrorInterval is the minimum delay between consecutive error
// notices from one ErrorList call.
const DefaultErrorInterval = 300 * time.Millisecond

// NewDispatcher creates a dispatcher. errorInterval <= 0 selects the
// default pacing interval.
func NewDispatcher(sink Sink, errorInterval time.Duration) *Dispatcher {
	if errorInterval <= 0 {
		errorInterval = DefaultErrorInterval
	}
	return &Dispatcher{
		sink:    sink,
		limiter: rate.NewLimiter(rate.Every(errorInterval), 1),
	}
}

// Success delivers a success notice.
func (d *Dispatcher) Success(message string) {
	d.sink.Notify(LevelSuccess, message)
}

// Warning delivers a warning notice.
func (d *Dispatcher) Warning(message string) {
	d.sink.Notify(LevelWarning, message)
}

// Error delivers a single error notice.
func (d *Dispatcher) Error(message string) {
	d.sink.Notify(LevelError, message)
}

// ErrorList delivers each message as its own error notice, in order,
// waiting out the pacing interval between messages. Delivery stops when
// the context is cancelled.
func (d *Dispatcher) ErrorList(ctx context.Context, messages []string) error {
	for _, msg := range messages {
		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}
		d.sink.Notify(LevelError, msg)
	}
	return nil
}

// LogSink writes notices to the service log.
type LogSink struct{}

// Notify logs the notice at a level matching its severity.
func (LogSink) Notify(level Level, message string) {
	switch level {
	case LevelError:
		common.Logger.Error(message)
	case LevelWarning:
		common.Logger.Warn(message)
	default:
		common.Logger.Info(message)
	}
}
