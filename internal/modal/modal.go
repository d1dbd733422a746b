// Package modal shows blocking notices that close on a condition: a task
// finishing, a predicate turning true or a timeout.
package modal

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTick is the steady-state polling period.
const DefaultTick = 200 * time.Millisecond

// Dialog is a notice without buttons. Show and Close are each called once
// per Until.
type Dialog interface {
	Show(message string)
	Close()
}

// Prompter asks a yes/no question and blocks until it is answered.
type Prompter interface {
	Confirm(title, question string) bool
}

// Reason tells which condition closed a dialog.
type Reason int

const (
	ReasonTaskCompleted Reason = iota + 1
	ReasonPredicate
	ReasonTimeout
	ReasonCanceled
)

func (r Reason) String() string {
	switch r {
	case ReasonTaskCompleted:
		return "task-completed"
	case ReasonPredicate:
		return "predicate"
	case ReasonTimeout:
		return "timeout"
	case ReasonCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Options describes one blocking notice.
type Options struct {
	Message string
	// Timeout closes the dialog once elapsed; zero means no timeout.
	Timeout time.Duration
	// ClosePredicate closes the dialog when it returns true.
	ClosePredicate func() bool
	// Task runs on its own goroutine once the initial delay has passed.
	// Until does not wait for a task that outlives the dialog.
	Task func()
	// InitialDelay is the warm-up period. When set, the first check runs one
	// tick after it.
	InitialDelay time.Duration
}

// Result reports how a dialog ended.
type Result struct {
	Reason      Reason
	Elapsed     time.Duration
	TaskStarted bool
}

// Controller runs dialogs. It holds no per-dialog state, so it can be shared.
type Controller struct {
	dialog   Dialog
	prompter Prompter
	tick     time.Duration
	log      zerolog.Logger
}

// New returns a controller polling every tick (DefaultTick when <= 0).
func New(dialog Dialog, prompter Prompter, tick time.Duration, logger zerolog.Logger) *Controller {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Controller{
		dialog:   dialog,
		prompter: prompter,
		tick:     tick,
		log:      logger,
	}
}

// Until shows opts.Message and blocks until a close condition holds or ctx
// is done.
func (c *Controller) Until(ctx context.Context, opts Options) Result {
	began := time.Now()
	var deadline time.Time
	if opts.Timeout > 0 {
		deadline = began.Add(opts.Timeout)
	}

	var (
		started   bool
		completed atomic.Bool
		run       = make(chan bool, 1)
	)
	if opts.Task != nil {
		go func() {
			if <-run {
				opts.Task()
				completed.Store(true)
			}
		}()
		defer func() {
			if !started {
				run <- false
			}
		}()
	}

	c.dialog.Show(opts.Message)
	defer c.dialog.Close()

	finish := func(reason Reason) Result {
		res := Result{Reason: reason, Elapsed: time.Since(began), TaskStarted: started}
		c.log.Debug().
			Str("message", opts.Message).
			Stringer("reason", reason).
			Dur("elapsed", res.Elapsed).
			Msg("dialog closed")
		return res
	}

	warmUp := time.NewTimer(opts.InitialDelay)
	defer warmUp.Stop()
	select {
	case <-ctx.Done():
		return finish(ReasonCanceled)
	case <-warmUp.C:
	}

	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	if opts.InitialDelay > 0 {
		// the warm-up tick only switches to the steady-state period
		select {
		case <-ctx.Done():
			return finish(ReasonCanceled)
		case <-ticker.C:
		}
	}
	for {
		if opts.Task != nil && !started {
			started = true
			run <- true
		}
		if opts.Task != nil && completed.Load() {
			return finish(ReasonTaskCompleted)
		}
		if opts.ClosePredicate != nil && opts.ClosePredicate() {
			return finish(ReasonPredicate)
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return finish(ReasonTimeout)
		}

		select {
		case <-ctx.Done():
			return finish(ReasonCanceled)
		case <-ticker.C:
		}
	}
}

// YesNo asks a question and reports whether the answer was yes.
func (c *Controller) YesNo(title, question string) bool {
	yes := c.prompter.Confirm(title, question)
	c.log.Info().Str("title", title).Bool("yes", yes).Msg("confirmation answered")
	return yes
}
