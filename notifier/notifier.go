package notifier

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ddp-org/detectbot/ddp"
)

const (
	DefaultPollInterval    = 3 * time.Second
	DefaultMaxPollAttempts = 60
)

// StatusPoller answers status checks for a media item.
type StatusPoller interface {
	Status(ctx context.Context, id ddp.MediaID) (*ddp.StatusResponse, error)
}

// PushChannel delivers the result handle pushed by the server.
type PushChannel interface {
	Wait(ctx context.Context) (ddp.ResultID, error)
	Close() error
}

// PushOpener opens the push channel for the current credential.
type PushOpener interface {
	OpenPush(ctx context.Context) (PushChannel, error)
}

// Completion state machine. Terminal on anything but waiting.
type state int

const (
	stateWaiting state = iota
	stateResolved
	stateFailed
	stateTimedOut
)

// Each strategy emits at most one event. A terminal error ends the
// race for both strategies; a non-terminal one just means that
// strategy is out.
type event struct {
	source   string
	resultID ddp.ResultID
	err      error
	terminal bool
}

/*
Notifier learns when an analysis result becomes available by racing two
independent strategies: the websocket push channel and a polling
fallback. Whichever produces a result handle first wins and the loser
is torn down before Wait returns.
*/
type Notifier struct {
	poller StatusPoller
	pusher PushOpener

	PollInterval    time.Duration
	MaxPollAttempts int
}

func New(poller StatusPoller, pusher PushOpener) *Notifier {
	return &Notifier{
		poller:          poller,
		pusher:          pusher,
		PollInterval:    DefaultPollInterval,
		MaxPollAttempts: DefaultMaxPollAttempts,
	}
}

// Wait blocks until a result handle is available, the backend reports
// a terminal failure, the polling budget runs out, or ctx is
// cancelled. Both strategies are cancelled and joined before any
// return, so no connection or timer outlives the call.
func (n *Notifier) Wait(ctx context.Context, id ddp.MediaID) (ddp.ResultID, error) {
	raceCtx, cancelAll := context.WithCancel(ctx)
	defer cancelAll()

	// Buffered to the number of strategies: a late loser can always
	// deposit its event and exit without a listener.
	events := make(chan event, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		n.runPush(raceCtx, events)
	}()
	go func() {
		defer wg.Done()
		n.runPoll(raceCtx, id, events)
	}()

	st := stateWaiting
	var resolved ddp.ResultID
	var failure error

	for st == stateWaiting {
		select {
		case <-ctx.Done():
			st = stateFailed
			failure = &ddp.CancelledError{Err: ctx.Err()}
		case ev := <-events:
			switch {
			case ev.err == nil:
				log.WithField("mediaID", id).WithField("channel", ev.source).Debugf("result handle %s via %s", ev.resultID, ev.source)
				st = stateResolved
				resolved = ev.resultID
			case ev.terminal:
				var timeoutErr *ddp.AnalysisTimeoutError
				if errors.As(ev.err, &timeoutErr) {
					st = stateTimedOut
				} else {
					st = stateFailed
				}
				failure = ev.err
			default:
				// One strategy is out; the other still carries the race.
				log.WithField("mediaID", id).Warnf("%s strategy failed, continuing on the other: %v", ev.source, ev.err)
			}
		}
	}

	// Loser teardown before handing anything to the caller.
	cancelAll()
	wg.Wait()

	if st == stateResolved {
		return resolved, nil
	}
	return "", failure
}

func (n *Notifier) runPush(ctx context.Context, events chan<- event) {
	ch, err := n.pusher.OpenPush(ctx)
	if err != nil {
		if ctx.Err() == nil {
			events <- event{source: "push", err: err}
		}
		return
	}
	defer ch.Close()

	id, err := ch.Wait(ctx)
	if err != nil {
		// Abnormal closure or channel error: this strategy just does
		// not win, unless the whole race was cancelled.
		if ctx.Err() == nil {
			events <- event{source: "push", err: err}
		}
		return
	}
	events <- event{source: "push", resultID: id}
}

func (n *Notifier) runPoll(ctx context.Context, id ddp.MediaID, events chan<- event) {
	for attempt := 1; attempt <= n.MaxPollAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return
		case <-time.After(n.PollInterval):
			status, err := n.poller.Status(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				// A flaky status check doesn't end the race, the next
				// tick may succeed.
				log.WithField("mediaID", id).Warnf("status check %d failed: %v", attempt, err)
				continue
			}
			switch status.Status {
			case ddp.VideoStatusCompleted:
				rid := strings.TrimSpace(status.ResultID.String())
				if rid == "" {
					log.WithField("mediaID", id).Warn("completed status without a result handle")
					continue
				}
				events <- event{source: "poll", resultID: ddp.ResultID(rid)}
				return
			case ddp.VideoStatusFailed:
				events <- event{source: "poll", err: &ddp.AnalysisFailedError{MediaID: id}, terminal: true}
				return
			default:
				// pending/processing: keep going
			}
		}
	}
	events <- event{source: "poll", err: &ddp.AnalysisTimeoutError{Attempts: n.MaxPollAttempts}, terminal: true}
}
