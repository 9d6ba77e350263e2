package assistant

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/teemow/inboxreply/internal/logging"
)

// ErrStopRequested is the cancellation cause of a Stop.
var ErrStopRequested = errors.New("stop requested")

// ExitCommand is the line that stops the assistant when typed on stdin.
const ExitCommand = "exit"

// Stop is the shared cancellation signal. Any number of listeners may
// request a stop; the scheduler only observes it between cycles.
type Stop struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu     sync.Mutex
	source string
}

// NewStop derives a Stop from parent. Cancelling parent (for example on
// SIGINT) also stops.
func NewStop(parent context.Context) *Stop {
	ctx, cancel := context.WithCancelCause(parent)
	return &Stop{ctx: ctx, cancel: cancel}
}

// Context returns the context handed to Scheduler.Run.
func (s *Stop) Context() context.Context {
	return s.ctx
}

// Request asks the assistant to stop. The first source wins; later
// requests are no-ops.
func (s *Stop) Request(source string) {
	s.mu.Lock()
	if s.source == "" && s.ctx.Err() == nil {
		s.source = source
	}
	s.mu.Unlock()
	s.cancel(fmt.Errorf("%w by %s", ErrStopRequested, source))
}

// Requested reports whether a stop was requested or the parent was
// cancelled.
func (s *Stop) Requested() bool {
	return s.ctx.Err() != nil
}

// Source returns the source of the first request, or "" if the stop came
// from the parent context or hasn't happened.
func (s *Stop) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Release frees the Stop's resources without recording a source.
func (s *Stop) Release() {
	s.cancel(nil)
}

// ListenForExit reads lines from r and requests a stop when one equals
// ExitCommand, ignoring case and surrounding space. It returns when that
// happens, when r is exhausted, or when the stop fires from elsewhere.
// EOF does not stop the assistant, so a closed stdin is harmless.
func ListenForExit(r io.Reader, stop *Stop, logger logging.Logger) {
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-stop.Context().Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			logger.Debug("stdin listener stopped", logging.Err(err))
		}
	}()

	for {
		select {
		case <-stop.Context().Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.EqualFold(strings.TrimSpace(line), ExitCommand) {
				logger.Info("exit requested on stdin, stopping after the current cycle")
				stop.Request("stdin")
				return
			}
		}
	}
}
