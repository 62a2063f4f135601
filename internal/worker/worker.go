package worker

// #region imports
import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// #endregion

// #region envelope

// DefaultTimeout is the fixed upper bound a caller waits for any command.
const DefaultTimeout = 180 * time.Second

// ErrClosed is reported when dispatching to a stopped worker.
var ErrClosed = errors.New("worker: closed")

// ReadyNotification is the unsolicited message emitted on start. It carries
// no correlation id.
const ReadyNotification = "worker_ready"

// #endregion envelope

// #region worker-struct

// Worker dispatches commands to the engine from a single goroutine, so no
// two handlers ever execute concurrently. Each dispatched command carries a
// correlation id and is subject to a fixed timeout; on timeout the pending
// entry is simply dropped and only the caller's wait fails. There is no
// explicit cancel and no automatic retry.
type Worker struct {
	handlers      map[string]Handler
	requests      chan request
	notifications chan Result
	quit          chan struct{}
	done          chan struct{}
	timeout       time.Duration
}

type request struct {
	cmd   Command
	reply chan Result
}

// New creates a worker wired to the given engine. A non-positive timeout
// falls back to DefaultTimeout.
func New(e Engine, timeout time.Duration) *Worker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	w := &Worker{
		handlers:      make(map[string]Handler),
		requests:      make(chan request),
		notifications: make(chan Result, 1),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
		timeout:       timeout,
	}
	registerEngineHandlers(w, e)
	return w
}

// Register installs or replaces the handler for a command name.
func (w *Worker) Register(name string, h Handler) {
	w.handlers[name] = h
}

// Notifications exposes unsolicited messages (worker_ready).
func (w *Worker) Notifications() <-chan Result {
	return w.notifications
}

// #endregion worker-struct

// #region lifecycle

// Start launches the dispatch loop and emits the ready notification.
func (w *Worker) Start() {
	go w.loop()
}

// Stop shuts the dispatch loop down and waits for it to exit.
func (w *Worker) Stop() {
	close(w.quit)
	<-w.done
}

func (w *Worker) loop() {
	defer close(w.done)
	w.notifications <- Result{Command: ReadyNotification, Success: true}
	for {
		select {
		case req := <-w.requests:
			req.reply <- w.handle(req.cmd)
		case <-w.quit:
			return
		}
	}
}

// #endregion lifecycle

// #region dispatch

// Dispatch submits a command and waits for its result, bounded by the
// worker timeout. A missing correlation id is filled in with a fresh uuid.
func (w *Worker) Dispatch(cmd Command) Result {
	if cmd.CorrelationID == "" {
		cmd.CorrelationID = uuid.NewString()
	}

	timer := time.NewTimer(w.timeout)
	defer timer.Stop()

	// Buffered so a late handler completion after timeout is dropped
	// instead of leaking the loop goroutine.
	reply := make(chan Result, 1)

	select {
	case w.requests <- request{cmd: cmd, reply: reply}:
	case <-timer.C:
		return w.timeoutResult(cmd)
	case <-w.quit:
		return errorResult(cmd, ErrClosed)
	}

	select {
	case res := <-reply:
		return res
	case <-timer.C:
		return w.timeoutResult(cmd)
	case <-w.quit:
		return errorResult(cmd, ErrClosed)
	}
}

func (w *Worker) handle(cmd Command) Result {
	h, ok := w.handlers[cmd.Command]
	if !ok {
		return errorResult(cmd, fmt.Errorf("unknown command: %s", cmd.Command))
	}

	data, err := safeInvoke(h, cmd)
	if err != nil {
		return errorResult(cmd, err)
	}
	return Result{
		Command:       cmd.Command + "Result",
		Success:       true,
		Data:          data,
		CorrelationID: cmd.CorrelationID,
	}
}

// safeInvoke funnels handler panics into the structured error envelope; no
// internal failure may propagate out of a command handler uncaught.
func safeInvoke(h Handler, cmd Command) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[WORKER] handler %s panicked: %v", cmd.Command, r)
			err = fmt.Errorf("%s: internal error: %v", cmd.Command, r)
		}
	}()
	return h(cmd.Data)
}

func (w *Worker) timeoutResult(cmd Command) Result {
	return errorResult(cmd, fmt.Errorf("command %s timed out after %s", cmd.Command, w.timeout))
}

func errorResult(cmd Command, err error) Result {
	return Result{
		Command:       cmd.Command + "Result",
		Success:       false,
		Error:         err.Error(),
		CorrelationID: cmd.CorrelationID,
	}
}

// #endregion dispatch
