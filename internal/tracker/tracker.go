// Package tracker implements the C-MOVE correlation tracker: the coupling
// point between an outbound C-MOVE issued by the SCU and the inbound
// C-STORE stream it triggers on a separate association accepted by the SCP.
//
// A caller registers the UIDs it is about to request via C-MOVE and receives
// a correlation id plus a Future. Inbound C-STOREs are validated against the
// registered entries and, once matched, recorded against the same entry. The
// Future resolves only once both the C-MOVE terminal response (via
// CompleteMove) and the expected number of datasets (via Record) have
// arrived, since the protocol gives no ordering guarantee between the two.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/codeninja55/dicom-gateway/dicom"
)

// DefaultTimeout is the default deadline for a registered move awaiting its
// C-STORE stream and terminal C-MOVE response.
const DefaultTimeout = 30 * time.Second

// DefaultSweepInterval is how often the tracker scans for expired entries.
const DefaultSweepInterval = 10 * time.Second

// ErrNotFound is returned when a correlation id has no matching entry,
// either because it never existed or because it already resolved.
var ErrNotFound = errors.New("tracker: correlation id not found")

// ErrTimeout is the reject reason used when an entry's deadline passes
// before it resolves.
var ErrTimeout = errors.New("tracker: timed out waiting for C-STORE stream")

// ErrCancelled is the reject reason used when a caller explicitly cancels
// a pending move (e.g. in response to HTTP request cancellation).
var ErrCancelled = errors.New("tracker: cancelled")

// Result is what a Future resolves to: the datasets collected from the
// C-STORE stream that corresponds to the registered move.
type Result struct {
	Datasets []*dicom.DataSet
}

// Future is a one-shot handle to a pending move's eventual outcome.
type Future struct {
	done chan struct{}
	res  Result
	err  error
}

// Wait blocks until the move resolves, the context is cancelled, or the
// tracker's own timeout/cancellation occurs, whichever comes first.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// pendingMove is the tracker's internal record for a registered C-MOVE.
type pendingMove struct {
	correlationID string
	studyUID      string
	seriesUID     string // empty means unspecified
	instanceUID   string // empty means unspecified
	deadline      time.Time

	received      []*dicom.DataSet
	expectedTotal *uint16 // nil until CompleteMove reports the C-MOVE terminal response

	future   *Future
	resolved bool
}

// matches reports whether an inbound C-STORE's UIDs are authorized against
// this pending move: the move's narrower UIDs must be unspecified or equal
// to the store's.
func (p *pendingMove) matches(studyUID, seriesUID, instanceUID string) bool {
	if p.studyUID != studyUID {
		return false
	}
	if p.seriesUID != "" && p.seriesUID != seriesUID {
		return false
	}
	if p.instanceUID != "" && p.instanceUID != instanceUID {
		return false
	}
	return true
}

// readyToResolve reports whether both gating conditions are satisfied: the
// terminal C-MOVE response has arrived and the expected number of datasets
// have been recorded.
func (p *pendingMove) readyToResolve() bool {
	return p.expectedTotal != nil && uint16(len(p.received)) >= *p.expectedTotal
}

// Tracker correlates outbound C-MOVE operations with the inbound C-STORE
// streams they trigger. The zero value is not usable; construct with New.
type Tracker struct {
	mu      sync.Mutex
	pending map[string]*pendingMove

	sweepInterval time.Duration
	stop          chan struct{}
	stopped       bool
}

// New creates a Tracker and starts its background sweep goroutine. Call
// Close to stop the goroutine when the tracker is no longer needed.
func New() *Tracker {
	return NewWithSweepInterval(DefaultSweepInterval)
}

// NewWithSweepInterval creates a Tracker with a non-default sweep interval,
// primarily so tests can exercise expiry without waiting on the production
// 10s cadence.
func NewWithSweepInterval(interval time.Duration) *Tracker {
	t := &Tracker{
		pending:       make(map[string]*pendingMove),
		sweepInterval: interval,
		stop:          make(chan struct{}),
	}
	go t.sweepLoop()
	return t
}

// Close stops the background sweep goroutine. Any still-pending moves are
// left untouched; callers should Cancel them first if a clean shutdown
// requires rejecting outstanding futures.
func (t *Tracker) Close() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.mu.Unlock()
	close(t.stop)
}

// Register allocates a correlation id for an about-to-be-issued C-MOVE and
// returns it along with a Future the caller awaits for the resulting
// datasets. seriesUID and instanceUID may be empty to mean "unspecified at
// this level" per the requested retrieval granularity. A zero timeout uses
// DefaultTimeout.
func (t *Tracker) Register(studyUID, seriesUID, instanceUID string, timeout time.Duration) (correlationID string, future *Future, err error) {
	if studyUID == "" {
		return "", nil, fmt.Errorf("tracker: studyUID is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	id := uuid.NewString()
	move := &pendingMove{
		correlationID: id,
		studyUID:      studyUID,
		seriesUID:     seriesUID,
		instanceUID:   instanceUID,
		deadline:      time.Now().Add(timeout),
		future:        &Future{done: make(chan struct{})},
	}

	t.mu.Lock()
	t.pending[id] = move
	t.mu.Unlock()

	return id, move.future, nil
}

// Validate reports whether an inbound C-STORE's (study, series, instance)
// matches a pending move, and if so which correlation id it belongs to.
// First match wins under the assumption that a single correlation id is
// ever actively receiving stores at a time for a given set of UIDs.
func (t *Tracker) Validate(studyUID, seriesUID, instanceUID string) (valid bool, correlationID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pending {
		if p.resolved {
			continue
		}
		if p.matches(studyUID, seriesUID, instanceUID) {
			return true, p.correlationID
		}
	}
	return false, ""
}

// Record appends a received dataset to the correlation's pending move. It
// resolves the move's Future only once the terminal C-MOVE response has
// also been reported via CompleteMove and the expected count is reached;
// otherwise it just accumulates.
func (t *Tracker) Record(correlationID string, ds *dicom.DataSet) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[correlationID]
	if !ok || p.resolved {
		return ErrNotFound
	}

	p.received = append(p.received, ds)
	if p.readyToResolve() {
		t.resolveLocked(p)
	}
	return nil
}

// CompleteMove reports the terminal C-MOVE response's
// NumberOfCompletedSuboperations for a correlation id. It resolves the move
// immediately if the expected datasets have already been recorded;
// otherwise the move remains pending until Record catches up.
func (t *Tracker) CompleteMove(correlationID string, expectedTotal uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[correlationID]
	if !ok || p.resolved {
		return ErrNotFound
	}

	total := expectedTotal
	p.expectedTotal = &total
	if p.readyToResolve() {
		t.resolveLocked(p)
	}
	return nil
}

// Cancel rejects a pending move's Future with the given reason, for example
// in response to HTTP request cancellation propagating down to the SCU
// operation.
func (t *Tracker) Cancel(correlationID string, reason error) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.pending[correlationID]
	if !ok || p.resolved {
		return ErrNotFound
	}

	if reason == nil {
		reason = ErrCancelled
	}
	t.rejectLocked(p, reason)
	return nil
}

// Pending returns the number of moves awaiting resolution. Used for the
// /status diagnostic endpoint and metrics.
func (t *Tracker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// resolveLocked completes p's future successfully and removes it from the
// pending map. Callers must hold t.mu.
func (t *Tracker) resolveLocked(p *pendingMove) {
	p.resolved = true
	p.future.res = Result{Datasets: p.received}
	close(p.future.done)
	delete(t.pending, p.correlationID)
}

// rejectLocked completes p's future with err and removes it from the
// pending map. Callers must hold t.mu.
func (t *Tracker) rejectLocked(p *pendingMove, err error) {
	p.resolved = true
	p.future.err = err
	close(p.future.done)
	delete(t.pending, p.correlationID)
}

// sweepLoop periodically rejects entries past their deadline.
func (t *Tracker) sweepLoop() {
	ticker := time.NewTicker(t.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			t.sweepOnce()
		case <-t.stop:
			return
		}
	}
}

// sweepOnce rejects every still-pending move whose deadline has passed.
func (t *Tracker) sweepOnce() {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, p := range t.pending {
		if !p.resolved && now.After(p.deadline) {
			t.rejectLocked(p, ErrTimeout)
		}
	}
}
