package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/canonical/maas-sub023/internal/observability"
	"github.com/canonical/maas-sub023/internal/tftp/datagram"
)

// Session outcome labels reported through metrics and snapshots.
const (
	OutcomeCompleted     = "completed"
	OutcomeCancelled     = "cancelled"
	OutcomeTimeout       = "timeout"
	OutcomePeerError     = "peer_error"
	OutcomeProtocolError = "protocol_error"
	OutcomeBackendError  = "backend_error"
)

// Options carries the injected collaborators shared by both session kinds.
// The zero value is usable: real clock, default config, no-op logger.
type Options struct {
	ID      string
	Config  Config
	Clock   clock.Clock
	Logger  zerolog.Logger
	OnClose func()
}

func (o Options) withDefaults(mode string) Options {
	o.Config = o.Config.withDefaults()
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	if o.ID == "" {
		o.ID = mode
	}
	return o
}

// base is the timer/backoff/termination state machine shared by
// ReadSession and WriteSession. All mutation happens under mu; datagram
// arrival, timer fires and Cancel are therefore totally ordered per
// session.
type base struct {
	mu sync.Mutex

	id   string
	mode string
	cfg  Config
	clk  clock.Clock
	log  zerolog.Logger

	transport Transport
	onClose   func()

	started   bool
	active    bool
	completed bool
	blocknum  uint16
	attempt   int
	startedAt time.Time

	// lastSent holds the wire bytes of the last protocol-progress datagram
	// (DATA or ACK). Error replies and stale re-acks never land here, so a
	// later retransmit always repeats the real outstanding datagram.
	lastSent []byte

	// watchdog is the single armed timer slot; arming stops any previous
	// handle, firing clears the slot before running. watchdogGen fences
	// callbacks from superseded timers: with a real clock a timer can
	// expire while a datagram handler holds mu, and by the time its
	// callback acquires the lock a newer timer (or none) owns the slot.
	watchdog    *clock.Timer
	watchdogGen uint64

	// release tears down the backend; released guarantees it runs exactly
	// once. aborted signals abnormal termination (cancel semantics) rather
	// than a clean finish.
	release  func(aborted bool) error
	released bool
}

func newBase(mode string, transport Transport, opts Options) base {
	opts = opts.withDefaults(mode)
	return base{
		id:        opts.ID,
		mode:      mode,
		cfg:       opts.Config,
		clk:       opts.Clock,
		log:       opts.Logger.With().Str("session", opts.ID).Str("mode", mode).Logger(),
		transport: transport,
		onClose:   opts.OnClose,
	}
}

func (s *base) begin() {
	s.started = true
	s.active = true
	s.startedAt = s.clk.Now()
}

// send transmits a protocol-progress datagram and records it for
// retransmission.
func (s *base) send(dg datagram.Datagram) {
	b := dg.Bytes()
	s.lastSent = b
	if err := s.transport.Send(b); err != nil {
		s.log.Warn().Err(err).Msg("transport send failed")
	}
}

// reply transmits a datagram without recording it; used for stale re-acks
// and error replies that must not displace the outstanding datagram.
func (s *base) reply(dg datagram.Datagram) {
	if err := s.transport.Send(dg.Bytes()); err != nil {
		s.log.Warn().Err(err).Msg("transport send failed")
	}
}

func (s *base) stopWatchdogLocked() {
	s.watchdogGen++
	if s.watchdog != nil {
		s.watchdog.Stop()
		s.watchdog = nil
	}
}

func (s *base) armLocked() {
	s.stopWatchdogLocked()
	gen := s.watchdogGen
	s.watchdog = s.clk.AfterFunc(s.cfg.Retries[s.attempt], func() { s.fire(gen) })
}

// fire runs on watchdog expiry: no valid datagram arrived within the
// window. Every fire consumes one retry slot; all but the last retransmit
// the outstanding datagram, the last abandons the session. A callback
// whose generation was superseded while it waited for the lock is a
// no-op, so at most one timer chain drives the session.
func (s *base) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || gen != s.watchdogGen {
		return
	}
	s.watchdog = nil
	s.attempt++
	if s.attempt >= len(s.cfg.Retries) {
		if s.completed {
			// Grace period over; the transfer itself succeeded.
			s.log.Debug().Msg("grace period expired, closing")
			s.terminateLocked(false, OutcomeCompleted)
		} else {
			s.log.Info().Int("retries", s.attempt).Msg("retry budget exhausted, abandoning session")
			s.terminateLocked(true, OutcomeTimeout)
		}
		return
	}
	if len(s.lastSent) > 0 {
		if err := s.transport.Send(s.lastSent); err != nil {
			s.log.Warn().Err(err).Msg("retransmit failed")
		}
		observability.RecordRetransmit(s.mode)
	}
	s.armLocked()
}

// terminateLocked closes the transport and releases the backend; it is
// idempotent and leaves no armed timer behind.
func (s *base) terminateLocked(aborted bool, outcome string) {
	if !s.active {
		return
	}
	s.active = false
	s.stopWatchdogLocked()
	s.releaseLocked(aborted)
	if err := s.transport.Close(); err != nil {
		s.log.Warn().Err(err).Msg("transport close failed")
	}
	observability.RecordSessionEnd(s.mode, outcome, s.clk.Now().Sub(s.startedAt))
	if s.onClose != nil {
		s.onClose()
	}
}

func (s *base) releaseLocked(aborted bool) {
	if s.released {
		return
	}
	s.released = true
	if err := s.release(aborted); err != nil {
		s.log.Warn().Err(err).Msg("backend release failed")
	}
}

// peerErrorLocked handles an incoming ERROR datagram: terminate with no
// reply, per RFC 1350.
func (s *base) peerErrorLocked(d *datagram.Error) {
	s.log.Info().
		Uint16("code", uint16(d.Code)).
		Str("message", d.Message).
		Msg("peer aborted transfer")
	s.terminateLocked(true, OutcomePeerError)
}

// protocolErrorLocked replies with an illegal-operation ERROR and
// terminates.
func (s *base) protocolErrorLocked(msg string) {
	s.log.Info().Str("detail", msg).Msg("protocol violation")
	s.reply(&datagram.Error{Code: datagram.ErrIllegalOperation, Message: msg})
	s.terminateLocked(true, OutcomeProtocolError)
}

// backendFailureLocked converts a Reader/Writer failure into a generic
// ERROR datagram and terminates. Backend errors never escape the session.
func (s *base) backendFailureLocked(err error, block uint16) {
	s.log.Error().Err(err).Uint16("block", block).Msg("backend failure")
	s.reply(&datagram.Error{Code: datagram.ErrNotDefined, Message: err.Error()})
	s.terminateLocked(true, OutcomeBackendError)
}

// Cancel aborts the session immediately, bypassing any grace period. The
// backend is released with cancel semantics.
func (s *base) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.terminateLocked(true, OutcomeCancelled)
}

// Active reports whether the session still processes datagrams.
func (s *base) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Snapshot returns a read-only view of the session state for the ops
// surface.
func (s *base) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:        s.id,
		Mode:      s.mode,
		Block:     s.blocknum,
		Completed: s.completed,
		Attempt:   s.attempt,
		Active:    s.active,
		StartedAt: s.startedAt,
	}
}

// blockDelta is the forward distance from the current block to the
// incoming one in mod-65536 arithmetic. 1 means the expected next block; 0
// or anything beyond half the window means a stale retransmit; everything
// else is an illegal jump ahead.
func blockDelta(current, incoming uint16) uint16 {
	return incoming - current
}

const staleWindow = 0x8000

func describeUnexpected(dg datagram.Datagram, want datagram.Opcode) string {
	return fmt.Sprintf("unexpected %s datagram, want %s", dg.Opcode(), want)
}
