package session

import (
	"fmt"

	"github.com/canonical/maas-sub023/internal/observability"
	"github.com/canonical/maas-sub023/internal/tftp/backend"
	"github.com/canonical/maas-sub023/internal/tftp/datagram"
)

// WriteSession receives a file from the peer: it accepts DATA blocks in
// strict sequence, persists each through the Writer, and acknowledges
// every accepted block. A payload shorter than the block size terminates
// the transfer; the session then lingers through a grace period to absorb
// trailing retransmits before closing.
type WriteSession struct {
	base
	writer backend.Writer
}

func NewWriteSession(writer backend.Writer, transport Transport, opts Options) *WriteSession {
	s := &WriteSession{
		base:   newBase("write", transport, opts),
		writer: writer,
	}
	s.release = func(aborted bool) error {
		if aborted {
			return s.writer.Cancel()
		}
		return s.writer.Finish()
	}
	return s
}

// Start acknowledges the write request with ACK(0), inviting the first
// DATA block, and arms the retransmission timer.
func (s *WriteSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin()
	s.send(&datagram.Ack{Block: 0})
	s.armLocked()
}

// HandleDatagram processes one incoming datagram for this transfer.
func (s *WriteSession) HandleDatagram(dg datagram.Datagram) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	switch d := dg.(type) {
	case *datagram.Error:
		s.peerErrorLocked(d)
	case *datagram.Data:
		s.handleDataLocked(d)
	default:
		s.protocolErrorLocked(describeUnexpected(dg, datagram.OpDATA))
	}
}

func (s *WriteSession) handleDataLocked(d *datagram.Data) {
	if s.completed {
		// The peer may legitimately not know we are done; reject without
		// killing the grace period.
		s.log.Debug().Uint16("block", d.Block).Msg("rejecting DATA after completion")
		s.reply(&datagram.Error{
			Code:    datagram.ErrIllegalOperation,
			Message: "transfer already completed",
		})
		return
	}
	switch delta := blockDelta(s.blocknum, d.Block); {
	case delta == 1:
		s.acceptBlockLocked(d)
	case delta == 0 || delta > staleWindow:
		// Stale retransmit: our previous ACK was likely lost. Re-ack the
		// stale block without advancing state or touching the timer, so a
		// duplicate never consumes a second backend write.
		s.log.Debug().Uint16("block", d.Block).Msg("re-acking stale DATA")
		s.reply(&datagram.Ack{Block: d.Block})
	default:
		s.protocolErrorLocked(fmt.Sprintf("got DATA block %d, expected %d", d.Block, s.blocknum+1))
	}
}

func (s *WriteSession) acceptBlockLocked(d *datagram.Data) {
	s.stopWatchdogLocked()
	if err := s.writer.Write(d.Payload); err != nil {
		s.backendFailureLocked(err, d.Block)
		return
	}
	if !s.active {
		// Cancelled while the write was in flight.
		return
	}
	s.blocknum = d.Block
	s.attempt = 0
	s.send(&datagram.Ack{Block: s.blocknum})
	observability.RecordBlockReceived(len(d.Payload))

	if len(d.Payload) < s.cfg.BlockSize {
		s.completed = true
		s.released = true
		if err := s.writer.Finish(); err != nil {
			s.backendFailureLocked(err, d.Block)
			return
		}
		// The grace period is a wait, not a retransmission loop; trailing
		// duplicates get their replies from handleDataLocked.
		s.lastSent = nil
		s.log.Info().Uint16("blocks", s.blocknum).Msg("transfer complete, entering grace period")
	}
	s.armLocked()
}
