package session

import (
	"fmt"

	"github.com/canonical/maas-sub023/internal/observability"
	"github.com/canonical/maas-sub023/internal/tftp/backend"
	"github.com/canonical/maas-sub023/internal/tftp/datagram"
)

// ReadSession sends a file to the peer: each DATA block is gated by the
// ACK for the previous one. A short or empty read marks the transfer
// complete; the session then waits out its retry budget for the final ACK
// and closes either way.
type ReadSession struct {
	base
	reader backend.Reader
}

func NewReadSession(reader backend.Reader, transport Transport, opts Options) *ReadSession {
	s := &ReadSession{
		base:   newBase("read", transport, opts),
		reader: reader,
	}
	s.release = func(bool) error {
		// A Reader has no partial state to discard; Finish covers both
		// normal and abnormal teardown.
		return s.reader.Finish()
	}
	return s
}

// Start pushes the first DATA block; read sessions are server-driven and
// do not wait for an initiating ACK.
func (s *ReadSession) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.begin()
	s.nextBlockLocked()
}

// HandleDatagram processes one incoming datagram for this transfer.
func (s *ReadSession) HandleDatagram(dg datagram.Datagram) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	switch d := dg.(type) {
	case *datagram.Error:
		s.peerErrorLocked(d)
	case *datagram.Ack:
		s.handleAckLocked(d)
	default:
		s.protocolErrorLocked(describeUnexpected(dg, datagram.OpACK))
	}
}

func (s *ReadSession) handleAckLocked(d *datagram.Ack) {
	if s.completed {
		if d.Block == s.blocknum {
			// Final ACK observed; the transfer is cleanly done.
			s.log.Info().Uint16("blocks", s.blocknum).Msg("transfer complete")
			s.terminateLocked(false, OutcomeCompleted)
		}
		// Trailing duplicates carry no expectation of a reply.
		return
	}
	switch delta := blockDelta(s.blocknum, d.Block); {
	case delta == 0:
		s.nextBlockLocked()
	case delta > staleWindow:
		// Duplicate ACK for an earlier block. Retransmission is driven by
		// the timer alone; replying here would double every send.
		s.log.Debug().Uint16("block", d.Block).Msg("ignoring stale ACK")
	default:
		s.protocolErrorLocked(fmt.Sprintf("got ACK for block %d, which was never sent", d.Block))
	}
}

func (s *ReadSession) nextBlockLocked() {
	s.stopWatchdogLocked()
	data, err := s.reader.Read(s.cfg.BlockSize)
	if err != nil {
		s.backendFailureLocked(err, s.blocknum+1)
		return
	}
	if !s.active {
		// Cancelled while the read was in flight.
		return
	}
	s.blocknum++
	s.attempt = 0
	s.send(&datagram.Data{Block: s.blocknum, Payload: data})
	observability.RecordBlockSent(len(data))

	if len(data) < s.cfg.BlockSize {
		s.completed = true
		s.log.Debug().Uint16("blocks", s.blocknum).Msg("final block sent, awaiting last ACK")
	}
	s.armLocked()
}
