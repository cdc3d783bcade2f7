package loopback

import (
	"errors"
	"math/rand"
	"sync"
)

var ErrClosed = errors.New("loopback: endpoint closed")

// LinkOptions shapes the simulated link. LossRate is the probability of
// silently dropping a datagram in each direction; Rng must be non-nil when
// LossRate is positive.
type LinkOptions struct {
	LossRate float64
	Rng      *rand.Rand
	Buffer   int
}

// Endpoint is one side of an in-memory datagram link. It satisfies the
// session Transport contract: Send queues a datagram towards the peer,
// Close stops the endpoint. Delivery is asynchronous, so a session may
// send from inside its own event handling without re-entering itself.
type Endpoint struct {
	mu     sync.Mutex
	peer   *Endpoint
	in     chan []byte
	quit   chan struct{}
	closed bool

	loss *lossGate
}

// lossGate serializes draws from the shared rng; both endpoints of a link
// consult the same gate.
type lossGate struct {
	mu   sync.Mutex
	rate float64
	rng  *rand.Rand
}

func (g *lossGate) drop() bool {
	if g == nil {
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rng.Float64() < g.rate
}

// NewLink builds two connected endpoints.
func NewLink(opts LinkOptions) (*Endpoint, *Endpoint) {
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 64
	}
	var gate *lossGate
	if opts.LossRate > 0 && opts.Rng != nil {
		gate = &lossGate{rate: opts.LossRate, rng: opts.Rng}
	}
	a := newEndpoint(gate, buffer)
	b := newEndpoint(gate, buffer)
	a.peer = b
	b.peer = a
	return a, b
}

func newEndpoint(gate *lossGate, buffer int) *Endpoint {
	return &Endpoint{
		in:   make(chan []byte, buffer),
		quit: make(chan struct{}),
		loss: gate,
	}
}

// Receive installs the inbound datagram handler and starts delivery.
// Handlers run on a single goroutine per endpoint, one datagram at a time.
func (e *Endpoint) Receive(fn func(b []byte)) {
	go func() {
		for {
			select {
			case b := <-e.in:
				fn(b)
			case <-e.quit:
				return
			}
		}
	}()
}

// Send queues b for delivery to the peer. Datagram semantics apply: a full
// queue or a simulated loss drops the datagram without error.
func (e *Endpoint) Send(b []byte) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.mu.Unlock()
	if e.loss.drop() {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)
	select {
	case e.peer.in <- out:
	default:
	}
	return nil
}

func (e *Endpoint) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	close(e.quit)
	return nil
}

// Closed reports whether Close has been called.
func (e *Endpoint) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
