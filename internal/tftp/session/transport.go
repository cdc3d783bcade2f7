package session

// Transport is the already-connected datagram endpoint a session writes
// to. The session is the sole caller of Send and Close for its lifetime;
// the endpoint itself is constructed and demultiplexed by the owner.
type Transport interface {
	Send(b []byte) error
	Close() error
}
