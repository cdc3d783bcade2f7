package backend

// Reader produces a bounded byte sequence for an outgoing transfer. Read
// returns up to n bytes; a short or empty result means the source is
// exhausted. Finish releases the underlying resource and is called exactly
// once by the owning session.
type Reader interface {
	Read(n int) ([]byte, error)
	Finish() error
	// Size reports the total number of bytes available, when known. It is
	// consumed by collaborators outside the session core (tsize reporting).
	Size() (int64, bool)
}

// Writer consumes byte chunks for an incoming transfer. Finish commits the
// received content; Cancel discards it. The owning session calls exactly
// one of the two during teardown.
type Writer interface {
	Write(p []byte) error
	Finish() error
	Cancel() error
}
