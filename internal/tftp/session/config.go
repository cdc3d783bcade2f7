package session

import "time"

// DefaultBlockSize is the RFC 1350 data block size.
const DefaultBlockSize = 512

// Config defines per-transfer reliability settings. Retries is the ordered
// sequence of waits consumed one per unanswered timer fire; every fire but
// the last retransmits the outstanding datagram, the last abandons the
// session. The budget is strictly bounded by len(Retries).
type Config struct {
	BlockSize int
	Retries   []time.Duration
}

// DefaultConfig returns the transfer defaults: 512-byte blocks and ten
// one-second waits before giving up on an unresponsive peer.
func DefaultConfig() Config {
	retries := make([]time.Duration, 10)
	for i := range retries {
		retries[i] = time.Second
	}
	return Config{
		BlockSize: DefaultBlockSize,
		Retries:   retries,
	}
}

func (c Config) withDefaults() Config {
	if c.BlockSize <= 0 {
		c.BlockSize = DefaultBlockSize
	}
	if len(c.Retries) == 0 {
		c.Retries = DefaultConfig().Retries
	}
	return c
}
