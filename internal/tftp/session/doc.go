// Package session owns the TFTP transfer state machines.
//
// Ownership boundary:
// - lock-step DATA/ACK sequencing and 16-bit block arithmetic
// - retransmission timers and the bounded retry budget
// - completion grace handling and session teardown
//
// The wire codec, the backing Reader/Writer capability objects, and the
// datagram socket live outside this package; sessions only see decoded
// datagrams and an abstract Transport.
package session
