package datagram

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// Opcode is the two-byte TFTP operation code (RFC 1350, RFC 2347).
type Opcode uint16

const (
	OpRRQ   Opcode = 1
	OpWRQ   Opcode = 2
	OpDATA  Opcode = 3
	OpACK   Opcode = 4
	OpERROR Opcode = 5
	OpOACK  Opcode = 6
)

func (op Opcode) String() string {
	switch op {
	case OpRRQ:
		return "RRQ"
	case OpWRQ:
		return "WRQ"
	case OpDATA:
		return "DATA"
	case OpACK:
		return "ACK"
	case OpERROR:
		return "ERROR"
	case OpOACK:
		return "OACK"
	}
	return fmt.Sprintf("opcode(%d)", uint16(op))
}

// ErrorCode is the two-byte code carried by ERROR datagrams.
type ErrorCode uint16

const (
	ErrNotDefined       ErrorCode = 0
	ErrFileNotFound     ErrorCode = 1
	ErrAccessViolation  ErrorCode = 2
	ErrDiskFull         ErrorCode = 3
	ErrIllegalOperation ErrorCode = 4
	ErrUnknownTID       ErrorCode = 5
	ErrFileExists       ErrorCode = 6
	ErrNoSuchUser       ErrorCode = 7
)

var (
	ErrShortDatagram   = errors.New("datagram: short datagram")
	ErrUnknownOpcode   = errors.New("datagram: unknown opcode")
	ErrMalformedString = errors.New("datagram: missing string terminator")
	ErrMalformedOption = errors.New("datagram: dangling option name")
)

// Datagram is one decoded TFTP message.
type Datagram interface {
	Opcode() Opcode
	Bytes() []byte
}

// Option is a single RFC 2347 option pair. The session core carries these
// opaquely; negotiation happens outside it.
type Option struct {
	Name  string
	Value string
}

// Request is an RRQ or WRQ datagram.
type Request struct {
	Op       Opcode
	Filename string
	Mode     string
	Options  []Option
}

func (r *Request) Opcode() Opcode { return r.Op }

func (r *Request) Bytes() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, uint16(r.Op))
	writeString(&buf, r.Filename)
	writeString(&buf, r.Mode)
	for _, opt := range r.Options {
		writeString(&buf, opt.Name)
		writeString(&buf, opt.Value)
	}
	return buf.Bytes()
}

// Data carries one block of file content. A payload shorter than the
// session block size terminates the transfer.
type Data struct {
	Block   uint16
	Payload []byte
}

func (d *Data) Opcode() Opcode { return OpDATA }

func (d *Data) Bytes() []byte {
	buf := make([]byte, 4+len(d.Payload))
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpDATA))
	binary.BigEndian.PutUint16(buf[2:4], d.Block)
	copy(buf[4:], d.Payload)
	return buf
}

// Ack acknowledges one received block.
type Ack struct {
	Block uint16
}

func (a *Ack) Opcode() Opcode { return OpACK }

func (a *Ack) Bytes() []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], uint16(OpACK))
	binary.BigEndian.PutUint16(buf[2:4], a.Block)
	return buf
}

// Error aborts a transfer with a code and human-readable message.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Opcode() Opcode { return OpERROR }

func (e *Error) Bytes() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, uint16(OpERROR))
	writeUint16(&buf, uint16(e.Code))
	writeString(&buf, e.Message)
	return buf.Bytes()
}

// OptionAck acknowledges negotiated options (RFC 2347). Decodable so the
// session core can recognize and reject it; negotiation itself lives with
// the request handshake layer.
type OptionAck struct {
	Options []Option
}

func (o *OptionAck) Opcode() Opcode { return OpOACK }

func (o *OptionAck) Bytes() []byte {
	var buf bytes.Buffer
	writeUint16(&buf, uint16(OpOACK))
	for _, opt := range o.Options {
		writeString(&buf, opt.Name)
		writeString(&buf, opt.Value)
	}
	return buf.Bytes()
}

// Parse decodes one TFTP datagram from wire bytes.
func Parse(b []byte) (Datagram, error) {
	if len(b) < 2 {
		return nil, ErrShortDatagram
	}
	op := Opcode(binary.BigEndian.Uint16(b[0:2]))
	rest := b[2:]
	switch op {
	case OpRRQ, OpWRQ:
		return parseRequest(op, rest)
	case OpDATA:
		if len(rest) < 2 {
			return nil, ErrShortDatagram
		}
		payload := make([]byte, len(rest)-2)
		copy(payload, rest[2:])
		return &Data{Block: binary.BigEndian.Uint16(rest[0:2]), Payload: payload}, nil
	case OpACK:
		if len(rest) != 2 {
			return nil, ErrShortDatagram
		}
		return &Ack{Block: binary.BigEndian.Uint16(rest)}, nil
	case OpERROR:
		if len(rest) < 2 {
			return nil, ErrShortDatagram
		}
		msg, _, err := readString(rest[2:])
		if err != nil {
			return nil, err
		}
		return &Error{Code: ErrorCode(binary.BigEndian.Uint16(rest[0:2])), Message: msg}, nil
	case OpOACK:
		opts, err := parseOptions(rest)
		if err != nil {
			return nil, err
		}
		return &OptionAck{Options: opts}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownOpcode, uint16(op))
}

func parseRequest(op Opcode, b []byte) (*Request, error) {
	filename, rest, err := readString(b)
	if err != nil {
		return nil, err
	}
	mode, rest, err := readString(rest)
	if err != nil {
		return nil, err
	}
	opts, err := parseOptions(rest)
	if err != nil {
		return nil, err
	}
	return &Request{Op: op, Filename: filename, Mode: mode, Options: opts}, nil
}

func parseOptions(b []byte) ([]Option, error) {
	opts := make([]Option, 0)
	for len(b) > 0 {
		name, rest, err := readString(b)
		if err != nil {
			return nil, err
		}
		if len(rest) == 0 {
			return nil, ErrMalformedOption
		}
		value, rest, err := readString(rest)
		if err != nil {
			return nil, err
		}
		opts = append(opts, Option{Name: name, Value: value})
		b = rest
	}
	return opts, nil
}

func readString(b []byte) (string, []byte, error) {
	i := bytes.IndexByte(b, 0)
	if i < 0 {
		return "", nil, ErrMalformedString
	}
	return string(b[:i]), b[i+1:], nil
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString(s)
	buf.WriteByte(0)
}

func writeUint16(buf *bytes.Buffer, v uint16) {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	buf.Write(tmp[:])
}
