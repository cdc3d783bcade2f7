package datagram

import (
	"bytes"
	"errors"
	"testing"
)

func TestDataRoundTrip(t *testing.T) {
	in := &Data{Block: 7, Payload: []byte("foobar")}
	out, err := Parse(in.Bytes())
	if err != nil {
		t.Fatalf("parse data: %v", err)
	}
	got, ok := out.(*Data)
	if !ok {
		t.Fatalf("expected *Data, got %T", out)
	}
	if got.Block != 7 || !bytes.Equal(got.Payload, []byte("foobar")) {
		t.Fatalf("data mismatch: %+v", got)
	}
}

func TestDataEmptyPayload(t *testing.T) {
	in := &Data{Block: 3}
	out, err := Parse(in.Bytes())
	if err != nil {
		t.Fatalf("parse data: %v", err)
	}
	got := out.(*Data)
	if got.Block != 3 || len(got.Payload) != 0 {
		t.Fatalf("expected empty block 3, got %+v", got)
	}
}

func TestAckRoundTrip(t *testing.T) {
	out, err := Parse((&Ack{Block: 65535}).Bytes())
	if err != nil {
		t.Fatalf("parse ack: %v", err)
	}
	got, ok := out.(*Ack)
	if !ok {
		t.Fatalf("expected *Ack, got %T", out)
	}
	if got.Block != 65535 {
		t.Fatalf("block mismatch: %d", got.Block)
	}
}

func TestErrorRoundTrip(t *testing.T) {
	in := &Error{Code: ErrIllegalOperation, Message: "illegal TFTP operation"}
	out, err := Parse(in.Bytes())
	if err != nil {
		t.Fatalf("parse error datagram: %v", err)
	}
	got, ok := out.(*Error)
	if !ok {
		t.Fatalf("expected *Error, got %T", out)
	}
	if got.Code != ErrIllegalOperation || got.Message != "illegal TFTP operation" {
		t.Fatalf("error mismatch: %+v", got)
	}
}

func TestRequestRoundTrip(t *testing.T) {
	in := &Request{
		Op:       OpRRQ,
		Filename: "pxelinux.0",
		Mode:     "octet",
		Options:  []Option{{Name: "blksize", Value: "1400"}},
	}
	out, err := Parse(in.Bytes())
	if err != nil {
		t.Fatalf("parse request: %v", err)
	}
	got, ok := out.(*Request)
	if !ok {
		t.Fatalf("expected *Request, got %T", out)
	}
	if got.Filename != "pxelinux.0" || got.Mode != "octet" {
		t.Fatalf("request mismatch: %+v", got)
	}
	if len(got.Options) != 1 || got.Options[0].Name != "blksize" || got.Options[0].Value != "1400" {
		t.Fatalf("options mismatch: %+v", got.Options)
	}
}

func TestOptionAckRoundTrip(t *testing.T) {
	in := &OptionAck{Options: []Option{{Name: "blksize", Value: "1024"}, {Name: "timeout", Value: "5"}}}
	out, err := Parse(in.Bytes())
	if err != nil {
		t.Fatalf("parse oack: %v", err)
	}
	got, ok := out.(*OptionAck)
	if !ok {
		t.Fatalf("expected *OptionAck, got %T", out)
	}
	if len(got.Options) != 2 || got.Options[1].Value != "5" {
		t.Fatalf("options mismatch: %+v", got.Options)
	}
}

func TestParseShortDatagram(t *testing.T) {
	for _, raw := range [][]byte{nil, {4}, {0, 4, 1}, {0, 5, 0}} {
		if _, err := Parse(raw); !errors.Is(err, ErrShortDatagram) {
			t.Fatalf("raw=%v expected ErrShortDatagram, got %v", raw, err)
		}
	}
}

func TestParseUnknownOpcode(t *testing.T) {
	_, err := Parse([]byte{0, 9, 0, 0})
	if !errors.Is(err, ErrUnknownOpcode) {
		t.Fatalf("expected ErrUnknownOpcode, got %v", err)
	}
}

func TestParseUnterminatedString(t *testing.T) {
	raw := []byte{0, 1, 'f', 'o', 'o'}
	if _, err := Parse(raw); !errors.Is(err, ErrMalformedString) {
		t.Fatalf("expected ErrMalformedString, got %v", err)
	}
}

func TestParseDanglingOptionName(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 1})
	buf.WriteString("foo")
	buf.WriteByte(0)
	buf.WriteString("octet")
	buf.WriteByte(0)
	buf.WriteString("blksize")
	buf.WriteByte(0)
	if _, err := Parse(buf.Bytes()); !errors.Is(err, ErrMalformedOption) {
		t.Fatalf("expected ErrMalformedOption, got %v", err)
	}
}
