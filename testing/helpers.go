// Package testing provides test utilities for bitform.
package testing

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/zoobzio/bitform"
	"github.com/zoobzio/bitform/sealed"
)

// TestKey returns a valid 32-byte key for testing.
func TestKey(t testing.TB) []byte {
	t.Helper()
	return []byte("32-byte-key-for-xchacha-sealing!")
}

// TestSealer returns an XChaCha20-Poly1305 sealer configured for testing.
func TestSealer(t testing.TB) *sealed.Sealer {
	t.Helper()
	s, err := sealed.XChaCha(TestKey(t))
	if err != nil {
		t.Fatalf("XChaCha: %v", err)
	}
	return s
}

// RoundTrip marshals v, compares the bytes with want when want is non-nil,
// checks EncodedSize, unmarshals the bytes and compares the result with v.
// It returns the encoded bytes.
func RoundTrip[T any](t testing.TB, c bitform.Codec[T], ctx any, v T, want []byte) []byte {
	t.Helper()
	data, err := bitform.Marshal(c, ctx, &v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if want != nil && !bytes.Equal(data, want) {
		t.Fatalf("Marshal = % x, want % x", data, want)
	}
	if size := c.EncodedSize(ctx, &v); size != len(data) {
		t.Fatalf("EncodedSize = %d, encoded %d bytes", size, len(data))
	}
	got, err := bitform.Unmarshal(c, ctx, data)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, v) {
		t.Fatalf("Unmarshal = %#v, want %#v", got, v)
	}
	return data
}

// Packet is a length-framed record: the payload length comes from an earlier
// field through a context override.
type Packet struct {
	Kind     uint8
	Length   uint16
	Payload  []byte
	Checksum bitform.BigEndian[uint32]
}

// PacketSchema declares Packet.
func PacketSchema() *bitform.Schema[Packet] {
	return bitform.Struct(
		bitform.Field("kind", func(p *Packet) *uint8 { return &p.Kind }),
		bitform.Field("length", func(p *Packet) *uint16 { return &p.Length },
			bitform.CtxValue(bitform.Big)),
		bitform.Field("payload", func(p *Packet) *[]byte { return &p.Payload },
			bitform.Ctx(func(_ any, p *Packet) bitform.Len { return bitform.Len(p.Length) })),
		bitform.Field("checksum", func(p *Packet) *bitform.BigEndian[uint32] { return &p.Checksum }),
	)
}

// NewPacket builds a Packet with a consistent length field.
func NewPacket(kind uint8, payload []byte, checksum uint32) Packet {
	return Packet{
		Kind:     kind,
		Length:   uint16(len(payload)),
		Payload:  payload,
		Checksum: bitform.BigEndian[uint32]{Value: checksum},
	}
}

// Message is a union tagged by a leading byte.
type Message interface {
	isMessage()
}

// Ping is Message 0.
type Ping struct {
	Seq uint32
}

// Data is Message 1, carrying a length-prefixed body.
type Data struct {
	Body []byte
}

// Close is Message 2. It has no fields.
type Close struct{}

func (Ping) isMessage()  {}
func (Data) isMessage()  {}
func (Close) isMessage() {}

// MessageSchema declares Message.
func MessageSchema() *bitform.Schema[Message] {
	return bitform.Union(
		bitform.Case[Message, Ping](0,
			bitform.Field("seq", func(p *Ping) *uint32 { return &p.Seq }, bitform.CtxValue(bitform.Big)),
		),
		bitform.Case[Message, Data](1,
			bitform.Field("body", func(d *Data) *[]byte { return &d.Body },
				bitform.Via(bitform.NewPrefixBytes[uint8])),
		),
		bitform.Case[Message, Close](2),
	).With(bitform.Discriminant[uint8]())
}

// Secret holds a sealed body whose plaintext length precedes it.
type Secret struct {
	Length uint16
	Body   []byte
}

// SecretSchema declares Secret with its body sealed by s.
func SecretSchema(s *sealed.Sealer) *bitform.Schema[Secret] {
	return bitform.Struct(
		bitform.Field("length", func(v *Secret) *uint16 { return &v.Length },
			bitform.CtxValue(bitform.Little)),
		bitform.Field("body", func(v *Secret) *[]byte { return &v.Body },
			bitform.With(s.Bytes()),
			bitform.Ctx(func(_ any, v *Secret) bitform.Len { return bitform.Len(v.Length) })),
	)
}
