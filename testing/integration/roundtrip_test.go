package integration

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/zoobzio/bitform"
	"github.com/zoobzio/bitform/cbor"
	"github.com/zoobzio/bitform/msgpack"
	"github.com/zoobzio/bitform/sealed"
	codectest "github.com/zoobzio/bitform/testing"
)

// Profile is embedded as a document inside a binary record.
type Profile struct {
	Name  string   `msgpack:"name" cbor:"name"`
	Tags  []string `msgpack:"tags" cbor:"tags"`
	Score int      `msgpack:"score" cbor:"score"`
}

// Envelope frames an embedded Profile with its byte length.
type Envelope struct {
	Version uint8
	Size    uint32
	Profile Profile
}

func envelopeSchema(codec bitform.Codec[Profile]) *bitform.Schema[Envelope] {
	return bitform.Struct(
		bitform.Field("version", func(e *Envelope) *uint8 { return &e.Version }),
		bitform.Field("size", func(e *Envelope) *uint32 { return &e.Size }),
		bitform.Field("profile", func(e *Envelope) *Profile { return &e.Profile },
			bitform.With(codec),
			bitform.Ctx(func(_ bitform.Endian, e *Envelope) bitform.Len { return bitform.Len(e.Size) })),
	).With(bitform.Bind[bitform.Endian]())
}

func TestEnvelope_MessagePack(t *testing.T) {
	plan, err := envelopeSchema(msgpack.New[Profile]()).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	p := Profile{Name: "alice", Tags: []string{"a", "b"}, Score: 9}
	size, err := msgpack.Size(&p)
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	original := Envelope{Version: 1, Size: uint32(size), Profile: p}

	data := codectest.RoundTrip(t, bitform.Codec[Envelope](plan), bitform.Little, original, nil)
	if len(data) != 1+4+size {
		t.Errorf("len = %d, want %d", len(data), 1+4+size)
	}
}

func TestEnvelope_CBOR(t *testing.T) {
	plan, err := envelopeSchema(cbor.New[Profile]()).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	p := Profile{Name: "bob", Tags: []string{"x"}, Score: -3}
	size, err := cbor.Size(&p)
	if err != nil {
		t.Fatalf("Size error: %v", err)
	}
	original := Envelope{Version: 2, Size: uint32(size), Profile: p}

	data := codectest.RoundTrip(t, bitform.Codec[Envelope](plan), bitform.Big, original, nil)

	// Deterministic encoding: equal values embed as equal bytes.
	again, err := plan.Marshal(bitform.Big, &original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if !bytes.Equal(data, again) {
		t.Errorf("CBOR embedding is not deterministic")
	}
}

func TestEnvelope_WrongSize(t *testing.T) {
	plan, err := envelopeSchema(msgpack.New[Profile]()).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	bad := Envelope{Version: 1, Size: 1, Profile: Profile{Name: "alice"}}
	_, err = plan.Marshal(bitform.Little, &bad)
	if !errors.Is(err, bitform.ErrUnexpectedLength) {
		t.Fatalf("error = %v, want ErrUnexpectedLength", err)
	}
	if path := bitform.FieldPath(err); len(path) != 1 || path[0] != "profile" {
		t.Errorf("FieldPath = %v, want [profile]", path)
	}
}

func TestEnvelope_RequiresEndian(t *testing.T) {
	plan, err := envelopeSchema(cbor.New[Profile]()).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	_, err = plan.Unmarshal(bitform.None{}, []byte{1, 0, 0, 0, 0})
	if !errors.Is(err, bitform.ErrContext) {
		t.Errorf("error = %v, want ErrContext", err)
	}
}

func TestSecret_SealOpen(t *testing.T) {
	s := codectest.TestSealer(t)
	plan, err := codectest.SecretSchema(s).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	original := codectest.Secret{Length: 5, Body: []byte("hello")}
	data, err := plan.Marshal(bitform.None{}, &original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	if bytes.Contains(data, []byte("hello")) {
		t.Error("plaintext leaked into sealed output")
	}

	restored, err := plan.Unmarshal(bitform.None{}, data)
	if err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if string(restored.Body) != "hello" {
		t.Errorf("Body = %q, want %q", restored.Body, "hello")
	}
}

func TestSecret_WrongKey(t *testing.T) {
	plan, err := codectest.SecretSchema(codectest.TestSealer(t)).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}
	original := codectest.Secret{Length: 5, Body: []byte("hello")}
	data, err := plan.Marshal(bitform.None{}, &original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}

	other, err := sealed.XChaCha(bytes.Repeat([]byte{7}, sealed.KeySize))
	if err != nil {
		t.Fatalf("XChaCha error: %v", err)
	}
	otherPlan, err := codectest.SecretSchema(other).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	_, err = otherPlan.Unmarshal(bitform.None{}, data)
	if !errors.Is(err, sealed.ErrOpenFailed) {
		t.Errorf("error = %v, want ErrOpenFailed", err)
	}
	if !errors.Is(err, bitform.ErrField) {
		t.Errorf("error = %v, want ErrField", err)
	}
}

func TestMessage_Stream(t *testing.T) {
	plan, err := codectest.MessageSchema().Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	msgs := []codectest.Message{
		codectest.Ping{Seq: 1},
		codectest.Data{Body: []byte("payload")},
		codectest.Close{},
	}

	var buf bytes.Buffer
	for i := range msgs {
		if err := plan.Encode(bitform.None{}, &msgs[i], &buf); err != nil {
			t.Fatalf("Encode error: %v", err)
		}
	}

	for i, want := range msgs {
		got, err := plan.Decode(bitform.None{}, &buf)
		if err != nil {
			t.Fatalf("Decode %d error: %v", i, err)
		}
		switch w := want.(type) {
		case codectest.Data:
			d, ok := got.(codectest.Data)
			if !ok || string(d.Body) != string(w.Body) {
				t.Errorf("message %d = %#v, want %#v", i, got, want)
			}
		default:
			if got != want {
				t.Errorf("message %d = %#v, want %#v", i, got, want)
			}
		}
	}

	if _, err := plan.Decode(bitform.None{}, &buf); !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Decode at end = %v, want io.ErrUnexpectedEOF", err)
	}
}

func TestRegistry_NestedPlans(t *testing.T) {
	bitform.Reset()
	defer bitform.Reset()

	if _, err := bitform.Use(codectest.PacketSchema()); err != nil {
		t.Fatalf("Use error: %v", err)
	}

	type Batch struct {
		Count   uint8
		Packets []codectest.Packet
	}

	packetCodec, err := bitform.Lookup[codectest.Packet]()
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}

	plan, err := bitform.Struct(
		bitform.Field("count", func(b *Batch) *uint8 { return &b.Count }),
		bitform.Field("packets", func(b *Batch) *[]codectest.Packet { return &b.Packets },
			bitform.With(bitform.Seq(packetCodec)),
			bitform.Ctx(func(_ any, b *Batch) bitform.Len { return bitform.Len(b.Count) })),
	).Compile()
	if err != nil {
		t.Fatalf("Compile error: %v", err)
	}

	original := Batch{
		Count: 2,
		Packets: []codectest.Packet{
			codectest.NewPacket(1, []byte("a"), 1),
			codectest.NewPacket(2, []byte("bc"), 2),
		},
	}
	codectest.RoundTrip(t, bitform.Codec[Batch](plan), bitform.None{}, original, nil)

	// The second packet is truncated: the error names the path to it.
	data, err := plan.Marshal(bitform.None{}, &original)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	_, err = plan.Unmarshal(bitform.None{}, data[:len(data)-2])
	want := []string{"packets", "[1]", "checksum"}
	if got := bitform.FieldPath(err); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Errorf("FieldPath = %v, want %v", got, want)
	}
}
