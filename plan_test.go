package bitform

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

type outerRecord struct {
	Head  uint8
	Point pointRecord
}

func outerPlan(t *testing.T) *Plan[outerRecord] {
	t.Helper()
	inner := mustCompile(t, pointSchema().With(Named("Point")))
	return mustCompile(t, Struct(
		Field("head", func(v *outerRecord) *uint8 { return &v.Head }),
		Field("point", func(v *outerRecord) *pointRecord { return &v.Point }, With[pointRecord](inner)),
	).With(Named("Outer")))
}

func TestPlan_FieldPath(t *testing.T) {
	plan := outerPlan(t)

	got, err := plan.Unmarshal(None{}, []byte{0x01, 0x02, 0xde, 0xad})
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("Unmarshal() error = %v, want io.ErrUnexpectedEOF", err)
	}
	if !errors.Is(err, ErrField) {
		t.Errorf("Unmarshal() error = %v, want ErrField", err)
	}
	path := FieldPath(err)
	if len(path) != 2 || path[0] != "point" || path[1] != "y" {
		t.Errorf("FieldPath() = %v, want [point y]", path)
	}
	if got != (outerRecord{}) {
		t.Errorf("Unmarshal() = %+v, want zero value", got)
	}

	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatal("expected *FieldError")
	}
	if fe.Type != "Outer" || fe.Op != OpDecode {
		t.Errorf("FieldError = %+v, want decode error of Outer", fe)
	}
}

func TestPlan_PositionalFieldLabel(t *testing.T) {
	plan := mustCompile(t, tupleSchema())

	_, err := plan.Unmarshal(None{}, []byte{0xab, 0xde})
	path := FieldPath(err)
	if len(path) != 1 || path[0] != "field_1" {
		t.Errorf("FieldPath() = %v, want [field_1]", path)
	}
}

func TestPlan_RemainingBytes(t *testing.T) {
	plan := mustCompile(t, pointSchema())

	_, err := plan.Unmarshal(None{}, []byte{0xab, 0xde, 0xad, 0xbe, 0xef, 0x00, 0x00})
	var rbe *RemainingBytesError
	if !errors.As(err, &rbe) {
		t.Fatalf("Unmarshal() error = %v, want *RemainingBytesError", err)
	}
	if rbe.Count != 2 {
		t.Errorf("Count = %d, want 2", rbe.Count)
	}
	if !errors.Is(err, ErrRemainingBytes) {
		t.Error("expected errors.Is(err, ErrRemainingBytes)")
	}
}

func TestPlan_DecodeLeavesTrailingInput(t *testing.T) {
	plan := mustCompile(t, pointSchema())

	r := bytes.NewReader([]byte{0xab, 0xde, 0xad, 0xbe, 0xef, 0x42})
	if _, err := plan.Decode(None{}, r); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("unread = %d, want 1", r.Len())
	}
}

func TestPlan_UnknownTag(t *testing.T) {
	plan := mustCompile(t, shapeSchema().With(Named("Shape")))

	_, err := plan.Unmarshal(None{}, []byte{0x05})
	var ute *UnknownTagError
	if !errors.As(err, &ute) {
		t.Fatalf("Unmarshal() error = %v, want *UnknownTagError", err)
	}
	if ute.Tag != uint8(5) || ute.Type != "Shape" {
		t.Errorf("UnknownTagError = %+v", ute)
	}
	if !errors.Is(err, ErrUnknownTag) {
		t.Error("expected errors.Is(err, ErrUnknownTag)")
	}
}

func TestPlan_TagDecodeFailure(t *testing.T) {
	plan := mustCompile(t, Union(
		Case[idCtx, idCtxBar](1),
	).With(Discriminant[uint16](TagContext(Little))))

	_, err := plan.Unmarshal(None{}, []byte{0x01})
	var te *TagError
	if !errors.As(err, &te) {
		t.Fatalf("Unmarshal() error = %v, want *TagError", err)
	}
	if te.Op != OpDecode {
		t.Errorf("Op = %q, want %q", te.Op, OpDecode)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected errors.Is(err, io.ErrUnexpectedEOF)")
	}
}

func TestPlan_TagEncodeContextRequired(t *testing.T) {
	// A uint16 discriminant under the default None context cannot encode.
	plan := mustCompile(t, Union(
		Case[idCtx, idCtxBar](1),
	).With(Discriminant[uint16]()))

	var v idCtx = idCtxBar{}
	err := plan.Encode(None{}, &v, io.Discard)
	if !errors.Is(err, ErrTag) || !errors.Is(err, ErrContext) {
		t.Errorf("Encode() error = %v, want ErrTag and ErrContext", err)
	}
}

func TestPlan_NoVariant(t *testing.T) {
	plan := mustCompile(t, shapeSchema())

	var v shape
	if err := plan.Encode(None{}, &v, io.Discard); !errors.Is(err, ErrNoVariant) {
		t.Errorf("Encode(nil) error = %v, want ErrNoVariant", err)
	}
	if size := plan.EncodedSize(None{}, &v); size != 0 {
		t.Errorf("EncodedSize(nil) = %d, want 0", size)
	}
}

func TestPlan_FieldContextRequired(t *testing.T) {
	plan := mustCompile(t, Struct(
		Field("y", func(v *hooked) *uint32 { return &v.Y }),
	))

	v := hooked{Y: 1}
	err := plan.Encode(None{}, &v, io.Discard)
	if !errors.Is(err, ErrContext) {
		t.Fatalf("Encode() error = %v, want ErrContext", err)
	}
	if path := FieldPath(err); len(path) != 1 || path[0] != "y" {
		t.Errorf("FieldPath() = %v, want [y]", path)
	}
}

func TestPlan_DecodeIsAllOrNothing(t *testing.T) {
	plan := mustCompile(t, pointSchema())

	v, err := plan.Decode(None{}, bytes.NewReader([]byte{0xab, 0xde}))
	if err == nil {
		t.Fatal("expected error")
	}
	if v != (pointRecord{}) {
		t.Errorf("Decode() = %+v, want zero value", v)
	}
}

func TestPlan_ConcurrentUse(t *testing.T) {
	plan := mustCompile(t, shapeSchema())
	values := []shape{
		shapeUnit{},
		shapeTuple{A: 1, B: BigEndian[uint32]{Value: 2}},
		shapeStruct{X: 3, Y: BigEndian[uint32]{Value: 4}},
	}

	errs := make(chan error, 30)
	for i := 0; i < 30; i++ {
		go func(v shape) {
			data, err := plan.Marshal(None{}, &v)
			if err != nil {
				errs <- err
				return
			}
			back, err := plan.Unmarshal(None{}, data)
			if err == nil && back != v {
				err = errors.New("round trip changed the value")
			}
			errs <- err
		}(values[i%len(values)])
	}
	for i := 0; i < 30; i++ {
		if err := <-errs; err != nil {
			t.Error(err)
		}
	}
}

type skewed struct {
	Y uint32
}

func skewedSchema() *Schema[skewed] {
	// Encodes big endian but decodes little endian.
	return Struct(
		Field("y", func(v *skewed) *uint32 { return &v.Y },
			EncodeCtx(func(_ any, _ *skewed) Endian { return Big }),
			DecodeCtx(func(_ any, _ *skewed) Endian { return Little })),
	)
}

func TestPlan_Strict(t *testing.T) {
	t.Run("consistent", func(t *testing.T) {
		plan := mustCompile(t, pointSchema().With(Strict()))
		bidir(t, Codec[pointRecord](plan), None{},
			pointRecord{X: 1, Y: BigEndian[uint32]{Value: 2}},
			[]byte{0x01, 0x00, 0x00, 0x00, 0x02})
	})

	t.Run("inconsistent", func(t *testing.T) {
		plan := mustCompile(t, skewedSchema().With(Strict()))

		var buf bytes.Buffer
		v := skewed{Y: 0xdeadbeef}
		err := plan.Encode(None{}, &v, &buf)
		if !errors.Is(err, ErrInconsistent) {
			t.Fatalf("Encode() error = %v, want ErrInconsistent", err)
		}
		if buf.Len() != 0 {
			t.Errorf("strict Encode wrote %d bytes on failure", buf.Len())
		}
	})

	t.Run("not strict", func(t *testing.T) {
		plan := mustCompile(t, skewedSchema())
		v := skewed{Y: 0xdeadbeef}
		data, err := plan.Marshal(None{}, &v)
		if err != nil {
			t.Fatalf("Marshal() error: %v", err)
		}
		if !bytes.Equal(data, []byte{0xde, 0xad, 0xbe, 0xef}) {
			t.Errorf("Marshal() = % x", data)
		}
	})
}

// lying reports one byte more than it writes.
type lying struct{}

func (lying) Encode(_ any, v *uint8, w io.Writer) error { return Uint8().Encode(nil, v, w) }
func (lying) Decode(_ any, r io.Reader) (uint8, error)  { return Uint8().Decode(nil, r) }
func (lying) EncodedSize(_ any, _ *uint8) int           { return 2 }

// greedy reads one byte more than it writes.
type greedy struct{}

func (greedy) Encode(_ any, v *uint8, w io.Writer) error { return Uint8().Encode(nil, v, w) }
func (greedy) EncodedSize(_ any, _ *uint8) int           { return 1 }
func (greedy) Decode(_ any, r io.Reader) (uint8, error) {
	b, err := Uint8().Decode(nil, r)
	if err != nil {
		return 0, err
	}
	_, err = Uint8().Decode(nil, r)
	return b, err
}

func TestVerify(t *testing.T) {
	v := uint8(7)

	tests := []struct {
		name  string
		codec Codec[uint8]
		ok    bool
	}{
		{"consistent", Uint8(), true},
		{"size disagrees", lying{}, false},
		{"decode reads past the value", greedy{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Verify(tt.codec, None{}, &v)
			if tt.ok && err != nil {
				t.Errorf("Verify() error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInconsistent) {
				t.Errorf("Verify() error = %v, want ErrInconsistent", err)
			}
		})
	}
}

func TestVerify_Plan(t *testing.T) {
	plan := mustCompile(t, skewedSchema())
	v := skewed{Y: 0x01020304}
	if err := Verify[skewed](plan, None{}, &v); !errors.Is(err, ErrInconsistent) {
		t.Errorf("Verify() error = %v, want ErrInconsistent", err)
	}
}

func TestDiffAt(t *testing.T) {
	tests := []struct {
		a, b []byte
		want string
	}{
		{[]byte{1, 2, 3}, []byte{1, 9, 3}, "byte 1 is 0x02, then 0x09"},
		{[]byte{1, 2}, []byte{1, 2, 3}, "length 2, then 3"},
	}

	for _, tt := range tests {
		if got := diffAt(tt.a, tt.b); got != tt.want {
			t.Errorf("diffAt(%v, %v) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNewPlan(t *testing.T) {
	plan, err := NewPlan(pointSchema().With(Named("Point")))
	if err != nil {
		t.Fatalf("NewPlan() error: %v", err)
	}
	if plan.Name() != "Point" {
		t.Errorf("Name() = %q, want %q", plan.Name(), "Point")
	}
}
