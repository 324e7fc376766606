package bitform

import (
	"errors"
	"io"
	"testing"
)

func TestIsValidEndian(t *testing.T) {
	tests := []struct {
		endian Endian
		want   bool
	}{
		{Big, true},
		{Little, true},
		{Endian(2), false},
		{Endian(255), false},
	}

	for _, tt := range tests {
		t.Run(tt.endian.String(), func(t *testing.T) {
			if got := IsValidEndian(tt.endian); got != tt.want {
				t.Errorf("IsValidEndian(%d) = %v, want %v", tt.endian, got, tt.want)
			}
		})
	}
}

func TestEndian_String(t *testing.T) {
	if Big.String() != "big" || Little.String() != "little" || Endian(9).String() != "invalid" {
		t.Error("unexpected Endian names")
	}
}

func TestLenOf(t *testing.T) {
	tests := []struct {
		name     string
		ctx      any
		wantLen  Len
		wantRest any
		wantOK   bool
	}{
		{"bare", Len(3), 3, None{}, true},
		{"pair", PairOf(Len(2), Little), 2, Little, true},
		{"triple", Triple[Len, Endian, uint8]{First: 4, Second: Big, Third: 7}, 4, Pair[Endian, uint8]{First: Big, Second: 7}, true},
		{"pair without length", PairOf(Big, Len(2)), 0, PairOf(Big, Len(2)), false},
		{"endian", Big, 0, Big, false},
		{"none", None{}, 0, None{}, false},
		{"nil", nil, 0, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, rest, ok := LenOf(tt.ctx)
			if ok != tt.wantOK {
				t.Fatalf("LenOf() ok = %v, want %v", ok, tt.wantOK)
			}
			if n != tt.wantLen {
				t.Errorf("LenOf() n = %d, want %d", n, tt.wantLen)
			}
			if rest != tt.wantRest {
				t.Errorf("LenOf() rest = %#v, want %#v", rest, tt.wantRest)
			}
		})
	}
}

func TestContextAs(t *testing.T) {
	if e, err := ContextAs[Endian](Little); err != nil || e != Little {
		t.Errorf("ContextAs[Endian](Little) = %v, %v", e, err)
	}
	if _, err := ContextAs[Endian](Len(1)); !errors.Is(err, ErrContext) {
		t.Errorf("ContextAs[Endian](Len) error = %v, want ErrContext", err)
	}
	if _, err := ContextAs[Endian](nil); !errors.Is(err, ErrContext) {
		t.Errorf("ContextAs[Endian](nil) error = %v, want ErrContext", err)
	}
	if v, err := ContextAs[any](nil); err != nil || v != nil {
		t.Errorf("ContextAs[any](nil) = %v, %v", v, err)
	}
	if _, err := ContextAs[Tuple](nil); err != nil {
		t.Errorf("ContextAs[Tuple](nil) error: %v", err)
	}
	if tp, err := ContextAs[Tuple](PairOf(1, 2)); err != nil || tp == nil {
		t.Errorf("ContextAs[Tuple](Pair) = %v, %v", tp, err)
	}
}

func TestTuple_Split(t *testing.T) {
	head, tail := PairOf(Len(1), Big).Split()
	if head != Len(1) || tail != Big {
		t.Errorf("Pair.Split() = %v, %v", head, tail)
	}

	head, tail = Triple[uint8, uint16, uint32]{First: 1, Second: 2, Third: 3}.Split()
	if head != uint8(1) {
		t.Errorf("Triple.Split() head = %v", head)
	}
	if tail != (Pair[uint16, uint32]{First: 2, Second: 3}) {
		t.Errorf("Triple.Split() tail = %#v", tail)
	}
}

// recordCtx is a caller-defined context: a record count and a byte order.
type recordCtx struct {
	Count Len
	Order Endian
}

type ledger struct {
	Entries []int32
}

func TestCallerDefinedContext(t *testing.T) {
	plan := mustCompile(t, Struct(
		Field("entries", func(l *ledger) *[]int32 { return &l.Entries },
			Ctx(func(c recordCtx, _ *ledger) Pair[Len, Endian] { return PairOf(c.Count, c.Order) })),
	).With(Bind[recordCtx]()))

	bidir(t, Codec[ledger](plan), recordCtx{Count: 2, Order: Little},
		ledger{Entries: []int32{1, -1}},
		[]byte{0x01, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0xff})

	var v ledger
	if err := plan.Encode(Little, &v, io.Discard); !errors.Is(err, ErrContext) {
		t.Errorf("Encode(Little) error = %v, want ErrContext", err)
	}
}
