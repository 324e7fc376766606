package bitform

import (
	"encoding/binary"
	"reflect"
)

// None is the empty context.
type None struct{}

// Endian selects the byte order of multi-byte scalars.
type Endian uint8

const (
	// Big orders the most significant byte first.
	Big Endian = iota

	// Little orders the least significant byte first.
	Little
)

// validEndians contains every byte order a scalar codec accepts.
var validEndians = map[Endian]bool{
	Big:    true,
	Little: true,
}

// IsValidEndian returns true if e is a known byte order.
func IsValidEndian(e Endian) bool {
	return validEndians[e]
}

func (e Endian) String() string {
	switch e {
	case Big:
		return "big"
	case Little:
		return "little"
	default:
		return "invalid"
	}
}

func (e Endian) order() binary.ByteOrder {
	if e == Little {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// Len is an element or byte count supplied from outside the value.
type Len int

// Tuple is a composite context. Split returns the first element and the rest;
// the rest of a pair is its second element.
type Tuple interface {
	Split() (head, tail any)
}

// Pair composes two contexts.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Split implements Tuple.
func (p Pair[A, B]) Split() (any, any) {
	return p.First, p.Second
}

// PairOf builds a Pair, inferring its element types.
func PairOf[A, B any](a A, b B) Pair[A, B] {
	return Pair[A, B]{First: a, Second: b}
}

// Triple composes three contexts. Its tail is a Pair of the last two.
type Triple[A, B, C any] struct {
	First  A
	Second B
	Third  C
}

// Split implements Tuple.
func (t Triple[A, B, C]) Split() (any, any) {
	return t.First, Pair[B, C]{First: t.Second, Second: t.Third}
}

// ContextAs asserts the context to C, failing with ErrContext otherwise.
// A nil context satisfies any interface type C.
func ContextAs[C any](ctx any) (C, error) {
	if c, ok := ctx.(C); ok {
		return c, nil
	}
	var zero C
	if ctx == nil && reflect.TypeFor[C]().Kind() == reflect.Interface {
		return zero, nil
	}
	return zero, newContextError(reflect.TypeFor[C]().String(), ctx)
}

// LenOf extracts a Len from a bare Len context or from a Tuple whose first
// element is a Len. rest is the context left for elements: None for a bare Len,
// the tuple tail otherwise.
func LenOf(ctx any) (n Len, rest any, ok bool) {
	switch c := ctx.(type) {
	case Len:
		return c, None{}, true
	case Tuple:
		head, tail := c.Split()
		if l, isLen := head.(Len); isLen {
			return l, tail, true
		}
	}
	return 0, ctx, false
}

// endianOf extracts the byte order a multi-byte scalar needs.
func endianOf(ctx any) (Endian, error) {
	e, ok := ctx.(Endian)
	if !ok {
		return 0, newContextError("bitform.Endian", ctx)
	}
	if !IsValidEndian(e) {
		return 0, Errorf(ErrContext, "invalid byte order %d", uint8(e))
	}
	return e, nil
}

// lenContext extracts a required Len, failing with ErrContext.
func lenContext(ctx any) (Len, any, error) {
	n, rest, ok := LenOf(ctx)
	if !ok {
		return 0, nil, newContextError("bitform.Len", ctx)
	}
	if n < 0 {
		return 0, nil, Errorf(ErrInvalidValue, "negative length %d", int(n))
	}
	return n, rest, nil
}
