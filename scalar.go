package bitform

import (
	"encoding/binary"
	"io"
	"math"
	"reflect"
	"unicode/utf8"
)

// fixed is a fixed-width scalar codec. Multi-byte scalars take their byte
// order from an Endian context; single bytes accept any context.
type fixed[T any] struct {
	width int
	put   func(order binary.ByteOrder, b []byte, v T)
	get   func(order binary.ByteOrder, b []byte) (T, error)
}

func (f fixed[T]) order(ctx any) (binary.ByteOrder, error) {
	if f.width == 1 {
		return binary.BigEndian, nil
	}
	e, err := endianOf(ctx)
	if err != nil {
		return nil, err
	}
	return e.order(), nil
}

func (f fixed[T]) Encode(ctx any, v *T, w io.Writer) error {
	order, err := f.order(ctx)
	if err != nil {
		return err
	}
	var buf [8]byte
	f.put(order, buf[:f.width], *v)
	return WriteAll(w, buf[:f.width])
}

func (f fixed[T]) Decode(ctx any, r io.Reader) (T, error) {
	var zero T
	order, err := f.order(ctx)
	if err != nil {
		return zero, err
	}
	var buf [8]byte
	if err := readFull(r, buf[:f.width]); err != nil {
		return zero, err
	}
	return f.get(order, buf[:f.width])
}

func (f fixed[T]) EncodedSize(_ any, _ *T) int {
	return f.width
}

// Uint8 returns the codec for a single unsigned byte.
func Uint8() Codec[uint8] {
	return fixed[uint8]{
		width: 1,
		put:   func(_ binary.ByteOrder, b []byte, v uint8) { b[0] = v },
		get:   func(_ binary.ByteOrder, b []byte) (uint8, error) { return b[0], nil },
	}
}

// Int8 returns the codec for a single signed byte.
func Int8() Codec[int8] {
	return fixed[int8]{
		width: 1,
		put:   func(_ binary.ByteOrder, b []byte, v int8) { b[0] = byte(v) },
		get:   func(_ binary.ByteOrder, b []byte) (int8, error) { return int8(b[0]), nil },
	}
}

// ZeroOneBool returns the codec mapping false to 0x00 and true to 0x01.
// Any other byte fails to decode.
func ZeroOneBool() Codec[bool] {
	return fixed[bool]{
		width: 1,
		put: func(_ binary.ByteOrder, b []byte, v bool) {
			b[0] = 0
			if v {
				b[0] = 1
			}
		},
		get: func(_ binary.ByteOrder, b []byte) (bool, error) {
			switch b[0] {
			case 0:
				return false, nil
			case 1:
				return true, nil
			}
			return false, Errorf(ErrInvalidValue, "invalid byte value for boolean: expected 0 or 1, got %d", b[0])
		},
	}
}

// Uint16 returns the codec for a two-byte unsigned integer.
func Uint16() Codec[uint16] {
	return fixed[uint16]{
		width: 2,
		put:   func(o binary.ByteOrder, b []byte, v uint16) { o.PutUint16(b, v) },
		get:   func(o binary.ByteOrder, b []byte) (uint16, error) { return o.Uint16(b), nil },
	}
}

// Int16 returns the codec for a two-byte signed integer.
func Int16() Codec[int16] {
	return fixed[int16]{
		width: 2,
		put:   func(o binary.ByteOrder, b []byte, v int16) { o.PutUint16(b, uint16(v)) },
		get:   func(o binary.ByteOrder, b []byte) (int16, error) { return int16(o.Uint16(b)), nil },
	}
}

// Uint32 returns the codec for a four-byte unsigned integer.
func Uint32() Codec[uint32] {
	return fixed[uint32]{
		width: 4,
		put:   func(o binary.ByteOrder, b []byte, v uint32) { o.PutUint32(b, v) },
		get:   func(o binary.ByteOrder, b []byte) (uint32, error) { return o.Uint32(b), nil },
	}
}

// Int32 returns the codec for a four-byte signed integer.
func Int32() Codec[int32] {
	return fixed[int32]{
		width: 4,
		put:   func(o binary.ByteOrder, b []byte, v int32) { o.PutUint32(b, uint32(v)) },
		get:   func(o binary.ByteOrder, b []byte) (int32, error) { return int32(o.Uint32(b)), nil },
	}
}

// Uint64 returns the codec for an eight-byte unsigned integer.
func Uint64() Codec[uint64] {
	return fixed[uint64]{
		width: 8,
		put:   func(o binary.ByteOrder, b []byte, v uint64) { o.PutUint64(b, v) },
		get:   func(o binary.ByteOrder, b []byte) (uint64, error) { return o.Uint64(b), nil },
	}
}

// Int64 returns the codec for an eight-byte signed integer.
func Int64() Codec[int64] {
	return fixed[int64]{
		width: 8,
		put:   func(o binary.ByteOrder, b []byte, v int64) { o.PutUint64(b, uint64(v)) },
		get:   func(o binary.ByteOrder, b []byte) (int64, error) { return int64(o.Uint64(b)), nil },
	}
}

// Float32 returns the codec for an IEEE-754 single.
func Float32() Codec[float32] {
	return fixed[float32]{
		width: 4,
		put:   func(o binary.ByteOrder, b []byte, v float32) { o.PutUint32(b, math.Float32bits(v)) },
		get: func(o binary.ByteOrder, b []byte) (float32, error) {
			return math.Float32frombits(o.Uint32(b)), nil
		},
	}
}

// Float64 returns the codec for an IEEE-754 double.
func Float64() Codec[float64] {
	return fixed[float64]{
		width: 8,
		put:   func(o binary.ByteOrder, b []byte, v float64) { o.PutUint64(b, math.Float64bits(v)) },
		get: func(o binary.ByteOrder, b []byte) (float64, error) {
			return math.Float64frombits(o.Uint64(b)), nil
		},
	}
}

// rawBytes is the codec for a raw byte run.
// Decoding needs the run length as a Len context; encoding checks it if given.
type rawBytes struct{}

func (rawBytes) Encode(ctx any, v *[]byte, w io.Writer) error {
	if n, _, ok := LenOf(ctx); ok && int(n) != len(*v) {
		return &LengthError{Expected: int(n), Received: len(*v)}
	}
	return WriteAll(w, *v)
}

func (rawBytes) Decode(ctx any, r io.Reader) ([]byte, error) {
	n, _, err := lenContext(ctx)
	if err != nil {
		return nil, err
	}
	return ReadExact(r, int(n))
}

func (rawBytes) EncodedSize(_ any, v *[]byte) int {
	return len(*v)
}

// Bytes returns the codec for a raw byte run of Len bytes.
func Bytes() Codec[[]byte] {
	return rawBytes{}
}

// utf8Text is the codec for a UTF-8 run of Len bytes.
type utf8Text struct{}

func (utf8Text) Encode(ctx any, v *string, w io.Writer) error {
	if n, _, ok := LenOf(ctx); ok && int(n) != len(*v) {
		return &LengthError{Expected: int(n), Received: len(*v)}
	}
	if !utf8.ValidString(*v) {
		return Errorf(ErrInvalidValue, "string is not valid UTF-8")
	}
	return WriteAll(w, []byte(*v))
}

func (utf8Text) Decode(ctx any, r io.Reader) (string, error) {
	n, _, err := lenContext(ctx)
	if err != nil {
		return "", err
	}
	b, err := ReadExact(r, int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", Errorf(ErrInvalidValue, "invalid UTF-8 in %d byte run", len(b))
	}
	return string(b), nil
}

func (utf8Text) EncodedSize(_ any, v *string) int {
	return len(*v)
}

// UTF8 returns the codec for a UTF-8 string of Len bytes.
func UTF8() Codec[string] {
	return utf8Text{}
}

// builtins holds the leaf codecs. Reset never clears it.
var builtins = map[reflect.Type]any{}

func builtin[T any](c Codec[T]) {
	builtins[reflect.TypeFor[T]()] = c
}

func init() {
	builtin(Uint8())
	builtin(Int8())
	builtin(ZeroOneBool())
	builtin(Uint16())
	builtin(Int16())
	builtin(Uint32())
	builtin(Int32())
	builtin(Uint64())
	builtin(Int64())
	builtin(Float32())
	builtin(Float64())
	builtin(Bytes())
	builtin(UTF8())

	builtin(Seq(Int8()))
	builtin(Seq(ZeroOneBool()))
	builtin(Seq(Uint16()))
	builtin(Seq(Int16()))
	builtin(Seq(Uint32()))
	builtin(Seq(Int32()))
	builtin(Seq(Uint64()))
	builtin(Seq(Int64()))
	builtin(Seq(Float32()))
	builtin(Seq(Float64()))
}
