package bitform

import (
	"bytes"
	"errors"
	"io"
)

// Codec is the three-capability protocol for values of type T.
//
// Every capability takes a context: an auxiliary value carrying layout
// information that is not part of the value itself (byte order, element
// counts, externally supplied discriminants). The dynamic type of the context
// selects the behaviour, so one codec may serve several context types. A codec
// with no behaviour for the supplied context type fails with ErrContext.
type Codec[T any] interface {
	// Encode writes exactly the representation of v to w.
	Encode(ctx any, v *T, w io.Writer) error

	// Decode consumes exactly the bytes a matching Encode writes for an
	// equal value under the same context.
	Decode(ctx any, r io.Reader) (T, error)

	// EncodedSize reports how many bytes Encode writes for v. It performs
	// no I/O.
	EncodedSize(ctx any, v *T) int
}

// DefaultEncodedSize sizes the zero value of T.
// Use it for fixed-width prefixes before a value exists.
func DefaultEncodedSize[T any](c Codec[T], ctx any) int {
	var zero T
	return c.EncodedSize(ctx, &zero)
}

// Funcs assembles a Codec from plain functions.
// When SizeFunc is nil the size is measured by running EncodeFunc into a
// counting sink.
type Funcs[T any] struct {
	EncodeFunc func(ctx any, v *T, w io.Writer) error
	DecodeFunc func(ctx any, r io.Reader) (T, error)
	SizeFunc   func(ctx any, v *T) int
}

// Encode calls EncodeFunc.
func (f Funcs[T]) Encode(ctx any, v *T, w io.Writer) error {
	if f.EncodeFunc == nil {
		return Errorf(ErrNoCodec, "no encode function for %s", typeLabel[T]())
	}
	return f.EncodeFunc(ctx, v, w)
}

// Decode calls DecodeFunc.
func (f Funcs[T]) Decode(ctx any, r io.Reader) (T, error) {
	if f.DecodeFunc == nil {
		var zero T
		return zero, Errorf(ErrNoCodec, "no decode function for %s", typeLabel[T]())
	}
	return f.DecodeFunc(ctx, r)
}

// EncodedSize calls SizeFunc, or measures EncodeFunc.
func (f Funcs[T]) EncodedSize(ctx any, v *T) int {
	if f.SizeFunc != nil {
		return f.SizeFunc(ctx, v)
	}
	if f.EncodeFunc == nil {
		return 0
	}
	return measure(func(w io.Writer) error { return f.EncodeFunc(ctx, v, w) })
}

// counter is a sink that only counts.
type counter struct {
	n int
}

func (c *counter) Write(p []byte) (int, error) {
	c.n += len(p)
	return len(p), nil
}

// measure runs encode into a counting sink and returns the byte count.
func measure(encode func(w io.Writer) error) int {
	var c counter
	_ = encode(&c)
	return c.n
}

// WriteAll writes p in full. A writer that accepts fewer bytes without an
// error fails with io.ErrShortWrite.
func WriteAll(w io.Writer, p []byte) error {
	if len(p) == 0 {
		return nil
	}
	n, err := w.Write(p)
	if err != nil {
		return Wrap(err)
	}
	if n != len(p) {
		return Wrap(io.ErrShortWrite)
	}
	return nil
}

// readFull fills p, reporting a clean end of input as a short read.
func readFull(r io.Reader, p []byte) error {
	if _, err := io.ReadFull(r, p); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return Wrap(err)
	}
	return nil
}

// smallRead is the largest run allocated up front; longer runs grow with the
// data actually present so a corrupt length cannot force a huge allocation.
const smallRead = 64 << 10

// ReadExact consumes exactly n bytes from r.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, Errorf(ErrInvalidValue, "negative length %d", n)
	}
	if n <= smallRead {
		buf := make([]byte, n)
		if err := readFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	var buf bytes.Buffer
	copied, err := io.CopyN(&buf, r, int64(n))
	if err != nil {
		if errors.Is(err, io.EOF) && copied < int64(n) {
			err = io.ErrUnexpectedEOF
		}
		return nil, Wrap(err)
	}
	return buf.Bytes(), nil
}
