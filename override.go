package bitform

import "io"

// Self-coding interfaces let a type supply its own codec without a schema.
// When T implements Encodable, or *T implements Decodable, Lookup[T] returns a
// codec that calls these methods. Registered codecs take precedence.
//
// The adapters in this package (BigEndian, Utf8, PrefixBytes and friends) are
// self-coding, which is what lets a schema field use them directly.

// Encodable writes its own representation.
type Encodable interface {
	// EncodeBinary writes the receiver under ctx.
	EncodeBinary(ctx any, w io.Writer) error

	// EncodedSize reports how many bytes EncodeBinary writes under ctx.
	EncodedSize(ctx any) int
}

// Decodable reads its own representation.
// Implement it on the pointer receiver; the receiver is a fresh zero value.
type Decodable interface {
	DecodeBinary(ctx any, r io.Reader) error
}

// selfCodec adapts the self-coding interfaces to Codec.
type selfCodec[T any] struct{}

func (selfCodec[T]) Encode(ctx any, v *T, w io.Writer) error {
	e, ok := any(v).(Encodable)
	if !ok {
		return Errorf(ErrNoCodec, "%s cannot encode itself", typeLabel[T]())
	}
	return e.EncodeBinary(ctx, w)
}

func (selfCodec[T]) Decode(ctx any, r io.Reader) (T, error) {
	var out T
	d, ok := any(&out).(Decodable)
	if !ok {
		return out, Errorf(ErrNoCodec, "%s cannot decode itself", typeLabel[T]())
	}
	if err := d.DecodeBinary(ctx, r); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (selfCodec[T]) EncodedSize(ctx any, v *T) int {
	if e, ok := any(v).(Encodable); ok {
		return e.EncodedSize(ctx)
	}
	return 0
}

// isSelfCoding reports whether T encodes or decodes itself.
func isSelfCoding[T any]() bool {
	_, enc := any((*T)(nil)).(Encodable)
	_, dec := any((*T)(nil)).(Decodable)
	return enc || dec
}
