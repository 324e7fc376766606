// Package cbor provides a field codec embedding values as deterministic CBOR.
package cbor

import (
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/zoobzio/bitform"
)

// ContentType is the MIME type of the embedded documents.
const ContentType = "application/cbor"

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2), so equal values
// always embed as equal bytes.
var encMode cbor.EncMode

// decMode rejects duplicate map keys.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("cbor: encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("cbor: decoder initialization failed: " + err.Error())
	}
}

// cborCodec implements bitform.Codec for values embedded as CBOR.
type cborCodec[T any] struct{}

// New returns a codec writing v as a single CBOR data item with no framing.
// Decoding needs the item length as a bitform.Len context, or a tuple headed
// by one. Encoding checks a supplied Len against the item length.
func New[T any]() bitform.Codec[T] {
	return cborCodec[T]{}
}

// Encode writes v as CBOR.
func (cborCodec[T]) Encode(ctx any, v *T, w io.Writer) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return bitform.WithContext("cbor marshal", err)
	}
	if n, _, ok := bitform.LenOf(ctx); ok && int(n) != len(data) {
		return &bitform.LengthError{Expected: int(n), Received: len(data)}
	}
	return bitform.WriteAll(w, data)
}

// Decode reads an item of Len bytes. Trailing bytes inside the run fail.
func (cborCodec[T]) Decode(ctx any, r io.Reader) (T, error) {
	var out T
	n, _, ok := bitform.LenOf(ctx)
	if !ok {
		return out, bitform.Errorf(bitform.ErrContext, "cbor item needs a bitform.Len context, got %T", ctx)
	}
	data, err := bitform.ReadExact(r, int(n))
	if err != nil {
		return out, err
	}
	if err := decMode.Unmarshal(data, &out); err != nil {
		var zero T
		return zero, bitform.WithContext("cbor unmarshal", err)
	}
	return out, nil
}

// EncodedSize reports the item length, or 0 if v cannot be marshaled.
func (cborCodec[T]) EncodedSize(_ any, v *T) int {
	data, err := encMode.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// Size reports the item length of v. Use it to fill the length field that
// precedes an embedded item.
func Size[T any](v *T) (int, error) {
	data, err := encMode.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
