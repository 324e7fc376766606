// Package msgpack provides a field codec embedding values as MessagePack.
package msgpack

import (
	"bytes"
	"io"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/zoobzio/bitform"
)

// ContentType is the MIME type of the embedded documents.
const ContentType = "application/msgpack"

// msgpackCodec implements bitform.Codec for values embedded as MessagePack.
type msgpackCodec[T any] struct{}

// New returns a codec writing v as a MessagePack document with no framing.
// Decoding needs the document length as a bitform.Len context, or a tuple
// headed by one; pair the field with a length field and a context override.
// Encoding checks a supplied Len against the document length.
func New[T any]() bitform.Codec[T] {
	return msgpackCodec[T]{}
}

// Encode writes v as MessagePack.
func (msgpackCodec[T]) Encode(ctx any, v *T, w io.Writer) error {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return bitform.WithContext("msgpack marshal", err)
	}
	if n, _, ok := bitform.LenOf(ctx); ok && int(n) != len(data) {
		return &bitform.LengthError{Expected: int(n), Received: len(data)}
	}
	return bitform.WriteAll(w, data)
}

// Decode reads a document of Len bytes.
func (msgpackCodec[T]) Decode(ctx any, r io.Reader) (T, error) {
	var out T
	n, _, ok := bitform.LenOf(ctx)
	if !ok {
		return out, bitform.Errorf(bitform.ErrContext, "msgpack document needs a bitform.Len context, got %T", ctx)
	}
	data, err := bitform.ReadExact(r, int(n))
	if err != nil {
		return out, err
	}
	br := bytes.NewReader(data)
	if err := msgpack.NewDecoder(br).Decode(&out); err != nil {
		var zero T
		return zero, bitform.WithContext("msgpack unmarshal", err)
	}
	if br.Len() > 0 {
		var zero T
		return zero, &bitform.RemainingBytesError{Count: br.Len()}
	}
	return out, nil
}

// EncodedSize reports the document length, or 0 if v cannot be marshaled.
func (msgpackCodec[T]) EncodedSize(_ any, v *T) int {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return 0
	}
	return len(data)
}

// Size reports the document length of v. Use it to fill the length field that
// precedes an embedded document.
func Size[T any](v *T) (int, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return 0, err
	}
	return len(data), nil
}
