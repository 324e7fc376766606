// Package bitform provides context-aware binary serialization.
//
// Every serializable type carries three capabilities through the Codec
// interface: encode to an io.Writer, decode from an io.Reader, and report the
// encoded size. Each capability takes a context, an auxiliary value carrying
// layout information the value itself lacks: byte order, element counts, or a
// discriminant supplied by an enclosing structure. The dynamic type of the
// context selects the behaviour.
//
// There is no implicit framing. What a schema declares is exactly what is on
// the wire, which makes bitform suited to existing binary formats: file
// headers, network protocols, on-disk records.
//
// # Contexts
//
//   - None: no context
//   - Endian: Big or Little, required by multi-byte scalars
//   - Len: element or byte count, required to decode []byte, string and slices
//   - Pair, Triple: composite contexts split through the Tuple interface
//
// # Schemas
//
// Records and tagged unions are declared once as a Schema and compiled into a
// Plan, which implements Codec:
//
//	type Header struct {
//	    Version uint8
//	    Length  bitform.BigEndian[uint32]
//	}
//
//	plan, err := bitform.Use(bitform.Struct(
//	    bitform.Field("version", func(h *Header) *uint8 { return &h.Version }),
//	    bitform.Field("length", func(h *Header) *bitform.BigEndian[uint32] { return &h.Length }),
//	))
//
//	data, err := plan.Marshal(bitform.None{}, &Header{Version: 1, Length: bitform.BigEndian[uint32]{Value: 9}})
//	// 01 00 00 00 09
//
// A union is an interface type whose variants are concrete types:
//
//	plan, err := bitform.Use(bitform.Union(
//	    bitform.Case[Shape, Circle](0, radiusField),
//	    bitform.Case[Shape, Square](1, sideField),
//	).With(bitform.Discriminant[uint8]()))
//
// # Schema Options
//
//   - Bind[C]: the caller context must be a C; fields inherit it
//   - Fixed(v): the caller context is ignored; fields get v
//   - Discriminant[K]: a K tag precedes the variant fields
//   - TagFrom: the tag is computed from the context and not written
//   - Named, Strict
//
// # Field Options
//
//   - Ctx, EncodeCtx, DecodeCtx, CtxValue: per-field context
//   - With: a replacement codec
//   - EncodeWith, DecodeWith, SizeWith: split hooks
//   - Via: carry the field through an adapter such as LittleEndian or Utf8
//   - SkipIf, SkipIfCtx: omit the field when a predicate holds
//
// # Self-Coding Types
//
// A type implementing Encodable, with *T implementing Decodable, is its own
// default codec. The adapters BigEndian, LittleEndian, Utf8, ZeroOne,
// PrefixBytes and PrefixSeq work this way.
//
// # Field Hooks
//
// The following sub-packages provide hooks for use with With:
//
//   - msgpack - embed a value as MessagePack
//   - cbor - embed a value as deterministic CBOR
//   - sealed - seal a byte field with XChaCha20-Poly1305
package bitform

import (
	"bytes"
	"time"
)

// Marshal encodes v under ctx into a new buffer sized by EncodedSize.
func Marshal[T any](c Codec[T], ctx any, v *T) ([]byte, error) {
	start := time.Now()
	buf := bytes.NewBuffer(make([]byte, 0, c.EncodedSize(ctx, v)))
	err := c.Encode(ctx, v, buf)
	emitMarshalComplete(typeLabel[T](), buf.Len(), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes a T from the whole of data. Bytes left after the value
// fail with a RemainingBytesError; use Decode directly to leave them unread.
func Unmarshal[T any](c Codec[T], ctx any, data []byte) (T, error) {
	start := time.Now()
	r := bytes.NewReader(data)
	v, err := c.Decode(ctx, r)
	if err == nil && r.Len() > 0 {
		err = &RemainingBytesError{Count: r.Len()}
	}
	emitUnmarshalComplete(typeLabel[T](), len(data), r.Len(), time.Since(start), err)
	if err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}
