package bitform

import (
	"bytes"
	"fmt"
	"io"
)

// Plan is a compiled schema. It implements Codec[T], holds no per-call state
// and is safe for concurrent use.
type Plan[T any] struct {
	name     string
	shape    Shape
	mode     ctxMode
	bind     [2]binding
	fixed    any
	strict   bool
	tag      *tagPlan
	variants []variantStep[T]
}

// tagPlan is the resolved tag configuration of a union.
type tagPlan struct {
	kind       string
	codec      *tagCodec
	encodeCtx  tagCtx
	decodeCtx  tagCtx
	decodeFrom func(any) (any, error)
	check      func(any) (any, error)
}

// NewPlan compiles s. It is Compile under the name used by the registry.
func NewPlan[T any](s *Schema[T]) (*Plan[T], error) {
	return s.Compile()
}

// Name returns the schema name.
func (p *Plan[T]) Name() string {
	return p.name
}

// Shape returns the schema shape.
func (p *Plan[T]) Shape() Shape {
	return p.shape
}

// resolve derives the container context of one direction from the caller
// context.
func (p *Plan[T]) resolve(dir int, ctx any) (any, error) {
	switch p.mode {
	case ctxBound:
		if b := p.bind[dir]; b.conv != nil {
			return b.conv(ctx)
		}
		return ctx, nil
	case ctxFixed:
		return p.fixed, nil
	default:
		return ctx, nil
	}
}

// dispatch picks the variant of v.
func (p *Plan[T]) dispatch(v *T) (variantStep[T], bool) {
	for _, vs := range p.variants {
		if vs.matches(v) {
			return vs, true
		}
	}
	return nil, false
}

// Encode writes v under ctx.
func (p *Plan[T]) Encode(ctx any, v *T, w io.Writer) error {
	if !p.strict {
		return p.encode(ctx, v, w)
	}
	var buf bytes.Buffer
	if err := p.encode(ctx, v, &buf); err != nil {
		return err
	}
	if err := checkEncoding(Codec[T](p), p.encode, ctx, buf.Bytes(), p.EncodedSize(ctx, v)); err != nil {
		emitVerifyFailed(p.name, err)
		return err
	}
	return WriteAll(w, buf.Bytes())
}

func (p *Plan[T]) encode(ctx any, v *T, w io.Writer) error {
	c, err := p.resolve(dirEncode, ctx)
	if err != nil {
		return err
	}
	vs, ok := p.dispatch(v)
	if !ok {
		return Errorf(ErrNoVariant, "%T matches no variant of %s", *v, p.name)
	}
	if p.tag != nil {
		if err := p.tag.encode(p.name, c, vs.tag(), w); err != nil {
			return err
		}
	}
	return vs.encode(c, v, w)
}

// Decode reads a T under ctx. On failure it returns the zero T.
func (p *Plan[T]) Decode(ctx any, r io.Reader) (T, error) {
	var zero T
	c, err := p.resolve(dirDecode, ctx)
	if err != nil {
		return zero, err
	}
	if p.tag == nil {
		return p.variants[0].decode(c, r)
	}
	tag, err := p.tag.decode(p.name, c, r)
	if err != nil {
		return zero, err
	}
	for _, vs := range p.variants {
		if vs.tag() == tag {
			return vs.decode(c, r)
		}
	}
	return zero, &UnknownTagError{Type: p.name, Tag: tag}
}

// EncodedSize reports how many bytes Encode writes for v under ctx.
// It returns 0 when v cannot be encoded under ctx at all.
func (p *Plan[T]) EncodedSize(ctx any, v *T) int {
	c, err := p.resolve(dirEncode, ctx)
	if err != nil {
		return 0
	}
	vs, ok := p.dispatch(v)
	if !ok {
		return 0
	}
	n := 0
	if p.tag != nil && p.tag.codec != nil {
		tctx, err := p.tag.encodeCtx.eval(c)
		if err != nil {
			return 0
		}
		n += p.tag.codec.size(tctx, vs.tag())
	}
	return n + vs.size(c, v)
}

// Marshal encodes v into a new buffer. See the package-level Marshal.
func (p *Plan[T]) Marshal(ctx any, v *T) ([]byte, error) {
	return Marshal[T](p, ctx, v)
}

// Unmarshal decodes the whole of data. See the package-level Unmarshal.
func (p *Plan[T]) Unmarshal(ctx any, data []byte) (T, error) {
	return Unmarshal[T](p, ctx, data)
}

func (t *tagPlan) encode(union string, ctx, lit any, w io.Writer) error {
	if t.check != nil {
		want, err := t.check(ctx)
		if err != nil {
			return newTagError(union, OpEncode, err)
		}
		if want != lit {
			return newTagError(union, OpEncode,
				Errorf(ErrTagMismatch, "context tag %v does not match variant tag %v", want, lit))
		}
	}
	if t.codec == nil {
		return nil
	}
	tctx, err := t.encodeCtx.eval(ctx)
	if err != nil {
		return newTagError(union, OpEncode, err)
	}
	if err := t.codec.encode(tctx, lit, w); err != nil {
		return newTagError(union, OpEncode, err)
	}
	return nil
}

func (t *tagPlan) decode(union string, ctx any, r io.Reader) (any, error) {
	if t.decodeFrom != nil {
		tag, err := t.decodeFrom(ctx)
		if err != nil {
			return nil, newTagError(union, OpDecode, err)
		}
		return tag, nil
	}
	tctx, err := t.decodeCtx.eval(ctx)
	if err != nil {
		return nil, newTagError(union, OpDecode, err)
	}
	tag, err := t.codec.decode(tctx, r)
	if err != nil {
		return nil, newTagError(union, OpDecode, err)
	}
	return tag, nil
}

// Verify checks that the three capabilities of c agree on v under ctx: the
// encoded length equals EncodedSize, decoding consumes exactly the encoded
// bytes, and re-encoding the decoded value reproduces them.
func Verify[T any](c Codec[T], ctx any, v *T) error {
	var buf bytes.Buffer
	if err := c.Encode(ctx, v, &buf); err != nil {
		return err
	}
	return checkEncoding(c, c.Encode, ctx, buf.Bytes(), c.EncodedSize(ctx, v))
}

// checkEncoding verifies data, the output of encode for a value of the given
// size, against c.
func checkEncoding[T any](c Codec[T], encode func(any, *T, io.Writer) error, ctx any, data []byte, size int) error {
	if size != len(data) {
		return Errorf(ErrInconsistent, "encoded size is %d but encode wrote %d bytes", size, len(data))
	}
	r := bytes.NewReader(data)
	back, err := c.Decode(ctx, r)
	if err != nil {
		return &MessageError{Err: ErrInconsistent, Msg: "cannot decode own output", Cause: err}
	}
	if r.Len() != 0 {
		return Errorf(ErrInconsistent, "decode consumed %d of %d bytes", len(data)-r.Len(), len(data))
	}
	var again bytes.Buffer
	if err := encode(ctx, &back, &again); err != nil {
		return &MessageError{Err: ErrInconsistent, Msg: "cannot re-encode decoded value", Cause: err}
	}
	if !bytes.Equal(data, again.Bytes()) {
		return Errorf(ErrInconsistent, "re-encoding differs: %s", diffAt(data, again.Bytes()))
	}
	return nil
}

// diffAt describes the first difference between two byte strings.
func diffAt(a, b []byte) string {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return fmt.Sprintf("byte %d is %#02x, then %#02x", i, a[i], b[i])
		}
	}
	return fmt.Sprintf("length %d, then %d", len(a), len(b))
}
