package bitform

import (
	"bytes"
	"fmt"
	"io"
)

// Adapter is a wire representation of F that converts back without loss.
// Adapters are self-coding; a schema field uses one through Via.
type Adapter[F any] interface {
	Natural() F
}

// Integer is the set of types usable as a length or count prefix.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// maxPrealloc bounds the capacity reserved from a decoded count.
const maxPrealloc = 1024

// BigEndian encodes its value with the default codec of T under Big,
// whatever context the caller supplies.
type BigEndian[T any] struct {
	Value T
}

// NewBigEndian wraps *v.
func NewBigEndian[T any](v *T) BigEndian[T] {
	return BigEndian[T]{Value: *v}
}

// Natural returns the wrapped value.
func (b BigEndian[T]) Natural() T {
	return b.Value
}

// EncodeBinary writes the value big-endian.
func (b BigEndian[T]) EncodeBinary(_ any, w io.Writer) error {
	return encodeOrdered(Big, &b.Value, w)
}

// EncodedSize reports the width of the value.
func (b BigEndian[T]) EncodedSize(_ any) int {
	return sizeOrdered(Big, &b.Value)
}

// DecodeBinary reads a big-endian value.
func (b *BigEndian[T]) DecodeBinary(_ any, r io.Reader) error {
	return decodeOrdered(Big, &b.Value, r)
}

// LittleEndian encodes its value with the default codec of T under Little,
// whatever context the caller supplies.
type LittleEndian[T any] struct {
	Value T
}

// NewLittleEndian wraps *v.
func NewLittleEndian[T any](v *T) LittleEndian[T] {
	return LittleEndian[T]{Value: *v}
}

// Natural returns the wrapped value.
func (l LittleEndian[T]) Natural() T {
	return l.Value
}

// EncodeBinary writes the value little-endian.
func (l LittleEndian[T]) EncodeBinary(_ any, w io.Writer) error {
	return encodeOrdered(Little, &l.Value, w)
}

// EncodedSize reports the width of the value.
func (l LittleEndian[T]) EncodedSize(_ any) int {
	return sizeOrdered(Little, &l.Value)
}

// DecodeBinary reads a little-endian value.
func (l *LittleEndian[T]) DecodeBinary(_ any, r io.Reader) error {
	return decodeOrdered(Little, &l.Value, r)
}

func encodeOrdered[T any](e Endian, v *T, w io.Writer) error {
	c, err := Lookup[T]()
	if err != nil {
		return err
	}
	return c.Encode(e, v, w)
}

func decodeOrdered[T any](e Endian, v *T, r io.Reader) error {
	c, err := Lookup[T]()
	if err != nil {
		return err
	}
	out, err := c.Decode(e, r)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func sizeOrdered[T any](e Endian, v *T) int {
	c, err := Lookup[T]()
	if err != nil {
		return 0
	}
	return c.EncodedSize(e, v)
}

// Utf8 is a string carried as a UTF-8 run whose length comes from a Len context.
type Utf8 string

// NewUtf8 wraps *s.
func NewUtf8(s *string) Utf8 {
	return Utf8(*s)
}

// Natural returns the string.
func (u Utf8) Natural() string {
	return string(u)
}

// EncodeBinary writes the bytes of the string. A Len context must match
// their count.
func (u Utf8) EncodeBinary(ctx any, w io.Writer) error {
	s := string(u)
	return utf8Text{}.Encode(ctx, &s, w)
}

// EncodedSize reports the byte length of the string.
func (u Utf8) EncodedSize(_ any) int {
	return len(u)
}

// DecodeBinary reads Len bytes and rejects invalid UTF-8.
func (u *Utf8) DecodeBinary(ctx any, r io.Reader) error {
	s, err := utf8Text{}.Decode(ctx, r)
	if err != nil {
		return err
	}
	*u = Utf8(s)
	return nil
}

// ZeroOne is a bool carried as a single 0x00 or 0x01 byte.
type ZeroOne bool

// NewZeroOne wraps *b.
func NewZeroOne(b *bool) ZeroOne {
	return ZeroOne(*b)
}

// Natural returns the bool.
func (z ZeroOne) Natural() bool {
	return bool(z)
}

// EncodeBinary writes 0x00 or 0x01.
func (z ZeroOne) EncodeBinary(ctx any, w io.Writer) error {
	b := bool(z)
	return ZeroOneBool().Encode(ctx, &b, w)
}

// EncodedSize is always 1.
func (z ZeroOne) EncodedSize(_ any) int {
	return 1
}

// DecodeBinary reads one byte. Values other than 0x00 and 0x01 fail.
func (z *ZeroOne) DecodeBinary(ctx any, r io.Reader) error {
	b, err := ZeroOneBool().Decode(ctx, r)
	if err != nil {
		return err
	}
	*z = ZeroOne(b)
	return nil
}

// PrefixBytes is a byte buffer preceded by its length as a P.
// The prefix is encoded under the caller context.
type PrefixBytes[P Integer] struct {
	Bytes []byte
}

// NewPrefixBytes wraps *b.
func NewPrefixBytes[P Integer](b *[]byte) PrefixBytes[P] {
	return PrefixBytes[P]{Bytes: *b}
}

// Natural returns the buffer.
func (p PrefixBytes[P]) Natural() []byte {
	return p.Bytes
}

// EncodeBinary writes the length prefix, then the bytes.
func (p PrefixBytes[P]) EncodeBinary(ctx any, w io.Writer) error {
	if err := encodePrefix[P](ctx, len(p.Bytes), w); err != nil {
		return err
	}
	return WriteAll(w, p.Bytes)
}

// EncodedSize reports the prefix width plus the buffer length.
func (p PrefixBytes[P]) EncodedSize(ctx any) int {
	return sizePrefix[P](ctx) + len(p.Bytes)
}

// DecodeBinary reads the prefix and that many bytes.
func (p *PrefixBytes[P]) DecodeBinary(ctx any, r io.Reader) error {
	n, err := decodePrefix[P](ctx, r)
	if err != nil {
		return err
	}
	b, err := ReadExact(r, n)
	if err != nil {
		return err
	}
	p.Bytes = b
	return nil
}

// PrefixSeq is a slice preceded by its element count as a P.
// The prefix and every element are encoded under the caller context.
type PrefixSeq[P Integer, E any] struct {
	Items []E
}

// NewPrefixSeq wraps *items.
func NewPrefixSeq[P Integer, E any](items *[]E) PrefixSeq[P, E] {
	return PrefixSeq[P, E]{Items: *items}
}

// Natural returns the slice.
func (p PrefixSeq[P, E]) Natural() []E {
	return p.Items
}

// EncodeBinary writes the count prefix, then each element.
func (p PrefixSeq[P, E]) EncodeBinary(ctx any, w io.Writer) error {
	if err := encodePrefix[P](ctx, len(p.Items), w); err != nil {
		return err
	}
	c, err := Lookup[E]()
	if err != nil {
		return err
	}
	return encodeElems(c, ctx, p.Items, w)
}

// EncodedSize reports the prefix width plus the size of every element.
func (p PrefixSeq[P, E]) EncodedSize(ctx any) int {
	c, err := Lookup[E]()
	if err != nil {
		return 0
	}
	return sizePrefix[P](ctx) + sizeElems(c, ctx, p.Items)
}

// DecodeBinary reads the count prefix and that many elements.
func (p *PrefixSeq[P, E]) DecodeBinary(ctx any, r io.Reader) error {
	n, err := decodePrefix[P](ctx, r)
	if err != nil {
		return err
	}
	c, err := Lookup[E]()
	if err != nil {
		return err
	}
	items, err := decodeElems(c, ctx, n, r)
	if err != nil {
		return err
	}
	p.Items = items
	return nil
}

func encodePrefix[P Integer](ctx any, n int, w io.Writer) error {
	p := P(n)
	if p < 0 || int(p) != n {
		return Errorf(ErrInvalidValue, "length %d overflows %s prefix", n, typeLabel[P]())
	}
	c, err := Lookup[P]()
	if err != nil {
		return err
	}
	return c.Encode(ctx, &p, w)
}

func decodePrefix[P Integer](ctx any, r io.Reader) (int, error) {
	c, err := Lookup[P]()
	if err != nil {
		return 0, err
	}
	p, err := c.Decode(ctx, r)
	if err != nil {
		return 0, err
	}
	n := int(p)
	if n < 0 || P(n) != p {
		return 0, Errorf(ErrInvalidValue, "prefix %v is not a valid length", p)
	}
	return n, nil
}

func sizePrefix[P Integer](ctx any) int {
	c, err := Lookup[P]()
	if err != nil {
		return 0
	}
	return DefaultEncodedSize(c, ctx)
}

// seq is the codec for a slice whose length comes from the context.
type seq[E any] struct {
	elem Codec[E]
}

// Seq returns the codec for a slice of elem values.
// Decoding needs a Len, or a Pair whose first element is a Len and whose second
// is the element context. With a bare Len the elements get None. Encoding checks
// a supplied Len against the slice length. A count above 1024 of elements that
// read nothing fails with ErrInvalidValue.
func Seq[E any](elem Codec[E]) Codec[[]E] {
	return seq[E]{elem: elem}
}

func (s seq[E]) Encode(ctx any, v *[]E, w io.Writer) error {
	n, rest, ok := LenOf(ctx)
	if ok && int(n) != len(*v) {
		return &LengthError{Expected: int(n), Received: len(*v)}
	}
	return encodeElems(s.elem, rest, *v, w)
}

func (s seq[E]) Decode(ctx any, r io.Reader) ([]E, error) {
	n, rest, err := lenContext(ctx)
	if err != nil {
		return nil, err
	}
	return decodeElems(s.elem, rest, int(n), r)
}

func (s seq[E]) EncodedSize(ctx any, v *[]E) int {
	_, rest, _ := LenOf(ctx)
	return sizeElems(s.elem, rest, *v)
}

func encodeElems[E any](c Codec[E], ctx any, items []E, w io.Writer) error {
	for i := range items {
		if err := c.Encode(ctx, &items[i], w); err != nil {
			return newFieldError(typeLabel[[]E](), elemLabel(i), OpEncode, err)
		}
	}
	return nil
}

// decodeElems reads n elements. Every maxPrealloc elements it checks that the
// input advanced, so a corrupt count of zero-width elements fails instead of
// materializing without reading anything.
func decodeElems[E any](c Codec[E], ctx any, n int, r io.Reader) ([]E, error) {
	items := make([]E, 0, min(n, maxPrealloc))
	rc := &readCounter{r: r}
	mark := 0
	for i := 0; i < n; i++ {
		if i > 0 && i%maxPrealloc == 0 {
			if rc.n == mark {
				return nil, Errorf(ErrInvalidValue, "count %d: %d elements consumed no input", n, maxPrealloc)
			}
			mark = rc.n
		}
		v, err := c.Decode(ctx, rc)
		if err != nil {
			return nil, newFieldError(typeLabel[[]E](), elemLabel(i), OpDecode, err)
		}
		items = append(items, v)
	}
	return items, nil
}

// readCounter counts the bytes read through it.
type readCounter struct {
	r io.Reader
	n int
}

func (rc *readCounter) Read(p []byte) (int, error) {
	n, err := rc.r.Read(p)
	rc.n += n
	return n, err
}

func sizeElems[E any](c Codec[E], ctx any, items []E) int {
	n := 0
	for i := range items {
		n += c.EncodedSize(ctx, &items[i])
	}
	return n
}

func elemLabel(i int) string {
	return fmt.Sprintf("[%d]", i)
}

// opt is the codec for an optional value.
type opt[E any] struct {
	elem func() (Codec[E], error)
}

// Opt returns the codec for *E using the default codec of E.
// A nil pointer encodes nothing; decoding always yields a value, so pair it
// with a skip predicate.
func Opt[E any]() Codec[*E] {
	return opt[E]{elem: Lookup[E]}
}

// OptWith returns the codec for *E using elem.
func OptWith[E any](elem Codec[E]) Codec[*E] {
	return opt[E]{elem: func() (Codec[E], error) { return elem, nil }}
}

func (o opt[E]) Encode(ctx any, v **E, w io.Writer) error {
	if *v == nil {
		return nil
	}
	c, err := o.elem()
	if err != nil {
		return err
	}
	return c.Encode(ctx, *v, w)
}

func (o opt[E]) Decode(ctx any, r io.Reader) (*E, error) {
	c, err := o.elem()
	if err != nil {
		return nil, err
	}
	v, err := c.Decode(ctx, r)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (o opt[E]) EncodedSize(ctx any, v **E) int {
	if *v == nil {
		return 0
	}
	c, err := o.elem()
	if err != nil {
		return 0
	}
	return c.EncodedSize(ctx, *v)
}

// magic is the codec for a constant byte string.
type magic struct {
	want []byte
}

// Magic returns the codec for a constant byte string, such as a file
// signature. Decoding fails when the input differs.
func Magic(b []byte) Codec[struct{}] {
	return magic{want: bytes.Clone(b)}
}

func (m magic) Encode(_ any, _ *struct{}, w io.Writer) error {
	return WriteAll(w, m.want)
}

func (m magic) Decode(_ any, r io.Reader) (struct{}, error) {
	got := make([]byte, len(m.want))
	if err := readFull(r, got); err != nil {
		return struct{}{}, err
	}
	if !bytes.Equal(got, m.want) {
		return struct{}{}, Errorf(ErrInvalidValue, "magic bytes mismatch: expected %x, got %x", m.want, got)
	}
	return struct{}{}, nil
}

func (m magic) EncodedSize(_ any, _ *struct{}) int {
	return len(m.want)
}

// lazy resolves the codec of T on every call.
type lazy[T any] struct{}

// Lazy returns a codec deferring to whatever is registered for T at call time.
// Use it for recursive types whose plan does not exist yet when the field is
// declared. Registering Lazy[T] itself as the codec of T recurses forever.
func Lazy[T any]() Codec[T] {
	return lazy[T]{}
}

func (lazy[T]) Encode(ctx any, v *T, w io.Writer) error {
	c, err := Lookup[T]()
	if err != nil {
		return err
	}
	return c.Encode(ctx, v, w)
}

func (lazy[T]) Decode(ctx any, r io.Reader) (T, error) {
	c, err := Lookup[T]()
	if err != nil {
		var zero T
		return zero, err
	}
	return c.Decode(ctx, r)
}

func (lazy[T]) EncodedSize(ctx any, v *T) int {
	c, err := Lookup[T]()
	if err != nil {
		return 0
	}
	return c.EncodedSize(ctx, v)
}
