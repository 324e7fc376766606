package bitform

import (
	"errors"
	"fmt"
	"io"
	"math"
	"reflect"
	"slices"
)

// Shape describes the layout family of a schema.
type Shape string

const (
	// ShapeUnit is a record with no fields. It encodes to nothing.
	ShapeUnit Shape = "unit"

	// ShapePositional is a record whose fields are unnamed.
	ShapePositional Shape = "positional"

	// ShapeNamed is a record with named fields.
	ShapeNamed Shape = "named"

	// ShapeUnion is a tagged union of variants.
	ShapeUnion Shape = "union"
)

// validShapes contains every shape a schema can compile to.
var validShapes = map[Shape]bool{
	ShapeUnit:       true,
	ShapePositional: true,
	ShapeNamed:      true,
	ShapeUnion:      true,
}

// IsValidShape returns true if s is a known shape.
func IsValidShape(s Shape) bool {
	return validShapes[s]
}

// Schema declares how a record or union of type T is laid out.
// Build one with Struct or Union, add options with With, then Compile it or
// hand it to Use. A schema is immutable; With returns a copy.
type Schema[T any] struct {
	union    bool
	fields   []FieldDef[T]
	variants []VariantDef[T]
	opts     []SchemaOption
}

// Struct declares a record of the given fields, encoded in order.
func Struct[T any](fields ...FieldDef[T]) *Schema[T] {
	return &Schema[T]{fields: fields}
}

// Union declares a tagged union over the interface type T.
// Each variant is a concrete type implementing T with value receivers.
func Union[T any](variants ...VariantDef[T]) *Schema[T] {
	return &Schema[T]{union: true, variants: variants}
}

// With returns a copy of the schema with opts appended.
func (s *Schema[T]) With(opts ...SchemaOption) *Schema[T] {
	out := *s
	out.opts = append(slices.Clone(s.opts), opts...)
	return &out
}

// ctxMode selects how a plan derives the context its fields see.
type ctxMode uint8

const (
	ctxCaller ctxMode = iota
	ctxBound
	ctxFixed
)

type schemaConfig struct {
	name   string
	mode   ctxMode
	bind   [2]binding
	fixed  any
	strict bool
	tag    tagConfig
}

// binding converts the caller context of one direction into the container
// context. A zero binding passes the caller context through.
type binding struct {
	typ  string
	conv func(any) (any, error)
}

func bindingOf[C any]() binding {
	return binding{
		typ: reflect.TypeFor[C]().String(),
		conv: func(ctx any) (any, error) {
			return ContextAs[C](ctx)
		},
	}
}

const (
	dirEncode = 0
	dirDecode = 1
)

// SchemaOption configures a schema.
type SchemaOption func(*schemaConfig)

// Named sets the schema name used in errors, signals and layouts.
// The default is the Go type name.
func Named(name string) SchemaOption {
	return func(c *schemaConfig) {
		c.name = name
	}
}

// Bind requires the caller context to be a C. The bound value is the default
// context of every field and the input of computed tags.
func Bind[C any]() SchemaOption {
	return func(c *schemaConfig) {
		c.mode = ctxBound
		c.bind[dirEncode] = bindingOf[C]()
		c.bind[dirDecode] = bindingOf[C]()
	}
}

// BindEncode requires the caller context of Encode and EncodedSize to be a C.
// Without BindDecode, Decode passes its caller context through unchanged.
func BindEncode[C any]() SchemaOption {
	return func(c *schemaConfig) {
		c.mode = ctxBound
		c.bind[dirEncode] = bindingOf[C]()
	}
}

// BindDecode requires the caller context of Decode to be a C.
// Without BindEncode, Encode passes its caller context through unchanged.
func BindDecode[C any]() SchemaOption {
	return func(c *schemaConfig) {
		c.mode = ctxBound
		c.bind[dirDecode] = bindingOf[C]()
	}
}

// Fixed ignores the caller context and gives every field v instead.
func Fixed(v any) SchemaOption {
	return func(c *schemaConfig) {
		c.mode = ctxFixed
		c.fixed = v
	}
}

// Strict makes Encode check its own output: the size must match EncodedSize,
// and decoding then re-encoding must reproduce the bytes. Values holding
// randomized fields, such as sealed ones, never pass the re-encode check.
func Strict() SchemaOption {
	return func(c *schemaConfig) {
		c.strict = true
	}
}

type tagConfig struct {
	declared bool

	// Discriminant encoded in front of the variant fields.
	discriminant bool
	kind         reflect.Type
	codec        func() (*tagCodec, error)
	normalize    func(any) (any, error)
	encodeCtx    tagCtx
	decodeCtx    tagCtx

	// Computed tags over the container context.
	decodeFrom     func(any) (any, error)
	decodeFromKind reflect.Type
	decodeFromNorm func(any) (any, error)
	check          func(any) (any, error)
	checkKind      reflect.Type
}

type tagOptions struct {
	codec     any
	encodeCtx tagCtx
	decodeCtx tagCtx
}

// tagCtx yields the context of the discriminant codec from the container
// context.
type tagCtx struct {
	label string
	eval  func(ctx any) (any, error)
}

func constTagCtx(v any) tagCtx {
	return tagCtx{
		label: contextLabel(v),
		eval:  func(any) (any, error) { return v, nil },
	}
}

func derivedTagCtx[C, TC any](fn func(ctx C) TC) tagCtx {
	return tagCtx{
		label: "from " + typeLabel[C](),
		eval: func(ctx any) (any, error) {
			c, err := ContextAs[C](ctx)
			if err != nil {
				return nil, err
			}
			return fn(c), nil
		},
	}
}

// TagOption configures a discriminant.
type TagOption func(*tagOptions)

// TagContext sets the context of the discriminant codec for both directions.
// The default is None.
func TagContext(v any) TagOption {
	return func(o *tagOptions) {
		o.encodeCtx = constTagCtx(v)
		o.decodeCtx = constTagCtx(v)
	}
}

// TagEncodeContext sets the context the discriminant is encoded under.
func TagEncodeContext(v any) TagOption {
	return func(o *tagOptions) {
		o.encodeCtx = constTagCtx(v)
	}
}

// TagDecodeContext sets the context the discriminant is decoded under.
func TagDecodeContext(v any) TagOption {
	return func(o *tagOptions) {
		o.decodeCtx = constTagCtx(v)
	}
}

// TagContextFrom derives the context of the discriminant codec from the
// container context in both directions, so a bound byte order can reach the
// tag. A container context that is not a C fails with ErrContext.
func TagContextFrom[C, TC any](fn func(ctx C) TC) TagOption {
	return func(o *tagOptions) {
		o.encodeCtx = derivedTagCtx(fn)
		o.decodeCtx = derivedTagCtx(fn)
	}
}

// TagEncodeContextFrom derives the encode context of the discriminant from the
// container context.
func TagEncodeContextFrom[C, TC any](fn func(ctx C) TC) TagOption {
	return func(o *tagOptions) {
		o.encodeCtx = derivedTagCtx(fn)
	}
}

// TagDecodeContextFrom derives the decode context of the discriminant from the
// container context.
func TagDecodeContextFrom[C, TC any](fn func(ctx C) TC) TagOption {
	return func(o *tagOptions) {
		o.decodeCtx = derivedTagCtx(fn)
	}
}

// TagCodec replaces the default codec of the discriminant type.
func TagCodec[K comparable](c Codec[K]) TagOption {
	return func(o *tagOptions) {
		o.codec = c
	}
}

// Discriminant makes a union write a K in front of each variant and read it
// back to pick the variant. Variant tags are K values; untyped integer
// literals convert when they fit.
func Discriminant[K comparable](opts ...TagOption) SchemaOption {
	return func(c *schemaConfig) {
		to := tagOptions{encodeCtx: constTagCtx(None{}), decodeCtx: constTagCtx(None{})}
		for _, opt := range opts {
			opt(&to)
		}
		c.tag.declared = true
		c.tag.discriminant = true
		c.tag.kind = reflect.TypeFor[K]()
		c.tag.normalize = normalizeTag[K]
		c.tag.encodeCtx = to.encodeCtx
		c.tag.decodeCtx = to.decodeCtx
		c.tag.codec = func() (*tagCodec, error) {
			if to.codec != nil {
				kc, ok := to.codec.(Codec[K])
				if !ok {
					return nil, fmt.Errorf("%w: tag codec %T does not encode %s", ErrTypeMismatch, to.codec, reflect.TypeFor[K]())
				}
				return tagCodecOf(kc), nil
			}
			kc, err := Lookup[K]()
			if err != nil {
				return nil, err
			}
			return tagCodecOf(kc), nil
		}
	}
}

// TagFrom computes the tag from the container context instead of reading it.
// Decode picks the variant whose tag equals fn(ctx); Encode fails unless
// fn(ctx) equals the tag of the value's variant. Nothing is written for the tag.
func TagFrom[C any, K comparable](fn func(ctx C) K) SchemaOption {
	return func(c *schemaConfig) {
		DecodeTagFrom(fn)(c)
		EncodeTagCheck(fn)(c)
	}
}

// DecodeTagFrom computes the tag used by Decode from the container context.
func DecodeTagFrom[C any, K comparable](fn func(ctx C) K) SchemaOption {
	return func(c *schemaConfig) {
		c.tag.declared = true
		c.tag.decodeFrom = computedTag(fn)
		c.tag.decodeFromKind = reflect.TypeFor[K]()
		c.tag.decodeFromNorm = normalizeTag[K]
	}
}

// EncodeTagCheck makes Encode verify that fn(ctx) equals the variant tag.
// It may be combined with a discriminant.
func EncodeTagCheck[C any, K comparable](fn func(ctx C) K) SchemaOption {
	return func(c *schemaConfig) {
		c.tag.declared = true
		c.tag.check = computedTag(fn)
		c.tag.checkKind = reflect.TypeFor[K]()
	}
}

func computedTag[C any, K comparable](fn func(ctx C) K) func(any) (any, error) {
	return func(ctx any) (any, error) {
		c, err := ContextAs[C](ctx)
		if err != nil {
			return nil, err
		}
		return fn(c), nil
	}
}

// tagCodec is a discriminant codec with the tag type erased.
type tagCodec struct {
	encode func(ctx, tag any, w io.Writer) error
	decode func(ctx any, r io.Reader) (any, error)
	size   func(ctx, tag any) int
}

func tagCodecOf[K comparable](c Codec[K]) *tagCodec {
	return &tagCodec{
		encode: func(ctx, tag any, w io.Writer) error {
			k := tag.(K)
			return c.Encode(ctx, &k, w)
		},
		decode: func(ctx any, r io.Reader) (any, error) {
			k, err := c.Decode(ctx, r)
			if err != nil {
				return nil, err
			}
			return k, nil
		},
		size: func(ctx, tag any) int {
			k := tag.(K)
			return c.EncodedSize(ctx, &k)
		},
	}
}

// normalizeTag converts a literal tag to K. Integer literals of another type
// convert when the value fits.
func normalizeTag[K comparable](lit any) (any, error) {
	if k, ok := lit.(K); ok {
		return k, nil
	}
	want := reflect.TypeFor[K]()
	v := reflect.ValueOf(lit)
	if !v.IsValid() || !isInteger(v.Kind()) || !isInteger(want.Kind()) {
		return nil, fmt.Errorf("tag %v (%T) is not a %s", lit, lit, want)
	}
	out := reflect.New(want).Elem()
	overflow := fmt.Errorf("tag %v overflows %s", lit, want)
	if isSigned(v.Kind()) {
		i := v.Int()
		switch {
		case isSigned(want.Kind()):
			if out.OverflowInt(i) {
				return nil, overflow
			}
			out.SetInt(i)
		default:
			if i < 0 || out.OverflowUint(uint64(i)) {
				return nil, overflow
			}
			out.SetUint(uint64(i))
		}
	} else {
		u := v.Uint()
		switch {
		case isSigned(want.Kind()):
			if u > math.MaxInt64 || out.OverflowInt(int64(u)) {
				return nil, overflow
			}
			out.SetInt(int64(u))
		default:
			if out.OverflowUint(u) {
				return nil, overflow
			}
			out.SetUint(u)
		}
	}
	return out.Interface(), nil
}

func isInteger(k reflect.Kind) bool {
	return isSigned(k) || (k >= reflect.Uint && k <= reflect.Uint64)
}

func isSigned(k reflect.Kind) bool {
	return k >= reflect.Int && k <= reflect.Int64
}

// schemaName names T by its Go type name, or its type literal when unnamed.
func schemaName[T any]() string {
	typ := reflect.TypeFor[T]()
	if typ.Name() != "" {
		return typ.Name()
	}
	return typ.String()
}

// Compile validates the schema and builds its plan.
func (s *Schema[T]) Compile() (*Plan[T], error) {
	var cfg schemaConfig
	for _, opt := range s.opts {
		opt(&cfg)
	}

	name := cfg.name
	if name == "" {
		name = schemaName[T]()
	}

	plan := &Plan[T]{
		name:   name,
		mode:   cfg.mode,
		bind:   cfg.bind,
		fixed:  cfg.fixed,
		strict: cfg.strict,
	}

	if !s.union {
		if cfg.tag.declared {
			return nil, newSchemaError(ErrTagOnStruct, name, "", "")
		}
		if len(s.variants) > 0 {
			return nil, newSchemaError(ErrInvalidSchema, name, "", "record declares variants")
		}
		rec, err := bindRecord(name, s.fields)
		if err != nil {
			return nil, err
		}
		plan.shape = recordShape(s.fields)
		plan.variants = []variantStep[T]{rec}
		emitSchemaCompiled(name, plan.shape, len(s.fields), 1)
		return plan, nil
	}

	if reflect.TypeFor[T]().Kind() != reflect.Interface {
		return nil, newSchemaError(ErrInvalidSchema, name, "", "union type must be an interface")
	}
	if len(s.fields) > 0 {
		return nil, newSchemaError(ErrInvalidSchema, name, "", "union declares record fields")
	}
	if len(s.variants) == 0 {
		return nil, newSchemaError(ErrInvalidSchema, name, "", "union has no variants")
	}

	tag, normalize, err := buildTagPlan(name, &cfg.tag)
	if err != nil {
		return nil, err
	}
	plan.shape = ShapeUnion
	plan.tag = tag

	seen := make(map[any]string, len(s.variants))
	fields := 0
	for i, def := range s.variants {
		if def.bind == nil {
			return nil, newSchemaError(ErrInvalidSchema, name, fmt.Sprintf("variant %d", i), "zero VariantDef")
		}
		label := def.label()
		lit, err := normalize(def.tag)
		if err != nil {
			return nil, newSchemaError(ErrTypeMismatch, name, label, err.Error())
		}
		if prev, dup := seen[lit]; dup {
			return nil, newSchemaError(ErrDuplicateTag, name, label, fmt.Sprintf("tag %v already used by %s", lit, prev))
		}
		seen[lit] = label

		step, err := def.bind(name, lit)
		if err != nil {
			return nil, err
		}
		plan.variants = append(plan.variants, step)
		fields += len(step.layout().Fields)
	}

	emitSchemaCompiled(name, plan.shape, fields, len(plan.variants))
	return plan, nil
}

// buildTagPlan validates the tag configuration of a union.
func buildTagPlan(name string, tc *tagConfig) (*tagPlan, func(any) (any, error), error) {
	switch {
	case !tc.discriminant && tc.decodeFrom == nil:
		return nil, nil, newSchemaError(ErrMissingTag, name, "", "")
	case tc.discriminant && tc.decodeFrom != nil:
		return nil, nil, newSchemaError(ErrConflictingTag, name, "", "")
	}

	tp := &tagPlan{
		decodeFrom: tc.decodeFrom,
		check:      tc.check,
	}

	kind := tc.decodeFromKind
	normalize := tc.decodeFromNorm
	if tc.discriminant {
		codec, err := tc.codec()
		if err != nil {
			sentinel := ErrNoCodec
			if errors.Is(err, ErrTypeMismatch) {
				sentinel = ErrTypeMismatch
			}
			return nil, nil, newSchemaError(sentinel, name, "", err.Error())
		}
		tp.codec = codec
		tp.encodeCtx = tc.encodeCtx
		tp.decodeCtx = tc.decodeCtx
		kind = tc.kind
		normalize = tc.normalize
	}
	if tc.check != nil && tc.checkKind != kind {
		return nil, nil, newSchemaError(ErrTypeMismatch, name, "",
			fmt.Sprintf("tag check yields %s, tags are %s", tc.checkKind, kind))
	}
	tp.kind = kind.String()
	return tp, normalize, nil
}

// recordShape classifies a record by its fields.
func recordShape[T any](fields []FieldDef[T]) Shape {
	if len(fields) == 0 {
		return ShapeUnit
	}
	for _, f := range fields {
		if f.name != "" {
			return ShapeNamed
		}
	}
	return ShapePositional
}
