package bitform

import (
	"fmt"
	"io"
	"reflect"

	"github.com/zoobzio/sentinel"
)

// FieldDef is one field of a record or variant of type T.
type FieldDef[T any] struct {
	name string
	bind func(owner string, index int) (fieldStep[T], error)
}

// Field declares a field of T. access returns the field inside the record;
// its result type fixes the field type F.
func Field[T, F any](name string, access func(*T) *F, opts ...FieldOption) FieldDef[T] {
	return FieldDef[T]{
		name: name,
		bind: func(owner string, index int) (fieldStep[T], error) {
			return bindField(owner, name, index, access, opts)
		},
	}
}

// Positional declares an unnamed field. Errors report it as field_<i>.
func Positional[T, F any](access func(*T) *F, opts ...FieldOption) FieldDef[T] {
	return Field("", access, opts...)
}

type fieldConfig struct {
	encodeCtx  any
	decodeCtx  any
	with       any
	encodeWith any
	decodeWith any
	sizeWith   any
	via        any
	viaType    string
	skip       any
}

// FieldOption configures a field.
// Options are checked against the record and field types at Compile.
type FieldOption func(*fieldConfig)

type ctxFunc[T any] func(ctx any, v *T) (any, error)

type constCtx struct {
	v any
}

type skipFunc[T any] func(ctx any, v *T) (bool, error)

type encodeHook[F any] func(ctx any, v *F, w io.Writer) error

type decodeHook[F any] func(ctx any, r io.Reader) (F, error)

type sizeHook[F any] func(ctx any, v *F) int

type viaBinder[F any] func() (Codec[F], error)

func fieldCtx[C, T, FC any](fn func(ctx C, v *T) FC) ctxFunc[T] {
	return func(ctx any, v *T) (any, error) {
		c, err := ContextAs[C](ctx)
		if err != nil {
			return nil, err
		}
		return fn(c, v), nil
	}
}

// Ctx overrides the context of a field in both directions. fn receives the
// container context and the record; during decode only earlier fields are
// populated.
func Ctx[C, T, FC any](fn func(ctx C, v *T) FC) FieldOption {
	f := fieldCtx(fn)
	return func(c *fieldConfig) {
		c.encodeCtx = f
		c.decodeCtx = f
	}
}

// EncodeCtx overrides the context of a field when encoding and sizing.
func EncodeCtx[C, T, FC any](fn func(ctx C, v *T) FC) FieldOption {
	f := fieldCtx(fn)
	return func(c *fieldConfig) {
		c.encodeCtx = f
	}
}

// DecodeCtx overrides the context of a field when decoding.
func DecodeCtx[C, T, FC any](fn func(ctx C, v *T) FC) FieldOption {
	f := fieldCtx(fn)
	return func(c *fieldConfig) {
		c.decodeCtx = f
	}
}

// CtxValue gives a field the constant context v in both directions.
func CtxValue(v any) FieldOption {
	return func(c *fieldConfig) {
		c.encodeCtx = constCtx{v: v}
		c.decodeCtx = constCtx{v: v}
	}
}

// With replaces the default codec of a field.
func With[F any](codec Codec[F]) FieldOption {
	return func(c *fieldConfig) {
		c.with = codec
	}
}

// EncodeWith replaces how a field is encoded. Unless SizeWith is also given,
// the field is sized by running fn into a counting sink.
func EncodeWith[F any](fn func(ctx any, v *F, w io.Writer) error) FieldOption {
	return func(c *fieldConfig) {
		c.encodeWith = encodeHook[F](fn)
	}
}

// DecodeWith replaces how a field is decoded.
func DecodeWith[F any](fn func(ctx any, r io.Reader) (F, error)) FieldOption {
	return func(c *fieldConfig) {
		c.decodeWith = decodeHook[F](fn)
	}
}

// SizeWith replaces how a field is sized.
func SizeWith[F any](fn func(ctx any, v *F) int) FieldOption {
	return func(c *fieldConfig) {
		c.sizeWith = sizeHook[F](fn)
	}
}

// Via carries a field of type F as the adapter A that wrap produces.
// A must be encodable through Lookup, which holds for every self-coding adapter.
func Via[F any, A Adapter[F]](wrap func(*F) A) FieldOption {
	return func(c *fieldConfig) {
		c.viaType = typeLabel[A]()
		c.via = viaBinder[F](func() (Codec[F], error) {
			codec, err := Lookup[A]()
			if err != nil {
				return nil, err
			}
			return adapted[F, A]{wrap: wrap, codec: codec}, nil
		})
	}
}

// SkipIf omits a field when pred holds. A skipped field writes nothing, reads
// nothing and decodes as its zero value.
func SkipIf[T any](pred func(v *T) bool) FieldOption {
	f := skipFunc[T](func(_ any, v *T) (bool, error) {
		return pred(v), nil
	})
	return func(c *fieldConfig) {
		c.skip = f
	}
}

// SkipIfCtx is SkipIf with access to the container context.
func SkipIfCtx[C, T any](pred func(ctx C, v *T) bool) FieldOption {
	f := skipFunc[T](func(ctx any, v *T) (bool, error) {
		c, err := ContextAs[C](ctx)
		if err != nil {
			return false, err
		}
		return pred(c, v), nil
	})
	return func(c *fieldConfig) {
		c.skip = f
	}
}

// adapted converts between a field and its adapter on every call.
type adapted[F any, A Adapter[F]] struct {
	wrap  func(*F) A
	codec Codec[A]
}

func (a adapted[F, A]) Encode(ctx any, v *F, w io.Writer) error {
	wire := a.wrap(v)
	return a.codec.Encode(ctx, &wire, w)
}

func (a adapted[F, A]) Decode(ctx any, r io.Reader) (F, error) {
	wire, err := a.codec.Decode(ctx, r)
	if err != nil {
		var zero F
		return zero, err
	}
	return wire.Natural(), nil
}

func (a adapted[F, A]) EncodedSize(ctx any, v *F) int {
	wire := a.wrap(v)
	return a.codec.EncodedSize(ctx, &wire)
}

// fieldStep is a bound field of the record type T.
type fieldStep[T any] interface {
	encode(ctx any, v *T, w io.Writer) error
	decode(ctx any, v *T, r io.Reader) error
	size(ctx any, v *T) int
	layout() FieldLayout
}

// fieldPlan is a field of type F inside T with its directives resolved.
type fieldPlan[T, F any] struct {
	owner     string
	label     string
	access    func(*T) *F
	encodeCtx ctxFunc[T]
	decodeCtx ctxFunc[T]
	skip      skipFunc[T]
	enc       encodeHook[F]
	dec       decodeHook[F]
	sz        sizeHook[F]
	desc      FieldLayout
}

func bindCtx[T any](opt any) (ctxFunc[T], bool) {
	switch f := opt.(type) {
	case nil:
		return nil, true
	case ctxFunc[T]:
		return f, true
	case constCtx:
		return func(any, *T) (any, error) { return f.v, nil }, true
	}
	return nil, false
}

// bindField resolves the options of a field against T and F.
func bindField[T, F any](owner, name string, index int, access func(*T) *F, opts []FieldOption) (fieldStep[T], error) {
	label := name
	if label == "" {
		label = fmt.Sprintf("field_%d", index)
	}
	if access == nil {
		return nil, newSchemaError(ErrInvalidSchema, owner, label, "nil accessor")
	}

	var cfg fieldConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	mismatch := func(what string, got any) error {
		return newSchemaError(ErrTypeMismatch, owner, label,
			fmt.Sprintf("%s %T does not fit field %s of %s", what, got, typeLabel[F](), typeLabel[T]()))
	}

	p := &fieldPlan[T, F]{
		owner:  owner,
		label:  label,
		access: access,
		desc: FieldLayout{
			Name:    label,
			Type:    typeLabel[F](),
			Context: "container",
			Codec:   "default",
		},
	}

	if fm, found := structField(access); found {
		p.desc.GoField = fm.Name
		p.desc.Kind = string(fm.Kind)
	}

	var ok bool
	if p.encodeCtx, ok = bindCtx[T](cfg.encodeCtx); !ok {
		return nil, mismatch("encode context", cfg.encodeCtx)
	}
	if p.decodeCtx, ok = bindCtx[T](cfg.decodeCtx); !ok {
		return nil, mismatch("decode context", cfg.decodeCtx)
	}
	switch {
	case cfg.encodeCtx != nil && cfg.decodeCtx != nil:
		p.desc.Context = "override"
	case cfg.encodeCtx != nil:
		p.desc.Context = "override on encode"
	case cfg.decodeCtx != nil:
		p.desc.Context = "override on decode"
	}

	if cfg.skip != nil {
		if p.skip, ok = cfg.skip.(skipFunc[T]); !ok {
			return nil, mismatch("skip predicate", cfg.skip)
		}
		p.desc.Skip = true
	}

	if cfg.with != nil && (cfg.encodeWith != nil || cfg.decodeWith != nil) {
		return nil, newSchemaError(ErrConflictingHooks, owner, label, "")
	}

	var base Codec[F]
	switch {
	case cfg.with != nil:
		if base, ok = cfg.with.(Codec[F]); !ok {
			return nil, mismatch("codec", cfg.with)
		}
		p.desc.Codec = "with"
	case cfg.via != nil:
		bind, isBinder := cfg.via.(viaBinder[F])
		if !isBinder {
			return nil, mismatch("adapter", cfg.via)
		}
		codec, err := bind()
		if err != nil {
			return nil, newSchemaError(ErrNoCodec, owner, label, err.Error())
		}
		base = codec
		p.desc.Codec = "via " + cfg.viaType
	}

	if cfg.encodeWith != nil {
		if p.enc, ok = cfg.encodeWith.(encodeHook[F]); !ok {
			return nil, mismatch("encode hook", cfg.encodeWith)
		}
	}
	if cfg.decodeWith != nil {
		if p.dec, ok = cfg.decodeWith.(decodeHook[F]); !ok {
			return nil, mismatch("decode hook", cfg.decodeWith)
		}
	}
	if cfg.sizeWith != nil {
		if p.sz, ok = cfg.sizeWith.(sizeHook[F]); !ok {
			return nil, mismatch("size hook", cfg.sizeWith)
		}
	}
	if p.enc != nil || p.dec != nil {
		p.desc.Codec = "split"
	}

	if base == nil && (p.enc == nil || p.dec == nil) {
		codec, err := Lookup[F]()
		if err != nil {
			return nil, newSchemaError(ErrNoCodec, owner, label, err.Error())
		}
		base = codec
	}

	if p.enc == nil {
		p.enc = base.Encode
	}
	if p.dec == nil {
		p.dec = base.Decode
	}
	if p.sz == nil {
		if cfg.encodeWith != nil {
			hook := p.enc
			p.sz = func(ctx any, v *F) int {
				return measure(func(w io.Writer) error { return hook(ctx, v, w) })
			}
		} else {
			p.sz = base.EncodedSize
		}
	}

	return p, nil
}

// structField finds the exported field of T that access points into, from the
// sentinel metadata of T. Accessors reaching through pointers or into
// unexported fields resolve to nothing.
func structField[T, F any](access func(*T) *F) (sentinel.FieldMetadata, bool) {
	typ := reflect.TypeFor[T]()
	if typ.Kind() != reflect.Struct || typ.Name() == "" {
		return sentinel.FieldMetadata{}, false
	}
	meta, err := sentinel.TryScan[T]()
	if err != nil || meta.TypeName != typ.Name() || meta.PackageName != typ.PkgPath() {
		return sentinel.FieldMetadata{}, false
	}

	rec := new(T)
	addr, ok := accessAddr(access, rec)
	if !ok {
		return sentinel.FieldMetadata{}, false
	}
	want := reflect.TypeFor[F]()
	base := reflect.ValueOf(rec).Elem()
	for _, fm := range meta.Fields {
		if fm.ReflectType != want {
			continue
		}
		if base.FieldByIndex(fm.Index).Addr().Pointer() == addr {
			return fm, true
		}
	}
	return sentinel.FieldMetadata{}, false
}

// accessAddr runs access on rec and returns the address it yields.
func accessAddr[T, F any](access func(*T) *F, rec *T) (addr uintptr, ok bool) {
	defer func() {
		if recover() != nil {
			addr, ok = 0, false
		}
	}()
	f := access(rec)
	if f == nil {
		return 0, false
	}
	return reflect.ValueOf(f).Pointer(), true
}

// skipped evaluates the skip predicate.
func (p *fieldPlan[T, F]) skipped(ctx any, v *T) (bool, error) {
	if p.skip == nil {
		return false, nil
	}
	return p.skip(ctx, v)
}

// context derives the field context from the container context.
func (p *fieldPlan[T, F]) context(override ctxFunc[T], ctx any, v *T) (any, error) {
	if override == nil {
		return ctx, nil
	}
	return override(ctx, v)
}

func (p *fieldPlan[T, F]) encode(ctx any, v *T, w io.Writer) error {
	skip, err := p.skipped(ctx, v)
	if err != nil {
		return newFieldError(p.owner, p.label, OpEncode, err)
	}
	if skip {
		return nil
	}
	fctx, err := p.context(p.encodeCtx, ctx, v)
	if err != nil {
		return newFieldError(p.owner, p.label, OpEncode, err)
	}
	if err := p.enc(fctx, p.access(v), w); err != nil {
		return newFieldError(p.owner, p.label, OpEncode, err)
	}
	return nil
}

func (p *fieldPlan[T, F]) decode(ctx any, v *T, r io.Reader) error {
	skip, err := p.skipped(ctx, v)
	if err != nil {
		return newFieldError(p.owner, p.label, OpDecode, err)
	}
	if skip {
		var zero F
		*p.access(v) = zero
		return nil
	}
	fctx, err := p.context(p.decodeCtx, ctx, v)
	if err != nil {
		return newFieldError(p.owner, p.label, OpDecode, err)
	}
	val, err := p.dec(fctx, r)
	if err != nil {
		return newFieldError(p.owner, p.label, OpDecode, err)
	}
	*p.access(v) = val
	return nil
}

func (p *fieldPlan[T, F]) size(ctx any, v *T) int {
	if skip, err := p.skipped(ctx, v); err != nil || skip {
		return 0
	}
	fctx, err := p.context(p.encodeCtx, ctx, v)
	if err != nil {
		return 0
	}
	return p.sz(fctx, p.access(v))
}

func (p *fieldPlan[T, F]) layout() FieldLayout {
	return p.desc
}
