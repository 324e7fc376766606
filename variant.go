package bitform

import (
	"fmt"
	"io"
)

// VariantDef is one case of a union over the interface type T.
type VariantDef[T any] struct {
	tag   any
	label func() string
	bind  func(union string, tag any) (variantStep[T], error)
}

// Case declares the variant V of the union T, selected by tag.
// V must implement T with value receivers; its fields are encoded after the tag.
func Case[T, V any](tag any, fields ...FieldDef[V]) VariantDef[T] {
	return VariantDef[T]{
		tag:   tag,
		label: schemaName[V],
		bind: func(union string, tag any) (variantStep[T], error) {
			return bindVariant[T, V](union, tag, fields)
		},
	}
}

// variantStep is a bound variant of T. A record is a single variant that
// always matches.
type variantStep[T any] interface {
	tag() any
	matches(v *T) bool
	encode(ctx any, v *T, w io.Writer) error
	decode(ctx any, r io.Reader) (T, error)
	size(ctx any, v *T) int
	layout() VariantLayout
}

type variantPlan[T, V any] struct {
	lit    any
	always bool
	fields []fieldStep[V]
	desc   VariantLayout
}

func bindFields[V any](owner string, defs []FieldDef[V]) ([]fieldStep[V], []FieldLayout, error) {
	steps := make([]fieldStep[V], 0, len(defs))
	layouts := make([]FieldLayout, 0, len(defs))
	for i, def := range defs {
		if def.bind == nil {
			return nil, nil, newSchemaError(ErrInvalidSchema, owner, fmt.Sprintf("field_%d", i), "zero FieldDef")
		}
		step, err := def.bind(owner, i)
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, step)
		layouts = append(layouts, step.layout())
	}
	return steps, layouts, nil
}

// bindRecord binds the fields of a plain record.
func bindRecord[T any](name string, defs []FieldDef[T]) (variantStep[T], error) {
	steps, layouts, err := bindFields(name, defs)
	if err != nil {
		return nil, err
	}
	return &variantPlan[T, T]{
		always: true,
		fields: steps,
		desc:   VariantLayout{Name: name, Fields: layouts},
	}, nil
}

// bindVariant binds a union case after checking that V implements T.
func bindVariant[T, V any](union string, tag any, defs []FieldDef[V]) (variantStep[T], error) {
	label := schemaName[V]()
	var zero V
	if _, ok := any(zero).(T); !ok {
		return nil, newSchemaError(ErrTypeMismatch, union, label,
			fmt.Sprintf("%s does not implement %s with value receivers", typeLabel[V](), typeLabel[T]()))
	}
	owner := union + "." + label
	steps, layouts, err := bindFields(owner, defs)
	if err != nil {
		return nil, err
	}
	return &variantPlan[T, V]{
		lit:    tag,
		fields: steps,
		desc: VariantLayout{
			Name:   label,
			Tag:    fmt.Sprint(tag),
			Fields: layouts,
		},
	}, nil
}

func (p *variantPlan[T, V]) tag() any {
	return p.lit
}

func (p *variantPlan[T, V]) matches(v *T) bool {
	if p.always {
		return true
	}
	_, ok := any(*v).(V)
	return ok
}

// record returns the variant value inside v. Records share v itself.
func (p *variantPlan[T, V]) record(v *T) *V {
	if p.always {
		return any(v).(*V)
	}
	rec := any(*v).(V)
	return &rec
}

func (p *variantPlan[T, V]) encode(ctx any, v *T, w io.Writer) error {
	rec := p.record(v)
	for _, f := range p.fields {
		if err := f.encode(ctx, rec, w); err != nil {
			return err
		}
	}
	return nil
}

func (p *variantPlan[T, V]) decode(ctx any, r io.Reader) (T, error) {
	var rec V
	for _, f := range p.fields {
		if err := f.decode(ctx, &rec, r); err != nil {
			var zero T
			return zero, err
		}
	}
	return any(rec).(T), nil
}

func (p *variantPlan[T, V]) size(ctx any, v *T) int {
	rec := p.record(v)
	n := 0
	for _, f := range p.fields {
		n += f.size(ctx, rec)
	}
	return n
}

func (p *variantPlan[T, V]) layout() VariantLayout {
	return p.desc
}
