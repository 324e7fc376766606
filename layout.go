package bitform

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Layout describes a compiled plan: what it writes, in which order, and where
// each field takes its context and codec from.
type Layout struct {
	Name     string          `yaml:"name"`
	Shape    Shape           `yaml:"shape"`
	Context  string          `yaml:"context"`
	Strict   bool            `yaml:"strict,omitempty"`
	Tag      *TagLayout      `yaml:"tag,omitempty"`
	Fields   []FieldLayout   `yaml:"fields,omitempty"`
	Variants []VariantLayout `yaml:"variants,omitempty"`
}

// TagLayout describes the tag of a union.
type TagLayout struct {
	Type    string `yaml:"type"`
	Source  string `yaml:"source"`
	Context string `yaml:"context,omitempty"`
	Checked bool   `yaml:"checked,omitempty"`
}

// VariantLayout describes one case of a union.
type VariantLayout struct {
	Name   string        `yaml:"name"`
	Tag    string        `yaml:"tag,omitempty"`
	Fields []FieldLayout `yaml:"fields,omitempty"`
}

// FieldLayout describes one field. GoField and Kind name the exported struct
// field the accessor points into, when there is one.
type FieldLayout struct {
	Name    string `yaml:"name"`
	GoField string `yaml:"go_field,omitempty"`
	Kind    string `yaml:"kind,omitempty"`
	Type    string `yaml:"type"`
	Context string `yaml:"context"`
	Codec   string `yaml:"codec"`
	Skip    bool   `yaml:"skip,omitempty"`
}

// Layout describes the plan.
func (p *Plan[T]) Layout() Layout {
	l := Layout{
		Name:   p.name,
		Shape:  p.shape,
		Strict: p.strict,
	}
	switch p.mode {
	case ctxBound:
		l.Context = "bound " + p.bind[dirEncode].label()
		if dec := p.bind[dirDecode].label(); dec != p.bind[dirEncode].label() {
			l.Context += " / " + dec
		}
	case ctxFixed:
		l.Context = fmt.Sprintf("fixed %T(%v)", p.fixed, p.fixed)
	default:
		l.Context = "caller"
	}

	if p.tag == nil {
		l.Fields = p.variants[0].layout().Fields
		return l
	}

	tl := &TagLayout{
		Type:    p.tag.kind,
		Checked: p.tag.check != nil,
	}
	if p.tag.codec != nil {
		tl.Source = "discriminant"
		tl.Context = p.tag.encodeCtx.label
		if dec := p.tag.decodeCtx.label; dec != tl.Context {
			tl.Context += " / " + dec
		}
	} else {
		tl.Source = "computed"
	}
	l.Tag = tl
	for _, vs := range p.variants {
		l.Variants = append(l.Variants, vs.layout())
	}
	return l
}

// YAML renders the layout as YAML.
func (l Layout) YAML() ([]byte, error) {
	return yaml.Marshal(l)
}

// label names the bound type, or caller for a direction passed through.
func (b binding) label() string {
	if b.conv == nil {
		return "caller"
	}
	return b.typ
}

func contextLabel(ctx any) string {
	if _, ok := ctx.(None); ok {
		return "none"
	}
	return fmt.Sprintf("%T(%v)", ctx, ctx)
}
