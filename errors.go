package bitform

import (
	"errors"
	"fmt"
)

// Sentinel errors for programmatic error handling.
// Use errors.Is() to check for these error types.
var (
	// ErrTag indicates encoding or decoding a union tag failed.
	ErrTag = errors.New("tag failed")

	// ErrField indicates encoding or decoding a field failed.
	ErrField = errors.New("field failed")

	// ErrRemainingBytes indicates input was left over after a decode.
	ErrRemainingBytes = errors.New("bytes left in the input")

	// ErrUnexpectedLength indicates a value's length disagrees with its context.
	ErrUnexpectedLength = errors.New("unexpected length")

	// ErrCustom is the default sentinel of message errors.
	ErrCustom = errors.New("codec failure")

	// ErrWrapped marks a foreign error carried through the taxonomy.
	ErrWrapped = errors.New("wrapped failure")

	// ErrContext indicates a codec was handed a context it does not support.
	ErrContext = errors.New("unsupported context")

	// ErrUnknownTag indicates a decoded tag matches no variant.
	ErrUnknownTag = errors.New("unknown tag")

	// ErrTagMismatch indicates the tag computed from the context differs from
	// the tag of the variant being encoded.
	ErrTagMismatch = errors.New("tag does not match variant")

	// ErrNoVariant indicates a union value matches no declared variant.
	ErrNoVariant = errors.New("no matching variant")

	// ErrInvalidValue indicates decoded bytes are not a valid value.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInconsistent indicates the three capabilities of a codec disagree.
	ErrInconsistent = errors.New("inconsistent encoding")

	// ErrInvalidSchema indicates a schema is malformed.
	ErrInvalidSchema = errors.New("invalid schema")

	// ErrTagOnStruct indicates a record schema declares a tag.
	ErrTagOnStruct = errors.New("tag declared on a record")

	// ErrMissingTag indicates a union has no tag source.
	ErrMissingTag = errors.New("union has no tag source")

	// ErrConflictingTag indicates a union has both a discriminant and a
	// computed tag.
	ErrConflictingTag = errors.New("union has a discriminant and a computed tag")

	// ErrConflictingHooks indicates a field has a combined hook and a split hook.
	ErrConflictingHooks = errors.New("field has a combined hook and a split hook")

	// ErrDuplicateTag indicates two variants share a tag.
	ErrDuplicateTag = errors.New("duplicate variant tag")

	// ErrTypeMismatch indicates an option does not fit the type it is applied to.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrNoCodec indicates no codec is available for a type.
	ErrNoCodec = errors.New("no codec")
)

// Op names the direction of a failed call.
type Op string

const (
	// OpEncode marks a failure while encoding.
	OpEncode Op = "encode"

	// OpDecode marks a failure while decoding.
	OpDecode Op = "decode"
)

// TagError represents a failure encoding, decoding or checking a union tag.
type TagError struct {
	Type  string // Union the tag belongs to
	Op    Op     // Direction that failed
	Cause error  // Underlying failure
}

func (e *TagError) Error() string {
	return fmt.Sprintf("%s tag of %s: %v", e.Op, e.Type, e.Cause)
}

func (e *TagError) Unwrap() []error {
	return withCause(ErrTag, e.Cause)
}

// FieldError represents a failure in one field of a record or variant.
type FieldError struct {
	Type  string // Record or variant owning the field
	Field string // Field name, or field_<i> for positional fields
	Op    Op     // Direction that failed
	Cause error  // Underlying failure
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s field %s of %s: %v", e.Op, e.Field, e.Type, e.Cause)
}

func (e *FieldError) Unwrap() []error {
	return withCause(ErrField, e.Cause)
}

// RemainingBytesError reports input left over after a whole-buffer decode.
type RemainingBytesError struct {
	Count int
}

func (e *RemainingBytesError) Error() string {
	return fmt.Sprintf("%d bytes left in the input", e.Count)
}

func (e *RemainingBytesError) Unwrap() error {
	return ErrRemainingBytes
}

// LengthError reports a value whose length disagrees with its Len context.
type LengthError struct {
	Expected int
	Received int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("unexpected length %d, expected %d", e.Received, e.Expected)
}

func (e *LengthError) Unwrap() error {
	return ErrUnexpectedLength
}

// MessageError is a free-form failure under a sentinel, optionally keeping a cause.
type MessageError struct {
	Err   error  // Sentinel; ErrCustom when unspecified
	Msg   string // Human-readable message
	Cause error  // Optional underlying failure
}

func (e *MessageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}

func (e *MessageError) Unwrap() []error {
	sentinel := e.Err
	if sentinel == nil {
		sentinel = ErrCustom
	}
	return withCause(sentinel, e.Cause)
}

// WrappedError carries a foreign failure, typically I/O, through the taxonomy.
type WrappedError struct {
	Cause error
}

func (e *WrappedError) Error() string {
	return e.Cause.Error()
}

func (e *WrappedError) Unwrap() []error {
	return withCause(ErrWrapped, e.Cause)
}

// UnknownTagError reports a decoded tag that matches no variant.
type UnknownTagError struct {
	Type string // Union being decoded
	Tag  any    // Raw tag value
}

func (e *UnknownTagError) Error() string {
	return fmt.Sprintf("unknown tag value %v for %s", e.Tag, e.Type)
}

func (e *UnknownTagError) Unwrap() error {
	return ErrUnknownTag
}

// SchemaError represents a schema rejected at compile time.
type SchemaError struct {
	Err    error  // Underlying sentinel error (ErrMissingTag, etc.)
	Schema string // Schema name
	Field  string // Field or variant that triggered the error
	Detail string // Optional detail
}

func (e *SchemaError) Error() string {
	msg := e.Err.Error()
	if e.Detail != "" {
		msg = msg + ": " + e.Detail
	}
	if e.Field != "" {
		return fmt.Sprintf("schema %s (field %s): %s", e.Schema, e.Field, msg)
	}
	return fmt.Sprintf("schema %s: %s", e.Schema, msg)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// Wrap converts a foreign failure into a WrappedError.
// Errors already in the taxonomy pass through unchanged, and nil stays nil.
func Wrap(err error) error {
	switch err.(type) {
	case nil:
		return nil
	case *TagError, *FieldError, *RemainingBytesError, *LengthError,
		*MessageError, *WrappedError, *UnknownTagError:
		return err
	}
	return &WrappedError{Cause: err}
}

// NewError creates a message error under ErrCustom.
func NewError(msg string) error {
	return &MessageError{Err: ErrCustom, Msg: msg}
}

// Errorf creates a message error under the given sentinel.
func Errorf(sentinel error, format string, args ...any) error {
	return &MessageError{Err: sentinel, Msg: fmt.Sprintf(format, args...)}
}

// WithContext attaches a static label to err, keeping it as the cause.
func WithContext(label string, err error) error {
	if err == nil {
		return nil
	}
	return &MessageError{Err: ErrCustom, Msg: label, Cause: err}
}

// FieldPath returns the names of the nested fields err passed through,
// outermost first.
func FieldPath(err error) []string {
	var path []string
	for err != nil {
		var fe *FieldError
		if !errors.As(err, &fe) {
			break
		}
		path = append(path, fe.Field)
		err = fe.Cause
	}
	return path
}

// withCause lists a sentinel and an optional cause for multi-error unwrapping.
func withCause(sentinel, cause error) []error {
	if cause == nil {
		return []error{sentinel}
	}
	return []error{sentinel, cause}
}

// newTagError creates a TagError.
func newTagError(typ string, op Op, cause error) error {
	return &TagError{
		Type:  typ,
		Op:    op,
		Cause: Wrap(cause),
	}
}

// newFieldError creates a FieldError.
func newFieldError(typ, field string, op Op, cause error) error {
	return &FieldError{
		Type:  typ,
		Field: field,
		Op:    op,
		Cause: Wrap(cause),
	}
}

// newSchemaError creates a SchemaError.
func newSchemaError(sentinel error, schema, field, detail string) error {
	return &SchemaError{
		Err:    sentinel,
		Schema: schema,
		Field:  field,
		Detail: detail,
	}
}

// newContextError reports a context of the wrong type.
func newContextError(want string, got any) error {
	return Errorf(ErrContext, "unsupported context %T, want %s", got, want)
}
