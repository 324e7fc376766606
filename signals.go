package bitform

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for codec events.
var (
	SignalSchemaCompiled    = capitan.NewSignal("bitform.schema.compiled", "Schema compiled into a plan")
	SignalMarshalComplete   = capitan.NewSignal("bitform.marshal.complete", "Marshal operation finished")
	SignalUnmarshalComplete = capitan.NewSignal("bitform.unmarshal.complete", "Unmarshal operation finished")
	SignalVerifyFailed      = capitan.NewSignal("bitform.verify.failed", "Strict plan produced inconsistent output")
)

// Keys for typed event data.
var (
	KeyTypeName     = capitan.NewStringKey("type_name")
	KeyShape        = capitan.NewStringKey("shape")
	KeyFieldCount   = capitan.NewIntKey("field_count")
	KeyVariantCount = capitan.NewIntKey("variant_count")
	KeySize         = capitan.NewIntKey("size")
	KeyRemaining    = capitan.NewIntKey("remaining")
	KeyDuration     = capitan.NewDurationKey("duration")
	KeyError        = capitan.NewErrorKey("error")
)

// emitSchemaCompiled emits an event when a schema compiles.
func emitSchemaCompiled(typeName string, shape Shape, fields, variants int) {
	capitan.Emit(context.Background(), SignalSchemaCompiled,
		KeyTypeName.Field(typeName),
		KeyShape.Field(string(shape)),
		KeyFieldCount.Field(fields),
		KeyVariantCount.Field(variants),
	)
}

// emitMarshalComplete emits an event when marshal finishes.
func emitMarshalComplete(typeName string, size int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(context.Background(), SignalMarshalComplete, fields...)
	} else {
		capitan.Emit(context.Background(), SignalMarshalComplete, fields...)
	}
}

// emitUnmarshalComplete emits an event when unmarshal finishes.
func emitUnmarshalComplete(typeName string, size, remaining int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeySize.Field(size),
		KeyRemaining.Field(remaining),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(context.Background(), SignalUnmarshalComplete, fields...)
	} else {
		capitan.Emit(context.Background(), SignalUnmarshalComplete, fields...)
	}
}

// emitVerifyFailed emits an event when a strict plan rejects its own output.
func emitVerifyFailed(typeName string, err error) {
	capitan.Error(context.Background(), SignalVerifyFailed,
		KeyTypeName.Field(typeName),
		KeyError.Field(err),
	)
}
