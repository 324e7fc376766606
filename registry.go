package bitform

import (
	"fmt"
	"reflect"
	"sync"
)

var (
	registry   = make(map[reflect.Type]any)
	plans      = make(map[reflect.Type]any)
	registryMu sync.RWMutex
)

// Register makes c the default codec of T.
// Schema fields of type T without a hook or adapter use it, and so does Lazy[T].
func Register[T any](c Codec[T]) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reflect.TypeFor[T]()] = c
}

// Lookup returns the default codec of T: a registered codec, a builtin leaf
// codec, or the self-coding methods of T, in that order.
func Lookup[T any]() (Codec[T], error) {
	typ := reflect.TypeFor[T]()

	registryMu.RLock()
	c, ok := registry[typ]
	registryMu.RUnlock()
	if ok {
		return c.(Codec[T]), nil
	}

	if c, ok := builtins[typ]; ok {
		return c.(Codec[T]), nil
	}

	if isSelfCoding[T]() {
		return selfCodec[T]{}, nil
	}

	return nil, fmt.Errorf("%w for %s", ErrNoCodec, typ)
}

// Use returns a cached plan or compiles s and caches it.
// The plan is cached by T and registered as the default codec of T, so a
// second call for the same type returns the first plan whatever schema it is
// given.
func Use[T any](s *Schema[T]) (*Plan[T], error) {
	typ := reflect.TypeFor[T]()

	// Fast path: read-lock cache check
	registryMu.RLock()
	if cached, ok := plans[typ]; ok {
		registryMu.RUnlock()
		return cached.(*Plan[T]), nil
	}
	registryMu.RUnlock()

	// Compile outside the lock; field binding looks up default codecs.
	plan, err := s.Compile()
	if err != nil {
		return nil, err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	// Double-check pattern
	if cached, ok := plans[typ]; ok {
		return cached.(*Plan[T]), nil
	}

	plans[typ] = plan
	registry[typ] = Codec[T](plan)
	return plan, nil
}

// Reset clears registered codecs and cached plans. Builtin codecs survive.
// This is primarily useful for test isolation.
func Reset() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[reflect.Type]any)
	plans = make(map[reflect.Type]any)
}

// typeLabel names T for messages and signals.
func typeLabel[T any]() string {
	return reflect.TypeFor[T]().String()
}
