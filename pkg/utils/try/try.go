// Package try shortens handling of (value, error) pairs in tests.
//
//	doll := try.To(store.Get(ctx, id)).OrFatal(t)
package try

// something have method `Fatal`, like *testing.T.
type Fataler interface {
	Fatal(...any)
}

// Either is a pair of (T, error).
//
// When error is nil it is "ok" and T is valid. Otherwise T is the zero value.
type Either[T any] interface {
	Get() (T, error)

	// OrFatal returns T when ok. Otherwise, it calls ftl.Fatal(err).
	//
	// Helper() of ftl is called before Fatal, if it has.
	OrFatal(ftl Fataler) T

	// OrDefault returns T when ok, or d.
	OrDefault(d T) T
}

func To[T any](value T, err error) Either[T] {
	return either[T]{value: value, err: err}
}

// Map converts the value of ok Either. Errors are passed through.
func Map[T any, R any](e Either[T], mapper func(T) R) Either[R] {
	v, err := e.Get()
	if err != nil {
		return either[R]{err: err}
	}
	return either[R]{value: mapper(v)}
}

type either[T any] struct {
	value T
	err   error
}

func (e either[T]) Get() (T, error) {
	if e.err != nil {
		return *new(T), e.err
	}
	return e.value, nil
}

func (e either[T]) OrDefault(d T) T {
	if e.err != nil {
		return d
	}
	return e.value
}

func (e either[T]) OrFatal(ftl Fataler) T {
	if e.err == nil {
		return e.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(e.err)
	return *new(T)
}
