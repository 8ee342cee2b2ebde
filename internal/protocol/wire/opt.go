package wire

// Opt holds an optional field value. The zero Opt is absent, which is distinct
// from a present zero value.
type Opt[T any] struct {
	v  T
	ok bool
}

func Some[T any](v T) Opt[T] {
	return Opt[T]{v: v, ok: true}
}

func None[T any]() Opt[T] {
	return Opt[T]{}
}

func (o Opt[T]) Get() (T, bool) {
	return o.v, o.ok
}

func (o Opt[T]) IsSet() bool {
	return o.ok
}

// Or returns the value when present and def otherwise.
func (o Opt[T]) Or(def T) T {
	if o.ok {
		return o.v
	}
	return def
}

func (o *Opt[T]) Set(v T) {
	o.v = v
	o.ok = true
}

func (o *Opt[T]) Clear() {
	var zero T
	o.v = zero
	o.ok = false
}
