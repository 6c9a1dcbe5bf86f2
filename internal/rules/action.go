package rules

// Action mutates the context. Actions are the only permitted writers.
type Action func(Context) error

// Set writes value to key. A key already holding a non-string value yields a
// *TypeMismatchError and is left untouched.
func Set(key, value string) Action {
	return func(ctx Context) error {
		return writeString(ctx, key, value)
	}
}

// SetDefault writes value to key only when the key is absent or empty.
func SetDefault(key, value string) Action {
	unset := Unset(key)
	return func(ctx Context) error {
		ok, err := unset(ctx)
		if err != nil || !ok {
			return err
		}
		return ctx.Write(key, value)
	}
}

// Copy writes the string held by src to dst. A missing src leaves dst alone.
// Both keys must hold strings when present.
func Copy(dst, src string) Action {
	return func(ctx Context) error {
		v, ok, err := ReadString(ctx, src)
		if err != nil || !ok {
			return err
		}
		return writeString(ctx, dst, v)
	}
}

// Delete removes key from the context.
func Delete(key string) Action {
	return func(ctx Context) error {
		return ctx.Delete(key)
	}
}

// Sequence runs actions in order and stops at the first error. Inside a rule
// the writes of a failed sequence are discarded as a unit.
func Sequence(actions ...Action) Action {
	return func(ctx Context) error {
		for _, a := range actions {
			if err := a(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func writeString(ctx Context, key, value string) error {
	if _, _, err := ReadString(ctx, key); err != nil {
		return err
	}
	return ctx.Write(key, value)
}
