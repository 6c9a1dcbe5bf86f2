package rules

import "maps"

// Context is the property bag a policy reads and writes. Keys are qualified
// property names such as "tracking.ProcessName".
type Context interface {
	Read(key string) (any, bool)
	Write(key string, value any) error
	Delete(key string) error
}

// MapContext is an in-memory Context that accepts values of any type.
type MapContext map[string]any

func (m MapContext) Read(key string) (any, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapContext) Write(key string, value any) error {
	m[key] = value
	return nil
}

func (m MapContext) Delete(key string) error {
	delete(m, key)
	return nil
}

// Snapshot returns a shallow copy of the context.
func (m MapContext) Snapshot() MapContext {
	if m == nil {
		return MapContext{}
	}
	return maps.Clone(m)
}

// ReadString reads key as a string. A missing key is not an error: it returns
// ok == false. A present value of another type yields a *TypeMismatchError.
func ReadString(ctx Context, key string) (value string, ok bool, err error) {
	raw, ok := ctx.Read(key)
	if !ok || raw == nil {
		return "", false, nil
	}
	s, isString := raw.(string)
	if !isString {
		return "", true, &TypeMismatchError{Key: key, Want: "string", Got: raw}
	}
	return s, true, nil
}
