package rules

import (
	"regexp"
	"slices"
	"strings"
)

// Predicate reports whether a rule applies to the current context. It must
// only read from the context.
type Predicate func(Context) (bool, error)

// Always holds for every context.
func Always() Predicate {
	return func(Context) (bool, error) { return true, nil }
}

// Unset holds when key is absent or holds the empty string.
func Unset(key string) Predicate {
	return func(ctx Context) (bool, error) {
		v, ok, err := ReadString(ctx, key)
		if err != nil {
			return false, err
		}
		return !ok || v == "", nil
	}
}

// IsSet holds when key holds a non-empty string.
func IsSet(key string) Predicate {
	return Not(Unset(key))
}

// Equals holds when key holds exactly value.
func Equals(key, value string) Predicate {
	return stringPredicate(key, func(v string) bool { return v == value })
}

// OneOf holds when key holds one of values.
func OneOf(key string, values ...string) Predicate {
	allowed := slices.Clone(values)
	return stringPredicate(key, func(v string) bool { return slices.Contains(allowed, v) })
}

// HasPrefix holds when key holds a string starting with prefix.
func HasPrefix(key, prefix string) Predicate {
	return stringPredicate(key, func(v string) bool { return strings.HasPrefix(v, prefix) })
}

// Matches holds when key holds a string matched by re.
func Matches(key string, re *regexp.Regexp) Predicate {
	return stringPredicate(key, re.MatchString)
}

// Not negates p.
func Not(p Predicate) Predicate {
	return func(ctx Context) (bool, error) {
		ok, err := p(ctx)
		if err != nil {
			return false, err
		}
		return !ok, nil
	}
}

// All holds when every predicate holds. An empty list holds.
func All(ps ...Predicate) Predicate {
	return func(ctx Context) (bool, error) {
		for _, p := range ps {
			ok, err := p(ctx)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	}
}

// Any holds when at least one predicate holds. An empty list does not hold.
func Any(ps ...Predicate) Predicate {
	return func(ctx Context) (bool, error) {
		for _, p := range ps {
			ok, err := p(ctx)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	}
}

// stringPredicate applies match to a present string value. Absent keys never match.
func stringPredicate(key string, match func(string) bool) Predicate {
	return func(ctx Context) (bool, error) {
		v, ok, err := ReadString(ctx, key)
		if err != nil || !ok {
			return false, err
		}
		return match(v), nil
	}
}
