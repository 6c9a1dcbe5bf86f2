package metadata

import "maps"

// Metadata represents the headers carried alongside a message. Keys are
// qualified property names; values are always strings.
type Metadata map[string]string

// Clone returns a shallow copy of the metadata map. A nil map clones to an
// empty, writable map.
func (m Metadata) Clone() Metadata {
	if len(m) == 0 {
		return Metadata{}
	}
	return maps.Clone(m)
}

// With returns a cloned metadata map containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.Clone()
	cloned[key] = value
	return cloned
}

// Merge returns a cloned metadata map with entries overlaid on top.
func (m Metadata) Merge(entries Metadata) Metadata {
	cloned := m.Clone()
	maps.Copy(cloned, entries)
	return cloned
}

// New constructs a Metadata map from alternating key/value pairs. A trailing
// key without a value is ignored.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
