package metadata

import (
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/drblury/routeflow/internal/rules"
)

// Context exposes message headers to the rules engine. Reads and writes go
// straight to the underlying map, so a resolved message carries the results
// of evaluation without a copy step.
type Context struct {
	md map[string]string
}

var _ rules.Context = Context{}

// NewContext wraps md. A nil map yields a context that reads as empty and
// fails on write.
func NewContext(md Metadata) Context {
	return Context{md: md}
}

// MessageContext wraps the metadata of msg, allocating it when missing.
func MessageContext(msg *message.Message) Context {
	if msg.Metadata == nil {
		msg.Metadata = message.Metadata{}
	}
	return Context{md: msg.Metadata}
}

func (c Context) Read(key string) (any, bool) {
	v, ok := c.md[key]
	if !ok {
		return nil, false
	}
	return v, true
}

// Write stores value under key. Only strings can be carried as headers; any
// other type yields a *rules.TypeMismatchError.
func (c Context) Write(key string, value any) error {
	s, ok := value.(string)
	if !ok {
		return &rules.TypeMismatchError{Key: key, Want: "string", Got: value}
	}
	if c.md == nil {
		return errNilMetadata
	}
	c.md[key] = s
	return nil
}

func (c Context) Delete(key string) error {
	delete(c.md, key)
	return nil
}
