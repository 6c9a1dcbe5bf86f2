package rules

// stagedContext buffers the writes of one action over a base context. Reads
// see the buffered writes first.
type stagedContext struct {
	base    Context
	pending map[string]stagedEntry
	order   []string
}

type stagedEntry struct {
	value   any
	deleted bool
}

func newStagedContext(base Context) *stagedContext {
	return &stagedContext{base: base}
}

func (s *stagedContext) Read(key string) (any, bool) {
	if e, ok := s.pending[key]; ok {
		if e.deleted {
			return nil, false
		}
		return e.value, true
	}
	return s.base.Read(key)
}

func (s *stagedContext) Write(key string, value any) error {
	s.put(key, stagedEntry{value: value})
	return nil
}

func (s *stagedContext) Delete(key string) error {
	s.put(key, stagedEntry{deleted: true})
	return nil
}

func (s *stagedContext) put(key string, e stagedEntry) {
	if s.pending == nil {
		s.pending = make(map[string]stagedEntry)
	}
	if _, seen := s.pending[key]; !seen {
		s.order = append(s.order, key)
	}
	s.pending[key] = e
}

// commit applies the buffered writes to the base context in first-write order.
func (s *stagedContext) commit() error {
	for _, key := range s.order {
		e := s.pending[key]
		var err error
		if e.deleted {
			err = s.base.Delete(key)
		} else {
			err = s.base.Write(key, e.value)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
