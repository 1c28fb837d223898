package reactive

// PropertyStore is a record whose fields are individually observable: one
// signal per field. Reading one field never re-runs on an unrelated field's
// change.
type PropertyStore struct {
	rt     *Runtime
	name   string
	fields map[string]*Signal[any]
}

// NewPropertyStore creates a store with one signal per initial field.
func NewPropertyStore(rt *Runtime, name string, initial map[string]any) *PropertyStore {
	p := &PropertyStore{
		rt:     rt,
		name:   name,
		fields: make(map[string]*Signal[any], len(initial)),
	}
	for key, value := range initial {
		p.fields[key] = NewSignal(rt, name+"."+key, value)
	}
	return p
}

// Get reads one field, registering a dependency on that field only.
// Unknown keys return nil.
func (p *PropertyStore) Get(key string) any {
	p.rt.lk.lock()
	defer p.rt.lk.unlock()
	s, ok := p.fields[key]
	if !ok {
		return nil
	}
	p.rt.trackRead(s.n)
	return s.value
}

// Set writes one field, dirtying only that field's signal and only when the
// value structurally changed.
func (p *PropertyStore) Set(key string, value any) {
	p.rt.lk.lock()
	defer p.rt.lk.unlock()
	s, ok := p.fields[key]
	if !ok {
		s = NewSignal[any](p.rt, p.name+"."+key, nil)
		p.fields[key] = s
	}
	s.setLocked(value)
}

// Replace swaps the whole record, diffing per key and touching only the
// signals whose value actually changed. Keys absent from next are set to
// nil rather than removed, so existing subscriptions stay wired. The diff
// applies as one batch.
func (p *PropertyStore) Replace(next map[string]any) {
	p.rt.Batch(func() {
		for key := range p.fields {
			if _, ok := next[key]; !ok {
				p.Set(key, nil)
			}
		}
		for key, value := range next {
			p.Set(key, value)
		}
	})
}

// Snapshot returns an untracked copy of the current record.
func (p *PropertyStore) Snapshot() map[string]any {
	p.rt.lk.lock()
	defer p.rt.lk.unlock()
	out := make(map[string]any, len(p.fields))
	for key, s := range p.fields {
		out[key] = s.value
	}
	return out
}
