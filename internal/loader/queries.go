package loader

// Stats are the loader-side load metrics counters.
type Stats struct {
	// Known is the number of records the loader tracks.
	Known int
	// Initialized is the number of active mods.
	Initialized int
	// Failed is the number of records whose last attempt failed.
	Failed int
}

// LoadOrder returns the ids of active mods in the order they initialized.
func (l *Loader) LoadOrder() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.loadOrder...)
}

// Loaded returns snapshot records of every mod currently Initialized, in
// load order.
func (l *Loader) Loaded() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.loadOrder))
	for _, id := range l.loadOrder {
		if rec, ok := l.records[id]; ok && rec.State == Initialized {
			out = append(out, l.copyRecordLocked(rec))
		}
	}
	return out
}

// Get returns a snapshot of one record by mod id.
func (l *Loader) Get(id string) (Record, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.records[id]
	if !ok {
		return Record{}, false
	}
	return l.copyRecordLocked(rec), true
}

// API returns the capability object a mod explicitly published, if any.
func (l *Loader) API(id string) (any, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	api, ok := l.apis[id]
	return api, ok
}

// Stats returns the loader's current counters.
func (l *Loader) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Stats{Known: len(l.records)}
	for _, rec := range l.records {
		switch rec.State {
		case Initialized:
			s.Initialized++
		case Failed:
			s.Failed++
		}
	}
	return s
}
