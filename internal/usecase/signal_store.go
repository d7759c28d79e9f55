package usecase

import (
	"sort"
	"sync"

	"SignalDesk/internal/domain/models"
)

// SignalStore is the in-process registry of signals and the single current
// pending one. Readers always receive copies.
type SignalStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.Signal
	current string

	subMu   sync.Mutex
	subs    map[int]func(*models.Signal)
	nextSub int
}

func NewSignalStore() *SignalStore {
	return &SignalStore{
		byID: make(map[string]*models.Signal),
		subs: make(map[int]func(*models.Signal)),
	}
}

// Current returns the pending signal being tracked, or nil.
func (s *SignalStore) Current() *models.Signal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == "" {
		return nil
	}
	return s.byID[s.current].Clone()
}

// SetCurrent tracks sig as the current signal, adding it when unknown.
// A nil or resolved signal clears the current slot.
func (s *SignalStore) SetCurrent(sig *models.Signal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sig == nil || sig.IsResolved() {
		s.current = ""
		return
	}
	if _, ok := s.byID[sig.ID]; !ok {
		s.byID[sig.ID] = sig.Clone()
	}
	s.current = sig.ID
}

// Add stores sig unless its id is already known.
func (s *SignalStore) Add(sig *models.Signal) bool {
	if sig == nil || sig.ID == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[sig.ID]; ok {
		return false
	}
	s.byID[sig.ID] = sig.Clone()
	return true
}

// Update replaces the stored copy of sig. A result is written once: updates
// to an already resolved signal are ignored. Returns true when this call
// moved the signal to a terminal result, after which subscribers are called.
func (s *SignalStore) Update(sig *models.Signal) bool {
	if sig == nil || sig.ID == "" {
		return false
	}

	s.mu.Lock()
	prev, ok := s.byID[sig.ID]
	if ok && prev.IsResolved() {
		s.mu.Unlock()
		return false
	}
	s.byID[sig.ID] = sig.Clone()
	resolved := sig.IsResolved()
	if resolved && s.current == sig.ID {
		s.current = ""
	}
	s.mu.Unlock()

	if resolved {
		s.notify(sig.Clone())
	}
	return resolved
}

func (s *SignalStore) Get(id string) (*models.Signal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sig, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return sig.Clone(), true
}

// List returns every signal, newest entry time first.
func (s *SignalStore) List() []*models.Signal {
	s.mu.RLock()
	out := make([]*models.Signal, 0, len(s.byID))
	for _, sig := range s.byID {
		out = append(out, sig.Clone())
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].EntryTime.After(out[j].EntryTime)
	})
	return out
}

// Pending returns unresolved signals, oldest entry time first.
func (s *SignalStore) Pending() []*models.Signal {
	all := s.List()
	out := make([]*models.Signal, 0)
	for i := len(all) - 1; i >= 0; i-- {
		if !all[i].IsResolved() {
			out = append(out, all[i])
		}
	}
	return out
}

// Load replaces the registry with persisted signals. The newest pending one
// becomes current.
func (s *SignalStore) Load(signals []*models.Signal) {
	s.mu.Lock()
	s.byID = make(map[string]*models.Signal, len(signals))
	s.current = ""
	var newest *models.Signal
	for _, sig := range signals {
		if sig == nil || sig.ID == "" {
			continue
		}
		s.byID[sig.ID] = sig.Clone()
		if !sig.IsResolved() && (newest == nil || sig.EntryTime.After(newest.EntryTime)) {
			newest = sig
		}
	}
	if newest != nil {
		s.current = newest.ID
	}
	s.mu.Unlock()
}

func (s *SignalStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Subscribe registers fn for terminal updates.
func (s *SignalStore) Subscribe(fn func(*models.Signal)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *SignalStore) notify(sig *models.Signal) {
	s.subMu.Lock()
	fns := make([]func(*models.Signal), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(sig.Clone())
	}
}

// Clear drops every signal held in memory. Persisted rows are untouched.
func (s *SignalStore) Clear() {
	s.mu.Lock()
	s.byID = make(map[string]*models.Signal)
	s.current = ""
	s.mu.Unlock()
}
