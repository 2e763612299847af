package history

import (
	"sync"
)

// Memory is an in-memory History, used in tests, tools and non-browser
// hosts. Like a browser, Push and Replace do not notify subscribers; Go,
// Back and Forward do.
type Memory struct {
	mu        sync.Mutex
	entries   []Location
	index     int
	listeners map[int]func(Update)
	nextID    int
}

// NewMemory creates a memory history whose single entry is initial.
func NewMemory(initial string) *Memory {
	if initial == "" {
		initial = "/"
	}
	return &Memory{
		entries:   []Location{ParseHref(initial)},
		listeners: make(map[int]func(Update)),
	}
}

// Location returns the current entry.
func (m *Memory) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

// Entries returns a copy of the stack and the current index.
func (m *Memory) Entries() ([]Location, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Location, len(m.entries))
	copy(out, m.entries)
	return out, m.index
}

// Subscribe registers fn for pop updates.
func (m *Memory) Subscribe(fn func(Update)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// Push drops any forward entries and appends href.
func (m *Memory) Push(href string, state any) {
	loc := ParseHref(href)
	loc.State = state

	m.mu.Lock()
	m.entries = append(m.entries[:m.index+1], loc)
	m.index = len(m.entries) - 1
	m.mu.Unlock()
}

// Replace overwrites the current entry.
func (m *Memory) Replace(href string, state any) {
	loc := ParseHref(href)
	loc.State = state

	m.mu.Lock()
	m.entries[m.index] = loc
	m.mu.Unlock()
}

// Go moves n entries, clamped to the stack bounds, and notifies subscribers
// when the index changed.
func (m *Memory) Go(n int) {
	m.mu.Lock()
	target := m.index + n
	if target < 0 {
		target = 0
	}
	if target > len(m.entries)-1 {
		target = len(m.entries) - 1
	}
	if target == m.index {
		m.mu.Unlock()
		return
	}
	m.index = target
	update := Update{Location: m.entries[target], Action: ActionPop}
	listeners := make([]func(Update), 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(update)
	}
}

// Back is Go(-1).
func (m *Memory) Back() { m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() { m.Go(1) }

var _ History = (*Memory)(nil)
