package memorystore

import "sync"

// MemorySymbolStore holds the ordered list of tracked symbols.
// The WebSocket client reads it on every (re)connect to build subscriptions.
type MemorySymbolStore struct {
	mu      sync.Mutex
	symbols []string
}

func NewSymbolStore(symbols ...string) *MemorySymbolStore {
	s := &MemorySymbolStore{
		symbols: make([]string, 0, len(symbols)),
	}
	for _, symbol := range symbols {
		s.Add(symbol)
	}
	return s
}

// Add appends symbol unless it is already tracked. Order of first insertion is kept.
func (s *MemorySymbolStore) Add(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.symbols {
		if existing == symbol {
			return
		}
	}
	s.symbols = append(s.symbols, symbol)
}

func (s *MemorySymbolStore) GetAll() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.symbols))
	copy(out, s.symbols)
	return out
}
