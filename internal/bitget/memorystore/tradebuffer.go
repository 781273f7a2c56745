package memorystore

import "sync"

// TradeBuffer is the in-memory, arrival-ordered sequence of trade records
// waiting to be written to the store. It requests a flush every flushEvery appends.
type TradeBuffer struct {
	mu         sync.Mutex
	records    []TradeRecord
	appended   uint64
	flushEvery uint64
	flushCh    chan struct{}
}

func NewTradeBuffer(flushEvery int) *TradeBuffer {
	if flushEvery < 0 {
		flushEvery = 0
	}
	return &TradeBuffer{
		records:    make([]TradeRecord, 0, 1024),
		flushEvery: uint64(flushEvery),
		flushCh:    make(chan struct{}, 1),
	}
}

// Preload seeds the buffer with records already persisted on disk.
// Preloaded records do not advance the append counter.
func (b *TradeBuffer) Preload(records []TradeRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = append(b.records, records...)
}

// Append adds a record to the tail. When the append counter reaches a
// multiple of flushEvery a flush request is posted without blocking.
func (b *TradeBuffer) Append(r TradeRecord) {
	b.mu.Lock()
	b.records = append(b.records, r)
	b.appended++
	due := b.flushEvery > 0 && b.appended%b.flushEvery == 0
	b.mu.Unlock()

	if due {
		select {
		case b.flushCh <- struct{}{}:
		default: // a request is already pending
		}
	}
}

// FlushRequests delivers one value per pending threshold-triggered flush.
func (b *TradeBuffer) FlushRequests() <-chan struct{} {
	return b.flushCh
}

// Snapshot copies the buffered records and returns them together with the
// append counter observed at copy time.
func (b *TradeBuffer) Snapshot() ([]TradeRecord, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]TradeRecord, len(b.records))
	copy(out, b.records)
	return out, b.appended
}

// DropOldest removes the n oldest records. Anything appended after the
// caller's Snapshot sits past index n and is kept.
func (b *TradeBuffer) DropOldest(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 {
		return
	}
	if n >= len(b.records) {
		b.records = b.records[:0]
		return
	}
	kept := make([]TradeRecord, len(b.records)-n, cap(b.records)-n)
	copy(kept, b.records[n:])
	b.records = kept
}

// Len returns the number of buffered records.
func (b *TradeBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Appended returns the number of records appended since construction.
func (b *TradeBuffer) Appended() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.appended
}
