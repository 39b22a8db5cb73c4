package bundle

import "sync"

// Buffer collects every Item whose source was loaded during one session.
// It is shared by all concurrent resolutions of that session.
type Buffer struct {
	mu    sync.Mutex
	items []*Item
}

func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(item *Item) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.items = append(b.items, item)
}

func (b *Buffer) Items() []*Item {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Item(nil), b.items...)
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
