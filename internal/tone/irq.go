package tone

import "sync"

// irqMask is the critical section shared by the sample handler and the
// foreground. The handler holds it for the whole of each tick, so while the
// foreground holds it the handler cannot run, the same guarantee a masked
// interrupt gives.
type irqMask struct {
	mu sync.Mutex
}

func (m *irqMask) disable() { m.mu.Lock() }
func (m *irqMask) restore() { m.mu.Unlock() }

// atomically runs fn with the handler masked.
func (m *irqMask) atomically(fn func()) {
	m.mu.Lock()
	fn()
	m.mu.Unlock()
}
