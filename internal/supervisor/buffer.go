package supervisor

import "sync"

// ringBuffer keeps the most recent lines of a child's output.
type ringBuffer struct {
	mu    sync.Mutex
	lines []string
	start int
	max   int
}

func newRingBuffer(max int) *ringBuffer {
	return &ringBuffer{lines: make([]string, 0, max), max: max}
}

// Append adds a line, evicting the oldest once the buffer is full.
func (b *ringBuffer) Append(line string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.lines) < b.max {
		b.lines = append(b.lines, line)
		return
	}
	b.lines[b.start] = line
	b.start = (b.start + 1) % b.max
}

// Lines returns a copy of the buffered lines, oldest first.
func (b *ringBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.lines))
	out = append(out, b.lines[b.start:]...)
	out = append(out, b.lines[:b.start]...)
	return out
}

func (b *ringBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lines)
}
