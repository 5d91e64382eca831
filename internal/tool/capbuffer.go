package tool

import "sync"

// capBuffer is an io.Writer that retains at most cap bytes of what was
// written, keeping the most recent bytes. Subprocess output must not grow
// unbounded in memory, and the tail of a tool's stderr carries its final
// error line.
type capBuffer struct {
	mu      sync.Mutex
	buf     []byte
	max     int
	start   int
	wrapped bool
}

func newCapBuffer(max int) *capBuffer {
	if max <= 0 {
		max = 1
	}
	return &capBuffer{buf: make([]byte, 0, max), max: max}
}

func (b *capBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(p)
	if n >= b.max {
		// The chunk alone fills the window.
		b.buf = b.buf[:b.max]
		copy(b.buf, p[n-b.max:])
		b.start = 0
		b.wrapped = true
		return n, nil
	}

	if len(b.buf) < b.max {
		room := b.max - len(b.buf)
		if n <= room {
			b.buf = append(b.buf, p...)
			return n, nil
		}
		b.buf = append(b.buf, p[:room]...)
		p = p[room:]
		b.wrapped = true
	}

	for _, c := range p {
		b.buf[b.start] = c
		b.start = (b.start + 1) % b.max
	}
	return n, nil
}

// Bytes returns the retained tail in write order.
func (b *capBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, 0, len(b.buf))
	out = append(out, b.buf[b.start:]...)
	out = append(out, b.buf[:b.start]...)
	return out
}
