package verification

// tailBuffer keeps the last limit bytes written to it. A non-positive limit
// keeps everything. exec.Cmd copies each stream from a single goroutine and
// Wait returns only after copying finishes, so no locking is needed.
type tailBuffer struct {
	limit   int
	buf     []byte
	written int64
}

func newTailBuffer(limit int) *tailBuffer {
	return &tailBuffer{limit: limit}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	b.written += int64(n)
	if b.limit <= 0 {
		b.buf = append(b.buf, p...)
		return n, nil
	}
	if n >= b.limit {
		b.buf = append(b.buf[:0], p[n-b.limit:]...)
		return n, nil
	}
	if over := len(b.buf) + n - b.limit; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	b.buf = append(b.buf, p...)
	return n, nil
}

func (b *tailBuffer) String() string { return string(b.buf) }

// Truncated reports whether bytes were dropped from the front.
func (b *tailBuffer) Truncated() bool { return b.written > int64(len(b.buf)) }
