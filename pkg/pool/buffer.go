package pool

import (
	"bytes"
	"sync"
)

// LinePool hands out newline-terminated copies of encoded records in
// recycled buffers.
type LinePool struct {
	initial int // Capacity of freshly allocated buffers.
	limit   int // Buffers larger than this are not recycled.
	pool    sync.Pool
}

// NewLinePool returns a pool whose buffers start at initial bytes and are
// kept only while they stay within limit bytes. A limit below initial is
// raised to initial.
func NewLinePool(initial, limit int) *LinePool {
	return &LinePool{
		initial: initial,
		limit:   max(initial, limit),
		pool: sync.Pool{
			New: func() any {
				return bytes.NewBuffer(make([]byte, 0, initial))
			},
		},
	}
}

// Line returns a buffer holding record followed by '\n'. Hand it back with
// Release once its bytes have been written.
func (p *LinePool) Line(record []byte) *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	buf.Grow(len(record) + 1)
	buf.Write(record)
	buf.WriteByte('\n')
	return buf
}

// Release recycles buf. One oversized record must not pin its buffer.
func (p *LinePool) Release(buf *bytes.Buffer) {
	if buf.Cap() > p.limit {
		return
	}

	buf.Reset()
	p.pool.Put(buf)
}
