package pool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinePool_Line(t *testing.T) {
	lp := NewLinePool(64, 128)

	buf := lp.Line([]byte(`{"id":1}`))
	assert.Equal(t, "{\"id\":1}\n", buf.String())
	lp.Release(buf)

	again := lp.Line(nil)
	assert.Equal(t, "\n", again.String(), "recycled buffers carry nothing over")
}

func TestLinePool_DropsOversizedBuffers(t *testing.T) {
	lp := NewLinePool(8, 16)

	big := lp.Line([]byte(strings.Repeat("x", 1024)))
	lp.Release(big)

	for i := 0; i < 10; i++ {
		assert.NotSame(t, big, lp.Line([]byte("a")))
	}
}

func TestLinePool_LimitNeverBelowInitial(t *testing.T) {
	lp := NewLinePool(64, 0)
	assert.Equal(t, 64, lp.limit)
}
