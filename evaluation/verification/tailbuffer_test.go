package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTailBuffer(t *testing.T) {
	b := newTailBuffer(5)
	b.Write([]byte("ab"))
	assert.Equal(t, "ab", b.String())
	assert.False(t, b.Truncated())

	b.Write([]byte("cdef"))
	assert.Equal(t, "bcdef", b.String())
	assert.True(t, b.Truncated())

	b.Write([]byte("0123456789"))
	assert.Equal(t, "56789", b.String())

	unlimited := newTailBuffer(0)
	n, err := unlimited.Write([]byte("everything stays"))
	assert.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, "everything stays", unlimited.String())
	assert.False(t, unlimited.Truncated())
}
