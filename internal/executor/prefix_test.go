package executor

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syncBuffer is a bytes.Buffer safe for concurrent writers, used by the
// parallel executor tests where two prefix writers share one sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestPrefixWriter_Lines verifies that each complete line gets the prefix.
func TestPrefixWriter_Lines(t *testing.T) {
	var out bytes.Buffer
	w := newPrefixWriter(&out, "build")

	_, err := w.Write([]byte("one\ntwo\n"))
	require.NoError(t, err)

	assert.Equal(t, "[build] one\n[build] two\n", out.String())
}

// TestPrefixWriter_SplitWrites verifies that a line split across writes
// is emitted once, with a single prefix, when its newline arrives.
func TestPrefixWriter_SplitWrites(t *testing.T) {
	var out bytes.Buffer
	w := newPrefixWriter(&out, "test")

	_, err := w.Write([]byte("hel"))
	require.NoError(t, err)
	assert.Empty(t, out.String(), "partial line should be buffered")

	_, err = w.Write([]byte("lo\n"))
	require.NoError(t, err)
	assert.Equal(t, "[test] hello\n", out.String())
}

// TestPrefixWriter_Flush verifies that trailing output without a final
// newline is not lost.
func TestPrefixWriter_Flush(t *testing.T) {
	var out bytes.Buffer
	w := newPrefixWriter(&out, "doc")

	_, err := w.Write([]byte("no newline"))
	require.NoError(t, err)
	require.NoError(t, w.Flush())

	assert.Equal(t, "[doc] no newline\n", out.String())

	// Flushing again is a no-op.
	require.NoError(t, w.Flush())
	assert.Equal(t, "[doc] no newline\n", out.String())
}
