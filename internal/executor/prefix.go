package executor

import (
	"bytes"
	"io"
	"sync"
)

// prefixWriter prefixes each output line with the recipe name, so
// interleaved output from concurrent recipes stays attributable.
//
// Partial lines are buffered until their newline arrives; Flush emits
// any trailing partial line. Writes are serialized with a mutex because
// a recipe process writes from its own goroutine.
type prefixWriter struct {
	mu     sync.Mutex
	out    io.Writer
	prefix []byte
	buf    bytes.Buffer
}

func newPrefixWriter(out io.Writer, name string) *prefixWriter {
	return &prefixWriter{out: out, prefix: []byte("[" + name + "] ")}
}

// Write satisfies io.Writer. It reports len(p) consumed on success even
// though buffered bytes reach the underlying writer later — os/exec
// treats a short write as an error, so holding bytes back is not an option.
func (w *prefixWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// No complete line yet; push the partial back and wait for more.
			w.buf.Write(line)
			break
		}
		if _, err := w.out.Write(append(append([]byte(nil), w.prefix...), line...)); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// Flush writes any buffered partial line, newline-terminated. Called
// after the recipe process exits so trailing output is not lost.
func (w *prefixWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.buf.Len() == 0 {
		return nil
	}
	line := append(append([]byte(nil), w.prefix...), w.buf.Bytes()...)
	line = append(line, '\n')
	w.buf.Reset()
	_, err := w.out.Write(line)
	return err
}
