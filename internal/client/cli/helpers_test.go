package cli

import (
	"bytes"
	"io"
	"sync"
)

// syncBuffer is a bytes.Buffer safe for one writer and concurrent readers.
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

// newPipe returns a reader fed one line per value sent on the channel.
func newPipe() (io.Reader, chan<- string) {
	r, w := io.Pipe()
	lines := make(chan string)
	go func() {
		for line := range lines {
			_, _ = io.WriteString(w, line+"\n")
		}
		_ = w.Close()
	}()
	return r, lines
}
