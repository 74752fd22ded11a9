package usecase

import (
	"context"
	"io"
	"sync"
)

// boundedPipe moves bytes from an upstream tier read to a downstream
// consumer through a fixed-capacity chunk channel. The channel is the
// stream's only buffer: when the consumer stalls, the channel fills and
// the reader goroutine blocks, which stops pulling from the tier. The
// reader also selects on ctx.Done() at every chunk boundary, so a
// cancelled consumer releases the upstream connection within one chunk.
type boundedPipe struct {
	chunks chan []byte

	closeOnce sync.Once
	closed    chan struct{}

	mu      sync.Mutex
	readErr error // terminal error observed by the reader goroutine

	current []byte // partially consumed chunk
}

// newBoundedPipe starts the reader goroutine and returns the pipe.
// The pipe owns src and closes it when the goroutine exits.
func newBoundedPipe(ctx context.Context, src io.ReadCloser, chunkSize, chunkCount int) *boundedPipe {
	p := &boundedPipe{
		chunks: make(chan []byte, chunkCount),
		closed: make(chan struct{}),
	}

	go func() {
		defer close(p.chunks)
		defer func() { _ = src.Close() }()

		for {
			buf := make([]byte, chunkSize)
			n, err := src.Read(buf)

			if n > 0 {
				select {
				case p.chunks <- buf[:n]:
				case <-ctx.Done():
					p.setErr(ctx.Err())
					return
				case <-p.closed:
					return
				}
			}

			if err != nil {
				if err != io.EOF {
					p.setErr(err)
				}
				return
			}

			select {
			case <-ctx.Done():
				p.setErr(ctx.Err())
				return
			case <-p.closed:
				return
			default:
			}
		}
	}()

	return p
}

func (p *boundedPipe) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.readErr == nil {
		p.readErr = err
	}
}

func (p *boundedPipe) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readErr
}

// Read returns buffered bytes in arrival order. After the last chunk it
// reports the reader goroutine's terminal error, or io.EOF on a clean end.
func (p *boundedPipe) Read(b []byte) (int, error) {
	for len(p.current) == 0 {
		chunk, ok := <-p.chunks
		if !ok {
			if err := p.err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		p.current = chunk
	}

	n := copy(b, p.current)
	p.current = p.current[n:]
	return n, nil
}

// Close stops the reader goroutine. It is safe to call multiple times and
// concurrently with Read.
func (p *boundedPipe) Close() error {
	p.closeOnce.Do(func() {
		close(p.closed)
		// Unblock a reader goroutine parked on a full channel.
		go func() {
			for range p.chunks {
			}
		}()
	})
	return nil
}
