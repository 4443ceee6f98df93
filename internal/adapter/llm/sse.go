package llm

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"promptmatrix/internal/domain"
)

// parseSSEStream reads SSE-formatted lines from body and converts each data
// payload into a StreamDelta using parseLine. The returned channel is closed
// when the stream ends, the body is closed, or ctx is cancelled.
func parseSSEStream(ctx context.Context, body io.ReadCloser, parseLine func(data []byte) (*domain.StreamDelta, error)) <-chan domain.StreamDelta {
	ch := make(chan domain.StreamDelta, 16)
	go func() {
		defer close(ch)
		defer body.Close()

		scanner := bufio.NewScanner(body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case <-ctx.Done():
				return
			default:
			}

			line := scanner.Bytes()

			// Skip empty lines and comments.
			if len(line) == 0 || line[0] == ':' {
				continue
			}

			// We only care about "data: ..." lines.
			if !bytes.HasPrefix(line, []byte("data: ")) {
				continue
			}
			data := bytes.TrimPrefix(line, []byte("data: "))

			// Common termination signal.
			if bytes.Equal(data, []byte("[DONE]")) {
				ch <- domain.StreamDelta{Done: true}
				return
			}

			delta, err := parseLine(data)
			if err != nil {
				// Skip unparseable lines.
				continue
			}
			if delta == nil {
				continue
			}

			select {
			case ch <- *delta:
			case <-ctx.Done():
				return
			}

			if delta.Done {
				return
			}
		}
		// A scanner error means the connection dropped mid-stream. The
		// terminal delta carries the error so consumers can tell a failed
		// stream from a completed one.
		if err := scanner.Err(); err != nil {
			select {
			case ch <- domain.StreamDelta{Err: fmt.Errorf("LLM stream failed: %w", err), Done: true}:
			case <-ctx.Done():
			}
		}
	}()
	return ch
}
