package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"promptmatrix/internal/domain"
)

func parseTestLine(data []byte) (*domain.StreamDelta, error) {
	var chunk streamChunk
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, err
	}
	delta := &domain.StreamDelta{}
	if len(chunk.Choices) > 0 {
		delta.Content = chunk.Choices[0].Delta.Content
	}
	return delta, nil
}

func TestParseSSEStream(t *testing.T) {
	stream := strings.Join([]string{
		": comment line",
		"",
		`data: {"choices":[{"delta":{"content":"a"}}]}`,
		"event: something",
		`data: {"choices":[{"delta":{"content":"b"}}]}`,
		"data: not-json",
		"data: [DONE]",
	}, "\n")

	ch := parseSSEStream(context.Background(), io.NopCloser(strings.NewReader(stream)), parseTestLine)

	var content strings.Builder
	var sawDone bool
	for delta := range ch {
		content.WriteString(delta.Content)
		if delta.Done {
			sawDone = true
		}
	}

	if content.String() != "ab" {
		t.Errorf("content = %q, want ab", content.String())
	}
	if !sawDone {
		t.Error("expected Done delta after [DONE]")
	}
}

func TestParseSSEStreamCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := `data: {"choices":[{"delta":{"content":"a"}}]}` + "\n"
	ch := parseSSEStream(ctx, io.NopCloser(strings.NewReader(stream)), parseTestLine)

	// The channel must close promptly on a cancelled context.
	for range ch {
	}
}

func TestParseSSEStreamEOFWithoutDone(t *testing.T) {
	stream := `data: {"choices":[{"delta":{"content":"a"}}]}` + "\n"
	ch := parseSSEStream(context.Background(), io.NopCloser(strings.NewReader(stream)), parseTestLine)

	var n int
	for range ch {
		n++
	}
	if n != 1 {
		t.Errorf("deltas = %d, want 1", n)
	}
}

func TestParseSSEStreamTransportError(t *testing.T) {
	head := `data: {"choices":[{"delta":{"content":"a"}}]}` + "\n"
	body := io.NopCloser(io.MultiReader(
		strings.NewReader(head),
		iotest.ErrReader(errors.New("connection reset")),
	))
	ch := parseSSEStream(context.Background(), body, parseTestLine)

	var deltas []domain.StreamDelta
	for d := range ch {
		deltas = append(deltas, d)
	}

	if len(deltas) != 2 {
		t.Fatalf("deltas = %d, want content then terminal error", len(deltas))
	}
	if deltas[0].Content != "a" {
		t.Errorf("content = %q, want a", deltas[0].Content)
	}
	last := deltas[1]
	if last.Err == nil || !last.Done {
		t.Fatalf("last delta = %+v, want terminal error delta", last)
	}
	if !strings.Contains(last.Err.Error(), "LLM stream failed") {
		t.Errorf("err = %v, want LLM stream failed prefix", last.Err)
	}
	if !strings.Contains(last.Err.Error(), "connection reset") {
		t.Errorf("err = %v, want cause preserved", last.Err)
	}
}
