package ports

import (
	"context"
	"io"
)

// StreamOpener is the raw subscription primitive for run event streams. An
// implementation hands back the byte stream of one run's frames; decoding,
// folding and reconnection live above it in the stream client.
//
// The returned reader ends (io.EOF or a transport error) when the server
// closes the stream; the caller owns closing it.
type StreamOpener interface {
	OpenRunStream(ctx context.Context, runID string) (io.ReadCloser, error)
}
