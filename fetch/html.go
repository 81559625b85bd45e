package fetch

import (
	"errors"
	"io"
	"strings"

	"github.com/caasmo/faviconproxy/failure"
)

const (
	DefaultHTMLMaxChunks = 1000
	DefaultHTMLChunkSize = 16 << 10
)

// ReadHTML drains r as text, one Read per chunk of at most chunkSize bytes.
// More than maxChunks non-empty reads fail with an HTML too large error.
func ReadHTML(r io.Reader, maxChunks, chunkSize int) (string, error) {
	if maxChunks <= 0 {
		maxChunks = DefaultHTMLMaxChunks
	}
	if chunkSize <= 0 {
		chunkSize = DefaultHTMLChunkSize
	}

	var sb strings.Builder
	buf := make([]byte, chunkSize)
	chunks := 0
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunks++
			if chunks > maxChunks {
				return "", failure.New(failure.KindHTMLReadTooLarge, failure.MsgHTMLTooLarge)
			}
			sb.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", failure.Network(err)
		}
	}
}
