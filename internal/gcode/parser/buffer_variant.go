package parser

import (
	"bytes"
	"context"
	"io"

	"github.com/amscore/gcodeslots/internal/gcode/model"
)

// sizedReader exposes the byte count consumed, so parseCore can populate
// GcodeStats.FileSize without every caller having to know it up front.
type sizedReader struct {
	*bytes.Reader
	size int64
}

func (s *sizedReader) Size() int64 { return s.size }

// parseBuffered implements the "buffer" algorithm: read the whole source
// into memory first, then run the same core scan loop. Appropriate for
// small uploads where holding the full byte slice is cheap and simplifies
// callers that need to retry or re-scan.
func parseBuffered(ctx context.Context, source io.Reader, fileName string, opts Options) (*model.GcodeStats, error) {
	data, err := io.ReadAll(source)
	if err != nil {
		return nil, newError(KindIO, fileName, err)
	}

	wrapped := &sizedReader{Reader: bytes.NewReader(data), size: int64(len(data))}

	return parseCore(ctx, wrapped, fileName, opts, false, false)
}
