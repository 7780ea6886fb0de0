package hasher

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"strings"
	"sync"

	"github.com/barasher/go-exiftool"
	"github.com/disintegration/imaging"
)

// previewTags are the exiftool fields that may hold an embedded JPEG, tried
// largest-first. Camera preview JPEGs match what the camera itself would have
// produced, which keeps RAW fingerprints comparable to exported JPEGs.
var previewTags = []string{
	"JpgFromRaw",
	"PreviewImage",
	"OtherImage",
	"ThumbnailImage",
}

var (
	rawOnce    sync.Once
	rawTool    *exiftool.Exiftool
	rawToolErr error
	// The exiftool stay-open process handles one request at a time.
	rawMu sync.Mutex
)

func rawExtractor() (*exiftool.Exiftool, error) {
	rawOnce.Do(func() {
		rawTool, rawToolErr = exiftool.NewExiftool(exiftool.ExtractAllBinaryMetadata())
	})
	return rawTool, rawToolErr
}

// loadRawPreview extracts the embedded preview JPEG from a RAW file and
// decodes it.
func loadRawPreview(path string) (image.Image, error) {
	tool, err := rawExtractor()
	if err != nil {
		return nil, fmt.Errorf("exiftool unavailable: %w", err)
	}

	rawMu.Lock()
	metas := tool.ExtractMetadata(path)
	rawMu.Unlock()

	if len(metas) == 0 {
		return nil, fmt.Errorf("exiftool returned no metadata for %s", path)
	}
	meta := metas[0]
	if meta.Err != nil {
		return nil, fmt.Errorf("exiftool failed on %s: %w", path, meta.Err)
	}

	var lastErr error
	for _, tag := range previewTags {
		encoded, err := meta.GetString(tag)
		if err != nil {
			lastErr = err
			continue
		}
		data, err := decodeBinaryField(encoded)
		if err != nil {
			lastErr = err
			continue
		}
		img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
		if err != nil {
			lastErr = err
			continue
		}
		return img, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no embedded preview image")
	}
	return nil, lastErr
}

// decodeBinaryField turns an exiftool binary field value ("base64:..." when
// binary extraction is enabled) into raw bytes.
func decodeBinaryField(value string) ([]byte, error) {
	payload, ok := strings.CutPrefix(value, "base64:")
	if !ok {
		return nil, fmt.Errorf("field is not binary data")
	}
	return base64.StdEncoding.DecodeString(payload)
}
