package hasher

import (
	"fmt"
	"image"
	"os"

	"github.com/disintegration/imaging"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"imagedups/logging"
)

// DecodeError tags a decode or read failure with the offending image path so
// callers can attribute the warning without parsing the message.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("cannot decode image %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// LoadImage decodes the image at path, applying EXIF auto-orientation so that
// a rotated copy hashes the same as its upright original. RAW camera formats
// are loaded through their embedded preview; if preview extraction fails the
// file is fed to the standard decoder as a last resort. All failures come back
// as *DecodeError.
func LoadImage(path string) (image.Image, error) {
	if IsRawFormat(path) {
		img, err := loadRawPreview(path)
		if err == nil {
			return img, nil
		}
		logging.LogWarning("RAW preview extraction failed for %s: %v, falling back to standard decoder", path, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	return img, nil
}
