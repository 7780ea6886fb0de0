package hasher

import (
	"fmt"
	"image"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"
)

// Algorithm selects the perceptual hashing variant. The integer codes are
// stable because they are persisted in the fingerprint cache.
type Algorithm int

const (
	// AHash is the average hash: 8x8 grayscale, bit set when the pixel is at
	// or above the mean luminance.
	AHash Algorithm = 0
	// DHash is the difference hash: 9x8 grayscale, bit set when the left
	// pixel of a horizontal pair is strictly brighter than the right.
	DHash Algorithm = 1
	// PHash is the DCT-based perceptual hash.
	PHash Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case AHash:
		return "ahash"
	case DHash:
		return "dhash"
	case PHash:
		return "phash"
	default:
		return fmt.Sprintf("algorithm(%d)", int(a))
	}
}

// ParseAlgorithm maps a user-supplied name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch name {
	case "ahash", "average":
		return AHash, nil
	case "dhash", "difference":
		return DHash, nil
	case "phash", "perceptual":
		return PHash, nil
	default:
		return 0, fmt.Errorf("unknown hash algorithm %q (want ahash, dhash or phash)", name)
	}
}

// gridSize is the working grid for the average and difference hashes. The
// source image is downsampled to this grid before thresholding, so fingerprint
// cost and length are independent of the source resolution.
const gridSize = 8

// Fingerprint is a fixed-length bit vector summarizing an image's visual
// content. Fingerprints are immutable once produced.
type Fingerprint struct {
	Algo Algorithm
	Bits []bool
}

// IndexedFingerprint pairs a fingerprint with the index of the input item it
// was computed for, so results can be reassembled regardless of worker
// completion order.
type IndexedFingerprint struct {
	Index int
	Hash  Fingerprint
}

// Distance returns the Hamming distance over the shared prefix of the two bit
// vectors plus the absolute length difference. The length penalty keeps a
// truncated or foreign-length fingerprint from ever comparing as identical to
// a full one. Safe for any pair of fingerprints, including mismatched
// algorithms.
func Distance(a, b Fingerprint) int {
	minLen := len(a.Bits)
	maxLen := len(b.Bits)
	if minLen > maxLen {
		minLen, maxLen = maxLen, minLen
	}
	diff := maxLen - minLen
	for i := 0; i < minLen; i++ {
		if a.Bits[i] != b.Bits[i] {
			diff++
		}
	}
	return diff
}

// Compute hashes a decoded image under the given algorithm.
func Compute(img image.Image, algo Algorithm) (Fingerprint, error) {
	switch algo {
	case AHash:
		return averageHash(img), nil
	case DHash:
		return differenceHash(img), nil
	case PHash:
		return perceptualHash(img)
	default:
		return Fingerprint{}, fmt.Errorf("unknown hash algorithm %d", int(algo))
	}
}

// grayPixels downsamples img to w x h and returns its luminance values in
// row-major order.
func grayPixels(img image.Image, w, h int) []uint8 {
	small := imaging.Grayscale(imaging.Resize(img, w, h, imaging.Lanczos))
	pixels := make([]uint8, 0, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pixels = append(pixels, small.NRGBAAt(x, y).R)
		}
	}
	return pixels
}

func averageHash(img image.Image) Fingerprint {
	pixels := grayPixels(img, gridSize, gridSize)

	var sum uint64
	for _, p := range pixels {
		sum += uint64(p)
	}
	mean := float64(sum) / float64(len(pixels))

	bits := make([]bool, len(pixels))
	for i, p := range pixels {
		bits[i] = float64(p) >= mean
	}
	return Fingerprint{Algo: AHash, Bits: bits}
}

func differenceHash(img image.Image) Fingerprint {
	// One extra column so each row yields gridSize horizontal comparisons.
	pixels := grayPixels(img, gridSize+1, gridSize)

	bits := make([]bool, 0, gridSize*gridSize)
	for y := 0; y < gridSize; y++ {
		row := pixels[y*(gridSize+1):]
		for x := 0; x < gridSize; x++ {
			bits = append(bits, row[x] > row[x+1])
		}
	}
	return Fingerprint{Algo: DHash, Bits: bits}
}

// perceptualHash delegates the frequency-domain work to goimagehash and
// unpacks its 64-bit signature MSB-first.
func perceptualHash(img image.Image) (Fingerprint, error) {
	hash, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("perceptual hash failed: %w", err)
	}

	raw := hash.GetHash()
	bits := make([]bool, 64)
	for i := 0; i < 64; i++ {
		bits[i] = raw&(1<<(63-i)) != 0
	}
	return Fingerprint{Algo: PHash, Bits: bits}, nil
}
