// Package identity derives exact and perceptual fingerprints from media
// content. The exact digest is audit-only; the perceptual fingerprint is
// what the catalog's duplicate check keys on.
package identity

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"image"
	"math"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// Composite fingerprints join per-frame hashes with this delimiter, in
// sampling order.
const Delimiter = ":"

// Up to this many frames contribute to an animated fingerprint.
const MaxSampledFrames = 5

// dHash geometry: a 33x32 grayscale grid compared horizontally gives
// 32x32 = 1024 bits, rendered as 256 hex characters.
const (
	hashCols = 33
	hashRows = 32
)

// ExactDigest returns the hex MD5 of the raw bytes. Collision resistance
// is irrelevant here; the digest only serves exact-match audit lookups.
func ExactDigest(buf []byte) string {
	sum := md5.Sum(buf)
	return hex.EncodeToString(sum[:])
}

// DecodeImage decodes PNG, JPEG, or GIF bytes into an image.
func DecodeImage(buf []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(buf))
	return img, err
}

// PerceptualHash computes the 1024-bit difference hash of an image:
// luminance sampled on a 33x32 grid, each bit comparing horizontally
// adjacent cells. Tolerant to recompression, sensitive to content.
func PerceptualHash(img image.Image) string {
	gray := sampleGrid(img)

	bits := make([]byte, hashRows*(hashCols-1)/8)
	i := 0
	for row := 0; row < hashRows; row++ {
		for col := 0; col < hashCols-1; col++ {
			if gray[row][col] > gray[row][col+1] {
				bits[i/8] |= 1 << (7 - i%8)
			}
			i++
		}
	}
	return hex.EncodeToString(bits)
}

// sampleGrid reduces the image to hashRows x hashCols luminance samples
// with nearest-neighbor picks; cheap and stable enough for hashing.
func sampleGrid(img image.Image) [hashRows][hashCols]float64 {
	var grid [hashRows][hashCols]float64
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return grid
	}
	for row := 0; row < hashRows; row++ {
		y := bounds.Min.Y + int(math.Floor((float64(row)+0.5)*float64(h)/hashRows))
		for col := 0; col < hashCols; col++ {
			x := bounds.Min.X + int(math.Floor((float64(col)+0.5)*float64(w)/hashCols))
			r, g, b, _ := img.At(x, y).RGBA()
			// Rec. 601 luma on 16-bit channel values.
			grid[row][col] = 0.299*float64(r) + 0.587*float64(g) + 0.114*float64(b)
		}
	}
	return grid
}

// FramePositions returns the frame indices sampled from an animated source
// with total frames: at most max indices, evenly distributed, first and
// last frames included. A single-frame source samples position 0.
func FramePositions(total, max int) []int {
	if total <= 0 {
		return nil
	}
	count := total
	if count > max {
		count = max
	}
	if count == 1 {
		return []int{0}
	}
	positions := make([]int, count)
	for i := 0; i < count; i++ {
		positions[i] = int(math.Round(float64(i) * float64(total-1) / float64(count-1)))
	}
	return positions
}

// JoinFingerprint joins non-empty per-frame hashes in sampling order.
// Returns "" when no frame produced a hash; callers treat "" as "no
// fingerprint, skip the duplicate check".
func JoinFingerprint(hashes []string) string {
	nonEmpty := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if h != "" {
			nonEmpty = append(nonEmpty, h)
		}
	}
	return strings.Join(nonEmpty, Delimiter)
}
