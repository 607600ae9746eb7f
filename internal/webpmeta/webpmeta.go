// Package webpmeta classifies WebP buffers as animated or static by
// reading the container header, without decoding pixel data.
package webpmeta

// Layout of an extended-format WebP file:
//
//	offset 0..3   "RIFF"
//	offset 4..7   file size
//	offset 8..11  "WEBP"
//	offset 12..15 "VP8X" (extended-format chunk tag)
//	offset 16..19 chunk size
//	offset 20     feature flags; bit 0x02 is the animation flag
const (
	vp8xFlagsOffset = 20
	animationFlag   = 0x02
	minHeaderLen    = vp8xFlagsOffset + 1
)

// IsAnimated reports whether buf is an animated WebP container. Truncated,
// malformed, or non-WebP buffers are static; this never fails.
func IsAnimated(buf []byte) bool {
	if len(buf) < minHeaderLen {
		return false
	}
	if string(buf[0:4]) != "RIFF" {
		return false
	}
	if string(buf[8:12]) != "WEBP" {
		return false
	}
	// Simple-format files ("VP8 "/"VP8L") carry exactly one frame.
	if string(buf[12:16]) != "VP8X" {
		return false
	}
	return buf[vp8xFlagsOffset]&animationFlag != 0
}
