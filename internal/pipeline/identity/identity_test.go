package identity

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"
)

func TestExactDigestDeterministic(t *testing.T) {
	a := ExactDigest([]byte("hello"))
	b := ExactDigest([]byte("hello"))
	if a != b {
		t.Errorf("digest should be deterministic: %s != %s", a, b)
	}
	if len(a) != 32 {
		t.Errorf("md5 hex should be 32 chars, got %d", len(a))
	}
	if ExactDigest([]byte("hello!")) == a {
		t.Error("one-byte change must alter the digest")
	}
}

func gradient(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8(255 * x / w)})
		}
	}
	return img
}

func TestPerceptualHashFormat(t *testing.T) {
	hash := PerceptualHash(gradient(200, 100))
	if len(hash) != 256 {
		t.Errorf("expected 256 hex chars (1024 bits), got %d", len(hash))
	}
	for _, c := range hash {
		if !strings.ContainsRune("0123456789abcdef", c) {
			t.Fatalf("non-hex character %q in hash", c)
		}
	}
}

func TestPerceptualHashStability(t *testing.T) {
	img := gradient(320, 240)
	if PerceptualHash(img) != PerceptualHash(img) {
		t.Error("hash should be deterministic")
	}

	// Resize tolerance: same gradient at a different scale hashes equal
	small := gradient(64, 48)
	if PerceptualHash(img) != PerceptualHash(small) {
		t.Error("dHash should be tolerant to resizing the same content")
	}

	// A horizontally mirrored gradient flips every comparison
	flipped := image.NewGray(image.Rect(0, 0, 320, 240))
	for y := 0; y < 240; y++ {
		for x := 0; x < 320; x++ {
			flipped.SetGray(x, y, color.Gray{Y: uint8(255 * (319 - x) / 320)})
		}
	}
	if PerceptualHash(img) == PerceptualHash(flipped) {
		t.Error("mirrored content must hash differently")
	}
}

func TestDecodeImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, gradient(10, 10)); err != nil {
		t.Fatalf("encode: %v", err)
	}
	img, err := DecodeImage(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if img.Bounds().Dx() != 10 {
		t.Errorf("unexpected bounds: %v", img.Bounds())
	}

	if _, err := DecodeImage([]byte("not an image")); err == nil {
		t.Error("expected error for garbage input")
	}
}

func TestFramePositions(t *testing.T) {
	cases := []struct {
		total, max int
		want       []int
	}{
		{1, 5, []int{0}},
		{2, 5, []int{0, 1}},
		{5, 5, []int{0, 1, 2, 3, 4}},
		{10, 5, []int{0, 2, 5, 7, 9}},
		{100, 5, []int{0, 25, 50, 74, 99}},
		{3, 5, []int{0, 1, 2}},
		{0, 5, nil},
		{-1, 5, nil},
	}
	for _, c := range cases {
		got := FramePositions(c.total, c.max)
		if len(got) != len(c.want) {
			t.Errorf("FramePositions(%d,%d) = %v, want %v", c.total, c.max, got, c.want)
			continue
		}
		for i := range got {
			if got[i] != c.want[i] {
				t.Errorf("FramePositions(%d,%d) = %v, want %v", c.total, c.max, got, c.want)
				break
			}
		}
	}
}

func TestJoinFingerprint(t *testing.T) {
	if got := JoinFingerprint([]string{"aa", "", "bb"}); got != "aa:bb" {
		t.Errorf("expected aa:bb, got %q", got)
	}
	if got := JoinFingerprint([]string{"", ""}); got != "" {
		t.Errorf("all-empty join should be empty, got %q", got)
	}
	if got := JoinFingerprint(nil); got != "" {
		t.Errorf("nil join should be empty, got %q", got)
	}
	if got := JoinFingerprint([]string{"solo"}); got != "solo" {
		t.Errorf("single hash should not gain a delimiter, got %q", got)
	}
}
