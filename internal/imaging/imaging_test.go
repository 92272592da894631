package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"golang.org/x/image/bmp"
)

func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{255, 0, 0, 255})
		}
	}
	return img
}

func createTestJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, testImage(w, h), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func createTestPNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, testImage(w, h))
	return buf.Bytes()
}

func TestNormalizeSmallJPEGUnchanged(t *testing.T) {
	data := createTestJPEG(100, 100)
	result, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize JPEG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if result.Resized {
		t.Error("small image should not be resized")
	}
	if !bytes.Equal(result.Data, data) {
		t.Error("small image bytes should be kept")
	}
}

func TestNormalizePNGKeepsFormat(t *testing.T) {
	data := createTestPNG(2000, 1000)
	result, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize PNG: %v", err)
	}
	if result.MIME != "image/png" {
		t.Errorf("expected image/png, got %s", result.MIME)
	}

	img, format, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	if format != "png" {
		t.Errorf("expected png output, got %s", format)
	}
	if img.Bounds().Dx() != MaxDimension || img.Bounds().Dy() != MaxDimension/2 {
		t.Errorf("unexpected size %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}
}

func TestNormalizeDownscaleJPEG(t *testing.T) {
	data := createTestJPEG(1000, 2400)
	result, err := Normalize(data)
	if err != nil {
		t.Fatalf("Normalize large image: %v", err)
	}
	if !result.Resized {
		t.Error("expected resize")
	}

	img, _, err := image.Decode(bytes.NewReader(result.Data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > MaxDimension || bounds.Dy() > MaxDimension {
		t.Errorf("expected max %dx%d, got %dx%d", MaxDimension, MaxDimension, bounds.Dx(), bounds.Dy())
	}
}

func TestNormalizeGIFPassthrough(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(20, 10), nil); err != nil {
		t.Fatalf("encoding gif: %v", err)
	}
	result, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize GIF: %v", err)
	}
	if result.MIME != "image/gif" || result.Width != 20 || result.Height != 10 {
		t.Errorf("unexpected result %s %dx%d", result.MIME, result.Width, result.Height)
	}
}

func TestNormalizeBMPPassthrough(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage(8, 8)); err != nil {
		t.Fatalf("encoding bmp: %v", err)
	}
	result, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize BMP: %v", err)
	}
	if result.MIME != "image/bmp" {
		t.Errorf("expected image/bmp, got %s", result.MIME)
	}
}

func TestNormalizeInvalidFormat(t *testing.T) {
	_, err := Normalize([]byte("not an image"))
	if err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNormalizeCorruptWebP(t *testing.T) {
	data := []byte("RIFF\x10\x00\x00\x00WEBPVP8 garbage")
	_, err := Normalize(data)
	if err == nil {
		t.Error("expected error for corrupt webp")
	}
}

func TestNormalizeGIFDropsTrailingData(t *testing.T) {
	var buf bytes.Buffer
	if err := gif.Encode(&buf, testImage(4, 4), nil); err != nil {
		t.Fatalf("encoding gif: %v", err)
	}
	clean := buf.Len()
	buf.Write(make([]byte, 1<<20))

	result, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize GIF: %v", err)
	}
	if len(result.Data) > clean+1024 {
		t.Errorf("expected trailing data to be dropped, got %d bytes (clean %d)", len(result.Data), clean)
	}
}

func TestNormalizeBMPDropsTrailingData(t *testing.T) {
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, testImage(8, 8)); err != nil {
		t.Fatalf("encoding bmp: %v", err)
	}
	clean := buf.Len()
	buf.Write(make([]byte, 1<<20))

	result, err := Normalize(buf.Bytes())
	if err != nil {
		t.Fatalf("Normalize BMP: %v", err)
	}
	if len(result.Data) != clean {
		t.Errorf("expected %d bytes, got %d", clean, len(result.Data))
	}
}

func TestTrimRIFF(t *testing.T) {
	chunk := []byte("RIFF\x0c\x00\x00\x00WEBPVP8L\x00\x00\x00\x00")
	data := append(append([]byte{}, chunk...), make([]byte, 4096)...)

	got, err := trimRIFF(data)
	if err != nil {
		t.Fatalf("trimRIFF: %v", err)
	}
	if len(got) != 20 {
		t.Errorf("expected 20 bytes, got %d", len(got))
	}

	if _, err := trimRIFF([]byte("RIFF\xff\x00\x00\x00WEBP")); err == nil {
		t.Error("expected error for truncated data")
	}
}
