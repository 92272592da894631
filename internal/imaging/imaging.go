package imaging

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"net/http"

	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/webp"
)

// MaxDimension is the maximum width or height of a stored attachment.
const MaxDimension = 1600

// JPEGQuality is the compression quality for re-encoded JPEGs.
const JPEGQuality = 85

// Extensions maps each accepted MIME type to its canonical file extension.
var Extensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Result is a normalized attachment.
type Result struct {
	Data    []byte
	MIME    string
	Width   int
	Height  int
	Resized bool
}

// Normalize validates image bytes by sniffing them (not trusting client
// headers) and keeps their format. JPEG, PNG and BMP images larger than
// MaxDimension are downscaled. GIF and BMP images are always re-encoded and
// WebP images are cut to their RIFF length, so nothing past the image data
// is kept.
func Normalize(data []byte) (*Result, error) {
	detected := http.DetectContentType(data)
	if _, ok := Extensions[detected]; !ok {
		return nil, fmt.Errorf("unsupported image format: %s", detected)
	}

	switch detected {
	case "image/jpeg", "image/png":
		return resize(data, detected)
	case "image/bmp":
		return reencodeBMP(data)
	case "image/gif":
		return reencodeGIF(data)
	}

	data, err := trimRIFF(data)
	if err != nil {
		return nil, err
	}
	cfg, err := webp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", detected, err)
	}
	return &Result{Data: data, MIME: detected, Width: cfg.Width, Height: cfg.Height}, nil
}

// trimRIFF drops anything after the RIFF chunk a WebP file declares.
func trimRIFF(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, fmt.Errorf("decoding image/webp: truncated header")
	}
	size := int64(binary.LittleEndian.Uint32(data[4:8])) + 8
	if size > int64(len(data)) {
		return nil, fmt.Errorf("decoding image/webp: truncated data")
	}
	return data[:size], nil
}

func reencodeGIF(data []byte) (*Result, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image/gif: %w", err)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("encoding image/gif: %w", err)
	}
	return &Result{Data: buf.Bytes(), MIME: "image/gif", Width: g.Config.Width, Height: g.Config.Height}, nil
}

func reencodeBMP(data []byte) (*Result, error) {
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image/bmp: %w", err)
	}
	scaled := downscale(img, MaxDimension)
	var buf bytes.Buffer
	if err := bmp.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encoding image/bmp: %w", err)
	}
	b := scaled.Bounds()
	return &Result{
		Data:    buf.Bytes(),
		MIME:    "image/bmp",
		Width:   b.Dx(),
		Height:  b.Dy(),
		Resized: scaled != img,
	}, nil
}

func resize(data []byte, mime string) (*Result, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding image: %w", err)
	}

	bounds := img.Bounds()
	scaled := downscale(img, MaxDimension)
	if scaled == img {
		return &Result{Data: data, MIME: mime, Width: bounds.Dx(), Height: bounds.Dy()}, nil
	}

	var buf bytes.Buffer
	if mime == "image/png" {
		err = png.Encode(&buf, scaled)
	} else {
		err = jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: JPEGQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", mime, err)
	}

	b := scaled.Bounds()
	return &Result{
		Data:    buf.Bytes(),
		MIME:    mime,
		Width:   b.Dx(),
		Height:  b.Dy(),
		Resized: true,
	}, nil
}

// downscale resizes the image so neither dimension exceeds maxDim.
// Uses high-quality Catmull-Rom interpolation.
// Returns the original image if already within bounds.
func downscale(img image.Image, maxDim int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()

	if w <= maxDim && h <= maxDim {
		return img
	}

	newW, newH := w, h
	if w > h {
		newW = maxDim
		newH = int(float64(h) * float64(maxDim) / float64(w))
	} else {
		newH = maxDim
		newW = int(float64(w) * float64(maxDim) / float64(h))
	}

	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
	return dst
}
