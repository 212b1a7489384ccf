package capture

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodeTestImage(t *testing.T, w, h int, as string) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8((x * 7) % 256), G: uint8((y * 13) % 256), B: 60, A: 255})
		}
	}
	var buf bytes.Buffer
	var err error
	switch as {
	case "png":
		err = png.Encode(&buf, img)
	default:
		err = jpeg.Encode(&buf, img, nil)
	}
	if err != nil {
		t.Fatalf("encode %s: %v", as, err)
	}
	return buf.Bytes()
}

func TestNormalize_AlwaysSquareOutput(t *testing.T) {
	n := NewNormalizer(nil)

	cases := []struct {
		name string
		w, h int
		as   string
		crop CropRegion
		view Viewport
	}{
		{"landscape jpeg", 1024, 768, "jpeg", CropRegion{X: 100, Y: 50, Size: 200}, Viewport{Width: 512, Height: 384}},
		{"portrait jpeg", 480, 800, "jpeg", CropRegion{X: 20, Y: 120, Size: 180}, Viewport{Width: 240, Height: 400}},
		{"square png", 600, 600, "png", CropRegion{X: 0, Y: 0, Size: 300}, Viewport{Width: 300, Height: 300}},
		{"tiny source", 64, 48, "jpeg", CropRegion{X: 2, Y: 2, Size: 20}, Viewport{Width: 64, Height: 48}},
		{"view equals natural", 900, 900, "jpeg", CropRegion{X: 300, Y: 300, Size: 400}, Viewport{Width: 900, Height: 900}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := n.Normalize(CapturedImage{
				RawBytes: encodeTestImage(t, tc.w, tc.h, tc.as),
				Crop:     tc.crop,
				View:     tc.view,
			})
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if out.PixelWidth != TargetSize || out.PixelHeight != TargetSize {
				t.Fatalf("reported size %dx%d, want %dx%d", out.PixelWidth, out.PixelHeight, TargetSize, TargetSize)
			}

			decoded, err := jpeg.Decode(bytes.NewReader(out.EncodedBytes))
			if err != nil {
				t.Fatalf("output is not a decodable jpeg: %v", err)
			}
			b := decoded.Bounds()
			if b.Dx() != TargetSize || b.Dy() != TargetSize {
				t.Fatalf("actual pixels %dx%d, want %dx%d", b.Dx(), b.Dy(), TargetSize, TargetSize)
			}
		})
	}
}

func TestNormalize_PartialOverlapStillSquare(t *testing.T) {
	n := NewNormalizer(nil)

	// El recorte se sale por la esquina inferior derecha: se intersecta con la
	// imagen y aun así el output debe ser Target×Target exacto.
	out, err := n.Normalize(CapturedImage{
		RawBytes: encodeTestImage(t, 400, 300, "jpeg"),
		Crop:     CropRegion{X: 350, Y: 250, Size: 120},
		View:     Viewport{Width: 400, Height: 300},
	})
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	decoded, err := jpeg.Decode(bytes.NewReader(out.EncodedBytes))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if b := decoded.Bounds(); b.Dx() != TargetSize || b.Dy() != TargetSize {
		t.Fatalf("got %dx%d, want %dx%d", b.Dx(), b.Dy(), TargetSize, TargetSize)
	}
}

func TestNormalize_CropOutsideBounds(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize(CapturedImage{
		RawBytes: encodeTestImage(t, 200, 200, "jpeg"),
		Crop:     CropRegion{X: 500, Y: 500, Size: 100},
		View:     Viewport{Width: 200, Height: 200},
	})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode for out-of-bounds crop, got %v", err)
	}
}

func TestNormalize_UndecodableBytes(t *testing.T) {
	n := NewNormalizer(nil)

	_, err := n.Normalize(CapturedImage{
		RawBytes: []byte("definitely not an image"),
		Crop:     CropRegion{X: 0, Y: 0, Size: 10},
		View:     Viewport{Width: 100, Height: 100},
	})
	if !errors.Is(err, ErrEncode) {
		t.Fatalf("expected ErrEncode for garbage bytes, got %v", err)
	}
}

func TestNormalize_InvalidInput(t *testing.T) {
	n := NewNormalizer(nil)
	raw := encodeTestImage(t, 100, 100, "jpeg")

	cases := []struct {
		name string
		in   CapturedImage
	}{
		{"empty bytes", CapturedImage{Crop: CropRegion{Size: 10}, View: Viewport{Width: 100, Height: 100}}},
		{"zero viewport", CapturedImage{RawBytes: raw, Crop: CropRegion{Size: 10}}},
		{"negative viewport", CapturedImage{RawBytes: raw, Crop: CropRegion{Size: 10}, View: Viewport{Width: -1, Height: 100}}},
		{"zero crop size", CapturedImage{RawBytes: raw, View: Viewport{Width: 100, Height: 100}}},
		{"negative crop size", CapturedImage{RawBytes: raw, Crop: CropRegion{Size: -5}, View: Viewport{Width: 100, Height: 100}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := n.Normalize(tc.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
}
