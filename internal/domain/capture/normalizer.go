package capture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"pet-skin-triage/internal/platform/logger"
)

const (
	// TargetSize es el lado del output normalizado (lo que espera el modelo).
	TargetSize = 224
	// JPEGQuality fija la calidad de encoding del output.
	JPEGQuality = 90
)

var (
	ErrInvalidInput = errors.New("invalid capture input")
	// ErrEncode: no se pudo producir el output N×N (decode imposible,
	// recorte fuera de la imagen, o fallo del encoder). Nunca se devuelve
	// una imagen de tamaño parcial.
	ErrEncode = errors.New("image encode failed")
)

type Normalizer struct {
	target  int
	quality int
	log     logger.Logger
}

func NewNormalizer(log logger.Logger) *Normalizer {
	if log == nil {
		log = logger.Nop()
	}
	return &Normalizer{
		target:  TargetSize,
		quality: JPEGQuality,
		log:     log,
	}
}

// Normalize mapea el recorte (en coordenadas mostradas) a pixels naturales,
// recorta, escala a Target×Target y encodea JPEG a calidad fija.
func (n *Normalizer) Normalize(in CapturedImage) (NormalizedImage, error) {
	if len(in.RawBytes) == 0 {
		return NormalizedImage{}, fmt.Errorf("%w: empty image", ErrInvalidInput)
	}
	if in.View.Width <= 0 || in.View.Height <= 0 {
		return NormalizedImage{}, fmt.Errorf("%w: viewport must be positive", ErrInvalidInput)
	}
	if in.Crop.Size <= 0 {
		return NormalizedImage{}, fmt.Errorf("%w: crop size must be positive", ErrInvalidInput)
	}

	img, err := decodeBytes(in.RawBytes)
	if err != nil {
		return NormalizedImage{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	bounds := img.Bounds()
	naturalW := float64(bounds.Dx())
	naturalH := float64(bounds.Dy())

	// displayed -> natural
	scaleX := naturalW / in.View.Width
	scaleY := naturalH / in.View.Height

	x0 := int(in.Crop.X * scaleX)
	y0 := int(in.Crop.Y * scaleY)
	x1 := int((in.Crop.X + in.Crop.Size) * scaleX)
	y1 := int((in.Crop.Y + in.Crop.Size) * scaleY)

	rect := image.Rect(x0, y0, x1, y1).Add(bounds.Min).Intersect(bounds)
	if rect.Empty() {
		return NormalizedImage{}, fmt.Errorf("%w: crop outside image bounds", ErrEncode)
	}

	cropped := imaging.Crop(img, rect)

	// Fill garantiza dimensiones exactas aunque el recorte mapeado no quede
	// perfectamente cuadrado por redondeo.
	out := imaging.Fill(cropped, n.target, n.target, imaging.Center, imaging.Lanczos)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: n.quality}); err != nil {
		return NormalizedImage{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	n.log.Debug("image normalized", map[string]any{
		"natural_w": int(naturalW),
		"natural_h": int(naturalH),
		"crop_rect": rect.String(),
		"out_bytes": buf.Len(),
	})

	return NormalizedImage{
		PixelWidth:   n.target,
		PixelHeight:  n.target,
		EncodedBytes: buf.Bytes(),
	}, nil
}

// decodeBytes intenta los decoders registrados (jpeg/png/webp via x/image)
// y cae a webp explícito para archivos que el registro no reconoce.
func decodeBytes(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, errors.New("unknown or unsupported image format")
}
