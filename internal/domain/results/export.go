package results

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	exportWidth   = 600
	exportPadding = 24
	exportLineH   = 18
)

// Exporter renderiza un Summary a una imagen PNG compartible.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

// ExportPNG dibuja el diagnóstico + providers en una tarjeta simple.
func (e *Exporter) ExportPNG(s Summary) ([]byte, error) {
	lines := summaryLines(s)

	height := exportPadding*2 + exportLineH*len(lines)
	canvas := imaging.New(exportWidth, height, color.NRGBA{R: 255, G: 255, B: 255, A: 255})

	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(color.NRGBA{R: 30, G: 30, B: 30, A: 255}),
		Face: basicfont.Face7x13,
	}

	y := exportPadding + exportLineH
	for _, line := range lines {
		drawer.Dot = fixed.P(exportPadding, y)
		drawer.DrawString(line)
		y += exportLineH
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		return nil, fmt.Errorf("export png: %w", err)
	}
	return buf.Bytes(), nil
}

func summaryLines(s Summary) []string {
	lines := []string{
		s.Diagnosis.ConditionName,
		fmt.Sprintf("confidence: %.0f%%", s.Diagnosis.ConfidencePercent),
	}
	if s.Diagnosis.Description != "" {
		lines = append(lines, s.Diagnosis.Description)
	}

	if len(s.Providers) > 0 {
		lines = append(lines, "", "nearby veterinary care:")
		for i, p := range s.Providers {
			lines = append(lines, fmt.Sprintf("%d. %s (%.1f km) %s", i+1, p.Name, p.DistanceKm, p.Address))
		}
	} else {
		lines = append(lines, "", "no providers found nearby")
	}
	return lines
}
