package badge

import (
	"fmt"
	"os"

	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
)

// FontMetrics holds measured glyph widths and font data for SVG
// embedding. Badges fall back to a static width table when no font
// file is configured.
type FontMetrics struct {
	name     string           // font family name
	size     float64          // point size
	data     []byte           // raw TTF/OTF bytes for base64 embedding, nil for fallback
	advances map[rune]float64 // measured glyph advances (printable ASCII)
	fallback float64          // average width for unmapped runes
}

// TextWidth returns the pixel width of s using measured glyph advances.
func (m *FontMetrics) TextWidth(s string) float64 {
	var w float64
	for _, r := range s {
		if adv, ok := m.advances[r]; ok {
			w += adv
		} else {
			w += m.fallback
		}
	}
	return w
}

// FontData returns the raw font bytes for SVG embedding, nil when the
// fallback table is in use.
func (m *FontMetrics) FontData() []byte { return m.data }

// FontName returns the font family name.
func (m *FontMetrics) FontName() string { return m.name }

// FontSize returns the configured point size.
func (m *FontMetrics) FontSize() float64 { return m.size }

// LoadFontFile loads a TTF/OTF from disk and measures glyph advances.
func LoadFontFile(name, path string, size float64) (*FontMetrics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading font %s: %w", path, err)
	}
	return LoadFont(name, data, size)
}

// LoadFont loads a TTF/OTF from raw bytes and measures glyph advances
// at the given size.
func LoadFont(name string, data []byte, size float64) (*FontMetrics, error) {
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing font %s: %w", name, err)
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size: size,
		DPI:  72,
	})
	if err != nil {
		return nil, fmt.Errorf("creating face for %s: %w", name, err)
	}
	defer face.Close()

	advances := make(map[rune]float64, 95)
	var total, count float64
	for r := rune(32); r < 127; r++ {
		adv, ok := face.GlyphAdvance(r)
		if !ok {
			continue
		}
		w := float64(adv) / 64 // 26.6 fixed point
		advances[r] = w
		total += w
		count++
	}

	fallback := size * 0.6
	if count > 0 {
		fallback = total / count
	}

	return &FontMetrics{
		name:     name,
		size:     size,
		data:     data,
		advances: advances,
		fallback: fallback,
	}, nil
}

// FallbackMetrics returns metrics approximating Verdana at 11px, the
// shields.io default, without embedding any font.
func FallbackMetrics() *FontMetrics {
	return &FontMetrics{
		name:     "Verdana",
		size:     11,
		advances: verdanaAdvances,
		fallback: 7.0,
	}
}
