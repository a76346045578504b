package badge

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
)

const padding = 10 // horizontal padding per badge segment

var svgEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"'", "&apos;",
	`"`, "&quot;",
)

// geometry is the computed layout of a two-segment badge.
type geometry struct {
	labelW int
	valueW int
}

func (g geometry) total() int       { return g.labelW + g.valueW }
func (g geometry) labelCenter() int { return g.labelW / 2 }
func (g geometry) valueCenter() int { return g.labelW + g.valueW/2 }

// renderSVG produces a shields.io-compatible flat SVG badge. The font
// is embedded only when real font data was loaded.
func (e *Engine) renderSVG(b Badge) string {
	g := geometry{
		labelW: int(math.Round(e.metrics.TextWidth(b.Label))) + padding,
		valueW: int(math.Round(e.metrics.TextWidth(b.Value))) + padding,
	}

	var s strings.Builder
	fmt.Fprintf(&s, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="20">`, g.total())

	s.WriteString("<defs>")
	if data := e.metrics.FontData(); len(data) > 0 {
		fmt.Fprintf(&s, `<style type="text/css">%s</style>`, fontFaceCSS(e.metrics.FontName(), data))
	}
	s.WriteString(`<linearGradient id="b" x2="0" y2="100%">` +
		`<stop offset="0" stop-color="#bbb" stop-opacity=".1"/>` +
		`<stop offset="1" stop-opacity=".1"/>` +
		`</linearGradient></defs>`)

	fmt.Fprintf(&s, `<mask id="a"><rect width="%d" height="20" rx="3" fill="#fff"/></mask>`, g.total())
	fmt.Fprintf(&s, `<g mask="url(#a)">`+
		`<rect width="%d" height="20" fill="#555"/>`+
		`<rect x="%d" width="%d" height="20" fill="%s"/>`+
		`<rect width="%d" height="20" fill="url(#b)"/>`+
		`</g>`,
		g.labelW, g.labelW, g.valueW, svgEscaper.Replace(b.Color), g.total())

	family := fmt.Sprintf("'%s',Verdana,Geneva,sans-serif", e.metrics.FontName())
	fmt.Fprintf(&s, `<g fill="#fff" text-anchor="middle" font-family="%s" font-size="%g">`,
		svgEscaper.Replace(family), e.metrics.FontSize())
	writeShadowedText(&s, g.labelCenter(), b.Label)
	writeShadowedText(&s, g.valueCenter(), b.Value)
	s.WriteString("</g></svg>")

	return s.String()
}

// writeShadowedText emits the shields.io drop-shadow pair: a dark copy
// one pixel below the visible text.
func writeShadowedText(s *strings.Builder, x int, text string) {
	escaped := svgEscaper.Replace(text)
	fmt.Fprintf(s, `<text x="%d" y="15" fill="#010101" fill-opacity=".3">%s</text>`, x, escaped)
	fmt.Fprintf(s, `<text x="%d" y="14">%s</text>`, x, escaped)
}

// fontFaceCSS returns a CSS @font-face rule with the font embedded as base64.
func fontFaceCSS(name string, data []byte) string {
	kind, format := "ttf", "truetype"
	if otfMagic(data) {
		kind, format = "otf", "opentype"
	}
	return fmt.Sprintf(
		`@font-face{font-family:'%s';src:url(data:font/%s;base64,%s) format('%s')}`,
		name, kind, base64.StdEncoding.EncodeToString(data), format,
	)
}

// otfMagic reports whether the font bytes carry the OTF "OTTO" header.
func otfMagic(data []byte) bool {
	return len(data) >= 4 && string(data[:4]) == "OTTO"
}
