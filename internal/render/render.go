package render

import (
	"context"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/metrics"
	"github.com/postersnap/postersnap/internal/storage"
	"github.com/postersnap/postersnap/pkg/models"
)

const footerText = "Generated with PosterSnaps AI"

type dimensions struct {
	width  int
	height int
}

var formatDimensions = map[models.OutputFormat]dimensions{
	models.FormatSquare:   {1080, 1080},
	models.FormatPortrait: {1080, 1350},
	models.FormatStory:    {1080, 1920},
}

type palette struct {
	from string
	to   string
}

var stylePalettes = map[models.PosterStyle]palette{
	models.StyleNarrative: {"#667eea", "#764ba2"},
	models.StyleQuote:     {"#ff6b6b", "#feca57"},
	models.StylePointers:  {"#4ecdc4", "#45b7aa"},
}

// Renderer turns synthesized content into poster page artifacts. Pages are
// SVG; with object storage configured they are uploaded and referenced by
// presigned URL, otherwise (or when upload fails) they ship as inline
// base64 data URIs, so rendering always yields a usable artifact.
type Renderer struct {
	storage *storage.Storage
	logger  *logging.Logger
}

// New creates a renderer. storage may be nil for inline-only operation.
func New(st *storage.Storage, logger *logging.Logger) *Renderer {
	return &Renderer{storage: st, logger: logger}
}

// RenderPage renders one page and returns its artifact reference.
func (r *Renderer) RenderPage(ctx context.Context, posterID string, page int, content *models.PosterContent, style models.PosterStyle, format models.OutputFormat) (string, error) {
	svg := posterSVG(content, style, format)

	if r.storage != nil {
		url, err := r.storage.PutPage(ctx, posterID, page, []byte(svg))
		if err == nil {
			metrics.PagesRenderedTotal.WithLabelValues(string(format), "storage").Inc()
			return url, nil
		}
		r.logger.WithPosterID(posterID).ErrorWithErr("Page upload failed, inlining artifact", err)
	}

	metrics.PagesRenderedTotal.WithLabelValues(string(format), "inline").Inc()
	return dataURI(svg), nil
}

func dataURI(svg string) string {
	return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
}

func posterSVG(content *models.PosterContent, style models.PosterStyle, format models.OutputFormat) string {
	dims, ok := formatDimensions[format]
	if !ok {
		dims = formatDimensions[models.FormatSquare]
	}
	colors, ok := stylePalettes[style]
	if !ok {
		colors = stylePalettes[models.StyleNarrative]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`,
		dims.width, dims.height, dims.width, dims.height)
	fmt.Fprintf(&sb, `<defs><linearGradient id="bg" x1="0%%" y1="0%%" x2="100%%" y2="100%%">`+
		`<stop offset="0%%" stop-color="%s"/><stop offset="100%%" stop-color="%s"/>`+
		`</linearGradient></defs>`, colors.from, colors.to)
	fmt.Fprintf(&sb, `<rect width="%d" height="%d" fill="url(#bg)"/>`, dims.width, dims.height)

	centerX := dims.width / 2
	y := dims.height / 5

	fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle" fill="#ffffff" font-family="Arial, sans-serif" font-size="56" font-weight="bold">%s</text>`,
		centerX, y, escape(content.Headline))

	y += 90
	if content.Subtitle != "" {
		fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle" fill="#f0f0f0" font-family="Arial, sans-serif" font-size="32">%s</text>`,
			centerX, y, escape(content.Subtitle))
		y += 120
	}

	for _, bullet := range content.BulletPoints {
		fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle" fill="#ffffff" font-family="Arial, sans-serif" font-size="28">• %s</text>`,
			centerX, y, escape(bullet))
		y += 70
	}

	fmt.Fprintf(&sb, `<text x="%d" y="%d" text-anchor="middle" fill="#e0e0e0" font-family="Arial, sans-serif" font-size="20">%s</text>`,
		centerX, dims.height-40, footerText)
	sb.WriteString(`</svg>`)

	return sb.String()
}

func escape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}
