package models

// Character limits for generated poster text. Overlong fields are clamped,
// never rejected.
const (
	MaxHeadlineLen = 60
	MaxSubtitleLen = 120
	MaxBulletLen   = 80

	MinBulletPoints = 3
	MaxBulletPoints = 5
)

// PosterContent is the structured text rendered onto one poster page.
type PosterContent struct {
	Headline     string   `json:"headline"`
	Subtitle     string   `json:"subtitle"`
	BulletPoints []string `json:"bulletPoints"`
	Pages        int      `json:"pages"`
}

// Clamp enforces the character and bullet-count limits in place.
func (c *PosterContent) Clamp() {
	c.Headline = truncate(c.Headline, MaxHeadlineLen)
	c.Subtitle = truncate(c.Subtitle, MaxSubtitleLen)
	if len(c.BulletPoints) > MaxBulletPoints {
		c.BulletPoints = c.BulletPoints[:MaxBulletPoints]
	}
	for i, p := range c.BulletPoints {
		c.BulletPoints[i] = truncate(p, MaxBulletLen)
	}
	if c.Pages < 1 {
		c.Pages = 1
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
