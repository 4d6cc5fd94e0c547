package content

import (
	"fmt"

	"github.com/postersnap/postersnap/pkg/models"
)

var variationSuffixes = []string{
	"",
	" - Advanced Guide",
	" - Expert Tips",
	" - Pro Strategies",
	" - Master Class",
}

var variationFocuses = []string{
	"fundamentals and basics",
	"advanced techniques and strategies",
	"expert insights and best practices",
	"professional applications and use cases",
	"mastery and optimization",
}

func variationFocus(variation int) string {
	return variationFocuses[variation%len(variationFocuses)]
}

// fallback builds template content when no model backend is available. Topic
// plus variation index fully determine the output, which keeps pages of one
// poster distinct and retries reproducible.
func (s *Synthesizer) fallback(params Params) *models.PosterContent {
	topic := params.Input
	if params.InputMode == models.InputURL && params.Metadata != nil && params.Metadata.Title != "" {
		topic = params.Metadata.Title
	}

	suffix := variationSuffixes[params.Variation%len(variationSuffixes)]
	focus := variationFocus(params.Variation)

	var prefix string
	switch params.ContentType {
	case models.ContentTrending:
		prefix = "🔥 TRENDING: "
	case models.ContentAwareness:
		prefix = "🌟 AWARENESS: "
	default:
		prefix = "📚 LEARN: "
	}

	content := &models.PosterContent{
		Headline: prefix + topic + suffix,
	}

	switch params.Style {
	case models.StyleQuote:
		content.Subtitle = fmt.Sprintf("Wisdom on %s worth sharing", focus)
		content.BulletPoints = []string{
			fmt.Sprintf("\"Success in %s starts with %s\"", topic, focus),
			"Every expert was once a beginner",
			"Progress over perfection, always",
		}
	case models.StylePointers:
		content.Subtitle = fmt.Sprintf("Key pointers covering %s", focus)
		content.BulletPoints = []string{
			fmt.Sprintf("Start with the %s of %s", focus, topic),
			"Practice consistently and track results",
			"Learn from people ahead of you",
			"Review and refine your approach weekly",
		}
	default:
		content.Subtitle = fmt.Sprintf("The story of %s, told through %s", topic, focus)
		content.BulletPoints = []string{
			fmt.Sprintf("Why %s matters more than ever", topic),
			fmt.Sprintf("A closer look at %s", focus),
			"What this means for you going forward",
		}
	}

	content.Clamp()
	return content
}
