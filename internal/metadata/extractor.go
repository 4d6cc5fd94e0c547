package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/postersnap/postersnap/internal/config"
	"github.com/postersnap/postersnap/internal/metrics"
	"github.com/postersnap/postersnap/pkg/models"
)

var youtubeIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([A-Za-z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]{11})`),
}

// Extractor pulls page metadata (title, description, preview image) out of a
// source URL to seed content synthesis. YouTube links go through the Data API
// when a key is configured; everything else is scraped from the page HTML.
type Extractor struct {
	httpClient    *http.Client
	userAgent     string
	youtubeAPIKey string
	apiBaseURL    string
}

// New creates a metadata extractor.
func New(cfg config.MetadataConfig) *Extractor {
	return &Extractor{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		userAgent:     cfg.UserAgent,
		youtubeAPIKey: cfg.YouTubeAPIKey,
		apiBaseURL:    "https://www.googleapis.com/youtube/v3",
	}
}

// Extract fetches metadata for rawURL. Extraction is best-effort; callers
// treat a failure as "no metadata" rather than failing the job.
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*models.Metadata, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	if videoID := youtubeVideoID(rawURL); videoID != "" && e.youtubeAPIKey != "" {
		meta, err := e.extractYouTube(ctx, rawURL, videoID)
		if err != nil {
			metrics.MetadataExtractionsTotal.WithLabelValues("youtube", "error").Inc()
			return nil, err
		}
		metrics.MetadataExtractionsTotal.WithLabelValues("youtube", "success").Inc()
		return meta, nil
	}

	meta, err := e.extractWeb(ctx, rawURL)
	if err != nil {
		metrics.MetadataExtractionsTotal.WithLabelValues("web", "error").Inc()
		return nil, err
	}
	metrics.MetadataExtractionsTotal.WithLabelValues("web", "success").Inc()
	return meta, nil
}

func youtubeVideoID(rawURL string) string {
	for _, pattern := range youtubeIDPatterns {
		if m := pattern.FindStringSubmatch(rawURL); m != nil {
			return m[1]
		}
	}
	return ""
}

type youtubeResponse struct {
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Description  string `json:"description"`
			ChannelTitle string `json:"channelTitle"`
			Thumbnails   struct {
				High struct {
					URL string `json:"url"`
				} `json:"high"`
			} `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

func (e *Extractor) extractYouTube(ctx context.Context, rawURL, videoID string) (*models.Metadata, error) {
	endpoint := fmt.Sprintf("%s/videos?part=snippet&id=%s&key=%s", e.apiBaseURL, videoID, e.youtubeAPIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query video API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video API returned status %d", resp.StatusCode)
	}

	var result youtubeResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode video API response: %w", err)
	}
	if len(result.Items) == 0 {
		return nil, fmt.Errorf("video %s not found", videoID)
	}

	snippet := result.Items[0].Snippet
	return &models.Metadata{
		Title:       snippet.Title,
		Description: snippet.Description,
		URL:         rawURL,
		Image:       snippet.Thumbnails.High.URL,
		Author:      snippet.ChannelTitle,
	}, nil
}

func (e *Extractor) extractWeb(ctx context.Context, rawURL string) (*models.Metadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	// Some sites serve bots an empty shell; present a browser UA
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	meta := &models.Metadata{URL: rawURL}

	meta.Title = strings.TrimSpace(doc.Find("title").First().Text())
	if og, ok := metaContent(doc, `meta[property="og:title"]`); ok && og != "" {
		meta.Title = og
	}

	if desc, ok := metaContent(doc, `meta[name="description"]`); ok {
		meta.Description = desc
	}
	if og, ok := metaContent(doc, `meta[property="og:description"]`); ok && og != "" {
		meta.Description = og
	}

	if img, ok := metaContent(doc, `meta[property="og:image"]`); ok {
		meta.Image = img
	}
	if author, ok := metaContent(doc, `meta[name="author"]`); ok {
		meta.Author = author
	}

	return meta, nil
}

func metaContent(doc *goquery.Document, selector string) (string, bool) {
	content, ok := doc.Find(selector).First().Attr("content")
	return strings.TrimSpace(content), ok
}
