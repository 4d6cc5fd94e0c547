package models

// Metadata holds best-effort descriptive data extracted from a source URL.
type Metadata struct {
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url,omitempty"`
	Image       string `json:"image,omitempty"`
	Author      string `json:"author,omitempty"`
}
