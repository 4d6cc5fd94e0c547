package models

import "time"

// Poster represents one poster-generation job and its lifecycle record.
type Poster struct {
	ID           string       `json:"id" db:"id"`
	UserID       string       `json:"userId,omitempty" db:"user_id"`
	SessionID    string       `json:"sessionId" db:"session_id"`
	InputMode    InputMode    `json:"inputMode" db:"input_mode"`
	InputValue   string       `json:"inputValue" db:"input_value"`
	Style        PosterStyle  `json:"style" db:"style"`
	ContentType  ContentType  `json:"contentType" db:"content_type"`
	OutputFormat OutputFormat `json:"outputFormat" db:"output_format"`
	MinPages     int          `json:"minPages" db:"min_pages"`
	MaxPages     int          `json:"maxPages" db:"max_pages"`
	Status       PosterStatus `json:"status" db:"status"`
	PosterURLs   []string     `json:"posterUrls,omitempty" db:"poster_urls"`
	ErrorMsg     string       `json:"errorMessage,omitempty" db:"error_msg"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// PosterStatus enumerates job lifecycle states.
type PosterStatus string

const (
	PosterStatusProcessing PosterStatus = "processing"
	PosterStatusCompleted  PosterStatus = "completed"
	PosterStatusFailed     PosterStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s PosterStatus) Terminal() bool {
	return s == PosterStatusCompleted || s == PosterStatusFailed
}

// PosterStyle selects the visual and textual treatment of a poster.
type PosterStyle string

const (
	StyleNarrative PosterStyle = "narrative"
	StyleQuote     PosterStyle = "quote"
	StylePointers  PosterStyle = "pointers"
)

// ContentType selects the editorial angle of the generated text.
type ContentType string

const (
	ContentTrending    ContentType = "trending"
	ContentAwareness   ContentType = "awareness"
	ContentInformative ContentType = "informative"
)

// OutputFormat selects the canvas size of the rendered poster.
type OutputFormat string

const (
	FormatSquare   OutputFormat = "square"
	FormatPortrait OutputFormat = "portrait"
	FormatStory    OutputFormat = "story"
)

// InputMode distinguishes keyword topics from source URLs.
type InputMode string

const (
	InputKeyword InputMode = "keyword"
	InputURL     InputMode = "url"
)

// Page bounds accepted at submit time.
const (
	MinPagesLower = 1
	MaxPagesUpper = 5
)

// ValidStyle reports whether s is a known poster style.
func ValidStyle(s PosterStyle) bool {
	switch s {
	case StyleNarrative, StyleQuote, StylePointers:
		return true
	}
	return false
}

// ValidContentType reports whether c is a known content type.
func ValidContentType(c ContentType) bool {
	switch c {
	case ContentTrending, ContentAwareness, ContentInformative:
		return true
	}
	return false
}

// ValidOutputFormat reports whether f is a known output format.
func ValidOutputFormat(f OutputFormat) bool {
	switch f {
	case FormatSquare, FormatPortrait, FormatStory:
		return true
	}
	return false
}

// ValidInputMode reports whether m is a known input mode.
func ValidInputMode(m InputMode) bool {
	return m == InputKeyword || m == InputURL
}
