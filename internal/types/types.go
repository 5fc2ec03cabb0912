package types

import (
	"time"
)

// Attachment is one document attached to an announcement
type Attachment struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Announcement is a normalized listing item. PublishedAt is kept as the naive
// local timestamp the source returned; the window filter parses it.
type Announcement struct {
	PublishedAt string       `json:"published_at"`
	Title       string       `json:"title"`
	Code        string       `json:"code"`
	MainLink    string       `json:"main_link,omitempty"`
	MainName    string       `json:"main_filename,omitempty"`
	Attachments []Attachment `json:"attachments"`
	ScrapedAt   time.Time    `json:"scraped_at"`
}

// Label is the outcome of title classification
type Label string

const (
	LabelIDX     Label = "IDX"
	LabelNonIDX  Label = "NON-IDX"
	LabelUnknown Label = "UNKNOWN"
)

// Dir returns the download sub-directory for a label
func (l Label) Dir() string {
	switch l {
	case LabelIDX:
		return "idx"
	case LabelNonIDX:
		return "non-idx"
	default:
		return "unknown"
	}
}

// Classified is an announcement plus its classification audit trail
type Classified struct {
	Announcement
	Label        Label `json:"label"`
	Confidence   int   `json:"confidence"`
	SimPrimary   int   `json:"sim_primary"`
	SimSecondary int   `json:"sim_secondary"`
}

// DownloadRecord is emitted once per stored (or dry-run) document
type DownloadRecord struct {
	Ticker    string `json:"ticker,omitempty"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Filename  string `json:"filename"`
	Timestamp string `json:"timestamp"`
	Category  Label  `json:"category,omitempty"`
}

// AlertKind tags why an announcement was flagged
type AlertKind string

const (
	AlertUnknownTitle   AlertKind = "unknown_title"
	AlertDownloadFailed AlertKind = "download_failed"
)

// Alert is a flagged announcement that needs a human look
type Alert struct {
	Kind         AlertKind `json:"kind"`
	Ticker       string    `json:"ticker,omitempty"`
	Title        string    `json:"title"`
	PublishedAt  string    `json:"published_at"`
	MainLink     string    `json:"main_link,omitempty"`
	URL          string    `json:"url,omitempty"`
	Label        Label     `json:"label"`
	Confidence   int       `json:"confidence"`
	SimPrimary   int       `json:"sim_primary"`
	SimSecondary int       `json:"sim_secondary"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewAlert builds an alert from a classified announcement
func NewAlert(kind AlertKind, c Classified, reason string, now time.Time) Alert {
	return Alert{
		Kind:         kind,
		Ticker:       c.Code,
		Title:        c.Title,
		PublishedAt:  c.PublishedAt,
		MainLink:     c.MainLink,
		Label:        c.Label,
		Confidence:   c.Confidence,
		SimPrimary:   c.SimPrimary,
		SimSecondary: c.SimSecondary,
		Reason:       reason,
		CreatedAt:    now,
	}
}
