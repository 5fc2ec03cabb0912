/*
Package notify reports the alerts of a run on the console and, when SMTP is
configured, as an email digest.
*/
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shanehull/idxscraper/internal/platform/logger"
	"github.com/shanehull/idxscraper/internal/types"
)

// Digest is everything a run reports to a human
type Digest struct {
	RunID     string
	Window    string
	Fetched   int
	Downloads int
	Alerts    []types.Alert
}

// RenderedMessage is a ready-to-send email
type RenderedMessage struct {
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a rendered message
type Sender interface {
	Send(msg *RenderedMessage) error
}

// Renderer turns a digest into a message
type Renderer interface {
	Render(d Digest) (*RenderedMessage, error)
}

// ReportDigest prints a console summary of d
func ReportDigest(w io.Writer, d Digest) {
	line := strings.Repeat("=", 43)
	fmt.Fprintln(w, "\n"+line)
	fmt.Fprintf(w, "Window %s: %d fetched, %d downloaded, %d alerts\n", d.Window, d.Fetched, d.Downloads, len(d.Alerts))
	fmt.Fprintln(w, line)

	for i, a := range d.Alerts {
		fmt.Fprintf(w, "\n--- ALERT #%d (%s) ---\n", i+1, a.Kind)
		fmt.Fprintf(w, "Ticker: %s\n", a.Ticker)
		fmt.Fprintf(w, "Title:  %s\n", a.Title)
		fmt.Fprintf(w, "Date:   %s\n", a.PublishedAt)
		fmt.Fprintf(w, "Scores: primary %d, alternate %d (label %s)\n", a.SimPrimary, a.SimSecondary, a.Label)
		if link := alertLink(a); link != "" {
			fmt.Fprintf(w, "URL:    %s\n", link)
		}
		if a.Reason != "" {
			fmt.Fprintf(w, "Reason: %s\n", a.Reason)
		}
	}
}

// SendDigest renders and sends d. Nothing is sent when there are no alerts.
// Delivery failures are logged and returned; callers treat them as non-fatal.
func SendDigest(ctx context.Context, r Renderer, s Sender, d Digest) error {
	log := logger.C(ctx).With().Str("component", "notify").Logger()
	if len(d.Alerts) == 0 {
		log.Debug().Msg("no alerts, skipping digest")
		return nil
	}

	msg, err := r.Render(d)
	if err != nil {
		log.Error().Err(err).Msg("render digest")
		return err
	}
	if err := s.Send(msg); err != nil {
		log.Warn().Err(err).Str("subject", msg.Subject).Msg("digest not delivered")
		return err
	}
	log.Info().Str("subject", msg.Subject).Int("alerts", len(d.Alerts)).Msg("digest sent")
	return nil
}

func alertLink(a types.Alert) string {
	if a.URL != "" {
		return a.URL
	}
	return a.MainLink
}
