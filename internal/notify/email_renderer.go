package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	perr "github.com/shanehull/idxscraper/internal/platform/errors"
)

// HTMLEmailRenderer renders digests as HTML emails with a plain text fallback.
type HTMLEmailRenderer struct {
	tmpl *template.Template
}

// NewHTMLEmailRenderer creates a renderer with the default email template.
func NewHTMLEmailRenderer() *HTMLEmailRenderer {
	t := template.Must(template.New("email").Funcs(template.FuncMap{"link": alertLink}).Parse(emailHTMLTemplate))
	return &HTMLEmailRenderer{tmpl: t}
}

// Render produces an HTML email with plain text alternative.
func (r *HTMLEmailRenderer) Render(d Digest) (*RenderedMessage, error) {
	subject := fmt.Sprintf("IDX Alerts: %d need review (%s)", len(d.Alerts), d.Window)

	var htmlBuf bytes.Buffer
	if err := r.tmpl.Execute(&htmlBuf, d); err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "render HTML template")
	}

	return &RenderedMessage{
		Subject: subject,
		Text:    renderPlainText(d),
		HTML:    htmlBuf.String(),
	}, nil
}

// renderPlainText produces a readable plain text version for email clients that don't support HTML.
func renderPlainText(d Digest) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Window %s\n", d.Window))
	sb.WriteString(strings.Repeat("=", 50) + "\n\n")
	sb.WriteString(fmt.Sprintf("Fetched: %d  Downloaded: %d  Alerts: %d\n", d.Fetched, d.Downloads, len(d.Alerts)))
	if d.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n", d.RunID))
	}
	sb.WriteString("\n")

	for _, a := range d.Alerts {
		sb.WriteString(fmt.Sprintf("%s - %s\n", a.Ticker, a.Title))
		sb.WriteString(strings.Repeat("-", 20) + "\n")
		sb.WriteString(fmt.Sprintf("Kind: %s\n", a.Kind))
		sb.WriteString(fmt.Sprintf("Date: %s\n", a.PublishedAt))
		sb.WriteString(fmt.Sprintf("Scores: primary %d, alternate %d\n", a.SimPrimary, a.SimSecondary))
		if link := alertLink(a); link != "" {
			sb.WriteString(fmt.Sprintf("URL: %s\n", link))
		}
		if a.Reason != "" {
			sb.WriteString(fmt.Sprintf("Reason: %s\n", a.Reason))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
