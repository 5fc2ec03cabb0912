package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	gomail "gopkg.in/mail.v2"

	"github.com/shanehull/idxscraper/internal/platform/config"
	"github.com/shanehull/idxscraper/internal/platform/testkit"
	"github.com/shanehull/idxscraper/internal/types"
)

func sampleDigest() Digest {
	now := time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC)
	return Digest{
		RunID:     "run-1",
		Window:    "20250801",
		Fetched:   2,
		Downloads: 1,
		Alerts: []types.Alert{
			{
				Kind:         types.AlertUnknownTitle,
				Ticker:       "BBCA",
				Title:        "Laporan <Bulanan>",
				PublishedAt:  "2025-08-01T10:00:00",
				MainLink:     "https://example.test/a.pdf",
				Label:        types.LabelUnknown,
				SimPrimary:   41,
				SimSecondary: 38,
				CreatedAt:    now,
			},
			{
				Kind:        types.AlertDownloadFailed,
				Title:       "Laporan Kepemilikan",
				PublishedAt: "2025-08-01T11:00:00",
				URL:         "https://example.test/b.pdf",
				Reason:      "status 404",
				CreatedAt:   now,
			},
		},
	}
}

func TestRender(t *testing.T) {
	msg, err := NewHTMLEmailRenderer().Render(sampleDigest())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if msg.Subject != "IDX Alerts: 2 need review (20250801)" {
		t.Fatalf("subject = %q", msg.Subject)
	}
	testkit.MustContain(t, msg.HTML, "BBCA")
	testkit.MustContain(t, msg.HTML, "Laporan &lt;Bulanan&gt;")
	testkit.MustContain(t, msg.HTML, `href="https://example.test/b.pdf"`)
	testkit.MustContain(t, msg.HTML, "status 404")
	testkit.MustContain(t, msg.HTML, "Run run-1")

	testkit.MustContain(t, msg.Text, "BBCA - Laporan <Bulanan>")
	testkit.MustContain(t, msg.Text, "URL: https://example.test/a.pdf")
	testkit.MustContain(t, msg.Text, "Reason: status 404")
}

func TestReportDigest(t *testing.T) {
	var buf bytes.Buffer
	ReportDigest(&buf, sampleDigest())
	out := buf.String()
	testkit.MustContain(t, out, "2 fetched, 1 downloaded, 2 alerts")
	testkit.MustContain(t, out, "ALERT #2 (download_failed)")
	if strings.Count(out, "--- ALERT") != 2 {
		t.Fatalf("want 2 alert blocks:\n%s", out)
	}
}

type recordingSender struct {
	sent []*RenderedMessage
	err  error
}

func (s *recordingSender) Send(msg *RenderedMessage) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func TestSendDigest(t *testing.T) {
	ctx := context.Background()
	r := NewHTMLEmailRenderer()

	t.Run("no alerts sends nothing", func(t *testing.T) {
		s := &recordingSender{}
		d := sampleDigest()
		d.Alerts = nil
		if err := SendDigest(ctx, r, s, d); err != nil {
			t.Fatalf("SendDigest: %v", err)
		}
		if len(s.sent) != 0 {
			t.Fatalf("sent %d messages", len(s.sent))
		}
	})

	t.Run("delivery failure is returned", func(t *testing.T) {
		s := &recordingSender{err: errors.New("smtp down")}
		if err := SendDigest(ctx, r, s, sampleDigest()); err == nil {
			t.Fatal("want error")
		}
		if len(s.sent) != 1 {
			t.Fatalf("sent %d messages", len(s.sent))
		}
	})
}

func TestEmailSender(t *testing.T) {
	var calls int
	var got *gomail.Dialer
	testkit.Swap(t, &dialAndSend, func(d *gomail.Dialer, m *gomail.Message) error {
		calls++
		got = d
		return nil
	})

	msg := &RenderedMessage{Subject: "s", Text: "t", HTML: "<p>h</p>"}

	if err := NewEmailSender(config.SMTP{Server: "smtp.test"}).Send(msg); err != nil {
		t.Fatalf("disabled Send: %v", err)
	}
	if calls != 0 {
		t.Fatal("disabled sender dialed")
	}

	cfg := config.SMTP{Server: "smtp.test", Port: 2525, User: "u@test.io", Pass: "p", To: "ops@test.io"}
	if err := NewEmailSender(cfg).Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if calls != 1 || got.Host != "smtp.test" || got.Port != 2525 {
		t.Fatalf("calls=%d dialer=%+v", calls, got)
	}
}
