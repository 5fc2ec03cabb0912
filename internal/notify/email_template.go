package notify

const emailHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>IDX alerts {{.Window}}</title>
  <style>
    body {
      margin: 0;
      padding: 24px;
      background-color: #f3f4f6;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
      color: #111827;
      line-height: 1.5;
    }

    .container {
      max-width: 720px;
      margin: 0 auto;
      background: #ffffff;
      border-radius: 8px;
      border: 1px solid #e5e7eb;
      overflow: hidden;
    }

    .header {
      padding: 20px 24px;
      background: linear-gradient(135deg, #463737 0%, #37393b 100%);
      color: #ffffff;
    }

    .headline {
      font-size: 22px;
      font-weight: 700;
      letter-spacing: 0.03em;
      margin-bottom: 4px;
    }

    .subtitle {
      font-size: 14px;
      opacity: 0.9;
    }

    .section {
      padding: 16px 24px;
      border-top: 1px solid #f3f4f6;
    }

    .section-title {
      font-size: 11px;
      font-weight: 700;
      color: #6b7280;
      text-transform: uppercase;
      letter-spacing: 0.1em;
      margin-bottom: 12px;
    }

    table.alerts {
      width: 100%;
      border-collapse: collapse;
      font-size: 13px;
    }

    table.alerts th {
      text-align: left;
      padding: 6px 8px;
      color: #6b7280;
      font-weight: 600;
      border-bottom: 1px solid #e5e7eb;
    }

    table.alerts td {
      padding: 8px;
      vertical-align: top;
      border-bottom: 1px solid #f3f4f6;
    }

    .kind {
      display: inline-block;
      padding: 2px 6px;
      font-size: 10px;
      font-weight: 600;
      background: #fef3c7;
      color: #92400e;
      border-radius: 3px;
      text-transform: uppercase;
    }

    .reason {
      color: #6b7280;
      font-size: 12px;
    }

    .footer {
      padding: 16px 24px;
      font-size: 12px;
      color: #9ca3af;
      text-align: center;
      background: #f9fafb;
      border-top: 1px solid #f3f4f6;
    }

    a {
      color: #0b3d91;
      text-decoration: none;
    }
  </style>
</head>
<body>
  <div class="container">
    <div class="header">
      <div class="headline">{{len .Alerts}} announcements need review</div>
      <div class="subtitle">Window {{.Window}} · {{.Fetched}} fetched · {{.Downloads}} downloaded</div>
    </div>

    <div class="section">
      <div class="section-title">Alerts</div>
      <table class="alerts">
        <tr><th>Ticker</th><th>Title</th><th>Published</th><th>Scores</th></tr>
        {{range .Alerts}}
        <tr>
          <td><strong>{{if .Ticker}}{{.Ticker}}{{else}}NA{{end}}</strong><br /><span class="kind">{{.Kind}}</span></td>
          <td>
            {{with link .}}<a href="{{.}}" target="_blank" rel="noopener">{{end}}{{.Title}}{{if link .}}</a>{{end}}
            {{if .Reason}}<div class="reason">{{.Reason}}</div>{{end}}
          </td>
          <td>{{.PublishedAt}}</td>
          <td>{{.SimPrimary}} / {{.SimSecondary}}</td>
        </tr>
        {{end}}
      </table>
    </div>

    <div class="footer">
      {{if .RunID}}Run {{.RunID}} · {{end}}Generated by <a href="https://github.com/shanehull/idxscraper" target="_blank" rel="noopener">idxscraper</a>
    </div>
  </div>
</body>
</html>`
