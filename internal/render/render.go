// Package render turns a finished digest into a standalone HTML page.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"

	"github.com/deusflow/dailyletter/internal/digest"
)

// Card is one entry as shown on the page.
type Card struct {
	Title   string
	Link    string
	Summary string
}

// Section is a run of consecutive entries from the same source.
type Section struct {
	Source string
	Cards  []Card
}

type page struct {
	Date     string
	Hours    int
	Count    int
	Sections []Section
}

var pageTmpl = template.Must(template.New("digest").Parse(`<!DOCTYPE html><html><head><meta charset="utf-8"><style>
body{font-family:-apple-system,BlinkMacSystemFont,Segoe UI,sans-serif;max-width:600px;margin:0 auto;padding:20px}
h1{color:#1a73e8;border-bottom:2px solid #1a73e8;padding-bottom:10px}
h2{color:#444;font-size:16px;margin-top:25px;border-left:3px solid #1a73e8;padding-left:10px}
.item{margin:15px 0;padding:12px;background:#f8f9fa;border-radius:8px}
.title{font-weight:600;color:#1a73e8;text-decoration:none}
.summary{color:#555;font-size:14px;margin-top:8px}
.footer{margin-top:30px;padding-top:15px;border-top:1px solid #ddd;color:#999;font-size:12px;text-align:center}
</style></head><body>
<h1>📰 科技日报 {{.Date}}</h1>
<p>过去{{.Hours}}小时共 <strong>{{.Count}}</strong> 条精选</p>
{{range .Sections}}<h2>{{.Source}}</h2>
{{range .Cards}}<div class="item"><a href="{{.Link}}" class="title">{{.Title}}</a>
<div class="summary">📝 {{.Summary}}</div></div>
{{end}}{{end}}<div class="footer">🤖 摘要由 AI 生成<br>📧 每日自动推送</div>
</body></html>
`))

// HTML renders doc. The count line always matches the number of cards.
func HTML(doc *digest.Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("render: nil document")
	}

	p := page{
		Date:     doc.GeneratedAt.Format("2006-01-02 Mon"),
		Hours:    doc.LookbackHours,
		Count:    len(doc.Entries),
		Sections: Sections(doc.Entries),
	}

	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		return nil, fmt.Errorf("render digest: %w", err)
	}
	return buf.Bytes(), nil
}

// Sections groups entries by source, starting a new section each time the
// source differs from the previous entry. A source that reappears later
// gets a second section.
func Sections(entries []digest.Entry) []Section {
	var out []Section
	for _, e := range entries {
		if len(out) == 0 || out[len(out)-1].Source != e.Source {
			out = append(out, Section{Source: e.Source})
		}
		last := &out[len(out)-1]
		last.Cards = append(last.Cards, Card{
			Title:   e.Title,
			Link:    safeLink(e.Link),
			Summary: e.Summary,
		})
	}
	return out
}

// safeLink passes through absolute http(s) URLs and replaces anything else
// with "#".
func safeLink(link string) string {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "#"
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "#"
	}
	return u.String()
}
