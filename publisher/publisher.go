// Package publisher turns a finished run into a report and delivers it.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"summary_review_workflow/generator"
	"summary_review_workflow/workflow"
)

// Format names a report rendering.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatHTML     Format = "html"
)

// ParseFormat accepts "md", "markdown" or "html"; empty means markdown.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "md", "markdown":
		return FormatMarkdown, nil
	case "html", "htm":
		return FormatHTML, nil
	default:
		return "", fmt.Errorf("unsupported report format %q", s)
	}
}

// FormatForPath picks the format from a file extension.
func FormatForPath(path string) (Format, error) {
	return ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
}

var md = goldmark.New(goldmark.WithExtensions(extension.GFM))

// RenderMarkdown renders the run as a Markdown report: title, summary, then the dialog.
func RenderMarkdown(st workflow.State) string {
	var b strings.Builder
	title := st.Title
	if title == "" {
		title = "Untitled summary"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "- Run: `%s`\n", st.RunID)
	fmt.Fprintf(&b, "- Outcome: %s\n", st.Outcome)
	if st.TerminatedBy != "" {
		fmt.Fprintf(&b, "- Terminated by: %s\n", st.TerminatedBy)
	}
	fmt.Fprintf(&b, "- Revisions: %d\n", st.RevisionCount)
	fmt.Fprintf(&b, "- Approved by reviewer: %t\n", st.Approved)
	if st.Err != "" {
		fmt.Fprintf(&b, "- Error: %s\n", st.Err)
	}

	summary := st.FinalSummary
	if summary == "" {
		summary = st.Summary
	}
	b.WriteString("\n## Summary\n\n")
	b.WriteString(strings.TrimSpace(summary))
	b.WriteString("\n")

	if len(st.DialogHistory) > 0 {
		b.WriteString("\n## Dialog\n\n")
		for _, d := range st.DialogHistory {
			if d.Progress != nil {
				continue
			}
			fmt.Fprintf(&b, "**%s** (%s)\n\n", d.Actor, d.Timestamp.Format(time.TimeOnly))
			for _, line := range strings.Split(strings.TrimSpace(d.Text), "\n") {
				fmt.Fprintf(&b, "> %s\n", line)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body{font-family:-apple-system,"Segoe UI",sans-serif;max-width:760px;margin:2em auto;line-height:1.6;padding:0 1em}
blockquote{border-left:3px solid #ccc;margin:0 0 1em;padding-left:1em;color:#444}
</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTML renders the Markdown report to a standalone HTML page.
func RenderHTML(st workflow.State) (string, error) {
	body, err := mdToHTML(RenderMarkdown(st))
	if err != nil {
		return "", err
	}
	title := st.Title
	if title == "" {
		title = "Untitled summary"
	}
	var buf bytes.Buffer
	err = pageTmpl.Execute(&buf, struct {
		Title string
		Body  template.HTML
	}{Title: title, Body: template.HTML(body)})
	if err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

// Render dispatches on format.
func Render(st workflow.State, format Format) (string, error) {
	switch format {
	case FormatMarkdown:
		return RenderMarkdown(st), nil
	case FormatHTML:
		return RenderHTML(st)
	default:
		return "", fmt.Errorf("unsupported report format %q", format)
	}
}

// WriteFile renders st in the format implied by path's extension and writes it.
func WriteFile(path string, st workflow.State) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	out, err := Render(st, format)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(out), 0o644)
}

func mdToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// digestLimit caps the webhook digest, in runes.
const digestLimit = 120

// Payload is the JSON body sent to the webhook.
type Payload struct {
	RunID        string `json:"run_id"`
	Title        string `json:"title"`
	Summary      string `json:"summary"`
	Digest       string `json:"digest"`
	ContentHTML  string `json:"content_html"`
	Approved     bool   `json:"approved"`
	Revisions    int    `json:"revisions"`
	Outcome      string `json:"outcome"`
	TerminatedBy string `json:"terminated_by,omitempty"`
}

// Publisher posts finished runs to a webhook.
type Publisher struct {
	url     string
	client  *http.Client
	verbose bool
	logger  *log.Logger
}

// New creates a Publisher for url.
func New(url string, client *http.Client, verbose bool, logger *log.Logger) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("webhook url is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{url: url, client: client, verbose: verbose, logger: logger}, nil
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Publish sends st to the webhook. Only completed runs are accepted.
func (p *Publisher) Publish(ctx context.Context, st workflow.State) error {
	if st.Outcome != workflow.OutcomeCompleted || !st.Complete() {
		return fmt.Errorf("run %s is not complete (outcome=%s)", st.RunID, st.Outcome)
	}
	contentHTML, err := mdToHTML(st.FinalSummary)
	if err != nil {
		return err
	}
	p.infof("Converted summary to HTML for run %s", st.RunID)

	payload := Payload{
		RunID:        st.RunID,
		Title:        st.Title,
		Summary:      st.FinalSummary,
		Digest:       generator.CompactText(st.FinalSummary, digestLimit),
		ContentHTML:  contentHTML,
		Approved:     st.Approved,
		Revisions:    st.RevisionCount,
		Outcome:      string(st.Outcome),
		TerminatedBy: st.TerminatedBy,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	p.infof("Published run %s to %s", st.RunID, p.url)
	return nil
}
