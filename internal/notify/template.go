package notify

import (
	"bytes"
	"errors"
	"strings"
	"text/template"
	"time"

	"attorney-splits/internal/splits/application"
)

const DefaultTemplate = `[Attorney Splits]
{{ if .FirmID }}Firm: {{.FirmID}}
{{ end }}{{ if .Source }}Source: {{.Source}}
{{ end }}Matters: {{.Matters}}
{{ if gt .Dropped 0 }}Dropped rows: {{.Dropped}}
{{ end }}{{ if .Generated }}Generated: {{.Generated}}
{{ end }}{{ range .Warnings }}Warning: {{.}}
{{ end }}`

// TemplateData provides fields for rendering notice content.
type TemplateData struct {
	RunID     string
	FirmID    string
	Source    string
	Matters   int
	Dropped   int
	Generated string
	Warnings  []string
}

func templateData(n application.ReportNotice) TemplateData {
	data := TemplateData{
		RunID:    n.RunID,
		FirmID:   n.FirmID,
		Source:   n.Source,
		Matters:  n.Matters,
		Dropped:  n.Dropped,
		Warnings: n.Warnings,
	}
	if !n.GeneratedAt.IsZero() {
		data.Generated = n.GeneratedAt.UTC().Format(time.RFC3339)
	}
	return data
}

// Template renders notice content.
type Template struct {
	tpl *template.Template
}

// NewTemplate parses a notice template, falling back to DefaultTemplate.
func NewTemplate(tpl string) (*Template, error) {
	if strings.TrimSpace(tpl) == "" {
		tpl = DefaultTemplate
	}
	parsed, err := template.New("report-notice").Parse(tpl)
	if err != nil {
		return nil, err
	}
	return &Template{tpl: parsed}, nil
}

// Render applies the template to a notice.
func (t *Template) Render(notice application.ReportNotice) (string, error) {
	if t == nil || t.tpl == nil {
		return "", errors.New("notice template: nil")
	}
	var buf bytes.Buffer
	if err := t.tpl.Execute(&buf, templateData(notice)); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}
