package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	findingdm "github.com/frahmantamala/redteam-collab/internal/core/datamodel/finding"
	"github.com/frahmantamala/redteam-collab/internal/finding"
)

//go:embed report.html.tmpl
var documentSource string

var documentTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"formatDate": func(t time.Time) string { return t.Format("Jan 2, 2006") },
	"upper":      strings.ToUpper,
}).Parse(documentSource))

type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

// Summarize counts findings per severity. Unknown severities are ignored.
func Summarize(findings []*findingdm.Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case finding.SeverityCritical:
			s.Critical++
		case finding.SeverityHigh:
			s.High++
		case finding.SeverityMedium:
			s.Medium++
		case finding.SeverityLow:
			s.Low++
		}
	}
	return s
}

type DocumentFinding struct {
	Title       string
	Description string
	Severity    string
	Category    string
	Status      string
	CVSSScore   string
	AffectedURL string
	Payload     string
	ReportedBy  string
	CreatedAt   time.Time
}

// Document is everything the HTML template reads.
type Document struct {
	Title       string
	Description string
	GeneratedBy string
	GeneratedAt time.Time
	Format      string
	Findings    []DocumentFinding
	Summary     Summary
}

// NewDocument builds the template input. reporters maps user id to display name.
func NewDocument(title, description, generatedBy, format string, findings []*findingdm.Finding, reporters map[string]string, at time.Time) Document {
	doc := Document{
		Title:       title,
		Description: description,
		GeneratedBy: generatedBy,
		GeneratedAt: at,
		Format:      format,
		Findings:    make([]DocumentFinding, 0, len(findings)),
		Summary:     Summarize(findings),
	}
	for _, f := range findings {
		doc.Findings = append(doc.Findings, DocumentFinding{
			Title:       f.Title,
			Description: f.Description,
			Severity:    f.Severity,
			Category:    f.Category,
			Status:      f.Status,
			CVSSScore:   f.CVSSScore,
			AffectedURL: f.AffectedURL,
			Payload:     f.Payload,
			ReportedBy:  reporters[f.ReportedByID],
			CreatedAt:   f.CreatedAt,
		})
	}
	return doc
}

// RenderHTML executes the report template. Field values are escaped.
func RenderHTML(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("render report template: %w", err)
	}
	return buf.Bytes(), nil
}

// Slug lowercases title and replaces every character outside [a-z0-9] with an
// underscore.
func Slug(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// Filename is <slug>_<unix millis>.<ext>.
func Filename(title, ext string, at time.Time) string {
	return Slug(title) + "_" + strconv.FormatInt(at.UnixMilli(), 10) + "." + ext
}
