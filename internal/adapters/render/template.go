package render

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"strings"

	"github.com/okian/roster/internal/domain/model"
)

// Rows per printed table. The masthead is tall, so both pages hold the same
// number of athletes.
const (
	DefaultFirstPageRows = 7
	DefaultNextPageRows  = 7
)

//go:embed templates/roster.html.tmpl
var rosterHTML string

// Document is everything one roster file shows.
type Document struct {
	Roster model.TeamRoster
	// PartnerLogo is the event partner's logo URL, empty for default branding.
	PartnerLogo string
	// FooterLogo overrides the renderer's footer image when set.
	FooterLogo string
}

// Template turns a Document into the HTML handed to the engine.
type Template struct {
	tmpl      *template.Template
	firstPage int
	nextPage  int
	assetBase string
}

// NewTemplate parses the embedded roster layout.
func NewTemplate(firstPageRows, nextPageRows int, assetBase string) (*Template, error) {
	t, err := template.New("roster").Parse(rosterHTML)
	if err != nil {
		return nil, fmt.Errorf("parse roster template: %w", err)
	}
	if firstPageRows <= 0 {
		firstPageRows = DefaultFirstPageRows
	}
	if nextPageRows <= 0 {
		nextPageRows = DefaultNextPageRows
	}
	return &Template{tmpl: t, firstPage: firstPageRows, nextPage: nextPageRows, assetBase: assetBase}, nil
}

type athleteView struct {
	Photo    string
	Jersey   string
	Name     string
	Birthday string
}

type documentView struct {
	Title       string
	TeamName    string
	CoachName   string
	CoachPhone  string
	Division    string
	PartnerLogo template.URL
	FooterLogo  template.URL
	Pages       [][]athleteView
}

// Execute writes the document's HTML to w.
func (t *Template) Execute(w io.Writer, doc Document) error {
	return t.tmpl.Execute(w, t.view(doc))
}

func (t *Template) view(doc Document) documentView {
	r := doc.Roster
	v := documentView{
		Title:    strings.TrimSpace(model.Str(r.EventName)),
		TeamName: strings.TrimSpace(r.TeamName),
		Division: strings.TrimSpace(model.Str(r.Division)),
		// Logos come from configuration, the database or an inlined local
		// file, never from roster rows.
		PartnerLogo: template.URL(doc.PartnerLogo), //nolint:gosec // trusted source
		FooterLogo:  template.URL(doc.FooterLogo),  //nolint:gosec // trusted source
	}
	if v.Title == "" {
		v.Title = v.TeamName
	}
	if r.Coach != nil {
		v.CoachName = strings.TrimSpace(r.Coach.DisplayName())
		v.CoachPhone = strings.TrimSpace(model.Str(r.Coach.Phone))
	}

	athletes := make([]athleteView, 0, len(r.Athletes))
	for _, a := range r.Athletes {
		athletes = append(athletes, athleteView{
			Photo:    model.AssetURL(t.assetBase, model.Str(a.ProfilePic)),
			Jersey:   model.Str(a.JerseyNum),
			Name:     a.DisplayName(),
			Birthday: model.Str(a.Birthday),
		})
	}
	v.Pages = Paginate(athletes, t.firstPage, t.nextPage)
	return v
}

// Paginate splits items into a first chunk of up to first items followed by
// chunks of up to next items. It returns nil for no items.
func Paginate[T any](items []T, first, next int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if first <= 0 || next <= 0 {
		return [][]T{items}
	}
	n := min(first, len(items))
	pages := [][]T{items[:n]}
	for i := n; i < len(items); i += next {
		pages = append(pages, items[i:min(i+next, len(items))])
	}
	return pages
}
