package interactive

import (
	_ "embed"
	"encoding/json"
	"html/template"
	"io"

	"github.com/google/uuid"

	"github.com/matzehuels/afcplot/pkg/errors"
)

// PlotlyURL is the script the HTML export loads Plotly from.
var PlotlyURL = "https://cdn.plot.ly/plotly-2.35.2.min.js"

//go:embed figure.html
var pageSource string

var page = template.Must(template.New("figure").Parse(pageSource))

type pageData struct {
	Title     string
	PlotlyURL string
	ID        string
	Figure    any
}

// WriteHTML writes a standalone page rendering the figure.
func (f *Figure) WriteHTML(w io.Writer) error {
	data, err := f.JSON()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode figure")
	}
	title, _ := f.Layout.Get("title.text")
	s, _ := title.(string)
	if s == "" {
		s = "afcplot"
	}
	return page.Execute(w, pageData{
		Title:     s,
		PlotlyURL: PlotlyURL,
		ID:        "fig-" + uuid.NewString()[:8],
		Figure:    json.RawMessage(data),
	})
}
