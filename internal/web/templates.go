package web

import (
	"bytes"
	"fmt"
	"html/template"
	"net/http"

	"go.uber.org/zap"

	"climate-intelligence/internal/format"
)

// Templates renders the dashboard pages. When the template directory is
// missing or a template fails to parse, pages fall back to a minimal inline
// rendering instead of crashing the process.
type Templates struct {
	t      *template.Template
	logger *zap.Logger
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"temperature": format.Temperature,
		"windspeed":   format.WindSpeed,
		"percent":     format.Percent,
		"millimeters": format.Millimeters,
		"largenumber": format.LargeNumber,
		"clock":       format.ClockTime,
		"publishdate": format.PublishDate,
		"titlecase":   format.TitleCase,
		"delta":       format.Delta,
	}
}

// LoadTemplates parses every template matching glob. Parse failure is logged
// once and downgrades all pages to the fallback rendering.
func LoadTemplates(glob string, logger *zap.Logger) *Templates {
	t, err := template.New("").Funcs(templateFuncs()).ParseGlob(glob)
	if err != nil {
		logger.Warn("templates unavailable, pages use fallback rendering",
			zap.String("glob", glob),
			zap.Error(err))
		return &Templates{logger: logger}
	}
	return &Templates{t: t, logger: logger}
}

// Render writes the named template. Rendering happens into a buffer first so
// a mid-render failure produces the fallback page, not half a page.
func (tp *Templates) Render(w http.ResponseWriter, name string, data pageView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if tp.t == nil || tp.t.Lookup(name) == nil {
		tp.renderFallback(w, name, data)
		return
	}
	var buf bytes.Buffer
	if err := tp.t.ExecuteTemplate(&buf, name, data); err != nil {
		tp.logger.Error("template render failed",
			zap.String("template", name),
			zap.Error(err))
		tp.renderFallback(w, name, data)
		return
	}
	_, _ = buf.WriteTo(w)
}

var fallbackPage = template.Must(template.New("fallback").Parse(`<!DOCTYPE html>
<html>
<head><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
{{if .Warning}}<p><strong>Warning:</strong> {{.Warning}}</p>{{end}}
{{if .Error}}<p><strong>Error:</strong> {{.Error}}</p>{{end}}
<p>Page templates are unavailable. The JSON API under /api/v1/ remains fully functional.</p>
</body>
</html>
`))

func (tp *Templates) renderFallback(w http.ResponseWriter, name string, data pageView) {
	if err := fallbackPage.Execute(w, data.base()); err != nil {
		tp.logger.Error("fallback render failed", zap.String("template", name), zap.Error(err))
	}
}

// chartPayload is the JSON contract between page handlers and the Plotly glue
// in web/static/app.js.
type chartPayload struct {
	Kind       string           `json:"kind"`
	Title      string           `json:"title"`
	YAxis      string           `json:"yAxis,omitempty"`
	Series     []chartSeries    `json:"series"`
	Thresholds []chartThreshold `json:"thresholds,omitempty"`
}

type chartSeries struct {
	Name   string    `json:"name"`
	Years  []int     `json:"years"`
	Values []float64 `json:"values"`
}

type chartThreshold struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// chartView is one chart slot in a page: a target div ID plus the payload
// embedded as JSON for the client-side renderer.
type chartView struct {
	ID    string
	Title string
	JSON  template.JS
}

func fmtFloat(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
