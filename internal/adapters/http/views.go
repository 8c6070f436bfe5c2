package httpadapter

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/PabloGalante/perception-lab/internal/observability"
	"github.com/PabloGalante/perception-lab/internal/resultcsv"
)

//go:embed web/templates/*.html web/static/*
var webFS embed.FS

type views struct {
	t *template.Template
}

func loadViews() *views {
	funcs := template.FuncMap{
		"choices": resultcsv.JoinChoices,
		"short": func(s string) string {
			if len(s) > 8 {
				return s[:8]
			}
			return s
		},
	}
	t := template.Must(template.New("").Funcs(funcs).ParseFS(webFS, "web/templates/*.html"))
	return &views{t: t}
}

// render executes the template into a buffer first so a template error
// still yields a clean 500.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := v.t.ExecuteTemplate(&buf, name, data); err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("template", name).Msg("render failed")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
