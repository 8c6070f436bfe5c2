package httpadapter

import (
	"encoding/json"
	"io/fs"
	"net/http"

	"github.com/PabloGalante/perception-lab/internal/app/experiment"
	"github.com/PabloGalante/perception-lab/internal/app/results"
)

type Options struct {
	AdminPassword string
	CookieSecure  bool
}

type Server struct {
	experiment *experiment.Service
	results    *results.Service
	opts       Options
	views      *views
}

func NewServer(exp *experiment.Service, res *results.Service, opts Options) http.Handler {
	s := &Server{
		experiment: exp,
		results:    res,
		opts:       opts,
		views:      loadViews(),
	}
	mux := http.NewServeMux()

	staticFS, err := fs.Sub(webFS, "web/static")
	if err != nil {
		panic(err)
	}

	// experiment page and assets
	mux.HandleFunc("/", s.handleIndex)
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	mux.HandleFunc("/healthz", s.handleHealthz)

	// participant JSON API
	mux.HandleFunc("/start_experiment", s.handleStartExperiment)
	mux.HandleFunc("/get_trial", s.handleGetTrial)
	mux.HandleFunc("/submit_trial", s.handleSubmitTrial)
	mux.HandleFunc("/save_result", s.handleSaveResult)
	mux.HandleFunc("/csv_status", s.handleCSVStatus)

	// admin
	mux.HandleFunc("/admin", s.handleAdminLogin)
	mux.HandleFunc("/admin/", s.handleAdminLogin)
	mux.HandleFunc("/admin/dashboard", s.handleAdminDashboard)
	mux.HandleFunc("/admin/import_csv", s.requireAdmin(s.handleImportCSV))
	mux.HandleFunc("/admin/logout", s.handleLogout)
	mux.HandleFunc("/admin/test_csv", s.requireAdmin(s.handleTestCSV))
	mux.HandleFunc("/download_results", s.requireAdmin(s.handleDownloadResults))

	return chainMiddlewares(mux, withCORS, withLogging, withRequestID)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.views.render(w, r, http.StatusOK, "index.html", nil)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ─────────────────────────────────────────────
// HTTP Helpers
// ─────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error": msg,
	})
}

func internalError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error": "internal server error",
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, map[string]string{
		"error": "method not allowed",
	})
}
