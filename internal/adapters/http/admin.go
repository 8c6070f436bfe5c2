package httpadapter

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/PabloGalante/perception-lab/internal/app/results"
	"github.com/PabloGalante/perception-lab/internal/domain"
	"github.com/PabloGalante/perception-lab/internal/observability"
)

const (
	maxUpload      = 32 << 20
	recentSessions = 20
)

type loginView struct {
	Error string
}

type dashboardView struct {
	*results.Dashboard
	Sessions    []*domain.Session
	Imported    string
	Skipped     string
	ImportError string
	Error       string
}

// requireAdmin redirects to the login view unless the session is an admin one.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.experiment.IsAdmin(r.Context(), adminFromRequest(r)) {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

// /admin and /admin/
func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/admin" && r.URL.Path != "/admin/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}

	if s.experiment.IsAdmin(r.Context(), adminFromRequest(r)) {
		http.Redirect(w, r, "/admin/dashboard", http.StatusSeeOther)
		return
	}
	s.views.render(w, r, http.StatusOK, "admin_login.html", loginView{})
}

// /admin/dashboard: GET shows the dashboard, POST signs in with the password.
func (s *Server) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	switch r.Method {
	case http.MethodPost:
		password := r.PostFormValue("password")
		if !s.passwordMatches(password) {
			observability.LoggerFromContext(ctx).Warn().Msg("admin sign-in rejected")
			s.views.render(w, r, http.StatusUnauthorized, "admin_login.html", loginView{Error: "Mot de passe incorrect"})
			return
		}
		if err := s.experiment.RevokeAdmin(ctx, adminFromRequest(r)); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).Msg("dropping previous admin session")
		}
		session, err := s.experiment.GrantAdmin(ctx)
		if err != nil {
			internalError(w, err)
			return
		}
		s.setAdminCookie(w, session.ID)
	case http.MethodGet, http.MethodHead:
		if !s.experiment.IsAdmin(ctx, adminFromRequest(r)) {
			http.Redirect(w, r, "/admin", http.StatusSeeOther)
			return
		}
	default:
		methodNotAllowed(w)
		return
	}

	q := r.URL.Query()
	view := dashboardView{
		Imported:    q.Get("imported"),
		Skipped:     q.Get("skipped"),
		ImportError: q.Get("import_error"),
	}

	dash, err := s.results.Dashboard(ctx)
	if err != nil {
		observability.LoggerFromContext(ctx).Error().Err(err).Msg("reading results for dashboard")
		view.Dashboard = &results.Dashboard{}
		view.Error = "Erreur lors de la lecture des données"
	} else {
		view.Dashboard = dash
	}

	if sessions, err := s.experiment.RecentSessions(ctx, recentSessions); err == nil {
		view.Sessions = sessions
	} else {
		observability.LoggerFromContext(ctx).Warn().Err(err).Msg("listing recent sessions")
	}

	s.views.render(w, r, http.StatusOK, "admin_dashboard.html", view)
}

func (s *Server) passwordMatches(given string) bool {
	return subtle.ConstantTimeCompare([]byte(given), []byte(s.opts.AdminPassword)) == 1
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" {
		redirectDashboard(w, r, url.Values{"import_error": {"Aucun fichier sélectionné"}})
		return
	}
	defer file.Close()

	if !strings.EqualFold(filepath.Ext(header.Filename), ".csv") {
		redirectDashboard(w, r, url.Values{"import_error": {"Format non supporté"}})
		return
	}

	report, err := s.results.Import(r.Context(), file)
	if err != nil {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("file", header.Filename).Msg("import failed")
		redirectDashboard(w, r, url.Values{"import_error": {err.Error()}})
		return
	}

	redirectDashboard(w, r, url.Values{
		"imported": {strconv.Itoa(report.Imported)},
		"skipped":  {strconv.Itoa(report.Skipped)},
	})
}

func redirectDashboard(w http.ResponseWriter, r *http.Request, q url.Values) {
	http.Redirect(w, r, "/admin/dashboard?"+q.Encode(), http.StatusSeeOther)
}

func (s *Server) handleDownloadResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		methodNotAllowed(w)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+s.results.ExportFilename()+`"`)
	if err := s.results.Export(r.Context(), w); err != nil {
		// headers are gone by now, the client sees a truncated file
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("export failed")
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if err := s.experiment.RevokeAdmin(r.Context(), adminFromRequest(r)); err != nil {
		observability.LoggerFromContext(r.Context()).Warn().Err(err).Msg("admin sign-out failed")
	}
	s.clearAdminCookie(w)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

// handleTestCSV writes a diagnostic row and reports where it went.
func (s *Server) handleTestCSV(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	if _, err := s.results.RecordDiagnostic(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": err.Error()})
		return
	}
	st, err := s.results.Status(r.Context())
	if err != nil {
		internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Test CSV réussi",
		"file_exists": st.Exists,
		"file_path":   st.Path,
	})
}
