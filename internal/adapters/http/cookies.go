package httpadapter

import (
	"net/http"

	"github.com/PabloGalante/perception-lab/internal/domain"
)

const (
	sessionCookie = "perception_session"
	// adminCookie is kept apart from sessionCookie: participant session ids
	// are written to the results and must never grant admin access.
	adminCookie = "perception_admin"
)

func sessionFromRequest(r *http.Request) domain.SessionID {
	return cookieSession(r, sessionCookie)
}

func adminFromRequest(r *http.Request) domain.SessionID {
	return cookieSession(r, adminCookie)
}

func cookieSession(r *http.Request, name string) domain.SessionID {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return domain.SessionID(c.Value)
}

func (s *Server) setSessionCookie(w http.ResponseWriter, id domain.SessionID) {
	s.setCookie(w, sessionCookie, string(id), 0)
}

func (s *Server) setAdminCookie(w http.ResponseWriter, id domain.SessionID) {
	s.setCookie(w, adminCookie, string(id), 0)
}

func (s *Server) clearAdminCookie(w http.ResponseWriter) {
	s.setCookie(w, adminCookie, "", -1)
}

func (s *Server) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   s.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
