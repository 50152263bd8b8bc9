package server

import (
	"net/http"
	"strconv"

	"timeblock/pkg/logx"
)

func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	status := map[string]bool{"enabled": s.cal.Enabled(), "authenticated": false}
	if s.cal.Enabled() {
		status["authenticated"] = s.cal.Authenticated(r.Context())
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCalendarAuth(w http.ResponseWriter, r *http.Request) {
	if !s.cal.Enabled() {
		writeError(w, http.StatusBadRequest, "calendar sync is not enabled")
		return
	}
	url, err := s.cal.AuthURL()
	if err != nil {
		s.log.Error("auth url failed", logx.Err(err))
		writeError(w, http.StatusInternalServerError, "calendar credentials unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"auth_url": url})
}

func (s *Server) handleCalendarCallback(w http.ResponseWriter, r *http.Request) {
	if !s.cal.Enabled() {
		writeError(w, http.StatusBadRequest, "calendar sync is not enabled")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}
	if err := s.cal.Exchange(r.Context(), code); err != nil {
		s.log.Error("token exchange failed", logx.Err(err))
		writeError(w, http.StatusBadGateway, "token exchange failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "calendar authenticated"})
}

func (s *Server) handleCalendarSync(w http.ResponseWriter, r *http.Request) {
	if !s.cal.Enabled() {
		writeError(w, http.StatusBadRequest, "calendar sync is not enabled")
		return
	}
	res, err := s.cal.Sync(r.Context())
	if err != nil {
		s.log.Error("calendar sync failed", logx.Err(err))
		writeError(w, http.StatusBadGateway, "calendar sync failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCalendarEvents(w http.ResponseWriter, r *http.Request) {
	if !s.cal.Enabled() {
		writeError(w, http.StatusBadRequest, "calendar sync is not enabled")
		return
	}
	max := int64(0)
	if v := r.URL.Query().Get("max_results"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid max_results")
			return
		}
		max = n
	}
	items, err := s.cal.Remote(r.Context(), max)
	if err != nil {
		s.log.Error("remote events failed", logx.Err(err))
		writeError(w, http.StatusBadGateway, "remote calendar unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": items})
}
