package app

import (
	"net/http"

	"investlocal/api/internal/rbac"
)

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	if !s.service.Can(session, rbac.ActionModerate) {
		writeError(w, http.StatusForbidden, "FORBIDDEN", "Admin access required", nil)
		return
	}

	if len(parts) == 3 && parts[2] == "stats" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		payload, err := s.service.AdminStats(r.Context())
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "listings" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		payload, err := s.service.ListPendingListings(r.Context(), limit, offset)
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 5 && parts[2] == "listings" && parts[4] == "review" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ReviewListing(r.Context(), session, parts[3], body.Status, body.Note)
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "reports" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		payload, err := s.service.ListReports(r.Context(), r.URL.Query().Get("status"), limit)
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 5 && parts[2] == "reports" && parts[4] == "resolve" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.ResolveReport(r.Context(), session, parts[3], body.Status, body.Note)
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 3 && parts[2] == "users" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		limit, ok := queryInt(w, r, "limit", 50)
		if !ok {
			return
		}
		offset, ok := queryInt(w, r, "offset", 0)
		if !ok {
			return
		}
		payload, err := s.service.ListAllUsers(r.Context(), limit, offset)
		s.respond(w, payload, err)
		return
	}

	if len(parts) == 5 && parts[2] == "users" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		switch parts[4] {
		case "deactivate":
			payload, err := s.service.SetUserActive(r.Context(), session, parts[3], false)
			s.respond(w, payload, err)
			return
		case "reactivate":
			payload, err := s.service.SetUserActive(r.Context(), session, parts[3], true)
			s.respond(w, payload, err)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
