package app

import (
	"net/http"

	"investlocal/api/internal/rbac"
)

func (s *HTTPServer) handleListings(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// /api/listings
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			limit, ok := queryInt(w, r, "limit", 20)
			if !ok {
				return
			}
			offset, ok := queryInt(w, r, "offset", 0)
			if !ok {
				return
			}
			payload, err := s.service.ListListings(r.Context(), ListingFilterInput{
				Category: r.URL.Query().Get("category"),
				Location: r.URL.Query().Get("location"),
				Limit:    limit,
				Offset:   offset,
			})
			s.respond(w, payload, err)
		case http.MethodPost:
			if !s.service.Can(session, rbac.ActionPublish) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Only entrepreneurs can create listings", nil)
				return
			}
			var body ListingInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateListing(r.Context(), session, body)
			s.respondStatus(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	// /api/listings/mine
	if len(parts) == 3 && parts[2] == "mine" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		payload, err := s.service.ListMyListings(r.Context(), session)
		s.respond(w, payload, err)
		return
	}

	listingID := parts[2]

	// /api/listings/{id}
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetListingDetail(r.Context(), session, listingID)
			s.respond(w, payload, err)
		case http.MethodPut:
			var body ListingInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.UpdateListing(r.Context(), session, listingID, body)
			s.respond(w, payload, err)
		case http.MethodDelete:
			if err := s.service.DeleteListing(r.Context(), session, listingID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 {
		switch parts[3] {
		case "close":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			payload, err := s.service.CloseListing(r.Context(), session, listingID)
			s.respond(w, payload, err)
			return
		case "comments":
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.GetListingDetail(r.Context(), session, listingID)
				if err != nil {
					status, code, message, details := mapError(err)
					writeError(w, status, code, message, details)
					return
				}
				writeJSON(w, http.StatusOK, map[string]any{"comments": payload["comments"]})
			case http.MethodPost:
				if !s.service.Can(session, rbac.ActionComment) {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
					return
				}
				var body struct {
					Body string `json:"body"`
				}
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.CommentOnListing(r.Context(), session, listingID, body.Body)
				s.respondStatus(w, http.StatusCreated, payload, err)
			default:
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			}
			return
		case "interests":
			switch r.Method {
			case http.MethodGet:
				payload, err := s.service.ListListingInterests(r.Context(), session, listingID)
				s.respond(w, payload, err)
			case http.MethodPost:
				if !s.service.Can(session, rbac.ActionInvest) {
					writeError(w, http.StatusForbidden, "FORBIDDEN", "Only investors can express interest", nil)
					return
				}
				var body InterestInput
				if err := decodeBody(r, &body); err != nil {
					writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
					return
				}
				payload, err := s.service.ExpressInterest(r.Context(), session, listingID, body)
				s.respondStatus(w, http.StatusCreated, payload, err)
			default:
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			}
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleInterests(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// /api/interests/mine
	if len(parts) == 3 && parts[2] == "mine" {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		payload, err := s.service.ListMyInterests(r.Context(), session)
		s.respond(w, payload, err)
		return
	}

	// /api/interests/{id}/decision
	if len(parts) == 4 && parts[3] == "decision" {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Status string `json:"status"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.DecideInterest(r.Context(), session, parts[2], body.Status)
		s.respond(w, payload, err)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handlePosts(w http.ResponseWriter, r *http.Request, session Session, parts []string) {
	// /api/posts
	if len(parts) == 2 {
		switch r.Method {
		case http.MethodGet:
			limit, ok := queryInt(w, r, "limit", 20)
			if !ok {
				return
			}
			offset, ok := queryInt(w, r, "offset", 0)
			if !ok {
				return
			}
			payload, err := s.service.ListPosts(r.Context(), session, limit, offset)
			s.respond(w, payload, err)
		case http.MethodPost:
			var body PostInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreatePost(r.Context(), session, body)
			s.respondStatus(w, http.StatusCreated, payload, err)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	postID := parts[2]

	// /api/posts/{id}
	if len(parts) == 3 {
		switch r.Method {
		case http.MethodGet:
			payload, err := s.service.GetPostDetail(r.Context(), session, postID)
			s.respond(w, payload, err)
		case http.MethodDelete:
			if err := s.service.DeletePost(r.Context(), session, postID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	if len(parts) == 4 {
		switch parts[3] {
		case "like":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			payload, err := s.service.TogglePostLike(r.Context(), session, postID)
			s.respond(w, payload, err)
			return
		case "comments":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			if !s.service.Can(session, rbac.ActionComment) {
				writeError(w, http.StatusForbidden, "FORBIDDEN", "Forbidden", nil)
				return
			}
			var body struct {
				Body string `json:"body"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CommentOnPost(r.Context(), session, postID, body.Body)
			s.respondStatus(w, http.StatusCreated, payload, err)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}
