package app

import (
	"context"
	"net/http"
	"testing"
	"time"

	"investlocal/api/internal/store"
)

func adminUser(id, name string) store.User {
	user := activeUser(id, name, "entrepreneur")
	user.Role = "admin"
	return user
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	member := activeUser("usr_mem", "Mira", "investor")
	fs := &fakeStore{getUserByID: usersByID(member)}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, member.ID)

	recorder, body := doRequest(t, handler, http.MethodGet, "/api/admin/stats", token, nil)
	if recorder.Code != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("expected 403 for member, got %d %v", recorder.Code, body)
	}
}

func TestAdminStats(t *testing.T) {
	admin := adminUser("usr_adm", "Ada")
	fs := &fakeStore{
		getUserByID: usersByID(admin),
		adminStats: func(context.Context) (store.AdminStats, error) {
			return store.AdminStats{TotalUsers: 12, PendingListings: 3, OpenReports: 2}, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, admin.ID)

	recorder, body := doRequest(t, handler, http.MethodGet, "/api/admin/stats", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", recorder.Code, body)
	}
	if body["totalUsers"] != float64(12) || body["pendingListings"] != float64(3) {
		t.Fatalf("unexpected stats payload: %v", body)
	}
}

func TestReviewListing(t *testing.T) {
	admin := adminUser("usr_adm", "Ada")
	listing := store.Listing{ID: "lst_1", OwnerID: "usr_own", Title: "Bakery", Status: "PENDING"}

	var reviewedStatus, reviewedNote, reviewedBy string
	fs := &fakeStore{
		getUserByID: usersByID(admin),
		getListing: func(context.Context, string) (store.Listing, error) {
			current := listing
			if reviewedStatus != "" {
				current.Status = reviewedStatus
				current.ReviewNote = reviewedNote
			}
			return current, nil
		},
		updateListingReview: func(_ context.Context, _, status, note, by string) error {
			reviewedStatus, reviewedNote, reviewedBy = status, note, by
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, admin.ID)

	// Rejection without a note is invalid.
	recorder, body := doRequest(t, handler, http.MethodPost, "/api/admin/listings/lst_1/review", token, map[string]any{
		"status": "REJECTED",
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for rejection without note, got %d %v", recorder.Code, body)
	}

	recorder, body = doRequest(t, handler, http.MethodPost, "/api/admin/listings/lst_1/review", token, map[string]any{
		"status": "ACTIVE",
	})
	if recorder.Code != http.StatusOK || body["status"] != "ACTIVE" {
		t.Fatalf("expected approved listing, got %d %v", recorder.Code, body)
	}
	if reviewedBy != admin.ID {
		t.Fatalf("expected reviewer %q, got %q", admin.ID, reviewedBy)
	}

	// A listing can only be reviewed while pending.
	recorder, body = doRequest(t, handler, http.MethodPost, "/api/admin/listings/lst_1/review", token, map[string]any{
		"status": "REJECTED",
		"note":   "changed my mind",
	})
	if recorder.Code != http.StatusConflict || body["code"] != "LISTING_NOT_PENDING" {
		t.Fatalf("expected LISTING_NOT_PENDING, got %d %v", recorder.Code, body)
	}
}

func TestResolveReport(t *testing.T) {
	admin := adminUser("usr_adm", "Ada")
	resolvedAt := time.Now()
	fs := &fakeStore{
		getUserByID: usersByID(admin),
		getReport: func(context.Context, string) (store.Report, error) {
			return store.Report{
				ID: "rep_1", ReporterID: "usr_rep", TargetType: "listing", TargetID: "lst_1",
				Reason: "spam", Status: "RESOLVED", ResolvedBy: admin.ID,
				ResolutionNote: "listing removed", ResolvedAt: &resolvedAt,
				CreatedAt: time.Now().Add(-time.Hour),
			}, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, admin.ID)

	recorder, body := doRequest(t, handler, http.MethodPost, "/api/admin/reports/rep_1/resolve", token, map[string]any{
		"status": "RESOLVED",
		"note":   "listing removed",
	})
	if recorder.Code != http.StatusOK || body["status"] != "RESOLVED" {
		t.Fatalf("expected resolved report, got %d %v", recorder.Code, body)
	}
	if body["resolutionNote"] != "listing removed" {
		t.Fatalf("expected resolution note, got %v", body)
	}

	recorder, body = doRequest(t, handler, http.MethodPost, "/api/admin/reports/rep_1/resolve", token, map[string]any{
		"status": "ESCALATED",
	})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for unknown status, got %d %v", recorder.Code, body)
	}
}

func TestDeactivateUser(t *testing.T) {
	admin := adminUser("usr_adm", "Ada")
	target := activeUser("usr_tgt", "Tom", "investor")

	var deactivatedID string
	fs := &fakeStore{
		getUserByID:        usersByID(admin, target),
		setUserDeactivated: func(_ context.Context, userID string, deactivated bool) error {
			if deactivated {
				deactivatedID = userID
			}
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, admin.ID)

	// Admins cannot deactivate themselves.
	recorder, body := doRequest(t, handler, http.MethodPost, "/api/admin/users/"+admin.ID+"/deactivate", token, nil)
	if recorder.Code != http.StatusConflict || body["code"] != "SELF_DEACTIVATION" {
		t.Fatalf("expected SELF_DEACTIVATION, got %d %v", recorder.Code, body)
	}

	recorder, body = doRequest(t, handler, http.MethodPost, "/api/admin/users/"+target.ID+"/deactivate", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", recorder.Code, body)
	}
	if deactivatedID != target.ID {
		t.Fatalf("expected %q deactivated, got %q", target.ID, deactivatedID)
	}
}

func TestListPendingListings(t *testing.T) {
	admin := adminUser("usr_adm", "Ada")
	fs := &fakeStore{
		getUserByID: usersByID(admin),
		listListings: func(_ context.Context, filter store.ListingFilter) ([]store.Listing, error) {
			if filter.Status != "PENDING" {
				t.Fatalf("expected PENDING filter, got %q", filter.Status)
			}
			return []store.Listing{{ID: "lst_1", Status: "PENDING", Title: "Bakery"}}, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, admin.ID)

	recorder, body := doRequest(t, handler, http.MethodGet, "/api/admin/listings", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", recorder.Code, body)
	}
	listings, _ := body["listings"].([]any)
	if len(listings) != 1 {
		t.Fatalf("expected one pending listing, got %v", body["listings"])
	}
}
