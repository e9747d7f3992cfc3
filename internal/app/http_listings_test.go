package app

import (
	"context"
	"database/sql"
	"net/http"
	"testing"

	"investlocal/api/internal/store"
)

func usersByID(users ...store.User) func(context.Context, string) (store.User, error) {
	index := map[string]store.User{}
	for _, user := range users {
		index[user.ID] = user
	}
	return func(_ context.Context, id string) (store.User, error) {
		user, ok := index[id]
		if !ok {
			return store.User{}, sql.ErrNoRows
		}
		return user, nil
	}
}

func TestCreateListingRequiresEntrepreneur(t *testing.T) {
	investor := activeUser("usr_inv", "Ira", "investor")
	fs := &fakeStore{getUserByID: usersByID(investor)}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, investor.ID)

	recorder, body := doRequest(t, handler, http.MethodPost, "/api/listings", token, map[string]any{
		"title":    "Bakery",
		"pitch":    "Wood-fired sourdough",
		"category": "food",
	})
	if recorder.Code != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("expected 403 for investor, got %d %v", recorder.Code, body)
	}
}

func TestCreateListingStartsPending(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	var inserted store.Listing
	fs := &fakeStore{
		getUserByID: usersByID(owner),
		insertListing: func(_ context.Context, listing store.Listing) error {
			inserted = listing
			return nil
		},
		getListing: func(_ context.Context, id string) (store.Listing, error) {
			if id != inserted.ID {
				return store.Listing{}, sql.ErrNoRows
			}
			inserted.OwnerName = owner.DisplayName
			return inserted, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, owner.ID)

	recorder, body := doRequest(t, handler, http.MethodPost, "/api/listings", token, map[string]any{
		"title":         "Bakery",
		"pitch":         "Wood-fired sourdough",
		"category":      "food",
		"location":      "Odesa",
		"minInvestment": 5000,
		"maxInvestment": 20000,
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %v", recorder.Code, body)
	}
	if body["status"] != "PENDING" {
		t.Fatalf("new listings must await review, got status %v", body["status"])
	}
	if inserted.OwnerID != owner.ID {
		t.Fatalf("expected owner %q, got %q", owner.ID, inserted.OwnerID)
	}
}

func TestCreateListingValidation(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	fs := &fakeStore{getUserByID: usersByID(owner)}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, owner.ID)

	recorder, body := doRequest(t, handler, http.MethodPost, "/api/listings", token, map[string]any{
		"title":         "Bakery",
		"pitch":         "Sourdough",
		"category":      "food",
		"minInvestment": 50000,
		"maxInvestment": 100,
	})
	if recorder.Code != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("expected 422 for inverted investment range, got %d %v", recorder.Code, body)
	}
}

func TestPendingListingHiddenFromOthers(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	viewer := activeUser("usr_inv", "Ira", "investor")
	listing := store.Listing{ID: "lst_1", OwnerID: owner.ID, Title: "Bakery", Status: "PENDING"}

	fs := &fakeStore{
		getUserByID: usersByID(owner, viewer),
		getListing: func(context.Context, string) (store.Listing, error) { return listing, nil },
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	viewerToken := sessionToken(t, svc, viewer.ID)
	recorder, body := doRequest(t, handler, http.MethodGet, "/api/listings/lst_1", viewerToken, nil)
	if recorder.Code != http.StatusNotFound {
		t.Fatalf("pending listing must 404 for strangers, got %d %v", recorder.Code, body)
	}

	ownerToken := sessionToken(t, svc, owner.ID)
	recorder, body = doRequest(t, handler, http.MethodGet, "/api/listings/lst_1", ownerToken, nil)
	if recorder.Code != http.StatusOK || body["status"] != "PENDING" {
		t.Fatalf("owner must see own pending listing, got %d %v", recorder.Code, body)
	}
}

func TestCommentOnInactiveListing(t *testing.T) {
	viewer := activeUser("usr_inv", "Ira", "investor")
	listing := store.Listing{ID: "lst_1", OwnerID: "usr_own", Status: "CLOSED"}
	fs := &fakeStore{
		getUserByID: usersByID(viewer),
		getListing: func(context.Context, string) (store.Listing, error) { return listing, nil },
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, viewer.ID)

	recorder, body := doRequest(t, handler, http.MethodPost, "/api/listings/lst_1/comments", token, map[string]any{
		"body": "Is this still open?",
	})
	if recorder.Code != http.StatusConflict || body["code"] != "LISTING_NOT_ACTIVE" {
		t.Fatalf("expected LISTING_NOT_ACTIVE, got %d %v", recorder.Code, body)
	}
}

func TestExpressInterestRules(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	investor := activeUser("usr_inv", "Ira", "investor")
	listing := store.Listing{ID: "lst_1", OwnerID: owner.ID, Title: "Bakery", Status: "ACTIVE"}

	duplicate := false
	fs := &fakeStore{
		getUserByID: usersByID(owner, investor),
		getListing: func(context.Context, string) (store.Listing, error) { return listing, nil },
		insertInterest: func(_ context.Context, interest store.Interest) error {
			if duplicate {
				return store.ErrDuplicateInterest
			}
			return nil
		},
		getInterest: func(context.Context, string) (store.Interest, error) {
			return store.Interest{
				ID: "int_1", ListingID: listing.ID, InvestorID: investor.ID,
				ListingTitle: listing.Title, InvestorName: investor.DisplayName,
				OwnerID: owner.ID, Status: "PENDING",
			}, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	// Owners cannot invest in their own listing. The owner is an
	// entrepreneur, so the rbac check rejects them first.
	ownerToken := sessionToken(t, svc, owner.ID)
	recorder, body := doRequest(t, handler, http.MethodPost, "/api/listings/lst_1/interests", ownerToken, map[string]any{"note": "me!"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for entrepreneur, got %d %v", recorder.Code, body)
	}

	investorToken := sessionToken(t, svc, investor.ID)
	recorder, body = doRequest(t, handler, http.MethodPost, "/api/listings/lst_1/interests", investorToken, map[string]any{"note": "Love it"})
	if recorder.Code != http.StatusCreated || body["status"] != "PENDING" {
		t.Fatalf("expected pending interest, got %d %v", recorder.Code, body)
	}

	duplicate = true
	recorder, body = doRequest(t, handler, http.MethodPost, "/api/listings/lst_1/interests", investorToken, map[string]any{"note": "Again"})
	if recorder.Code != http.StatusConflict || body["code"] != "ALREADY_INTERESTED" {
		t.Fatalf("expected ALREADY_INTERESTED, got %d %v", recorder.Code, body)
	}
}

func TestDecideInterest(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	stranger := activeUser("usr_other", "Oksana", "entrepreneur")
	interest := store.Interest{
		ID: "int_1", ListingID: "lst_1", InvestorID: "usr_inv",
		OwnerID: owner.ID, Status: "PENDING",
	}

	var updatedStatus string
	fs := &fakeStore{
		getUserByID: usersByID(owner, stranger),
		getInterest: func(context.Context, string) (store.Interest, error) {
			current := interest
			current.Status = firstNonEmpty(updatedStatus, interest.Status)
			return current, nil
		},
		updateInterestStatus: func(_ context.Context, _, status string) error {
			updatedStatus = status
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	strangerToken := sessionToken(t, svc, stranger.ID)
	recorder, body := doRequest(t, handler, http.MethodPost, "/api/interests/int_1/decision", strangerToken, map[string]any{"status": "ACCEPTED"})
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("only the listing owner may decide, got %d %v", recorder.Code, body)
	}

	ownerToken := sessionToken(t, svc, owner.ID)
	recorder, body = doRequest(t, handler, http.MethodPost, "/api/interests/int_1/decision", ownerToken, map[string]any{"status": "ACCEPTED"})
	if recorder.Code != http.StatusOK || body["status"] != "ACCEPTED" {
		t.Fatalf("expected accepted interest, got %d %v", recorder.Code, body)
	}

	// A decided interest cannot be decided again.
	recorder, body = doRequest(t, handler, http.MethodPost, "/api/interests/int_1/decision", ownerToken, map[string]any{"status": "REJECTED"})
	if recorder.Code != http.StatusConflict || body["code"] != "INTEREST_DECIDED" {
		t.Fatalf("expected INTEREST_DECIDED, got %d %v", recorder.Code, body)
	}
}

func TestUpdateListingReturnsToPending(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	stranger := activeUser("usr_str", "Sam", "entrepreneur")
	current := store.Listing{
		ID: "lst_1", OwnerID: owner.ID, Title: "Bakery", Pitch: "Sourdough",
		Category: "food", Status: "ACTIVE",
	}

	fs := &fakeStore{
		getUserByID: usersByID(owner, stranger),
		getListing: func(context.Context, string) (store.Listing, error) { return current, nil },
		updateListing: func(_ context.Context, listing store.Listing) error {
			current = listing
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	edit := map[string]any{
		"title":    "Bakery & Cafe",
		"pitch":    "Sourdough plus espresso",
		"category": "food",
	}

	strangerToken := sessionToken(t, svc, stranger.ID)
	recorder, body := doRequest(t, handler, http.MethodPut, "/api/listings/lst_1", strangerToken, edit)
	if recorder.Code != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("only the owner may edit, got %d %v", recorder.Code, body)
	}

	ownerToken := sessionToken(t, svc, owner.ID)
	recorder, body = doRequest(t, handler, http.MethodPut, "/api/listings/lst_1", ownerToken, edit)
	if recorder.Code != http.StatusOK {
		t.Fatalf("owner edit failed: %d %v", recorder.Code, body)
	}
	if body["status"] != "PENDING" {
		t.Fatalf("edited listing must await re-review, got status %v", body["status"])
	}
	if body["title"] != "Bakery & Cafe" {
		t.Fatalf("expected updated title, got %v", body["title"])
	}

	current.Status = "CLOSED"
	recorder, body = doRequest(t, handler, http.MethodPut, "/api/listings/lst_1", ownerToken, edit)
	if recorder.Code != http.StatusConflict || body["code"] != "LISTING_CLOSED" {
		t.Fatalf("expected LISTING_CLOSED, got %d %v", recorder.Code, body)
	}
}

func TestCloseListing(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	stranger := activeUser("usr_str", "Sam", "investor")
	current := store.Listing{ID: "lst_1", OwnerID: owner.ID, Title: "Bakery", Status: "ACTIVE"}

	fs := &fakeStore{
		getUserByID: usersByID(owner, stranger),
		getListing: func(context.Context, string) (store.Listing, error) { return current, nil },
		updateListing: func(_ context.Context, listing store.Listing) error {
			current = listing
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	strangerToken := sessionToken(t, svc, stranger.ID)
	recorder, body := doRequest(t, handler, http.MethodPost, "/api/listings/lst_1/close", strangerToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("only the owner may close, got %d %v", recorder.Code, body)
	}

	ownerToken := sessionToken(t, svc, owner.ID)
	recorder, body = doRequest(t, handler, http.MethodPost, "/api/listings/lst_1/close", ownerToken, nil)
	if recorder.Code != http.StatusOK || body["status"] != "CLOSED" {
		t.Fatalf("expected closed listing, got %d %v", recorder.Code, body)
	}
	if current.Status != "CLOSED" {
		t.Fatalf("expected stored status CLOSED, got %q", current.Status)
	}
}

func TestDeleteListing(t *testing.T) {
	owner := activeUser("usr_own", "Olha", "entrepreneur")
	stranger := activeUser("usr_str", "Sam", "investor")
	listing := store.Listing{ID: "lst_1", OwnerID: owner.ID, Title: "Bakery", Status: "ACTIVE"}

	deleted := false
	fs := &fakeStore{
		getUserByID: usersByID(owner, stranger),
		getListing: func(context.Context, string) (store.Listing, error) { return listing, nil },
		deleteListing: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	strangerToken := sessionToken(t, svc, stranger.ID)
	recorder, body := doRequest(t, handler, http.MethodDelete, "/api/listings/lst_1", strangerToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("only the owner may delete, got %d %v", recorder.Code, body)
	}
	if deleted {
		t.Fatal("listing deleted by a stranger")
	}

	ownerToken := sessionToken(t, svc, owner.ID)
	recorder, body = doRequest(t, handler, http.MethodDelete, "/api/listings/lst_1", ownerToken, nil)
	if recorder.Code != http.StatusOK || body["ok"] != true {
		t.Fatalf("owner delete failed: %d %v", recorder.Code, body)
	}
	if !deleted {
		t.Fatal("listing was not deleted")
	}
}

func TestNegativePagingClampedToZero(t *testing.T) {
	viewer := activeUser("usr_inv", "Ira", "investor")
	var gotLimit, gotOffset int
	fs := &fakeStore{
		getUserByID: usersByID(viewer),
		listPosts: func(_ context.Context, _ string, limit, offset int) ([]store.Post, error) {
			gotLimit, gotOffset = limit, offset
			return nil, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, viewer.ID)

	recorder, body := doRequest(t, handler, http.MethodGet, "/api/posts?limit=-1&offset=-3", token, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", recorder.Code, body)
	}
	if gotLimit != 0 || gotOffset != 0 {
		t.Fatalf("negative paging must clamp to zero, got limit=%d offset=%d", gotLimit, gotOffset)
	}
}

func TestPostLifecycle(t *testing.T) {
	author := activeUser("usr_aut", "Avi", "entrepreneur")
	stranger := activeUser("usr_str", "Sam", "investor")
	var stored store.Post
	deleted := false

	fs := &fakeStore{
		getUserByID: usersByID(author, stranger),
		insertPost: func(_ context.Context, post store.Post) error {
			stored = post
			return nil
		},
		getPost: func(_ context.Context, _, postID string) (store.Post, error) {
			if deleted || postID != stored.ID {
				return store.Post{}, sql.ErrNoRows
			}
			stored.AuthorName = author.DisplayName
			return stored, nil
		},
		deletePost: func(context.Context, string) error {
			deleted = true
			return nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()

	authorToken := sessionToken(t, svc, author.ID)
	recorder, body := doRequest(t, handler, http.MethodPost, "/api/posts", authorToken, map[string]any{
		"body": "Opening a second location next month.",
	})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", recorder.Code, body)
	}
	postID, _ := body["id"].(string)
	if postID == "" {
		t.Fatalf("expected post id, got %v", body)
	}

	strangerToken := sessionToken(t, svc, stranger.ID)
	recorder, body = doRequest(t, handler, http.MethodDelete, "/api/posts/"+postID, strangerToken, nil)
	if recorder.Code != http.StatusForbidden {
		t.Fatalf("stranger must not delete post, got %d %v", recorder.Code, body)
	}

	recorder, body = doRequest(t, handler, http.MethodDelete, "/api/posts/"+postID, authorToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("author delete failed: %d %v", recorder.Code, body)
	}
	if !deleted {
		t.Fatal("post was not deleted")
	}
}

func TestRateUser(t *testing.T) {
	rater := activeUser("usr_rat", "Rita", "investor")
	rated := activeUser("usr_own", "Olha", "entrepreneur")
	fs := &fakeStore{
		getUserByID: usersByID(rater, rated),
		getRatingSummary: func(context.Context, string) (store.RatingSummary, error) {
			return store.RatingSummary{Average: 4.0, Count: 1}, nil
		},
	}
	svc := newTestService(fs)
	handler := NewHTTPServer(svc, "*").Handler()
	token := sessionToken(t, svc, rater.ID)

	recorder, body := doRequest(t, handler, http.MethodPost, "/api/users/"+rater.ID+"/ratings", token, map[string]any{"score": 4})
	if recorder.Code != http.StatusConflict || body["code"] != "SELF_RATING" {
		t.Fatalf("expected SELF_RATING, got %d %v", recorder.Code, body)
	}

	recorder, body = doRequest(t, handler, http.MethodPost, "/api/users/"+rated.ID+"/ratings", token, map[string]any{"score": 9})
	if recorder.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for out-of-range score, got %d %v", recorder.Code, body)
	}

	recorder, body = doRequest(t, handler, http.MethodPost, "/api/users/"+rated.ID+"/ratings", token, map[string]any{"score": 4, "comment": "Great to work with"})
	if recorder.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %v", recorder.Code, body)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
