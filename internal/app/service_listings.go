package app

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"investlocal/api/internal/realtime"
	"investlocal/api/internal/search"
	"investlocal/api/internal/store"
	"investlocal/api/internal/util"
)

type ListingInput struct {
	Title             string   `json:"title"`
	Pitch             string   `json:"pitch"`
	Category          string   `json:"category"`
	Location          string   `json:"location"`
	MinInvestment     int64    `json:"minInvestment"`
	MaxInvestment     int64    `json:"maxInvestment"`
	ExpectedReturnPct float64  `json:"expectedReturnPct"`
	ImageURLs         []string `json:"imageUrls"`
}

type ListingFilterInput struct {
	Category string
	Location string
	OwnerID  string
	Limit    int
	Offset   int
}

type InterestInput struct {
	Note string `json:"note"`
}

const maxListingImages = 6

func validateListingInput(input ListingInput) (ListingInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Pitch = strings.TrimSpace(input.Pitch)
	input.Category = strings.TrimSpace(input.Category)
	input.Location = strings.TrimSpace(input.Location)
	if input.Title == "" {
		return input, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "title is required", nil)
	}
	if input.Pitch == "" {
		return input, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "pitch is required", nil)
	}
	if input.Category == "" {
		return input, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "category is required", nil)
	}
	if input.MinInvestment < 0 || input.MaxInvestment < 0 {
		return input, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "investment amounts must not be negative", nil)
	}
	if input.MaxInvestment > 0 && input.MinInvestment > input.MaxInvestment {
		return input, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "minInvestment must not exceed maxInvestment", nil)
	}
	if len(input.ImageURLs) > maxListingImages {
		return input, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "too many images", map[string]any{"max": maxListingImages})
	}
	return input, nil
}

// CreateListing creates a listing in PENDING state awaiting admin review.
func (s *Service) CreateListing(ctx context.Context, session Session, input ListingInput) (map[string]any, error) {
	input, err := validateListingInput(input)
	if err != nil {
		return nil, err
	}

	listing := store.Listing{
		ID:                util.NewID("lst"),
		OwnerID:           session.UserID,
		Title:             input.Title,
		Pitch:             input.Pitch,
		Category:          input.Category,
		Location:          input.Location,
		MinInvestment:     input.MinInvestment,
		MaxInvestment:     input.MaxInvestment,
		ExpectedReturnPct: input.ExpectedReturnPct,
		ImageURLs:         input.ImageURLs,
		Status:            "PENDING",
	}
	if err := s.store.InsertListing(ctx, listing); err != nil {
		return nil, err
	}

	created, err := s.store.GetListing(ctx, listing.ID)
	if err != nil {
		return nil, err
	}
	return listingPayload(created), nil
}

// GetListingDetail returns a listing with its comments. Non-active
// listings are only visible to their owner and to admins.
func (s *Service) GetListingDetail(ctx context.Context, session Session, listingID string) (map[string]any, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != "ACTIVE" && listing.OwnerID != session.UserID && session.Role != "admin" {
		return nil, sql.ErrNoRows
	}
	comments, err := s.store.ListListingComments(ctx, listingID)
	if err != nil {
		return nil, err
	}

	payload := listingPayload(listing)
	commentItems := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		commentItems = append(commentItems, listingCommentPayload(comment))
	}
	payload["comments"] = commentItems
	return payload, nil
}

// ListListings returns the public feed of ACTIVE listings.
func (s *Service) ListListings(ctx context.Context, filter ListingFilterInput) (map[string]any, error) {
	listings, err := s.store.ListListings(ctx, store.ListingFilter{
		Status:   "ACTIVE",
		Category: strings.TrimSpace(filter.Category),
		Location: strings.TrimSpace(filter.Location),
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(listings))
	for _, listing := range listings {
		items = append(items, listingPayload(listing))
	}
	return map[string]any{"listings": items}, nil
}

// ListMyListings returns the viewer's own listings in every status.
func (s *Service) ListMyListings(ctx context.Context, session Session) (map[string]any, error) {
	listings, err := s.store.ListListings(ctx, store.ListingFilter{OwnerID: session.UserID, Limit: 100})
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(listings))
	for _, listing := range listings {
		items = append(items, listingPayload(listing))
	}
	return map[string]any{"listings": items}, nil
}

// UpdateListing edits an owned listing. Edits to an ACTIVE or REJECTED
// listing send it back to PENDING for re-review.
func (s *Service) UpdateListing(ctx context.Context, session Session, listingID string, input ListingInput) (map[string]any, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != session.UserID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can edit a listing", nil)
	}
	if listing.Status == "CLOSED" {
		return nil, domainError(http.StatusConflict, "LISTING_CLOSED", "Closed listings cannot be edited", nil)
	}
	input, err = validateListingInput(input)
	if err != nil {
		return nil, err
	}

	listing.Title = input.Title
	listing.Pitch = input.Pitch
	listing.Category = input.Category
	listing.Location = input.Location
	listing.MinInvestment = input.MinInvestment
	listing.MaxInvestment = input.MaxInvestment
	listing.ExpectedReturnPct = input.ExpectedReturnPct
	listing.ImageURLs = input.ImageURLs
	listing.Status = "PENDING"
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return nil, err
	}
	if s.search != nil {
		// Edited listings leave the public index until re-approved.
		s.search.DeleteListing(listing.ID)
	}

	updated, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return listingPayload(updated), nil
}

// CloseListing marks an owned listing CLOSED and removes it from search.
func (s *Service) CloseListing(ctx context.Context, session Session, listingID string) (map[string]any, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != session.UserID && session.Role != "admin" {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can close a listing", nil)
	}
	listing.Status = "CLOSED"
	if err := s.store.UpdateListing(ctx, listing); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.DeleteListing(listing.ID)
	}
	closed, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	return listingPayload(closed), nil
}

// DeleteListing removes an owned listing entirely.
func (s *Service) DeleteListing(ctx context.Context, session Session, listingID string) error {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return err
	}
	if listing.OwnerID != session.UserID && session.Role != "admin" {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can delete a listing", nil)
	}
	if err := s.store.DeleteListing(ctx, listingID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeleteListing(listingID)
	}
	s.removeObjects(listingID, listing.ImageURLs)
	return nil
}

// removeObjects deletes stored images after their owning record is gone.
// Fire-and-forget; externally hosted URLs are ignored by the media service.
func (s *Service) removeObjects(recordID string, objectURLs []string) {
	if s.media == nil {
		return
	}
	for _, objectURL := range objectURLs {
		if objectURL == "" {
			continue
		}
		go func(u string) {
			if err := s.media.RemoveObject(context.Background(), u); err != nil {
				log.Printf("app: remove object for %s: %v", recordID, err)
			}
		}(objectURL)
	}
}

// CommentOnListing adds a question or comment to an active listing.
func (s *Service) CommentOnListing(ctx context.Context, session Session, listingID, body string) (map[string]any, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != "ACTIVE" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_ACTIVE", "Comments are only allowed on active listings", nil)
	}
	comment := store.ListingComment{
		ID:        util.NewID("cmt"),
		ListingID: listingID,
		AuthorID:  session.UserID,
		Body:      body,
	}
	if err := s.store.InsertListingComment(ctx, comment); err != nil {
		return nil, err
	}
	comment.AuthorName = session.UserName
	comment.CreatedAt = time.Now()
	return listingCommentPayload(comment), nil
}

// ExpressInterest records an investor's interest in an active listing,
// notifies the owner over WebSocket, and emails them when SMTP is set up.
func (s *Service) ExpressInterest(ctx context.Context, session Session, listingID string, input InterestInput) (map[string]any, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != "ACTIVE" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_ACTIVE", "Interest can only be expressed in active listings", nil)
	}
	if listing.OwnerID == session.UserID {
		return nil, domainError(http.StatusConflict, "OWN_LISTING", "You cannot express interest in your own listing", nil)
	}

	interest := store.Interest{
		ID:         util.NewID("int"),
		ListingID:  listingID,
		InvestorID: session.UserID,
		Note:       strings.TrimSpace(input.Note),
		Status:     "PENDING",
	}
	if err := s.store.InsertInterest(ctx, interest); err != nil {
		if err == store.ErrDuplicateInterest {
			return nil, domainError(http.StatusConflict, "ALREADY_INTERESTED", "You have already expressed interest in this listing", nil)
		}
		return nil, err
	}

	s.publish(listing.OwnerID, realtime.Event{
		Type: realtime.EventInterestNew,
		Payload: map[string]any{
			"interestId":   interest.ID,
			"listingId":    listingID,
			"listingTitle": listing.Title,
			"investorId":   session.UserID,
			"investorName": session.UserName,
			"note":         interest.Note,
		},
	})

	if s.SMTPConfigured() {
		owner, err := s.store.GetUserByID(ctx, listing.OwnerID)
		if err == nil {
			listingURL := strings.TrimRight(s.cfg.PublicBaseURL, "/") + "/listings/" + listingID
			go func() {
				if err := s.email.SendInterestEmail(owner.Email, owner.DisplayName, session.UserName, listing.Title, listingURL); err != nil {
					log.Printf("app: interest email for %s: %v", interest.ID, err)
				}
			}()
		}
	}

	created, err := s.store.GetInterest(ctx, interest.ID)
	if err != nil {
		return nil, err
	}
	return interestPayload(created), nil
}

// ListListingInterests returns the interests on an owned listing.
func (s *Service) ListListingInterests(ctx context.Context, session Session, listingID string) (map[string]any, error) {
	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != session.UserID && session.Role != "admin" {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the owner can view interests", nil)
	}
	interests, err := s.store.ListInterestsByListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(interests))
	for _, interest := range interests {
		items = append(items, interestPayload(interest))
	}
	return map[string]any{"interests": items}, nil
}

// ListMyInterests returns the viewer's own interests across listings.
func (s *Service) ListMyInterests(ctx context.Context, session Session) (map[string]any, error) {
	interests, err := s.store.ListInterestsByInvestor(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(interests))
	for _, interest := range interests {
		items = append(items, interestPayload(interest))
	}
	return map[string]any{"interests": items}, nil
}

// DecideInterest lets the listing owner accept or reject a pending
// interest. Accepting opens the messaging channel; the investor is
// notified either way.
func (s *Service) DecideInterest(ctx context.Context, session Session, interestID, decision string) (map[string]any, error) {
	status := strings.ToUpper(strings.TrimSpace(decision))
	if status != "ACCEPTED" && status != "REJECTED" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be ACCEPTED or REJECTED", nil)
	}

	interest, err := s.store.GetInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	if interest.OwnerID != session.UserID {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", "Only the listing owner can decide on an interest", nil)
	}
	if interest.Status != "PENDING" {
		return nil, domainError(http.StatusConflict, "INTEREST_DECIDED", "Interest has already been decided", nil)
	}

	if err := s.store.UpdateInterestStatus(ctx, interestID, status); err != nil {
		return nil, err
	}

	s.publish(interest.InvestorID, realtime.Event{
		Type: realtime.EventInterestStatus,
		Payload: map[string]any{
			"interestId":   interestID,
			"listingId":    interest.ListingID,
			"listingTitle": interest.ListingTitle,
			"status":       status,
		},
	})

	decided, err := s.store.GetInterest(ctx, interestID)
	if err != nil {
		return nil, err
	}
	return interestPayload(decided), nil
}

func listingPayload(listing store.Listing) map[string]any {
	imageURLs := listing.ImageURLs
	if imageURLs == nil {
		imageURLs = []string{}
	}
	payload := map[string]any{
		"id":                listing.ID,
		"ownerId":           listing.OwnerID,
		"ownerName":         listing.OwnerName,
		"ownerAvatarUrl":    listing.OwnerAvatarURL,
		"title":             listing.Title,
		"pitch":             listing.Pitch,
		"category":          listing.Category,
		"location":          listing.Location,
		"minInvestment":     listing.MinInvestment,
		"maxInvestment":     listing.MaxInvestment,
		"expectedReturnPct": listing.ExpectedReturnPct,
		"imageUrls":         imageURLs,
		"status":            listing.Status,
		"interestCount":     listing.InterestCount,
		"commentCount":      listing.CommentCount,
		"createdAt":         listing.CreatedAt.Format(time.RFC3339),
		"updatedAt":         listing.UpdatedAt.Format(time.RFC3339),
	}
	if listing.Status == "REJECTED" && listing.ReviewNote != "" {
		payload["reviewNote"] = listing.ReviewNote
	}
	return payload
}

func listingCommentPayload(comment store.ListingComment) map[string]any {
	return map[string]any{
		"id":         comment.ID,
		"listingId":  comment.ListingID,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"body":       comment.Body,
		"createdAt":  comment.CreatedAt.Format(time.RFC3339),
	}
}

func interestPayload(interest store.Interest) map[string]any {
	return map[string]any{
		"id":           interest.ID,
		"listingId":    interest.ListingID,
		"listingTitle": interest.ListingTitle,
		"investorId":   interest.InvestorID,
		"investorName": interest.InvestorName,
		"note":         interest.Note,
		"status":       interest.Status,
		"createdAt":    interest.CreatedAt.Format(time.RFC3339),
	}
}

// indexListing pushes an approved listing into the search index.
func (s *Service) indexListing(listing store.Listing) {
	if s.search == nil {
		return
	}
	s.search.IndexListing(search.ListingRecord{
		ID:       listing.ID,
		Title:    listing.Title,
		Pitch:    listing.Pitch,
		Category: listing.Category,
		Location: listing.Location,
		Status:   listing.Status,
	})
}
