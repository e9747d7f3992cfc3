package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"investlocal/api/internal/realtime"
	"investlocal/api/internal/store"
)

// AdminStats returns the moderation dashboard counters.
func (s *Service) AdminStats(ctx context.Context) (map[string]any, error) {
	stats, err := s.store.AdminStats(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"totalUsers":      stats.TotalUsers,
		"totalListings":   stats.TotalListings,
		"pendingListings": stats.PendingListings,
		"openReports":     stats.OpenReports,
		"totalMessages":   stats.TotalMessages,
	}, nil
}

// ListPendingListings returns listings awaiting review, oldest first.
func (s *Service) ListPendingListings(ctx context.Context, limit, offset int) (map[string]any, error) {
	listings, err := s.store.ListListings(ctx, store.ListingFilter{Status: "PENDING", Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(listings))
	for _, listing := range listings {
		items = append(items, listingPayload(listing))
	}
	return map[string]any{"listings": items}, nil
}

// ReviewListing approves or rejects a pending listing. Approval makes the
// listing publicly visible and searchable; the owner is notified either way.
func (s *Service) ReviewListing(ctx context.Context, session Session, listingID, decision, note string) (map[string]any, error) {
	status := strings.ToUpper(strings.TrimSpace(decision))
	if status != "ACTIVE" && status != "REJECTED" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be ACTIVE or REJECTED", nil)
	}
	note = strings.TrimSpace(note)
	if status == "REJECTED" && note == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "a review note is required when rejecting", nil)
	}

	listing, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != "PENDING" {
		return nil, domainError(http.StatusConflict, "LISTING_NOT_PENDING", "Only pending listings can be reviewed", nil)
	}

	if err := s.store.UpdateListingReview(ctx, listingID, status, note, session.UserID); err != nil {
		return nil, err
	}

	reviewed, err := s.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if status == "ACTIVE" {
		s.indexListing(reviewed)
	}

	s.publish(listing.OwnerID, realtime.Event{
		Type: realtime.EventListingReviewed,
		Payload: map[string]any{
			"listingId":    listingID,
			"listingTitle": listing.Title,
			"status":       status,
			"reviewNote":   note,
		},
	})

	return listingPayload(reviewed), nil
}

// ListReports returns filed reports, optionally filtered by status.
func (s *Service) ListReports(ctx context.Context, status string, limit int) (map[string]any, error) {
	status = strings.ToUpper(strings.TrimSpace(status))
	switch status {
	case "", "OPEN", "RESOLVED", "DISMISSED":
	default:
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be OPEN, RESOLVED, or DISMISSED", nil)
	}
	reports, err := s.store.ListReports(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(reports))
	for _, report := range reports {
		items = append(items, reportPayload(report))
	}
	return map[string]any{"reports": items}, nil
}

// ResolveReport closes an open report as RESOLVED or DISMISSED.
func (s *Service) ResolveReport(ctx context.Context, session Session, reportID, decision, note string) (map[string]any, error) {
	status := strings.ToUpper(strings.TrimSpace(decision))
	if status != "RESOLVED" && status != "DISMISSED" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status must be RESOLVED or DISMISSED", nil)
	}
	if err := s.store.ResolveReport(ctx, reportID, status, strings.TrimSpace(note), session.UserID); err != nil {
		return nil, err
	}
	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	return reportPayload(report), nil
}

// ListAllUsers returns the user roster for the admin console.
func (s *Service) ListAllUsers(ctx context.Context, limit, offset int) (map[string]any, error) {
	users, err := s.store.ListUsers(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(users))
	for _, user := range users {
		payload := userPayload(user)
		payload["email"] = user.Email
		items = append(items, payload)
	}
	return map[string]any{"users": items}, nil
}

// SetUserActive deactivates or reactivates an account. Admins cannot
// deactivate themselves.
func (s *Service) SetUserActive(ctx context.Context, session Session, userID string, active bool) (map[string]any, error) {
	if !active && userID == session.UserID {
		return nil, domainError(http.StatusConflict, "SELF_DEACTIVATION", "You cannot deactivate your own account", nil)
	}
	if err := s.store.SetUserDeactivated(ctx, userID, !active); err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return userPayload(user), nil
}

func reportPayload(report store.Report) map[string]any {
	payload := map[string]any{
		"id":           report.ID,
		"reporterId":   report.ReporterID,
		"reporterName": report.ReporterName,
		"targetType":   report.TargetType,
		"targetId":     report.TargetID,
		"reason":       report.Reason,
		"details":      report.Details,
		"status":       report.Status,
		"createdAt":    report.CreatedAt.Format(time.RFC3339),
	}
	if report.ResolvedAt != nil {
		payload["resolvedBy"] = report.ResolvedBy
		payload["resolutionNote"] = report.ResolutionNote
		payload["resolvedAt"] = report.ResolvedAt.Format(time.RFC3339)
	}
	return payload
}
