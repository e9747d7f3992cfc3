package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"investlocal/api/internal/search"
	"investlocal/api/internal/store"
	"investlocal/api/internal/util"
)

type PostInput struct {
	Body     string `json:"body"`
	ImageURL string `json:"imageUrl"`
}

type RatingInput struct {
	Score   int    `json:"score"`
	Comment string `json:"comment"`
}

type ReportInput struct {
	TargetType string `json:"targetType"`
	TargetID   string `json:"targetId"`
	Reason     string `json:"reason"`
	Details    string `json:"details"`
}

const maxPostBodyLen = 4000

var allowedReportTargets = map[string]struct{}{
	"listing": {},
	"post":    {},
	"user":    {},
}

// CreatePost publishes a community post to the feed.
func (s *Service) CreatePost(ctx context.Context, session Session, input PostInput) (map[string]any, error) {
	body := strings.TrimSpace(input.Body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if len(body) > maxPostBodyLen {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is too long", map[string]any{"max": maxPostBodyLen})
	}

	post := store.Post{
		ID:       util.NewID("pst"),
		AuthorID: session.UserID,
		Body:     body,
		ImageURL: strings.TrimSpace(input.ImageURL),
	}
	if err := s.store.InsertPost(ctx, post); err != nil {
		return nil, err
	}
	if s.search != nil {
		s.search.IndexPost(search.PostRecord{
			ID:         post.ID,
			Body:       post.Body,
			AuthorName: session.UserName,
		})
	}

	created, err := s.store.GetPost(ctx, session.UserID, post.ID)
	if err != nil {
		return nil, err
	}
	return postPayload(created), nil
}

// ListPosts returns the community feed, newest first.
func (s *Service) ListPosts(ctx context.Context, session Session, limit, offset int) (map[string]any, error) {
	posts, err := s.store.ListPosts(ctx, session.UserID, limit, offset)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(posts))
	for _, post := range posts {
		items = append(items, postPayload(post))
	}
	return map[string]any{"posts": items}, nil
}

// GetPostDetail returns a post with its comments.
func (s *Service) GetPostDetail(ctx context.Context, session Session, postID string) (map[string]any, error) {
	post, err := s.store.GetPost(ctx, session.UserID, postID)
	if err != nil {
		return nil, err
	}
	comments, err := s.store.ListPostComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	payload := postPayload(post)
	commentItems := make([]map[string]any, 0, len(comments))
	for _, comment := range comments {
		commentItems = append(commentItems, postCommentPayload(comment))
	}
	payload["comments"] = commentItems
	return payload, nil
}

// DeletePost removes an owned post.
func (s *Service) DeletePost(ctx context.Context, session Session, postID string) error {
	post, err := s.store.GetPost(ctx, session.UserID, postID)
	if err != nil {
		return err
	}
	if post.AuthorID != session.UserID && session.Role != "admin" {
		return domainError(http.StatusForbidden, "FORBIDDEN", "Only the author can delete a post", nil)
	}
	if err := s.store.DeletePost(ctx, postID); err != nil {
		return err
	}
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	s.removeObjects(postID, []string{post.ImageURL})
	return nil
}

// TogglePostLike flips the viewer's like on a post and returns the new state.
func (s *Service) TogglePostLike(ctx context.Context, session Session, postID string) (map[string]any, error) {
	if _, err := s.store.GetPost(ctx, session.UserID, postID); err != nil {
		return nil, err
	}
	liked, count, err := s.store.TogglePostLike(ctx, postID, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"postId":    postID,
		"liked":     liked,
		"likeCount": count,
	}, nil
}

// CommentOnPost adds a comment to a post.
func (s *Service) CommentOnPost(ctx context.Context, session Session, postID, body string) (map[string]any, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if _, err := s.store.GetPost(ctx, session.UserID, postID); err != nil {
		return nil, err
	}
	comment := store.PostComment{
		ID:       util.NewID("cmt"),
		PostID:   postID,
		AuthorID: session.UserID,
		Body:     body,
	}
	if err := s.store.InsertPostComment(ctx, comment); err != nil {
		return nil, err
	}
	comment.AuthorName = session.UserName
	comment.CreatedAt = time.Now()
	return postCommentPayload(comment), nil
}

// RateUser records or updates the viewer's rating of another user.
func (s *Service) RateUser(ctx context.Context, session Session, ratedID string, input RatingInput) (map[string]any, error) {
	if ratedID == session.UserID {
		return nil, domainError(http.StatusConflict, "SELF_RATING", "You cannot rate yourself", nil)
	}
	if input.Score < 1 || input.Score > 5 {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "score must be between 1 and 5", nil)
	}
	if _, err := s.store.GetUserByID(ctx, ratedID); err != nil {
		return nil, err
	}

	rating := store.Rating{
		ID:      util.NewID("rat"),
		RaterID: session.UserID,
		RatedID: ratedID,
		Score:   input.Score,
		Comment: strings.TrimSpace(input.Comment),
	}
	if err := s.store.UpsertRating(ctx, rating); err != nil {
		return nil, err
	}
	summary, err := s.store.GetRatingSummary(ctx, ratedID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"ratedId": ratedID,
		"score":   input.Score,
		"rating": map[string]any{
			"average": summary.Average,
			"count":   summary.Count,
		},
	}, nil
}

// ListUserRatings returns the ratings a user has received.
func (s *Service) ListUserRatings(ctx context.Context, userID string) (map[string]any, error) {
	ratings, err := s.store.ListRatingsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary, err := s.store.GetRatingSummary(ctx, userID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(ratings))
	for _, rating := range ratings {
		items = append(items, map[string]any{
			"id":        rating.ID,
			"raterId":   rating.RaterID,
			"raterName": rating.RaterName,
			"score":     rating.Score,
			"comment":   rating.Comment,
			"createdAt": rating.CreatedAt.Format(time.RFC3339),
		})
	}
	return map[string]any{
		"ratings": items,
		"summary": map[string]any{
			"average": summary.Average,
			"count":   summary.Count,
		},
	}, nil
}

// SubmitReport files a report against a listing, post, or user.
func (s *Service) SubmitReport(ctx context.Context, session Session, input ReportInput) (map[string]any, error) {
	targetType := strings.ToLower(strings.TrimSpace(input.TargetType))
	if _, ok := allowedReportTargets[targetType]; !ok {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "targetType must be listing, post, or user", nil)
	}
	targetID := strings.TrimSpace(input.TargetID)
	if targetID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "targetId is required", nil)
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "reason is required", nil)
	}

	report := store.Report{
		ID:         util.NewID("rep"),
		ReporterID: session.UserID,
		TargetType: targetType,
		TargetID:   targetID,
		Reason:     reason,
		Details:    strings.TrimSpace(input.Details),
		Status:     "OPEN",
	}
	if err := s.store.InsertReport(ctx, report); err != nil {
		return nil, err
	}
	return map[string]any{
		"id":     report.ID,
		"status": report.Status,
	}, nil
}

func postPayload(post store.Post) map[string]any {
	return map[string]any{
		"id":              post.ID,
		"authorId":        post.AuthorID,
		"authorName":      post.AuthorName,
		"authorAvatarUrl": post.AuthorAvatarURL,
		"body":            post.Body,
		"imageUrl":        post.ImageURL,
		"likeCount":       post.LikeCount,
		"commentCount":    post.CommentCount,
		"likedByViewer":   post.LikedByViewer,
		"createdAt":       post.CreatedAt.Format(time.RFC3339),
	}
}

func postCommentPayload(comment store.PostComment) map[string]any {
	return map[string]any{
		"id":         comment.ID,
		"postId":     comment.PostID,
		"authorId":   comment.AuthorID,
		"authorName": comment.AuthorName,
		"body":       comment.Body,
		"createdAt":  comment.CreatedAt.Format(time.RFC3339),
	}
}
