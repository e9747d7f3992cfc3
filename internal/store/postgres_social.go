package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertPost(ctx context.Context, item Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, author_id, body, image_url)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.AuthorID, item.Body, item.ImageURL)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

const postColumns = `
	p.id, p.author_id, p.body, p.image_url, p.created_at,
	u.display_name, u.avatar_url,
	(SELECT COUNT(*) FROM post_likes pl WHERE pl.post_id = p.id),
	(SELECT COUNT(*) FROM post_comments pc WHERE pc.post_id = p.id),
	EXISTS(SELECT 1 FROM post_likes pl WHERE pl.post_id = p.id AND pl.user_id = $1)
`

func scanPost(row interface{ Scan(...any) error }) (Post, error) {
	var item Post
	err := row.Scan(
		&item.ID, &item.AuthorID, &item.Body, &item.ImageURL, &item.CreatedAt,
		&item.AuthorName, &item.AuthorAvatarURL, &item.LikeCount, &item.CommentCount,
		&item.LikedByViewer,
	)
	return item, err
}

// ListPosts returns the community feed, newest first. viewerID drives the
// liked-by-viewer flag.
func (s *PostgresStore) ListPosts(ctx context.Context, viewerID string, limit, offset int) ([]Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.author_id
		ORDER BY p.created_at DESC
		LIMIT $2 OFFSET $3
	`, viewerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	items := make([]Post, 0)
	for rows.Next() {
		item, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPost(ctx context.Context, viewerID, postID string) (Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+postColumns+`
		FROM posts p JOIN users u ON u.id = p.author_id
		WHERE p.id=$2
	`, viewerID, postID)
	return scanPost(row)
}

func (s *PostgresStore) DeletePost(ctx context.Context, postID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	return nil
}

// TogglePostLike flips the like state and reports the resulting state and
// like count.
func (s *PostgresStore) TogglePostLike(ctx context.Context, postID, userID string) (liked bool, count int, err error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM post_likes WHERE post_id=$1 AND user_id=$2
	`, postID, userID)
	if err != nil {
		return false, 0, fmt.Errorf("toggle post like: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return false, 0, fmt.Errorf("toggle post like: %w", err)
	}
	if deleted == 0 {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)
			ON CONFLICT (post_id, user_id) DO NOTHING
		`, postID, userID); err != nil {
			return false, 0, fmt.Errorf("toggle post like: %w", err)
		}
		liked = true
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM post_likes WHERE post_id=$1`, postID).Scan(&count); err != nil {
		return false, 0, fmt.Errorf("count post likes: %w", err)
	}
	return liked, count, nil
}

func (s *PostgresStore) InsertPostComment(ctx context.Context, comment PostComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO post_comments (id, post_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.PostID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert post comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListPostComments(ctx context.Context, postID string) ([]PostComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.post_id, c.author_id, c.body, c.created_at, u.display_name
		FROM post_comments c JOIN users u ON u.id = c.author_id
		WHERE c.post_id=$1
		ORDER BY c.created_at ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list post comments: %w", err)
	}
	defer rows.Close()

	items := make([]PostComment, 0)
	for rows.Next() {
		var item PostComment
		if err := rows.Scan(&item.ID, &item.PostID, &item.AuthorID, &item.Body, &item.CreatedAt, &item.AuthorName); err != nil {
			return nil, fmt.Errorf("scan post comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate post comments: %w", err)
	}
	return items, nil
}

// UpsertRating records a rating, replacing any previous rating from the same
// rater for the same user.
func (s *PostgresStore) UpsertRating(ctx context.Context, item Rating) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ratings (id, rater_id, rated_id, score, comment)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (rater_id, rated_id) DO UPDATE SET score=EXCLUDED.score, comment=EXCLUDED.comment, created_at=NOW()
	`, item.ID, item.RaterID, item.RatedID, item.Score, item.Comment)
	if err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRatingsForUser(ctx context.Context, ratedID string) ([]Rating, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.rater_id, r.rated_id, r.score, r.comment, r.created_at, u.display_name
		FROM ratings r JOIN users u ON u.id = r.rater_id
		WHERE r.rated_id=$1
		ORDER BY r.created_at DESC
	`, ratedID)
	if err != nil {
		return nil, fmt.Errorf("list ratings: %w", err)
	}
	defer rows.Close()

	items := make([]Rating, 0)
	for rows.Next() {
		var item Rating
		if err := rows.Scan(&item.ID, &item.RaterID, &item.RatedID, &item.Score, &item.Comment, &item.CreatedAt, &item.RaterName); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ratings: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetRatingSummary(ctx context.Context, ratedID string) (RatingSummary, error) {
	var summary RatingSummary
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(score), 0), COUNT(*) FROM ratings WHERE rated_id=$1
	`, ratedID).Scan(&summary.Average, &summary.Count)
	if err != nil {
		return RatingSummary{}, fmt.Errorf("rating summary: %w", err)
	}
	return summary, nil
}

func (s *PostgresStore) InsertReport(ctx context.Context, item Report) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reports (id, reporter_id, target_type, target_id, reason, details)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, item.ID, item.ReporterID, item.TargetType, item.TargetID, item.Reason, item.Details)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}
