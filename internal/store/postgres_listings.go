package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrDuplicateInterest is returned when an investor has already expressed
// interest in a listing.
var ErrDuplicateInterest = errors.New("interest already expressed")

// ListingFilter narrows ListListings. Zero values mean "any".
type ListingFilter struct {
	Status   string
	Category string
	Location string
	OwnerID  string
	Limit    int
	Offset   int
}

const listingColumns = `
	l.id, l.owner_id, l.title, l.pitch, l.category, l.location,
	l.min_investment, l.max_investment, l.expected_return_pct, l.image_urls,
	l.status, l.review_note, l.reviewed_by, l.created_at, l.updated_at,
	u.display_name, u.avatar_url,
	(SELECT COUNT(*) FROM interests i WHERE i.listing_id = l.id),
	(SELECT COUNT(*) FROM listing_comments c WHERE c.listing_id = l.id)
`

func scanListing(row interface{ Scan(...any) error }) (Listing, error) {
	var item Listing
	var images []byte
	err := row.Scan(
		&item.ID, &item.OwnerID, &item.Title, &item.Pitch, &item.Category, &item.Location,
		&item.MinInvestment, &item.MaxInvestment, &item.ExpectedReturnPct, &images,
		&item.Status, &item.ReviewNote, &item.ReviewedBy, &item.CreatedAt, &item.UpdatedAt,
		&item.OwnerName, &item.OwnerAvatarURL, &item.InterestCount, &item.CommentCount,
	)
	if err != nil {
		return Listing{}, err
	}
	if len(images) > 0 {
		if err := json.Unmarshal(images, &item.ImageURLs); err != nil {
			return Listing{}, fmt.Errorf("decode listing images: %w", err)
		}
	}
	if item.ImageURLs == nil {
		item.ImageURLs = []string{}
	}
	return item, nil
}

func (s *PostgresStore) InsertListing(ctx context.Context, item Listing) error {
	images, err := json.Marshal(item.ImageURLs)
	if err != nil {
		return fmt.Errorf("encode listing images: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO listings (id, owner_id, title, pitch, category, location, min_investment, max_investment, expected_return_pct, image_urls, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, item.ID, item.OwnerID, item.Title, item.Pitch, item.Category, item.Location,
		item.MinInvestment, item.MaxInvestment, item.ExpectedReturnPct, images, item.Status)
	if err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetListing(ctx context.Context, listingID string) (Listing, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+listingColumns+`
		FROM listings l JOIN users u ON u.id = l.owner_id
		WHERE l.id=$1
	`, listingID)
	return scanListing(row)
}

func (s *PostgresStore) ListListings(ctx context.Context, filter ListingFilter) ([]Listing, error) {
	query := `
		SELECT ` + listingColumns + `
		FROM listings l JOIN users u ON u.id = l.owner_id
		WHERE 1=1`
	args := []any{}
	argN := 1
	if filter.Status != "" {
		query += fmt.Sprintf(" AND l.status = $%d", argN)
		args = append(args, filter.Status)
		argN++
	}
	if filter.Category != "" {
		query += fmt.Sprintf(" AND l.category = $%d", argN)
		args = append(args, filter.Category)
		argN++
	}
	if filter.Location != "" {
		query += fmt.Sprintf(" AND l.location ILIKE $%d", argN)
		args = append(args, "%"+filter.Location+"%")
		argN++
	}
	if filter.OwnerID != "" {
		query += fmt.Sprintf(" AND l.owner_id = $%d", argN)
		args = append(args, filter.OwnerID)
		argN++
	}
	query += " ORDER BY l.created_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query += fmt.Sprintf(" LIMIT $%d", argN)
	args = append(args, limit)
	argN++
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list listings: %w", err)
	}
	defer rows.Close()

	items := make([]Listing, 0)
	for rows.Next() {
		item, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateListing(ctx context.Context, item Listing) error {
	images, err := json.Marshal(item.ImageURLs)
	if err != nil {
		return fmt.Errorf("encode listing images: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE listings
		SET title=$2, pitch=$3, category=$4, location=$5, min_investment=$6,
			max_investment=$7, expected_return_pct=$8, image_urls=$9, status=$10, updated_at=NOW()
		WHERE id=$1
	`, item.ID, item.Title, item.Pitch, item.Category, item.Location,
		item.MinInvestment, item.MaxInvestment, item.ExpectedReturnPct, images, item.Status)
	if err != nil {
		return fmt.Errorf("update listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateListingReview(ctx context.Context, listingID, status, note, reviewedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET status=$2, review_note=$3, reviewed_by=$4, updated_at=NOW()
		WHERE id=$1
	`, listingID, status, note, reviewedBy)
	if err != nil {
		return fmt.Errorf("update listing review: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteListing(ctx context.Context, listingID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM listings WHERE id=$1`, listingID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertListingComment(ctx context.Context, comment ListingComment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listing_comments (id, listing_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.ListingID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert listing comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListListingComments(ctx context.Context, listingID string) ([]ListingComment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.listing_id, c.author_id, c.body, c.created_at, u.display_name
		FROM listing_comments c JOIN users u ON u.id = c.author_id
		WHERE c.listing_id=$1
		ORDER BY c.created_at ASC
	`, listingID)
	if err != nil {
		return nil, fmt.Errorf("list listing comments: %w", err)
	}
	defer rows.Close()

	items := make([]ListingComment, 0)
	for rows.Next() {
		var item ListingComment
		if err := rows.Scan(&item.ID, &item.ListingID, &item.AuthorID, &item.Body, &item.CreatedAt, &item.AuthorName); err != nil {
			return nil, fmt.Errorf("scan listing comment: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listing comments: %w", err)
	}
	return items, nil
}

const interestColumns = `
	i.id, i.listing_id, i.investor_id, i.note, i.status, i.created_at, i.updated_at,
	u.display_name, l.title, l.owner_id
`

func scanInterest(row interface{ Scan(...any) error }) (Interest, error) {
	var item Interest
	err := row.Scan(
		&item.ID, &item.ListingID, &item.InvestorID, &item.Note, &item.Status,
		&item.CreatedAt, &item.UpdatedAt, &item.InvestorName, &item.ListingTitle, &item.OwnerID,
	)
	return item, err
}

func (s *PostgresStore) InsertInterest(ctx context.Context, item Interest) error {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO interests (id, listing_id, investor_id, note, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id, investor_id) DO NOTHING
	`, item.ID, item.ListingID, item.InvestorID, item.Note, item.Status)
	if err != nil {
		return fmt.Errorf("insert interest: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert interest: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateInterest
	}
	return nil
}

func (s *PostgresStore) GetInterest(ctx context.Context, interestID string) (Interest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+interestColumns+`
		FROM interests i
		JOIN users u ON u.id = i.investor_id
		JOIN listings l ON l.id = i.listing_id
		WHERE i.id=$1
	`, interestID)
	return scanInterest(row)
}

func (s *PostgresStore) ListInterestsByListing(ctx context.Context, listingID string) ([]Interest, error) {
	return s.listInterests(ctx, "i.listing_id=$1", listingID)
}

func (s *PostgresStore) ListInterestsByInvestor(ctx context.Context, investorID string) ([]Interest, error) {
	return s.listInterests(ctx, "i.investor_id=$1", investorID)
}

func (s *PostgresStore) listInterests(ctx context.Context, where string, arg any) ([]Interest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+interestColumns+`
		FROM interests i
		JOIN users u ON u.id = i.investor_id
		JOIN listings l ON l.id = i.listing_id
		WHERE `+where+`
		ORDER BY i.created_at DESC
	`, arg)
	if err != nil {
		return nil, fmt.Errorf("list interests: %w", err)
	}
	defer rows.Close()

	items := make([]Interest, 0)
	for rows.Next() {
		item, err := scanInterest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interests: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) UpdateInterestStatus(ctx context.Context, interestID, status string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE interests SET status=$2, updated_at=NOW() WHERE id=$1
	`, interestID, status)
	if err != nil {
		return fmt.Errorf("update interest status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update interest status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
