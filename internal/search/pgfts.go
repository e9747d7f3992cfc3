package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across listings and posts using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}
	argN := 2

	var subQueries []string

	// Listings sub-query
	if q.FilterType == "" || q.FilterType == ResultListing {
		listingWhere := "l.fts @@ " + tsQuery + " AND l.status = 'ACTIVE'"
		if q.FilterCategory != "" {
			listingWhere += fmt.Sprintf(" AND l.category = $%d", argN)
			args = append(args, q.FilterCategory)
			argN++
		}
		if q.FilterLocation != "" {
			listingWhere += fmt.Sprintf(" AND l.location = $%d", argN)
			args = append(args, q.FilterLocation)
			argN++
		}
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'listing'::text AS type, l.id, l.title,
				ts_headline('english', coalesce(l.pitch, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				l.category, l.location,
				ts_rank(l.fts, %s) AS rank
			FROM listings l
			WHERE %s`, tsQuery, tsQuery, listingWhere))
	}

	// Posts sub-query
	if q.FilterType == "" || q.FilterType == ResultPost {
		postWhere := "p.fts @@ " + tsQuery
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'post'::text AS type, p.id, u.display_name AS title,
				ts_headline('english', coalesce(p.body, ''), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				''::text AS category, ''::text AS location,
				ts_rank(p.fts, %s) AS rank
			FROM posts p
			JOIN users u ON u.id = p.author_id
			WHERE %s`, tsQuery, tsQuery, postWhere))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	// Count query
	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	// Data query
	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, category, location
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.Category, &r.Location); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]ListingRecord, []PostRecord, error) {
	listingRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, pitch, category, location, status
		FROM listings
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load listings: %w", err)
	}
	defer listingRows.Close()

	listings := make([]ListingRecord, 0)
	for listingRows.Next() {
		var l ListingRecord
		if err := listingRows.Scan(&l.ID, &l.Title, &l.Pitch, &l.Category, &l.Location, &l.Status); err != nil {
			return nil, nil, fmt.Errorf("scan listing: %w", err)
		}
		listings = append(listings, l)
	}
	if err := listingRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate listings: %w", err)
	}

	postRows, err := p.db.QueryContext(ctx, `
		SELECT p.id, p.body, u.display_name
		FROM posts p
		JOIN users u ON u.id = p.author_id
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load posts: %w", err)
	}
	defer postRows.Close()

	posts := make([]PostRecord, 0)
	for postRows.Next() {
		var pr PostRecord
		if err := postRows.Scan(&pr.ID, &pr.Body, &pr.AuthorName); err != nil {
			return nil, nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, pr)
	}
	if err := postRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate posts: %w", err)
	}

	return listings, posts, nil
}
