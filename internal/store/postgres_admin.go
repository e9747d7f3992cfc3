package store

import (
	"context"
	"database/sql"
	"fmt"
)

func (s *PostgresStore) ListReports(ctx context.Context, status string, limit int) ([]Report, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT r.id, r.reporter_id, r.target_type, r.target_id, r.reason, r.details,
			r.status, r.resolved_by, r.resolution_note, r.resolved_at, r.created_at,
			u.display_name
		FROM reports r JOIN users u ON u.id = r.reporter_id`
	args := []any{}
	if status != "" {
		query += ` WHERE r.status=$1 ORDER BY r.created_at ASC LIMIT $2`
		args = append(args, status, limit)
	} else {
		query += ` ORDER BY r.created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	items := make([]Report, 0)
	for rows.Next() {
		var item Report
		if err := rows.Scan(&item.ID, &item.ReporterID, &item.TargetType, &item.TargetID,
			&item.Reason, &item.Details, &item.Status, &item.ResolvedBy, &item.ResolutionNote,
			&item.ResolvedAt, &item.CreatedAt, &item.ReporterName); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, reportID string) (Report, error) {
	var item Report
	err := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.reporter_id, r.target_type, r.target_id, r.reason, r.details,
			r.status, r.resolved_by, r.resolution_note, r.resolved_at, r.created_at,
			u.display_name
		FROM reports r JOIN users u ON u.id = r.reporter_id
		WHERE r.id=$1
	`, reportID).Scan(&item.ID, &item.ReporterID, &item.TargetType, &item.TargetID,
		&item.Reason, &item.Details, &item.Status, &item.ResolvedBy, &item.ResolutionNote,
		&item.ResolvedAt, &item.CreatedAt, &item.ReporterName)
	if err != nil {
		return Report{}, err
	}
	return item, nil
}

func (s *PostgresStore) ResolveReport(ctx context.Context, reportID, status, note, resolvedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE reports
		SET status=$2, resolution_note=$3, resolved_by=$4, resolved_at=NOW()
		WHERE id=$1 AND status='OPEN'
	`, reportID, status, note, resolvedBy)
	if err != nil {
		return fmt.Errorf("resolve report: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve report: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]User, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+`
		FROM users
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	items := make([]User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		items = append(items, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) SetUserDeactivated(ctx context.Context, userID string, deactivated bool) error {
	var query string
	if deactivated {
		query = `UPDATE users SET deactivated_at=NOW(), updated_at=NOW() WHERE id=$1 AND deactivated_at IS NULL`
	} else {
		query = `UPDATE users SET deactivated_at=NULL, updated_at=NOW() WHERE id=$1`
	}
	result, err := s.db.ExecContext(ctx, query, userID)
	if err != nil {
		return fmt.Errorf("set user deactivated: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set user deactivated: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) AdminStats(ctx context.Context) (AdminStats, error) {
	var stats AdminStats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM listings),
			(SELECT COUNT(*) FROM listings WHERE status='PENDING'),
			(SELECT COUNT(*) FROM reports WHERE status='OPEN'),
			(SELECT COUNT(*) FROM messages)
	`).Scan(&stats.TotalUsers, &stats.TotalListings, &stats.PendingListings, &stats.OpenReports, &stats.TotalMessages)
	if err != nil {
		return AdminStats{}, fmt.Errorf("admin stats: %w", err)
	}
	return stats, nil
}
