package store

import (
	"context"
	"fmt"
)

func (s *PostgresStore) InsertMessage(ctx context.Context, item Message) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, sender_id, recipient_id, body)
		VALUES ($1, $2, $3, $4)
	`, item.ID, item.SenderID, item.RecipientID, item.Body)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// ListThread returns the full exchange between two users, oldest first.
func (s *PostgresStore) ListThread(ctx context.Context, userID, peerID string, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, recipient_id, body, read_at, created_at
		FROM (
			SELECT id, sender_id, recipient_id, body, read_at, created_at
			FROM messages
			WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
			ORDER BY created_at DESC
			LIMIT $3
		) recent
		ORDER BY created_at ASC
	`, userID, peerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list thread: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var item Message
		if err := rows.Scan(&item.ID, &item.SenderID, &item.RecipientID, &item.Body, &item.ReadAt, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

// MarkThreadRead marks every message from peerID to userID as read.
func (s *PostgresStore) MarkThreadRead(ctx context.Context, userID, peerID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE messages SET read_at=NOW()
		WHERE recipient_id=$1 AND sender_id=$2 AND read_at IS NULL
	`, userID, peerID)
	if err != nil {
		return fmt.Errorf("mark thread read: %w", err)
	}
	return nil
}

func (s *PostgresStore) UnreadMessageCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM messages WHERE recipient_id=$1 AND read_at IS NULL
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("unread message count: %w", err)
	}
	return count, nil
}

// ListConversations returns one row per peer the user has exchanged messages
// with, carrying the latest message and the unread count, newest first.
func (s *PostgresStore) ListConversations(ctx context.Context, userID string) ([]Conversation, error) {
	const query = `
		WITH peers AS (
			SELECT DISTINCT CASE WHEN sender_id=$1 THEN recipient_id ELSE sender_id END AS peer_id
			FROM messages
			WHERE sender_id=$1 OR recipient_id=$1
		)
		SELECT p.peer_id, u.display_name, u.avatar_url,
			last.body, last.sender_id, last.created_at,
			(SELECT COUNT(*) FROM messages m
				WHERE m.recipient_id=$1 AND m.sender_id=p.peer_id AND m.read_at IS NULL)
		FROM peers p
		JOIN users u ON u.id = p.peer_id
		JOIN LATERAL (
			SELECT body, sender_id, created_at
			FROM messages m
			WHERE (m.sender_id=$1 AND m.recipient_id=p.peer_id)
				OR (m.sender_id=p.peer_id AND m.recipient_id=$1)
			ORDER BY m.created_at DESC
			LIMIT 1
		) last ON TRUE
		ORDER BY last.created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	items := make([]Conversation, 0)
	for rows.Next() {
		var item Conversation
		if err := rows.Scan(&item.PeerID, &item.PeerName, &item.PeerAvatarURL, &item.LastBody, &item.LastSenderID, &item.LastAt, &item.UnreadCount); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate conversations: %w", err)
	}
	return items, nil
}
