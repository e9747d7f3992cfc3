package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"investlocal/api/internal/realtime"
	"investlocal/api/internal/store"
	"investlocal/api/internal/util"
)

const maxMessageBodyLen = 2000

// SendMessage delivers a direct message and pushes it to the recipient's
// open WebSocket connections along with their new unread count.
func (s *Service) SendMessage(ctx context.Context, session Session, recipientID, body string) (map[string]any, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is required", nil)
	}
	if len(body) > maxMessageBodyLen {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body is too long", map[string]any{"max": maxMessageBodyLen})
	}
	if recipientID == session.UserID {
		return nil, domainError(http.StatusConflict, "SELF_MESSAGE", "You cannot message yourself", nil)
	}

	recipient, err := s.store.GetUserByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient.DeactivatedAt != nil {
		return nil, domainError(http.StatusConflict, "RECIPIENT_DEACTIVATED", "Recipient account is deactivated", nil)
	}

	message := store.Message{
		ID:          util.NewID("msg"),
		SenderID:    session.UserID,
		RecipientID: recipientID,
		Body:        body,
	}
	if err := s.store.InsertMessage(ctx, message); err != nil {
		return nil, err
	}
	message.CreatedAt = time.Now()

	unread, err := s.store.UnreadMessageCount(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	s.publish(recipientID, realtime.Event{
		Type: realtime.EventMessageNew,
		Payload: map[string]any{
			"message":        messagePayload(message),
			"senderName":     session.UserName,
			"unreadMessages": unread,
		},
	})

	return messagePayload(message), nil
}

// Thread returns the exchange with a peer and marks their messages read.
func (s *Service) Thread(ctx context.Context, session Session, peerID string, limit int) (map[string]any, error) {
	peer, err := s.store.GetUserByID(ctx, peerID)
	if err != nil {
		return nil, err
	}
	messages, err := s.store.ListThread(ctx, session.UserID, peerID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.store.MarkThreadRead(ctx, session.UserID, peerID); err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(messages))
	for _, message := range messages {
		items = append(items, messagePayload(message))
	}
	return map[string]any{
		"peer": map[string]any{
			"id":          peer.ID,
			"displayName": peer.DisplayName,
			"avatarUrl":   peer.AvatarURL,
			"userType":    peer.UserType,
		},
		"messages": items,
	}, nil
}

// Conversations lists the viewer's message threads, newest first.
func (s *Service) Conversations(ctx context.Context, session Session) (map[string]any, error) {
	conversations, err := s.store.ListConversations(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(conversations))
	for _, conv := range conversations {
		items = append(items, map[string]any{
			"peerId":        conv.PeerID,
			"peerName":      conv.PeerName,
			"peerAvatarUrl": conv.PeerAvatarURL,
			"lastBody":      conv.LastBody,
			"lastSenderId":  conv.LastSenderID,
			"lastAt":        conv.LastAt.Format(time.RFC3339),
			"unreadCount":   conv.UnreadCount,
		})
	}
	return map[string]any{"conversations": items}, nil
}

// UnreadCount returns the viewer's total unread message count.
func (s *Service) UnreadCount(ctx context.Context, session Session) (map[string]any, error) {
	unread, err := s.store.UnreadMessageCount(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	return map[string]any{"unreadMessages": unread}, nil
}

func messagePayload(message store.Message) map[string]any {
	payload := map[string]any{
		"id":          message.ID,
		"senderId":    message.SenderID,
		"recipientId": message.RecipientID,
		"body":        message.Body,
		"createdAt":   message.CreatedAt.Format(time.RFC3339),
	}
	if message.ReadAt != nil {
		payload["readAt"] = message.ReadAt.Format(time.RFC3339)
	}
	return payload
}
