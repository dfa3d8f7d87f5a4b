package graph

import (
	"context"

	apperrors "aurora/backend/pkg/errors"
)

// ============================================================================
// Message Operations
// ============================================================================

// SaveChatMessage persists a live chat message. Either identity may be unknown to
// the user registry; missing ones are created as placeholders.
func (r *Repository) SaveChatMessage(ctx context.Context, msg Message) error {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MERGE (s:User {username: $from})
		ON CREATE SET s.placeholder = true, s.created_at = datetime($now)
		MERGE (t:User {username: $to})
		ON CREATE SET t.placeholder = true, t.created_at = datetime($now)
		CREATE (m:Message {id: $id, content: $content, timestamp: datetime($now)})
		CREATE (s)-[:SENT]->(m)
		CREATE (m)-[:TO]->(t)
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":      msg.ID,
		"from":    msg.From,
		"to":      msg.To,
		"content": msg.Content,
		"now":     formatTime(msg.Timestamp),
	})
	if err != nil {
		return apperrors.NewStore("save chat message", err)
	}
	// constraint violations only surface once the result is pulled
	if _, err := result.Consume(ctx); err != nil {
		return apperrors.NewStore("save chat message", err)
	}
	return nil
}

// SaveDirectMessage persists a message between two registered users
func (r *Repository) SaveDirectMessage(ctx context.Context, msg Message) (*Message, error) {
	session := r.writeSession(ctx)
	defer session.Close(ctx)

	query := `
		MATCH (s:User {username: $from})
		WHERE coalesce(s.placeholder, false) = false
		MATCH (t:User {username: $to})
		WHERE coalesce(t.placeholder, false) = false
		CREATE (m:Message {id: $id, content: $content, timestamp: datetime($now)})
		CREATE (s)-[:SENT]->(m)
		CREATE (m)-[:TO]->(t)
		RETURN m.id as id, m.timestamp as timestamp
	`

	result, err := session.Run(ctx, query, map[string]interface{}{
		"id":      msg.ID,
		"from":    msg.From,
		"to":      msg.To,
		"content": msg.Content,
		"now":     formatTime(msg.Timestamp),
	})
	if err != nil {
		return nil, apperrors.NewStore("save direct message", err)
	}

	if result.Next(ctx) {
		record := result.Record()
		saved := msg
		saved.ID = getStringFromRecord(record, "id")
		saved.Timestamp = getTimeFromRecord(record, "timestamp")
		return &saved, nil
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("save direct message", err)
	}

	if _, err := r.GetUser(ctx, msg.To); err != nil {
		return nil, err
	}
	return nil, apperrors.NewNotFound("user", msg.From)
}

// History returns every message exchanged between two identities in either
// direction, oldest first. It does not depend on who is online.
func (r *Repository) History(ctx context.Context, user1, user2 string) ([]HistoryEntry, error) {
	session := r.readSession(ctx)
	defer session.Close(ctx)

	query := `
		CALL {
			MATCH (a:User {username: $user1})-[:SENT]->(m:Message)-[:TO]->(:User {username: $user2})
			RETURN m, a.username as sender
			UNION
			MATCH (b:User {username: $user2})-[:SENT]->(m:Message)-[:TO]->(:User {username: $user1})
			RETURN m, b.username as sender
		}
		RETURN m.id as id, sender, m.content as content, m.timestamp as timestamp
		ORDER BY timestamp ASC, id ASC
	`

	result, err := session.Run(ctx, query, map[string]interface{}{"user1": user1, "user2": user2})
	if err != nil {
		return nil, apperrors.NewStore("history", err)
	}

	history := make([]HistoryEntry, 0)
	for result.Next(ctx) {
		record := result.Record()
		history = append(history, HistoryEntry{
			ID:        getStringFromRecord(record, "id"),
			From:      getStringFromRecord(record, "sender"),
			Content:   getStringFromRecord(record, "content"),
			Timestamp: getTimeFromRecord(record, "timestamp"),
		})
	}
	if err := result.Err(); err != nil {
		return nil, apperrors.NewStore("history", err)
	}
	return history, nil
}
