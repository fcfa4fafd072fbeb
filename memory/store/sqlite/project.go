package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/becomeliminal/conductor/memory"
)

// GetDomainSignal returns the cached classification for a project.
func (s *Store) GetDomainSignal(ctx context.Context, projectID string) (*memory.DomainSignal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT primary_domain, domains, conversations_analyzed, computed_at
		FROM domain_signals
		WHERE project_id = ?`,
		projectID,
	)

	var (
		sig        memory.DomainSignal
		domains    string
		computedAt string
	)
	err := row.Scan(&sig.Primary, &domains, &sig.ConversationsAnalyzed, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get domain signal: %w", err)
	}

	sig.ComputedAt = parseTime(computedAt)
	if domains != "" {
		if err := json.Unmarshal([]byte(domains), &sig.Domains); err != nil {
			return nil, fmt.Errorf("unmarshal domain scores: %w", err)
		}
	}
	return &sig, nil
}

// PutDomainSignal overwrites the cached classification for a project.
func (s *Store) PutDomainSignal(ctx context.Context, projectID string, sig *memory.DomainSignal) error {
	domains, err := json.Marshal(sig.Domains)
	if err != nil {
		return fmt.Errorf("marshal domain scores: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO domain_signals (project_id, primary_domain, domains, conversations_analyzed, computed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			primary_domain = excluded.primary_domain,
			domains = excluded.domains,
			conversations_analyzed = excluded.conversations_analyzed,
			computed_at = excluded.computed_at`,
		projectID, sig.Primary, string(domains), sig.ConversationsAnalyzed, formatTime(sig.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("put domain signal: %w", err)
	}
	return nil
}

// GetConfidence returns the last computed trust score for a project.
func (s *Store) GetConfidence(ctx context.Context, projectID string) (*memory.ProjectConfidence, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT score, computed_at FROM project_confidence WHERE project_id = ?`,
		projectID,
	)

	var (
		conf       memory.ProjectConfidence
		computedAt string
	)
	err := row.Scan(&conf.Score, &computedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get confidence: %w", err)
	}
	conf.ComputedAt = parseTime(computedAt)
	return &conf, nil
}

// PutConfidence persists the recomputed trust score.
func (s *Store) PutConfidence(ctx context.Context, projectID string, conf *memory.ProjectConfidence) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_confidence (project_id, score, computed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(project_id) DO UPDATE SET
			score = excluded.score,
			computed_at = excluded.computed_at`,
		projectID, conf.Score, formatTime(conf.ComputedAt),
	)
	if err != nil {
		return fmt.Errorf("put confidence: %w", err)
	}
	return nil
}

// AddMessage appends a conversation message to a project's history.
func (s *Store) AddMessage(ctx context.Context, projectID, role, content string, createdAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (id, project_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), projectID, role, content, formatTime(createdAt),
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetRecentMessages returns up to limit messages, most recent first.
func (s *Store) GetRecentMessages(ctx context.Context, projectID string, limit int) ([]memory.Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, content, created_at
		FROM messages
		WHERE project_id = ?
		ORDER BY created_at DESC
		LIMIT ?`,
		projectID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("get recent messages: %w", err)
	}
	defer rows.Close()

	var msgs []memory.Message
	for rows.Next() {
		var (
			m         memory.Message
			createdAt string
		)
		if err := rows.Scan(&m.Role, &m.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.CreatedAt = parseTime(createdAt)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// RecordInteraction logs one interaction outcome for a project.
func (s *Store) RecordInteraction(ctx context.Context, projectID string, positive bool) error {
	pos := 0
	if positive {
		pos = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interaction_events (id, project_id, positive, created_at)
		VALUES (?, ?, ?, ?)`,
		uuid.New().String(), projectID, pos, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// InteractionCounts aggregates logged interaction outcomes.
func (s *Store) InteractionCounts(ctx context.Context, projectID string) (positive, total int, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(positive), 0), COUNT(*)
		FROM interaction_events
		WHERE project_id = ?`,
		projectID,
	)
	if err := row.Scan(&positive, &total); err != nil {
		return 0, 0, fmt.Errorf("interaction counts: %w", err)
	}
	return positive, total, nil
}
