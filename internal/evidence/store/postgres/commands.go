package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"evidentia/internal/evidence/models"
	id "evidentia/pkg/domain"
	"evidentia/pkg/platform/sentinel"
)

func (s *Store) FindCommand(ctx context.Context, key models.CommandKey) (*models.StoredCommand, error) {
	var (
		c          models.StoredCommand
		evidenceID uuid.UUID
		result     []byte
	)
	err := s.execer(ctx).QueryRowContext(ctx, `
		SELECT evidence_id, result, created_at
		FROM command_results
		WHERE tenant_id = $1 AND command_type = $2 AND command_id = $3
	`, uuid.UUID(key.TenantID), string(key.CommandType), key.CommandID).Scan(&evidenceID, &result, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find command result: %w", err)
	}
	c.Key = key
	c.Result = result
	c.EvidenceID = id.EvidenceID(evidenceID)
	c.CreatedAt = c.CreatedAt.UTC()
	return &c, nil
}

// SaveCommand stores the result bytes verbatim; the primary key on
// (tenant_id, command_type, command_id) rejects a second writer.
func (s *Store) SaveCommand(ctx context.Context, c *models.StoredCommand) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO command_results (tenant_id, command_type, command_id, evidence_id, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.UUID(c.Key.TenantID), string(c.Key.CommandType), c.Key.CommandID, uuid.UUID(c.EvidenceID),
		[]byte(c.Result), c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrAlreadyExists
		}
		return fmt.Errorf("insert command result: %w", err)
	}
	return nil
}
