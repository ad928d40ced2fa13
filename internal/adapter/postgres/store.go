package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guildkit/guildkit/internal/domain"
)

// Store implements the persistence port over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// LoadCapabilityConfig returns the stored configuration for a guild's
// capability, or domain.ErrNotFound if none was ever saved.
func (s *Store) LoadCapabilityConfig(ctx context.Context, guildID, key string) (map[string]any, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		`SELECT config FROM capability_configs WHERE guild_id = $1 AND capability_key = $2`,
		guildID, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("capability config %s/%s: %w", guildID, key, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("load capability config %s/%s: %w", guildID, key, err)
	}

	var cfg map[string]any
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("decode capability config %s/%s: %w", guildID, key, err)
	}
	return cfg, nil
}

// SaveCapabilityConfig upserts the configuration for a guild's capability.
func (s *Store) SaveCapabilityConfig(ctx context.Context, guildID, key string, config map[string]any) error {
	raw, err := json.Marshal(config)
	if err != nil {
		return fmt.Errorf("encode capability config %s/%s: %w", guildID, key, err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO capability_configs (guild_id, capability_key, config, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (guild_id, capability_key)
		 DO UPDATE SET config = EXCLUDED.config, updated_at = NOW()`,
		guildID, key, raw)
	if err != nil {
		return fmt.Errorf("save capability config %s/%s: %w", guildID, key, err)
	}
	return nil
}

// AppendAuditEntry records an action taken in a guild's context.
func (s *Store) AppendAuditEntry(ctx context.Context, guildID, action string, metadata map[string]any) error {
	var raw []byte
	if metadata != nil {
		var err error
		raw, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("encode audit metadata: %w", err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_entries (id, guild_id, action, metadata, created_at)
		 VALUES ($1, $2, $3, $4, NOW())`,
		uuid.NewString(), guildID, action, raw)
	if err != nil {
		return fmt.Errorf("append audit entry %s/%s: %w", guildID, action, err)
	}
	return nil
}

// IncrementUsageCounter adds count to the named usage counter for a guild.
func (s *Store) IncrementUsageCounter(ctx context.Context, guildID, kind string, count int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_counters (guild_id, kind, count, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (guild_id, kind)
		 DO UPDATE SET count = usage_counters.count + EXCLUDED.count, updated_at = NOW()`,
		guildID, kind, count)
	if err != nil {
		return fmt.Errorf("increment usage counter %s/%s: %w", guildID, kind, err)
	}
	return nil
}
