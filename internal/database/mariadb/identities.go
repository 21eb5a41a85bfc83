package mariadb

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/traceon/internal/gallery"
)

const createIdentitiesTable = `
	CREATE TABLE IF NOT EXISTS identities (
		id         BIGINT AUTO_INCREMENT PRIMARY KEY,
		position   INT NOT NULL,
		label      VARCHAR(255) NOT NULL UNIQUE,
		metadata   JSON NOT NULL,
		encoding   JSON NOT NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		INDEX idx_identities_position (position)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the identities table if it does not exist.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createIdentitiesTable); err != nil {
		return fmt.Errorf("create identities table: %w", err)
	}
	return nil
}

// IdentityRepository persists gallery identities in MariaDB.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a repository on pool.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// decodeIdentity builds an identity from the raw JSON columns of a row.
func decodeIdentity(label string, metadata, encoding []byte) (gallery.Identity, error) {
	id := gallery.Identity{Label: label}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &id.Metadata); err != nil {
			return gallery.Identity{}, fmt.Errorf("identity %q: decode metadata: %w", label, err)
		}
	}
	if id.Metadata == nil {
		id.Metadata = gallery.Metadata{}
	}
	if err := json.Unmarshal(encoding, &id.Descriptor); err != nil {
		return gallery.Identity{}, fmt.Errorf("identity %q: decode encoding: %w", label, err)
	}
	return id, nil
}

func encodeIdentity(id gallery.Identity) (metadata, encoding []byte, err error) {
	m := id.Metadata
	if m == nil {
		m = gallery.Metadata{}
	}
	if metadata, err = json.Marshal(m); err != nil {
		return nil, nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if encoding, err = json.Marshal(id.Descriptor); err != nil {
		return nil, nil, fmt.Errorf("marshal encoding: %w", err)
	}
	return metadata, encoding, nil
}

// Identities returns all identities in gallery order, implementing gallery.Source.
func (r *IdentityRepository) Identities(ctx context.Context) ([]gallery.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, `SELECT label, metadata, encoding FROM identities ORDER BY position, id`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []gallery.Identity
	for rows.Next() {
		var (
			label              string
			metadata, encoding []byte
		)
		if err := rows.Scan(&label, &metadata, &encoding); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		id, err := decodeIdentity(label, metadata, encoding)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Upsert appends a new identity at the end of the gallery or updates an
// existing label in place.
func (r *IdentityRepository) Upsert(ctx context.Context, id gallery.Identity) error {
	metadata, encoding, err := encodeIdentity(id)
	if err != nil {
		return err
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO identities (position, label, metadata, encoding)
		SELECT COALESCE(MAX(position), -1) + 1, ?, ?, ? FROM identities
		ON DUPLICATE KEY UPDATE metadata = VALUES(metadata), encoding = VALUES(encoding)
	`, id.Label, metadata, encoding)
	if err != nil {
		return fmt.Errorf("upsert identity %q: %w", id.Label, err)
	}
	return nil
}

// Count returns the number of stored identities.
func (r *IdentityRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM identities").Scan(&n); err != nil {
		return 0, fmt.Errorf("count identities: %w", err)
	}
	return n, nil
}
