package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/traceon/internal/gallery"
)

// IdentityRepository persists gallery identities. Descriptors are stored as
// pgvector values, so they carry float32 precision.
type IdentityRepository struct {
	pool *Pool
}

// NewIdentityRepository creates a repository on pool.
func NewIdentityRepository(pool *Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func encodeMetadata(m gallery.Metadata) ([]byte, error) {
	if m == nil {
		m = gallery.Metadata{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	return data, nil
}

// Identities returns all identities in gallery order. It makes the repository a gallery.Source.
func (r *IdentityRepository) Identities(ctx context.Context) ([]gallery.Identity, error) {
	rows, err := r.pool.db.QueryContext(ctx, `
		SELECT label, metadata, encoding
		FROM identities
		ORDER BY position, id
	`)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var out []gallery.Identity
	for rows.Next() {
		var (
			id       gallery.Identity
			metadata []byte
			encoding pgvector.Vector
		)
		if err := rows.Scan(&id.Label, &metadata, &encoding); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		if err := json.Unmarshal(metadata, &id.Metadata); err != nil {
			return nil, fmt.Errorf("identity %q: decode metadata: %w", id.Label, err)
		}
		id.Descriptor = gallery.FromFloat32(encoding.Slice())
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return out, nil
}

// Upsert stores id. A new label is appended at the end of the gallery; an
// existing one keeps its position and gets new metadata and encoding.
func (r *IdentityRepository) Upsert(ctx context.Context, id gallery.Identity) error {
	metadata, err := encodeMetadata(id.Metadata)
	if err != nil {
		return err
	}

	_, err = r.pool.db.ExecContext(ctx, `
		INSERT INTO identities (position, label, metadata, encoding)
		VALUES ((SELECT COALESCE(MAX(position), -1) + 1 FROM identities), $1, $2, $3)
		ON CONFLICT (label) DO UPDATE
		SET metadata = EXCLUDED.metadata, encoding = EXCLUDED.encoding, updated_at = NOW()
	`, id.Label, metadata, pgvector.NewVector(id.Descriptor.Float32()))
	if err != nil {
		return fmt.Errorf("upsert identity %q: %w", id.Label, err)
	}
	return nil
}

// ReplaceAll swaps the whole gallery for identities in one transaction,
// numbering positions in slice order.
func (r *IdentityRepository) ReplaceAll(ctx context.Context, identities []gallery.Identity) error {
	tx, err := r.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "DELETE FROM identities"); err != nil {
		return fmt.Errorf("clear identities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO identities (position, label, metadata, encoding)
		VALUES ($1, $2, $3, $4)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, id := range identities {
		metadata, err := encodeMetadata(id.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, i, id.Label, metadata, pgvector.NewVector(id.Descriptor.Float32())); err != nil {
			return fmt.Errorf("insert identity %q: %w", id.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
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
