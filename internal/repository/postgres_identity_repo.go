package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/guestdesk/internal/model"
)

// DefaultProfile はプロファイル名を指定しない場合の保存キー。
const DefaultProfile = "default"

// PostgresIdentityRepo はPostgreSQLを使用したidentityリポジトリ。
// 1つのプロファイルにつき1件のIdentityを保持する。
type PostgresIdentityRepo struct {
	db      *sql.DB
	profile string
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB, profile string) *PostgresIdentityRepo {
	if profile == "" {
		profile = DefaultProfile
	}
	return &PostgresIdentityRepo{db: db, profile: profile}
}

// Load は保存済みのIdentityを取得する。保存されていない場合はnilを返す。
func (r *PostgresIdentityRepo) Load(ctx context.Context) (*model.Identity, error) {
	id := &model.Identity{}
	var role string
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT user_id, email, username, name, role, token, expires_at
		 FROM session_identities
		 WHERE profile = $1`,
		r.profile,
	).Scan(&id.ID, &id.Email, &id.Username, &id.Name, &role, &id.Token, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	id.Role = model.Role(role)
	if expiresAt.Valid {
		id.ExpiresAt = expiresAt.Time
	}
	return id, nil
}

// Save はIdentityを保存する。既存の値は置き換える。
func (r *PostgresIdentityRepo) Save(ctx context.Context, id model.Identity) error {
	var expiresAt sql.NullTime
	if !id.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: id.ExpiresAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO session_identities (profile, user_id, email, username, name, role, token, expires_at, saved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		 ON CONFLICT (profile) DO UPDATE SET
		   user_id = EXCLUDED.user_id,
		   email = EXCLUDED.email,
		   username = EXCLUDED.username,
		   name = EXCLUDED.name,
		   role = EXCLUDED.role,
		   token = EXCLUDED.token,
		   expires_at = EXCLUDED.expires_at,
		   saved_at = now()`,
		r.profile, id.ID, id.Email, id.Username, id.Name, string(id.Role), id.Token, expiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save identity: %w", err)
	}
	return nil
}

// Clear は保存済みのIdentityを削除する。
func (r *PostgresIdentityRepo) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM session_identities WHERE profile = $1`,
		r.profile,
	)
	if err != nil {
		return fmt.Errorf("failed to clear identity: %w", err)
	}
	return nil
}

// compile-time interface check
var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
