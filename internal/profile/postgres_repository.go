package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type profileDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresRepository stores profiles in the relational database.
type PostgresRepository struct {
	db profileDB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("profile: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

func newPostgresRepositoryWithDB(db profileDB) *PostgresRepository {
	if db == nil {
		panic("profile: db required")
	}
	return &PostgresRepository{db: db}
}

// Get fetches the profile row for a user.
func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT user_id, role, has_capital_gain, capital_gain_amount::float8, capital_gain_timing,
		       target_state, development_location, needs_team_contact, message_count,
		       last_session_at, version, created_at, updated_at
		FROM ozzie_user_profiles
		WHERE user_id = $1
	`
	row := r.db.QueryRow(ctx, query, userID)

	var p Profile
	var role, timing *string
	if err := row.Scan(
		&p.UserID,
		&role,
		&p.HasCapitalGain,
		&p.CapitalGainAmount,
		&timing,
		&p.TargetState,
		&p.DevelopmentLocation,
		&p.NeedsTeamContact,
		&p.MessageCount,
		&p.LastSessionAt,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("profile: select failed: %w", err)
	}
	p.Role = (*Role)(role)
	p.CapitalGainTiming = (*CapGainTiming)(timing)
	return &p, nil
}

// Save writes the merge-owned columns under an optimistic version check.
// The counter columns belong to IncrementMessageCount and are never
// written here.
func (r *PostgresRepository) Save(ctx context.Context, p *Profile) error {
	query := `
		UPDATE ozzie_user_profiles
		SET role = $2, has_capital_gain = $3, capital_gain_amount = $4, capital_gain_timing = $5,
		    target_state = $6, development_location = $7, needs_team_contact = $8,
		    version = version + 1, updated_at = now()
		WHERE user_id = $1 AND version = $9
		RETURNING version, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.UserID,
		(*string)(p.Role),
		p.HasCapitalGain,
		p.CapitalGainAmount,
		(*string)(p.CapitalGainTiming),
		p.TargetState,
		p.DevelopmentLocation,
		p.NeedsTeamContact,
		p.Version,
	).Scan(&p.Version, &p.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("profile: update failed: %w", err)
	}

	// No row matched: either the version moved or the row does not exist.
	var exists bool
	existsQuery := `SELECT EXISTS(SELECT 1 FROM ozzie_user_profiles WHERE user_id = $1)`
	if err := r.db.QueryRow(ctx, existsQuery, p.UserID).Scan(&exists); err != nil {
		return fmt.Errorf("profile: existence check failed: %w", err)
	}
	if exists || p.Version != 0 {
		return ErrVersionConflict
	}
	return r.insert(ctx, p)
}

func (r *PostgresRepository) insert(ctx context.Context, p *Profile) error {
	query := `
		INSERT INTO ozzie_user_profiles
			(user_id, role, has_capital_gain, capital_gain_amount, capital_gain_timing,
			 target_state, development_location, needs_team_contact, message_count, last_session_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		p.UserID,
		(*string)(p.Role),
		p.HasCapitalGain,
		p.CapitalGainAmount,
		(*string)(p.CapitalGainTiming),
		p.TargetState,
		p.DevelopmentLocation,
		p.NeedsTeamContact,
		p.MessageCount,
		p.LastSessionAt,
	).Scan(&p.Version, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("profile: insert failed: %w", err)
	}
	return nil
}

// IncrementMessageCount adds one to the counter in a single statement,
// creating the row for a first-time user. The returned count is the one
// attributed to the current message.
func (r *PostgresRepository) IncrementMessageCount(ctx context.Context, userID string) (int, error) {
	query := `
		INSERT INTO ozzie_user_profiles (user_id, message_count, last_session_at)
		VALUES ($1, 1, now())
		ON CONFLICT (user_id) DO UPDATE
		SET message_count = ozzie_user_profiles.message_count + 1,
		    last_session_at = now(),
		    updated_at = now(),
		    version = ozzie_user_profiles.version + 1
		RETURNING message_count
	`
	var count int
	if err := r.db.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("profile: increment failed: %w", err)
	}
	return count, nil
}

// Delete removes a user's profile row. This is teardown tooling for the
// admin surface; the engine itself never deletes.
func (r *PostgresRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM ozzie_user_profiles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("profile: delete failed: %w", err)
	}
	return nil
}

var _ Repository = (*PostgresRepository)(nil)
var _ Deleter = (*PostgresRepository)(nil)
