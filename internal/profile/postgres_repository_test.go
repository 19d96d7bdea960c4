package profile

import (
	"context"
	"errors"
	"testing"
	"time"

	pgx "github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var profileColumns = []string{
	"user_id", "role", "has_capital_gain", "capital_gain_amount", "capital_gain_timing",
	"target_state", "development_location", "needs_team_contact", "message_count",
	"last_session_at", "version", "created_at", "updated_at",
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func f64Ptr(f float64) *float64 { return &f }

func timePtr(t time.Time) *time.Time { return &t }

func TestPostgresGet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT user_id, role, has_capital_gain`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows(profileColumns).AddRow(
			"u1", strPtr("Investor"), boolPtr(true), f64Ptr(1300000), strPtr("within_180_days"),
			strPtr("FL"), (*string)(nil), true, 4,
			timePtr(now), 5, now, now,
		))

	repo := newPostgresRepositoryWithDB(mock)
	p, err := repo.Get(context.Background(), "u1")
	require.NoError(t, err)

	require.NotNil(t, p.Role)
	assert.Equal(t, RoleInvestor, *p.Role)
	require.NotNil(t, p.HasCapitalGain)
	assert.True(t, *p.HasCapitalGain)
	require.NotNil(t, p.CapitalGainAmount)
	assert.Equal(t, float64(1300000), *p.CapitalGainAmount)
	require.NotNil(t, p.CapitalGainTiming)
	assert.Equal(t, TimingWithin180Days, *p.CapitalGainTiming)
	assert.Nil(t, p.DevelopmentLocation)
	assert.True(t, p.NeedsTeamContact)
	assert.Equal(t, 4, p.MessageCount)
	assert.Equal(t, 5, p.Version)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT user_id, role, has_capital_gain`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	repo := newPostgresRepositoryWithDB(mock)
	_, err = repo.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveUpdates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	role := RoleInvestor
	noGain := false
	p := &Profile{
		UserID:         "u1",
		Role:           &role,
		HasCapitalGain: &noGain,
		Version:        3,
	}

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE ozzie_user_profiles`).
		WithArgs("u1", strPtr("Investor"), boolPtr(false), (*float64)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), false, 3).
		WillReturnRows(pgxmock.NewRows([]string{"version", "updated_at"}).AddRow(4, now))

	repo := newPostgresRepositoryWithDB(mock)
	require.NoError(t, repo.Save(context.Background(), p))
	assert.Equal(t, 4, p.Version)
	assert.Equal(t, now, p.UpdatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveVersionConflict(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := NewProfile("u1")
	p.Version = 2

	mock.ExpectQuery(`UPDATE ozzie_user_profiles`).
		WithArgs("u1", (*string)(nil), (*bool)(nil), (*float64)(nil), (*string)(nil),
			(*string)(nil), (*string)(nil), false, 2).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	repo := newPostgresRepositoryWithDB(mock)
	assert.ErrorIs(t, repo.Save(context.Background(), p), ErrVersionConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSaveInsertsNewRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	role := RoleDeveloper
	location := "Austin, TX"
	p := &Profile{
		UserID:              "fresh",
		Role:                &role,
		DevelopmentLocation: &location,
	}

	now := time.Now().UTC()
	mock.ExpectQuery(`UPDATE ozzie_user_profiles`).
		WithArgs("fresh", strPtr("Developer"), (*bool)(nil), (*float64)(nil), (*string)(nil),
			(*string)(nil), strPtr("Austin, TX"), false, 0).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("fresh").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO ozzie_user_profiles`).
		WithArgs("fresh", strPtr("Developer"), (*bool)(nil), (*float64)(nil), (*string)(nil),
			(*string)(nil), strPtr("Austin, TX"), false, 0, (*time.Time)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"version", "created_at", "updated_at"}).AddRow(1, now, now))

	repo := newPostgresRepositoryWithDB(mock)
	require.NoError(t, repo.Save(context.Background(), p))
	assert.Equal(t, 1, p.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementMessageCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`INSERT INTO ozzie_user_profiles`).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"message_count"}).AddRow(4))

	repo := newPostgresRepositoryWithDB(mock)
	count, err := repo.IncrementMessageCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresIncrementFailureWrapped(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	boom := errors.New("connection refused")
	mock.ExpectQuery(`INSERT INTO ozzie_user_profiles`).
		WithArgs("u1").
		WillReturnError(boom)

	repo := newPostgresRepositoryWithDB(mock)
	_, err = repo.IncrementMessageCount(context.Background(), "u1")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM ozzie_user_profiles`).
		WithArgs("u1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	repo := newPostgresRepositoryWithDB(mock)
	require.NoError(t, repo.Delete(context.Background(), "u1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
