package actions_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	actions "github.com/goliatone/go-auth-actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteCreateUserProfiles = `CREATE TABLE user_profiles (
    id TEXT NOT NULL PRIMARY KEY,
    uid TEXT NOT NULL UNIQUE,
    email TEXT,
    display_name TEXT,
    email_verified BOOLEAN NOT NULL DEFAULT FALSE,
    email_verified_at TIMESTAMP NULL,
    verification_method TEXT,
    verification_email_sent_at TIMESTAMP NULL,
    resend_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP
);`

func setupProfileRepo(t *testing.T, now time.Time) *actions.ProfileRepository {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	bunDB := bun.NewDB(db, sqlitedialect.New())
	t.Cleanup(func() {
		_ = bunDB.Close()
	})

	_, err = bunDB.Exec(sqliteCreateUserProfiles)
	require.NoError(t, err)

	return actions.NewProfileRepository(bunDB).WithClock(fixedClock(now))
}

func TestProfileRepositoryMergeCreatesProfile(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := setupProfileRepo(t, now)
	ctx := context.Background()

	require.NoError(t, repo.MergeUpdate(ctx, "uid-1", actions.ResendFields(now)))

	profile, err := repo.Get(ctx, "uid-1")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", profile.UID)
	assert.Equal(t, 1, profile.ResendCount)
	assert.False(t, profile.EmailVerified)
	require.NotNil(t, profile.VerificationEmailSentAt)
	assert.True(t, now.Equal(profile.VerificationEmailSentAt.UTC()))

	expectedID, err := actions.ProfileID("uid-1")
	require.NoError(t, err)
	assert.Equal(t, expectedID, profile.ID)
}

func TestProfileRepositoryMergeIncrementsAndKeepsColumns(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := setupProfileRepo(t, now)
	ctx := context.Background()

	require.NoError(t, repo.MergeUpdate(ctx, "uid-1", actions.ProfileFields{
		actions.FieldEmail:       "user@example.com",
		actions.FieldDisplayName: "User",
	}))
	require.NoError(t, repo.MergeUpdate(ctx, "uid-1", actions.ResendFields(now)))
	require.NoError(t, repo.MergeUpdate(ctx, "uid-1", actions.ResendFields(now.Add(time.Minute))))
	require.NoError(t, repo.MergeUpdate(ctx, "uid-1", actions.VerifiedFields(now, actions.VerificationMethodEmailLink)))

	profile, err := repo.Get(ctx, "uid-1")
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", profile.Email)
	assert.Equal(t, "User", profile.DisplayName)
	assert.Equal(t, 2, profile.ResendCount)
	assert.True(t, profile.EmailVerified)
	assert.Equal(t, actions.VerificationMethodEmailLink, profile.VerificationMethod)
	require.NotNil(t, profile.EmailVerifiedAt)
}

func TestProfileRepositoryValidation(t *testing.T) {
	repo := setupProfileRepo(t, time.Now())
	ctx := context.Background()

	assert.Error(t, repo.MergeUpdate(ctx, "  ", actions.ResendFields(time.Now())))
	assert.NoError(t, repo.MergeUpdate(ctx, "uid-1", nil))

	_, err := repo.Get(ctx, "uid-1")
	assert.Error(t, err)
}

func TestProfileIDIsStable(t *testing.T) {
	first, err := actions.ProfileID("uid-1")
	require.NoError(t, err)
	second, err := actions.ProfileID(" uid-1 ")
	require.NoError(t, err)
	other, err := actions.ProfileID("uid-2")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.NotEqual(t, first, other)
}
