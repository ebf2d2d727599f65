package actions

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfileRepository is the bun backed ProfileStore.
type ProfileRepository struct {
	repository.Repository[*UserProfile]
	db  *bun.DB
	now func() time.Time
}

var _ ProfileStore = (*ProfileRepository)(nil)

// NewProfileRepository returns a repository over the user_profiles table.
func NewProfileRepository(db *bun.DB) *ProfileRepository {
	repo := repository.NewRepository[*UserProfile](db, repository.ModelHandlers[*UserProfile]{
		NewRecord: func() *UserProfile { return &UserProfile{} },
		GetID: func(p *UserProfile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *UserProfile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "uid"
		},
	})

	return &ProfileRepository{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
}

// WithClock injects a custom clock (useful for tests).
func (r *ProfileRepository) WithClock(clock func() time.Time) *ProfileRepository {
	if clock != nil {
		r.now = clock
	}
	return r
}

// ProfileID derives the profile primary key from the provider uid, so the
// same user always maps to the same row.
func ProfileID(uid string) (uuid.UUID, error) {
	return hashid.NewUUID(strings.TrimSpace(uid))
}

// Get implements ProfileStore.
func (r *ProfileRepository) Get(ctx context.Context, uid string) (*UserProfile, error) {
	return r.GetByIdentifierTx(ctx, r.db, uid)
}

func (r *ProfileRepository) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*UserProfile, error) {
	return r.GetByIdentifierTx(ctx, r.db, identifier, criteria...)
}

func (r *ProfileRepository) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*UserProfile, error) {
	record := &UserProfile{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.uid = ?", strings.TrimSpace(identifier)).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, goerrors.NewNonRetryable("Record not found", goerrors.Category("database_not_found")).
				WithCode(goerrors.CodeNotFound).
				WithTextCode("RECORD_NOT_FOUND").
				WithMetadata(map[string]any{
					"uid": identifier,
				})
		}
		return nil, err
	}

	return record, nil
}

// MergeUpdate implements ProfileStore. Only the given columns are written;
// a missing profile is created.
func (r *ProfileRepository) MergeUpdate(ctx context.Context, uid string, fields ProfileFields) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		return r.MergeUpdateTx(ctx, tx, uid, fields)
	})
}

// MergeUpdateTx is MergeUpdate within an existing transaction.
func (r *ProfileRepository) MergeUpdateTx(ctx context.Context, tx bun.IDB, uid string, fields ProfileFields) error {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return goerrors.New("profile uid is required", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest)
	}

	if len(fields) == 0 {
		return nil
	}

	now := r.now()

	updated, err := r.updateFields(ctx, tx, uid, fields, now)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to merge profile fields").
			WithMetadata(map[string]any{"uid": uid})
	}

	if updated {
		return nil
	}

	profile, err := r.newProfile(uid, fields, now)
	if err != nil {
		return err
	}

	inserted, err := r.insertProfile(ctx, tx, profile)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create profile").
			WithMetadata(map[string]any{"uid": uid})
	}

	if inserted {
		return nil
	}

	// another writer created the row after our update missed it
	if _, err := r.updateFields(ctx, tx, uid, fields, now); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to merge profile fields").
			WithMetadata(map[string]any{"uid": uid})
	}

	return nil
}

// insertProfile reports false when a profile with the same uid already
// exists. The conflict is absorbed by the statement so the transaction
// stays usable.
func (r *ProfileRepository) insertProfile(ctx context.Context, tx bun.IDB, profile *UserProfile) (bool, error) {
	res, err := tx.NewInsert().
		Model(profile).
		On("CONFLICT (uid) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *ProfileRepository) updateFields(ctx context.Context, tx bun.IDB, uid string, fields ProfileFields, now time.Time) (bool, error) {
	q := tx.NewUpdate().Model((*UserProfile)(nil))

	for column, value := range fields {
		switch v := value.(type) {
		case Increment:
			q.Set("? = ? + ?", bun.Ident(column), bun.Ident(column), int(v))
		case VerificationMethod:
			q.Set("? = ?", bun.Ident(column), string(v))
		default:
			q.Set("? = ?", bun.Ident(column), v)
		}
	}

	res, err := q.
		Set("updated_at = ?", now).
		Where("uid = ?", uid).
		Exec(ctx)
	if err != nil {
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected > 0, nil
}

func (r *ProfileRepository) newProfile(uid string, fields ProfileFields, now time.Time) (*UserProfile, error) {
	id, err := ProfileID(uid)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to derive profile id").
			WithMetadata(map[string]any{"uid": uid})
	}

	profile := &UserProfile{
		ID:        id,
		UID:       uid,
		CreatedAt: &now,
		UpdatedAt: &now,
	}

	return profile.Apply(fields), nil
}
