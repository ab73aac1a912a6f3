package authsync

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// ProfilesRepository is the bun-backed Profiles implementation. It extends
// the minimal Profiles contract with transaction-scoped variants for callers
// that compose profile writes with their own statements.
type ProfilesRepository interface {
	Profiles

	FetchTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ProfileRecord, error)
	CreateProfileTx(ctx context.Context, tx bun.IDB, record *ProfileRecord) (*ProfileRecord, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, patch ProfilePatch) (*ProfileRecord, error)
	EnrollTx(ctx context.Context, tx bun.IDB, id uuid.UUID, certificationID string) (*ProfileRecord, bool, error)
}

type profiles struct {
	repository.Repository[*ProfileRecord]
	db *bun.DB
}

var (
	_ ProfilesRepository = (*profiles)(nil)
	_ Profiles           = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) ProfilesRepository {
	repo := repository.NewRepository[*ProfileRecord](db, repository.ModelHandlers[*ProfileRecord]{
		NewRecord: func() *ProfileRecord { return &ProfileRecord{} },
		GetID: func(p *ProfileRecord) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *ProfileRecord, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (a *profiles) Fetch(ctx context.Context, id uuid.UUID) (*ProfileRecord, error) {
	return a.FetchTx(ctx, a.db, id)
}

func (a *profiles) FetchTx(ctx context.Context, tx bun.IDB, id uuid.UUID) (*ProfileRecord, error) {
	record := &ProfileRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id.String()).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, NewProfileNotFound(id)
		}
		return nil, err
	}

	return record, nil
}

func (a *profiles) Create(ctx context.Context, record *ProfileRecord) (*ProfileRecord, error) {
	return a.CreateProfileTx(ctx, a.db, record)
}

func (a *profiles) CreateProfileTx(ctx context.Context, tx bun.IDB, record *ProfileRecord) (*ProfileRecord, error) {
	prepareProfileDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record)
}

func (a *profiles) Update(ctx context.Context, id uuid.UUID, patch ProfilePatch) (*ProfileRecord, error) {
	return a.UpdateProfileTx(ctx, a.db, id, patch)
}

func (a *profiles) UpdateProfileTx(ctx context.Context, tx bun.IDB, id uuid.UUID, patch ProfilePatch) (*ProfileRecord, error) {
	record, err := a.FetchTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	columns := applyPatch(record, patch)
	if len(columns) == 0 {
		return record, nil
	}

	_, err = tx.NewUpdate().
		Model(record).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return record, nil
}

func (a *profiles) Enroll(ctx context.Context, id uuid.UUID, certificationID string) (*ProfileRecord, bool, error) {
	return a.EnrollTx(ctx, a.db, id, certificationID)
}

func (a *profiles) EnrollTx(ctx context.Context, tx bun.IDB, id uuid.UUID, certificationID string) (*ProfileRecord, bool, error) {
	record, err := a.FetchTx(ctx, tx, id)
	if err != nil {
		return nil, false, err
	}

	if record.Enrolled(certificationID) {
		return record, true, nil
	}

	record.EnrolledCertifications = append(record.EnrolledCertifications, certificationID)

	_, err = tx.NewUpdate().
		Model(record).
		Column("enrolled_certifications").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, false, err
	}

	return record, false, nil
}

// applyPatch copies the patch's set fields onto the record and returns the
// column names that changed.
func applyPatch(record *ProfileRecord, patch ProfilePatch) []string {
	columns := make([]string, 0, 6)

	if patch.Name != nil {
		record.Name = *patch.Name
		columns = append(columns, "name")
	}
	if patch.Email != nil {
		record.Email = strings.ToLower(strings.TrimSpace(*patch.Email))
		columns = append(columns, "email")
	}
	if patch.SubscriptionStatus != nil {
		record.SubscriptionStatus = *patch.SubscriptionStatus
		columns = append(columns, "subscription_status")
	}
	if patch.TestsRemaining != nil {
		record.TestsRemaining = *patch.TestsRemaining
		columns = append(columns, "tests_remaining")
	}
	if patch.SubscriptionExpiry != nil {
		expiry := *patch.SubscriptionExpiry
		record.SubscriptionExpiry = &expiry
		columns = append(columns, "subscription_expiry")
	}
	if patch.EnrolledCertifications != nil {
		record.EnrolledCertifications = append([]string(nil), (*patch.EnrolledCertifications)...)
		columns = append(columns, "enrolled_certifications")
	}

	return columns
}

func prepareProfileDefaults(record *ProfileRecord) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = strings.ToLower(strings.TrimSpace(record.Email))

	if record.SubscriptionStatus == "" {
		record.SubscriptionStatus = SubscriptionFree
	}

	if record.TestsRemaining == 0 {
		record.TestsRemaining = DefaultTestsRemaining
	}

	if record.EnrolledCertifications == nil {
		record.EnrolledCertifications = []string{}
	}

	if record.CreatedAt == nil {
		now := time.Now()
		record.CreatedAt = &now
	}
}
