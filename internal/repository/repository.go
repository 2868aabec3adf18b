package repository

import (
	"context"
	"database/sql"
	"time"

	"hearthsync/internal/models"
	"hearthsync/internal/repository/db"
)

// InitDB opens the SQLite store and bootstraps the schema.
func InitDB(path string) (*sql.DB, error) { return db.InitDB(path) }

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// ApplianceRepo stores appliance identities captured at onboarding.
type ApplianceRepo interface {
	Save(ctx context.Context, a models.ApplianceIdentity) error
	Get(ctx context.Context, serial string) (models.ApplianceIdentity, error)
	List(ctx context.Context) ([]models.ApplianceIdentity, error)
	UpdateIP(ctx context.Context, serial, ip string) error
}

// StateRepo persists the reconciler's cached device state per appliance.
type StateRepo interface {
	Save(ctx context.Context, s models.DeviceState) error
	Load(ctx context.Context, serial string) (models.DeviceState, error)
}

// RetainedRepo persists the last non-zero fan/light/setpoint values used to
// restore settings the appliance resets on disable.
type RetainedRepo interface {
	Save(ctx context.Context, serial string, v models.RetainedValues) error
	Load(ctx context.Context, serial string) (models.RetainedValues, error)
}

// SessionRepo persists the account-wide cloud session: cookies, the login
// generation counter, and (optionally) the credentials themselves.
type SessionRepo interface {
	SaveSession(ctx context.Context, cookies map[string]string, generation uint64) error
	LoadSession(ctx context.Context) (map[string]string, uint64, error)
	SaveCredentials(ctx context.Context, email, password string) error
	LoadCredentials(ctx context.Context) (email, password string, err error)
	ClearCredentials(ctx context.Context) error
}

type EventRepo interface {
	Append(ctx context.Context, e models.FireplaceEvent) error
	List(ctx context.Context, from, to time.Time, typ, serial string) ([]models.FireplaceEvent, error)
}

type Repository struct {
	Appliances ApplianceRepo
	States     StateRepo
	Retained   RetainedRepo
	Sessions   SessionRepo
	Events     EventRepo
	Auth       Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Appliances: NewApplianceSQLite(db),
		States:     NewStateSQLite(db),
		Retained:   NewRetainedSQLite(db),
		Sessions:   NewSessionSQLite(db),
		Events:     NewEventSQLite(db),
		Auth:       NewUserRepository(db),
	}
}
