package service

import (
	"context"

	"hearthsync/internal/logger"
	"hearthsync/internal/models"
	"hearthsync/internal/repository"
	"hearthsync/internal/session"
	"hearthsync/internal/transport/cloud"
)

type Authorization interface {
	SignUp(username, password string) (int, error)
	GenerateToken(username, password string) (string, error)
	ParseToken(accessToken string) (int, error)
}

// Fireplace exposes control operations on one appliance.
type Fireplace interface {
	On(ctx context.Context, serial string) error
	Off(ctx context.Context, serial string) error
	Command(ctx context.Context, serial, name string, value int) error
	Refresh(ctx context.Context, serial string) error
}

// Monitoring exposes the cached device state and the appliance list.
type Monitoring interface {
	GetState(ctx context.Context, serial string) (models.DeviceState, error)
	List(ctx context.Context) ([]models.ApplianceIdentity, error)
}

// EventLog exposes append-only logs with filtering access.
type EventLog interface {
	List(ctx context.Context, f LogFilter) ([]models.FireplaceEvent, error)
}

// Account owns cloud credentials: login, logout, and appliance discovery.
type Account interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	Discover(ctx context.Context) ([]DiscoveredFireplace, error)
	Status() AccountStatus
}

// ApplianceController is the per-appliance control surface the services call.
type ApplianceController interface {
	On(ctx context.Context) error
	Off(ctx context.Context) error
	Command(ctx context.Context, name string, value int) error
	RequestPoll()
	State() models.DeviceState
}

// ControllerRegistry tracks running controllers by serial.
type ControllerRegistry interface {
	Get(serial string) (ApplianceController, error)
	Add(ctx context.Context, identity models.ApplianceIdentity) error
	ResumeCloud()
}

// CloudDirectory lists the account's locations and fireplaces.
type CloudDirectory interface {
	EnumLocations(ctx context.Context) ([]cloud.Location, error)
	EnumFireplaces(ctx context.Context, locationID string) ([]cloud.Fireplace, error)
}

type Service struct {
	Fireplace
	Monitoring
	EventLog
	Account
	Authorization
}

func NewService(repos *repository.Repository, registry ControllerRegistry, sess *session.Manager, directory CloudDirectory, log *logger.Logger) *Service {
	return &Service{
		Fireplace:     NewFireplaceService(registry, log),
		Monitoring:    NewMonitoringService(registry, repos.Appliances),
		EventLog:      NewEventLogService(repos.Events),
		Account:       NewAccountService(sess, directory, registry, repos.Appliances, repos.Events, log),
		Authorization: NewAuthService(repos.Auth),
	}
}
