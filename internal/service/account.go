package service

import (
	"context"
	"errors"
	"time"

	"hearthsync/internal/logger"
	"hearthsync/internal/models"
	"hearthsync/internal/repository"
	"hearthsync/internal/session"
)

var ErrNotLoggedIn = errors.New("cloud account is not logged in")

// AccountService owns the cloud credential lifecycle and appliance
// discovery. Login is account-wide: one session serves every appliance.
type AccountService struct {
	sess       *session.Manager
	directory  CloudDirectory
	registry   ControllerRegistry
	appliances repository.ApplianceRepo
	events     repository.EventRepo
	log        *logger.Logger
}

func NewAccountService(sess *session.Manager, directory CloudDirectory, registry ControllerRegistry, appliances repository.ApplianceRepo, events repository.EventRepo, log *logger.Logger) *AccountService {
	return &AccountService{
		sess:       sess,
		directory:  directory,
		registry:   registry,
		appliances: appliances,
		events:     events,
		log:        log,
	}
}

// Login authenticates against the relay and resumes cloud polling on every
// controller that was halted by an earlier credential rejection.
func (s *AccountService) Login(ctx context.Context, email, password string) error {
	if err := s.sess.Login(ctx, email, password); err != nil {
		return err
	}
	s.registry.ResumeCloud()
	err := s.events.Append(ctx, models.FireplaceEvent{
		Type:        models.EventLogin,
		Description: "Cloud account logged in",
	})
	if err != nil {
		s.log.Errorw("event_append_failed", "err", err)
	}
	return nil
}

func (s *AccountService) Logout(ctx context.Context) {
	s.sess.Logout(ctx)
}

// Discover enumerates the account's locations and fireplaces, persists each
// appliance identity, and starts a controller for any new serial.
func (s *AccountService) Discover(ctx context.Context) ([]DiscoveredFireplace, error) {
	if !s.sess.LoggedIn() {
		return nil, ErrNotLoggedIn
	}

	locations, err := s.directory.EnumLocations(ctx)
	if err != nil {
		return nil, err
	}

	var found []DiscoveredFireplace
	for _, loc := range locations {
		fireplaces, err := s.directory.EnumFireplaces(ctx, loc.ID)
		if err != nil {
			return nil, err
		}
		for _, fp := range fireplaces {
			identity := models.ApplianceIdentity{
				Serial:     fp.Serial,
				Name:       fp.Name,
				APIKey:     fp.APIKey,
				LocationID: loc.ID,
				AddedAt:    time.Now().UTC(),
			}
			if err := s.appliances.Save(ctx, identity); err != nil {
				return nil, err
			}
			if err := s.registry.Add(ctx, identity); err != nil {
				s.log.Errorw("controller_add_failed", "serial", fp.Serial, "err", err)
			}
			found = append(found, DiscoveredFireplace{
				Serial:       fp.Serial,
				Name:         fp.Name,
				LocationID:   loc.ID,
				LocationName: loc.Name,
			})
		}
	}
	s.log.Infow("discovery_complete", "fireplaces", len(found))
	return found, nil
}

func (s *AccountService) Status() AccountStatus {
	return AccountStatus{
		LoggedIn:   s.sess.LoggedIn(),
		Generation: s.sess.Generation(),
	}
}
