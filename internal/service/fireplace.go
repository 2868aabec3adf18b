package service

import (
	"context"

	"hearthsync/internal/catalog"
	"hearthsync/internal/logger"
)

// FireplaceService routes control operations to the appliance's controller.
// All validation beyond catalog range checks lives in the controller itself.
type FireplaceService struct {
	registry ControllerRegistry
	log      *logger.Logger
}

func NewFireplaceService(registry ControllerRegistry, log *logger.Logger) *FireplaceService {
	return &FireplaceService{registry: registry, log: log}
}

func (s *FireplaceService) On(ctx context.Context, serial string) error {
	c, err := s.registry.Get(serial)
	if err != nil {
		return err
	}
	s.log.Infow("fireplace_on", "serial", serial)
	return c.On(ctx)
}

func (s *FireplaceService) Off(ctx context.Context, serial string) error {
	c, err := s.registry.Get(serial)
	if err != nil {
		return err
	}
	s.log.Infow("fireplace_off", "serial", serial)
	return c.Off(ctx)
}

// Command dispatches a named catalog command. Power is redirected through
// On/Off so their recovery behavior is never bypassed.
func (s *FireplaceService) Command(ctx context.Context, serial, name string, value int) error {
	if name == catalog.Power {
		if value == 0 {
			return s.Off(ctx, serial)
		}
		return s.On(ctx, serial)
	}
	c, err := s.registry.Get(serial)
	if err != nil {
		return err
	}
	return c.Command(ctx, name, value)
}

// Refresh asks the controller's polling loop to fetch a snapshot now.
func (s *FireplaceService) Refresh(ctx context.Context, serial string) error {
	c, err := s.registry.Get(serial)
	if err != nil {
		return err
	}
	c.RequestPoll()
	return nil
}
