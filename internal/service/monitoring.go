package service

import (
	"context"
	"time"

	"hearthsync/internal/models"
	"hearthsync/internal/repository"
)

type MonitoringService struct {
	registry   ControllerRegistry
	appliances repository.ApplianceRepo
}

func NewMonitoringService(registry ControllerRegistry, appliances repository.ApplianceRepo) *MonitoringService {
	return &MonitoringService{registry: registry, appliances: appliances}
}

// GetState returns the controller's cached device state. The cache is the
// source of truth for reads; no appliance round trip happens here.
func (s *MonitoringService) GetState(ctx context.Context, serial string) (models.DeviceState, error) {
	c, err := s.registry.Get(serial)
	if err != nil {
		return models.DeviceState{}, err
	}
	st := c.State()
	st.UpdatedAt = toUTC(st.UpdatedAt)
	return st, nil
}

// List returns the registered appliances. API keys never leave the store
// (the model omits them from JSON).
func (s *MonitoringService) List(ctx context.Context) ([]models.ApplianceIdentity, error) {
	return s.appliances.List(ctx)
}

// toUTC normalizes non-zero time to UTC, preserving zero values.
func toUTC(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}
