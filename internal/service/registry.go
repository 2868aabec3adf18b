package service

import (
	"context"

	"hearthsync/internal/control"
	"hearthsync/internal/models"
)

// managerRegistry adapts control.Manager to the ControllerRegistry interface.
type managerRegistry struct {
	m *control.Manager
}

func NewManagerRegistry(m *control.Manager) ControllerRegistry {
	return &managerRegistry{m: m}
}

func (r *managerRegistry) Get(serial string) (ApplianceController, error) {
	c, err := r.m.Get(serial)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *managerRegistry) Add(ctx context.Context, identity models.ApplianceIdentity) error {
	_, err := r.m.Add(ctx, identity)
	return err
}

func (r *managerRegistry) ResumeCloud() {
	r.m.ResumeCloud()
}
