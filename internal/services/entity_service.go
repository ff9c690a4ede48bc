package services

import (
	"context"
	"log/slog"
	"strings"

	"contas/internal/core"
)

// EntityInput is the editable part of a company, counterparty or category.
type EntityInput struct {
	Name  string    `json:"name"`
	TaxID string    `json:"tax_id"`
	Email string    `json:"email"`
	Kind  core.Kind `json:"kind"`
}

// EntityService manages the reference entities transactions point to.
type EntityService struct {
	store Ledger
}

func NewEntityService(store Ledger) *EntityService {
	return &EntityService{store: store}
}

func (s *EntityService) List(ctx context.Context, ownerID string, typ core.EntityType) ([]core.Entity, error) {
	if !typ.Valid() {
		return nil, core.Validation("type", core.ErrInvalidEntityType.Error())
	}
	list, err := s.store.ListEntities(ctx, ownerID, typ)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []core.Entity{}
	}
	return list, nil
}

func (s *EntityService) Get(ctx context.Context, ownerID string, typ core.EntityType, id string) (core.Entity, error) {
	return s.store.GetEntity(ctx, ownerID, typ, id)
}

func (s *EntityService) Create(ctx context.Context, ownerID string, typ core.EntityType, in EntityInput) (core.Entity, error) {
	e := in.entity(ownerID, typ)
	if err := e.Validate(); err != nil {
		return core.Entity{}, err
	}
	if err := s.store.InsertEntity(ctx, &e); err != nil {
		return core.Entity{}, err
	}
	slog.InfoContext(ctx, "Entity created", "entity_type", typ, "entity_id", e.ID)
	return e, nil
}

// Update replaces every editable field. A category keeps its kind unless a
// new one is given, so linked transactions stay consistent.
func (s *EntityService) Update(ctx context.Context, ownerID string, typ core.EntityType, id string, in EntityInput) (core.Entity, error) {
	existing, err := s.store.GetEntity(ctx, ownerID, typ, id)
	if err != nil {
		return core.Entity{}, err
	}
	e := in.entity(ownerID, typ)
	e.ID = id
	e.CreatedAt = existing.CreatedAt
	if typ == core.EntityCategory && e.Kind == "" {
		e.Kind = existing.Kind
	}
	if typ == core.EntityCategory && e.Kind != existing.Kind {
		return core.Entity{}, core.Validation("kind", "a category's kind cannot change")
	}
	if err := e.Validate(); err != nil {
		return core.Entity{}, err
	}
	if err := s.store.UpdateEntity(ctx, &e); err != nil {
		return core.Entity{}, err
	}
	return e, nil
}

// Delete removes the entity. Transactions that referenced it keep existing
// without the reference.
func (s *EntityService) Delete(ctx context.Context, ownerID string, typ core.EntityType, id string) error {
	if err := s.store.DeleteEntity(ctx, ownerID, typ, id); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Entity deleted", "entity_type", typ, "entity_id", id)
	return nil
}

func (in EntityInput) entity(ownerID string, typ core.EntityType) core.Entity {
	e := core.Entity{
		OwnerID: ownerID,
		Type:    typ,
		Name:    strings.TrimSpace(in.Name),
		TaxID:   strings.TrimSpace(in.TaxID),
		Email:   strings.TrimSpace(in.Email),
	}
	if typ == core.EntityCategory {
		e.Kind = in.Kind
	}
	return e
}
