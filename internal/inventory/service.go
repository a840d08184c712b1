package inventory

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"github.com/metalyard/metalyard/internal/shared"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, tenant string) ([]Item, error)
	Get(ctx context.Context, tenant string, id int64) (Item, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	AllowNegativeStock bool
}

// Service coordinates inventory operations.
type Service struct {
	repo     RepositoryPort
	audit    AuditPort
	allowNeg bool
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort, cfg ServiceConfig) *Service {
	return &Service{repo: repo, audit: audit, allowNeg: cfg.AllowNegativeStock}
}

const epsilon = 1e-9

// List returns all inventory rows owned by tenant.
func (s *Service) List(ctx context.Context, tenant string) ([]Item, error) {
	return s.repo.List(ctx, tenant)
}

// Get returns one row owned by tenant.
func (s *Service) Get(ctx context.Context, tenant string, id int64) (Item, error) {
	return s.repo.Get(ctx, tenant, id)
}

// Create inserts a row after checking the grade belongs to the material.
func (s *Service) Create(ctx context.Context, tenant string, input CreateInput) (Item, error) {
	item := Item{
		UserID:       tenant,
		MaterialID:   input.MaterialID,
		GradeID:      input.GradeID,
		Dimensions:   shared.Dimensions{Length: input.Length, Width: input.Width, Thickness: input.Thickness},
		OnHand:       input.OnHand,
		Allocated:    input.Allocated,
		DefaultPrice: input.DefaultPrice,
	}
	if err := validateItem(item); err != nil {
		return Item{}, err
	}
	var created Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := checkGrade(ctx, tx, item.MaterialID, item.GradeID); err != nil {
			return err
		}
		var err error
		created, err = tx.Insert(ctx, item)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, tenant, "inventory:create", created.ID, map[string]any{
		"material_id": created.MaterialID,
		"grade_id":    created.GradeID,
		"on_hand":     created.OnHand,
	})
	return created, nil
}

// Update overwrites the supplied fields of a row owned by tenant.
func (s *Service) Update(ctx context.Context, tenant string, id int64, input UpdateInput) (Item, error) {
	if err := validateUpdate(input); err != nil {
		return Item{}, err
	}
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.LockByID(ctx, tenant, id)
		if err != nil {
			return err
		}
		regrade := input.MaterialID != nil || input.GradeID != nil
		applyUpdate(&item, input)
		if regrade {
			if err := checkGrade(ctx, tx, item.MaterialID, item.GradeID); err != nil {
				return err
			}
		}
		updated, err = tx.Update(ctx, item)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, tenant, "inventory:update", id, map[string]any{
		"on_hand":   updated.OnHand,
		"allocated": updated.Allocated,
	})
	return updated, nil
}

// Delete removes a row owned by tenant.
func (s *Service) Delete(ctx context.Context, tenant string, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.Delete(ctx, tenant, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, tenant, "inventory:delete", id, nil)
	return nil
}

// Allocate reserves quantity against the row matching a. It runs inside the caller's
// transaction and locks the row until commit.
func (s *Service) Allocate(ctx context.Context, tx TxRepository, tenant string, a Allocation) (Item, error) {
	if a.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	item, err := s.lock(ctx, tx, tenant, a)
	if err != nil {
		return Item{}, err
	}
	onHand := item.OnHand - a.Quantity
	if !s.allowNeg && onHand < -epsilon {
		return Item{}, ErrInsufficientStock.WithDetails(fmt.Sprintf(
			"item %d has %s on hand, %s requested", item.ID, formatQty(item.OnHand), formatQty(a.Quantity)))
	}
	item.OnHand = onHand
	item.Allocated += a.Quantity
	return tx.Update(ctx, item)
}

// Release drops quantity from the allocated counter of the row matching a, floored at
// zero. On-hand is not restored: the stock has left the building.
func (s *Service) Release(ctx context.Context, tx TxRepository, tenant string, a Allocation) (Item, error) {
	if a.Quantity <= 0 {
		return Item{}, ErrInvalidQuantity
	}
	item, err := s.lock(ctx, tx, tenant, a)
	if err != nil {
		return Item{}, err
	}
	item.Allocated = math.Max(item.Allocated-a.Quantity, 0)
	return tx.Update(ctx, item)
}

func (s *Service) lock(ctx context.Context, tx TxRepository, tenant string, a Allocation) (Item, error) {
	gradeID, err := tx.ResolveGrade(ctx, a.MaterialID, a.GradeLabel)
	if err != nil {
		return Item{}, err
	}
	return tx.LockMatching(ctx, tenant, a.MaterialID, gradeID, a.Dimensions)
}

func (s *Service) record(ctx context.Context, tenant, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Tenant:   tenant,
		Action:   action,
		Entity:   "inventory",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}

func checkGrade(ctx context.Context, tx TxRepository, materialID, gradeID int64) error {
	owner, err := tx.GradeMaterial(ctx, gradeID)
	if err != nil {
		return err
	}
	if owner != materialID {
		return ErrInvalidGrade
	}
	return nil
}

func applyUpdate(item *Item, in UpdateInput) {
	if in.MaterialID != nil {
		item.MaterialID = *in.MaterialID
	}
	if in.GradeID != nil {
		item.GradeID = *in.GradeID
	}
	if in.Length != nil {
		item.Length = in.Length
	}
	if in.Width != nil {
		item.Width = in.Width
	}
	if in.Thickness != nil {
		item.Thickness = in.Thickness
	}
	if in.OnHand != nil {
		item.OnHand = *in.OnHand
	}
	if in.Allocated != nil {
		item.Allocated = *in.Allocated
	}
	if in.DefaultPrice != nil {
		item.DefaultPrice = *in.DefaultPrice
	}
}

func validateItem(item Item) error {
	if err := item.Dimensions.Validate(); err != nil {
		return err
	}
	if item.OnHand < 0 || item.Allocated < 0 {
		return ErrNegativeQuantity
	}
	if item.DefaultPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func validateUpdate(in UpdateInput) error {
	dims := shared.Dimensions{Length: in.Length, Width: in.Width, Thickness: in.Thickness}
	if err := dims.Validate(); err != nil {
		return err
	}
	if (in.OnHand != nil && *in.OnHand < 0) || (in.Allocated != nil && *in.Allocated < 0) {
		return ErrNegativeQuantity
	}
	if in.DefaultPrice != nil && in.DefaultPrice.IsNegative() {
		return ErrInvalidPrice
	}
	return nil
}

func formatQty(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
