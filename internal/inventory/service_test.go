package inventory

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metalyard/metalyard/internal/shared"
)

type grade struct {
	id         int64
	materialID int64
	label      string
}

type memoryRepo struct {
	items  map[int64]Item
	grades []grade
	nextID int64
	audits []shared.AuditLog
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		items: make(map[int64]Item),
		grades: []grade{
			{id: 10, materialID: 1, label: "A36"},
			{id: 11, materialID: 1, label: "A572"},
			{id: 20, materialID: 2, label: "6061"},
		},
	}
}

// WithTx snapshots the items so a failing callback leaves no trace, like a rollback.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := make(map[int64]Item, len(r.items))
	for id, item := range r.items {
		snapshot[id] = item
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.items = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) List(ctx context.Context, tenant string) ([]Item, error) {
	out := make([]Item, 0)
	for _, item := range r.items {
		if item.UserID == tenant {
			out = append(out, item)
		}
	}
	return out, nil
}

func (r *memoryRepo) Get(ctx context.Context, tenant string, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok || item.UserID != tenant {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryRepo) Record(ctx context.Context, log shared.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

func (tx *memoryTx) GradeMaterial(ctx context.Context, gradeID int64) (int64, error) {
	for _, g := range tx.repo.grades {
		if g.id == gradeID {
			return g.materialID, nil
		}
	}
	return 0, ErrInvalidGrade
}

func (tx *memoryTx) ResolveGrade(ctx context.Context, materialID int64, label string) (int64, error) {
	for _, g := range tx.repo.grades {
		if g.materialID == materialID && g.label == label {
			return g.id, nil
		}
	}
	return 0, ErrGradeNotFound
}

func (tx *memoryTx) LockMatching(ctx context.Context, tenant string, materialID, gradeID int64, dims shared.Dimensions) (Item, error) {
	var found []Item
	for _, item := range tx.repo.items {
		if item.UserID == tenant && item.MaterialID == materialID && item.GradeID == gradeID && dims.Matches(item.Dimensions) {
			found = append(found, item)
		}
	}
	if len(found) != 1 {
		return Item{}, ErrInventoryNotFound
	}
	return found[0], nil
}

func (tx *memoryTx) LockByID(ctx context.Context, tenant string, id int64) (Item, error) {
	return tx.repo.Get(ctx, tenant, id)
}

func (tx *memoryTx) Insert(ctx context.Context, item Item) (Item, error) {
	tx.repo.nextID++
	item.ID = tx.repo.nextID
	tx.repo.items[item.ID] = item
	return item, nil
}

func (tx *memoryTx) Update(ctx context.Context, item Item) (Item, error) {
	if _, ok := tx.repo.items[item.ID]; !ok {
		return Item{}, ErrNotFound
	}
	tx.repo.items[item.ID] = item
	return item, nil
}

func (tx *memoryTx) Delete(ctx context.Context, tenant string, id int64) error {
	item, ok := tx.repo.items[id]
	if !ok || item.UserID != tenant {
		return ErrNotFound
	}
	delete(tx.repo.items, id)
	return nil
}

func ptr[T any](v T) *T { return &v }

func seedSteel(t *testing.T, svc *Service, tenant string, onHand float64) Item {
	t.Helper()
	item, err := svc.Create(context.Background(), tenant, CreateInput{
		MaterialID: 1, GradeID: 10,
		Length: ptr(10.0), Width: ptr(5.0), Thickness: ptr(0.25),
		OnHand: onHand, DefaultPrice: decimal.NewFromInt(10),
	})
	require.NoError(t, err)
	return item
}

func TestCreateValidatesGradeBelongsToMaterial(t *testing.T) {
	cases := []struct {
		name       string
		materialID int64
		gradeID    int64
		wantErr    error
	}{
		{name: "matching pair", materialID: 1, gradeID: 10},
		{name: "grade of another material", materialID: 2, gradeID: 10, wantErr: ErrInvalidGrade},
		{name: "unknown grade", materialID: 1, gradeID: 99, wantErr: ErrInvalidGrade},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo()
			svc := NewService(repo, repo, ServiceConfig{})
			_, err := svc.Create(context.Background(), "u1", CreateInput{MaterialID: tc.materialID, GradeID: tc.gradeID, OnHand: 1})
			if tc.wantErr == nil {
				require.NoError(t, err)
				require.Len(t, repo.items, 1)
				return
			}
			require.ErrorIs(t, err, tc.wantErr)
			require.Equal(t, shared.KindInvalidInput, shared.KindOf(err))
			require.Empty(t, repo.items)
		})
	}
}

func TestCreateAcceptsAllocatedAboveOnHand(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})

	// On-hand is net of allocations, so a row imported mid-order may carry more allocated
	// than on hand.
	item, err := svc.Create(context.Background(), "u1", CreateInput{
		MaterialID: 1, GradeID: 10, Length: ptr(10.0), OnHand: 5, Allocated: 9,
	})
	require.NoError(t, err)
	require.InDelta(t, 5, repo.items[item.ID].OnHand, 1e-9)
	require.InDelta(t, 9, repo.items[item.ID].Allocated, 1e-9)

	_, err = svc.Create(context.Background(), "u1", CreateInput{MaterialID: 1, GradeID: 10, Length: ptr(12.0), OnHand: 5, Allocated: -1})
	require.ErrorIs(t, err, ErrNegativeQuantity)
}

func TestCreateRejectsNegativeValues(t *testing.T) {
	svc := NewService(newMemoryRepo(), nil, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.Create(ctx, "u1", CreateInput{MaterialID: 1, GradeID: 10, OnHand: -1})
	require.ErrorIs(t, err, ErrNegativeQuantity)

	_, err = svc.Create(ctx, "u1", CreateInput{MaterialID: 1, GradeID: 10, DefaultPrice: decimal.NewFromInt(-5)})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Create(ctx, "u1", CreateInput{MaterialID: 1, GradeID: 10, Width: ptr(-2.0)})
	require.Equal(t, shared.KindInvalidInput, shared.KindOf(err))
}

func TestUpdateIsScopedByTenant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, repo, ServiceConfig{})
	item := seedSteel(t, svc, "owner", 100)
	ctx := context.Background()

	_, err := svc.Update(ctx, "intruder", item.ID, UpdateInput{OnHand: ptr(1.0)})
	require.ErrorIs(t, err, ErrNotFound)

	updated, err := svc.Update(ctx, "owner", item.ID, UpdateInput{OnHand: ptr(90.0), DefaultPrice: ptr(decimal.NewFromInt(12))})
	require.NoError(t, err)
	require.InDelta(t, 90, updated.OnHand, 1e-9)
	require.True(t, updated.DefaultPrice.Equal(decimal.NewFromInt(12)))
	require.InDelta(t, 10, *updated.Length, 1e-9)
}

func TestUpdateRevalidatesGrade(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	item := seedSteel(t, svc, "owner", 100)

	_, err := svc.Update(context.Background(), "owner", item.ID, UpdateInput{GradeID: ptr(int64(20))})
	require.ErrorIs(t, err, ErrInvalidGrade)
	require.Equal(t, int64(10), repo.items[item.ID].GradeID)
}

func TestDeleteIsScopedByTenant(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, repo, ServiceConfig{})
	item := seedSteel(t, svc, "owner", 100)
	ctx := context.Background()

	require.ErrorIs(t, svc.Delete(ctx, "intruder", item.ID), ErrNotFound)
	require.Len(t, repo.items, 1)

	require.NoError(t, svc.Delete(ctx, "owner", item.ID))
	require.Empty(t, repo.items)
	require.Equal(t, "inventory:delete", repo.audits[len(repo.audits)-1].Action)
}

func TestAllocateMovesOnHandToAllocated(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	item := seedSteel(t, svc, "u1", 100)

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Allocate(ctx, tx, "u1", Allocation{MaterialID: 1, GradeLabel: "A36", Dimensions: shared.Dims(10, 5, 0.25), Quantity: 20})
		return err
	})
	require.NoError(t, err)
	require.InDelta(t, 80, repo.items[item.ID].OnHand, 1e-9)
	require.InDelta(t, 20, repo.items[item.ID].Allocated, 1e-9)
}

func TestAllocatedAboveOnHandIsHealthy(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	item := seedSteel(t, svc, "u1", 100)

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Allocate(ctx, tx, "u1", Allocation{MaterialID: 1, GradeLabel: "A36", Dimensions: shared.Dims(10, 5, 0.25), Quantity: 60})
		return err
	})
	require.NoError(t, err)
	got := repo.items[item.ID]
	require.InDelta(t, 40, got.OnHand, 1e-9)
	require.InDelta(t, 60, got.Allocated, 1e-9)

	_, flagged := AnomalyReason(got.OnHand, got.Allocated)
	require.False(t, flagged)
}

func TestAnomalyReason(t *testing.T) {
	cases := []struct {
		name      string
		onHand    float64
		allocated float64
		reason    string
		flagged   bool
	}{
		{name: "fresh stock", onHand: 100, allocated: 0},
		{name: "mostly allocated", onHand: 40, allocated: 60},
		{name: "fully allocated", onHand: 0, allocated: 100},
		{name: "negative on hand", onHand: -3, allocated: 10, reason: ReasonNegativeOnHand, flagged: true},
		{name: "negative allocated", onHand: 5, allocated: -1, reason: ReasonNegativeAllocated, flagged: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reason, flagged := AnomalyReason(tc.onHand, tc.allocated)
			assert.Equal(t, tc.flagged, flagged)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestAllocateLookupFailures(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	seedSteel(t, svc, "u1", 100)
	ctx := context.Background()

	cases := []struct {
		name    string
		tenant  string
		alloc   Allocation
		wantErr error
	}{
		{name: "unknown grade", tenant: "u1", alloc: Allocation{MaterialID: 1, GradeLabel: "X99", Quantity: 1}, wantErr: ErrGradeNotFound},
		{name: "grade of other material", tenant: "u1", alloc: Allocation{MaterialID: 2, GradeLabel: "A36", Quantity: 1}, wantErr: ErrGradeNotFound},
		{name: "dimensions differ", tenant: "u1", alloc: Allocation{MaterialID: 1, GradeLabel: "A36", Dimensions: shared.Dims(10, 5, 0.5), Quantity: 1}, wantErr: ErrInventoryNotFound},
		{name: "other tenant", tenant: "u2", alloc: Allocation{MaterialID: 1, GradeLabel: "A36", Quantity: 1}, wantErr: ErrInventoryNotFound},
		{name: "zero quantity", tenant: "u1", alloc: Allocation{MaterialID: 1, GradeLabel: "A36"}, wantErr: ErrInvalidQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
				_, err := svc.Allocate(ctx, tx, tc.tenant, tc.alloc)
				return err
			})
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestAllocateAmbiguousWithoutDimensions(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	seedSteel(t, svc, "u1", 100)
	_, err := svc.Create(context.Background(), "u1", CreateInput{MaterialID: 1, GradeID: 10, Length: ptr(20.0), OnHand: 5})
	require.NoError(t, err)

	err = repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Allocate(ctx, tx, "u1", Allocation{MaterialID: 1, GradeLabel: "A36", Quantity: 1})
		return err
	})
	require.ErrorIs(t, err, ErrInventoryNotFound)
}

func TestAllocateRefusesNegativeOnHand(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	item := seedSteel(t, svc, "u1", 5)

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Allocate(ctx, tx, "u1", Allocation{MaterialID: 1, GradeLabel: "A36", Quantity: 6})
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, shared.KindInvalidState, shared.KindOf(err))
	require.InDelta(t, 5, repo.items[item.ID].OnHand, 1e-9)
	require.Zero(t, repo.items[item.ID].Allocated)
}

func TestAllocateAllowsNegativeWhenConfigured(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{AllowNegativeStock: true})
	item := seedSteel(t, svc, "u1", 5)

	err := repo.WithTx(context.Background(), func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Allocate(ctx, tx, "u1", Allocation{MaterialID: 1, GradeLabel: "A36", Quantity: 6})
		return err
	})
	require.NoError(t, err)
	require.InDelta(t, -1, repo.items[item.ID].OnHand, 1e-9)
}

func TestReleaseFloorsAtZeroAndKeepsOnHand(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, nil, ServiceConfig{})
	item := seedSteel(t, svc, "u1", 100)
	ctx := context.Background()
	alloc := Allocation{MaterialID: 1, GradeLabel: "A36", Dimensions: shared.Dims(10, 5, 0.25), Quantity: 20}

	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := svc.Allocate(ctx, tx, "u1", alloc)
		return err
	}))
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			_, err := svc.Release(ctx, tx, "u1", alloc)
			return err
		}))
		require.Zero(t, repo.items[item.ID].Allocated)
		require.InDelta(t, 80, repo.items[item.ID].OnHand, 1e-9)
	}
}
