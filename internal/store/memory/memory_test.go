package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"growledger/backend/internal/domain"
	"growledger/backend/internal/store"
)

func mustCategory(t *testing.T, s *Store, owner, name string) domain.Category {
	t.Helper()
	cat, err := s.CreateCategory(context.Background(), domain.Category{OwnerID: owner, Name: name})
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return *cat
}

func mustItem(t *testing.T, s *Store, owner, name, categoryID string) domain.Item {
	t.Helper()
	item, err := s.CreateItem(context.Background(), domain.Item{OwnerID: owner, Name: name, DefaultCategoryID: categoryID})
	if err != nil {
		t.Fatalf("create item %q: %v", name, err)
	}
	return *item
}

func mustLot(t *testing.T, s *Store, owner, itemID string, qty int, unitCost string, boughtAt time.Time) domain.InventoryEntry {
	t.Helper()
	lot, err := s.CreateLot(context.Background(), domain.InventoryEntry{
		OwnerID:        owner,
		ItemID:         itemID,
		QuantityBought: qty,
		UnitCost:       decimal.RequireFromString(unitCost),
		Currency:       domain.CurrencyWL,
		BoughtAt:       boughtAt,
	})
	if err != nil {
		t.Fatalf("create lot: %v", err)
	}
	return *lot
}

func TestDefaultCategorySeededPerOwner(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat, err := s.DefaultCategory(ctx, "alice")
	if err != nil {
		t.Fatalf("default category: %v", err)
	}
	if cat.Name != domain.DefaultCategoryName || !cat.Protected {
		t.Fatalf("expected protected %q category, got %+v", domain.DefaultCategoryName, cat)
	}

	other, err := s.DefaultCategory(ctx, "bob")
	if err != nil {
		t.Fatalf("default category for second owner: %v", err)
	}
	if other.ID == cat.ID {
		t.Fatal("owners must not share the fallback category")
	}
}

func TestCategoryNameUniqueCaseInsensitive(t *testing.T) {
	s := New()
	mustCategory(t, s, "alice", "Wings")

	if _, err := s.CreateCategory(context.Background(), domain.Category{OwnerID: "alice", Name: "wings"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for duplicate name, got %v", err)
	}
	// Different owner, same name is fine.
	if _, err := s.CreateCategory(context.Background(), domain.Category{OwnerID: "bob", Name: "Wings"}); err != nil {
		t.Fatalf("same name under another owner should work: %v", err)
	}
}

func TestProtectedCategoryCannotBeChanged(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat, err := s.DefaultCategory(ctx, "alice")
	if err != nil {
		t.Fatalf("default category: %v", err)
	}
	cat.Name = "Renamed"
	if _, err := s.UpdateCategory(ctx, *cat); !errors.Is(err, store.ErrProtectedCategory) {
		t.Fatalf("expected protected category error on rename, got %v", err)
	}
	if err := s.DeleteCategory(ctx, "alice", cat.ID); !errors.Is(err, store.ErrProtectedCategory) {
		t.Fatalf("expected protected category error on delete, got %v", err)
	}
}

func TestDeleteCategoryRemapsItemDefaults(t *testing.T) {
	s := New()
	ctx := context.Background()

	wings := mustCategory(t, s, "alice", "Wings")
	item := mustItem(t, s, "alice", "Phoenix Wings", wings.ID)

	if err := s.DeleteCategory(ctx, "alice", wings.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}

	fallback, err := s.DefaultCategory(ctx, "alice")
	if err != nil {
		t.Fatalf("default category: %v", err)
	}
	got, err := s.GetItem(ctx, "alice", item.ID)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if got.DefaultCategoryID != fallback.ID {
		t.Fatalf("expected item remapped to %s, got %s", fallback.ID, got.DefaultCategoryID)
	}
}

func TestLotsOrderedByBoughtAtThenInsertion(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat := mustCategory(t, s, "alice", "Farmables")
	item := mustItem(t, s, "alice", "Chandelier Seed", cat.ID)

	sameDay := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	later := sameDay.Add(24 * time.Hour)

	third := mustLot(t, s, "alice", item.ID, 10, "2.00", later)
	first := mustLot(t, s, "alice", item.ID, 10, "1.00", sameDay)
	second := mustLot(t, s, "alice", item.ID, 10, "1.50", sameDay)

	lots, err := s.ListLotsForItem(ctx, "alice", item.ID)
	if err != nil {
		t.Fatalf("list lots: %v", err)
	}
	if len(lots) != 3 {
		t.Fatalf("expected 3 lots, got %d", len(lots))
	}
	if lots[0].ID != first.ID || lots[1].ID != second.ID || lots[2].ID != third.ID {
		t.Fatalf("wrong order: got %s, %s, %s", lots[0].ID, lots[1].ID, lots[2].ID)
	}
}

func TestCreateSaleGateRejectsOversell(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat := mustCategory(t, s, "alice", "Farmables")
	item := mustItem(t, s, "alice", "Laser Grid Seed", cat.ID)
	mustLot(t, s, "alice", item.ID, 5, "1.00", time.Now().UTC())

	sale := domain.Sale{
		OwnerID:      "alice",
		ItemID:       item.ID,
		QuantitySold: 6,
		AmountGained: decimal.RequireFromString("10"),
		Currency:     domain.CurrencyWL,
	}
	_, err := s.CreateSale(ctx, sale)
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 5 {
		t.Fatalf("expected available=5 in error, got %v", err)
	}

	sale.QuantitySold = 5
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("boundary sale of full stock should pass: %v", err)
	}
	// Everything is sold now, even one more unit is too many.
	sale.QuantitySold = 1
	if _, err := s.CreateSale(ctx, sale); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock after selling out, got %v", err)
	}
}

func TestCreateSaleWithoutPurchaseHistory(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat := mustCategory(t, s, "alice", "Farmables")
	item := mustItem(t, s, "alice", "Chandelier Seed", cat.ID)

	// No lots: the gate has nothing to guard and the sale records.
	sale := domain.Sale{
		OwnerID:      "alice",
		ItemID:       item.ID,
		QuantitySold: 3,
		AmountGained: decimal.RequireFromString("10"),
		Currency:     domain.CurrencyWL,
	}
	if _, err := s.CreateSale(ctx, sale); err != nil {
		t.Fatalf("sale without purchase history must record: %v", err)
	}

	// The first lot brings the gate back: 3 already sold against 5
	// bought leaves 2 sellable.
	mustLot(t, s, "alice", item.ID, 5, "1.00", time.Now().UTC())
	sale.QuantitySold = 3
	_, err := s.CreateSale(ctx, sale)
	var stockErr *store.InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Available != 2 {
		t.Fatalf("expected insufficient stock with available=2, got %v", err)
	}
}

func TestConsumeLotsLeavesLotsUntouchedOnUnknownID(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat := mustCategory(t, s, "alice", "Farmables")
	item := mustItem(t, s, "alice", "Laser Grid Seed", cat.ID)
	lot := mustLot(t, s, "alice", item.ID, 10, "1.00", time.Now().UTC())

	uses := []domain.CostLine{
		{LotID: lot.ID, QtyUsed: 4},
		{LotID: "lot-gone", QtyUsed: 2},
	}
	if err := s.ConsumeLots(ctx, "alice", uses); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown lot, got %v", err)
	}
	got, err := s.GetLot(ctx, "alice", lot.ID)
	if err != nil {
		t.Fatalf("get lot: %v", err)
	}
	if got.RemainingQty != 10 {
		t.Fatalf("failed consume must not decrement earlier lots, got remaining %d", got.RemainingQty)
	}
}

func TestConsumeLotsSkipsAverageMarker(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat := mustCategory(t, s, "alice", "Farmables")
	item := mustItem(t, s, "alice", "Chandelier Seed", cat.ID)
	lot := mustLot(t, s, "alice", item.ID, 10, "1.50", time.Now().UTC())

	uses := []domain.CostLine{
		{LotID: domain.CostBasisLifetimeAverage, QtyUsed: 4},
		{LotID: lot.ID, QtyUsed: 4},
	}
	if err := s.ConsumeLots(ctx, "alice", uses); err != nil {
		t.Fatalf("consume lots: %v", err)
	}
	got, err := s.GetLot(ctx, "alice", lot.ID)
	if err != nil {
		t.Fatalf("get lot: %v", err)
	}
	if got.RemainingQty != 6 || got.Status != domain.LotStatusOpen {
		t.Fatalf("expected remaining 6 open, got %d %s", got.RemainingQty, got.Status)
	}

	if err := s.ConsumeLots(ctx, "alice", []domain.CostLine{{LotID: lot.ID, QtyUsed: 6}}); err != nil {
		t.Fatalf("consume rest: %v", err)
	}
	got, _ = s.GetLot(ctx, "alice", lot.ID)
	if got.RemainingQty != 0 || got.Status != domain.LotStatusClosed {
		t.Fatalf("expected closed lot with 0 remaining, got %d %s", got.RemainingQty, got.Status)
	}
}

func TestOwnerIsolation(t *testing.T) {
	s := New()
	ctx := context.Background()

	cat := mustCategory(t, s, "alice", "Wings")
	item := mustItem(t, s, "alice", "Phoenix Wings", cat.ID)

	if _, err := s.GetItem(ctx, "bob", item.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("bob must not see alice's item, got %v", err)
	}
	items, err := s.ListItems(ctx, "bob")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list for bob, got %d items", len(items))
	}
}

func TestNewSeededHasDemoData(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()

	items, err := s.ListItems(ctx, "demo")
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) == 0 {
		t.Fatal("expected seeded demo items")
	}
	users, err := s.ListUsers(ctx)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 seed users, got %d", len(users))
	}
}
