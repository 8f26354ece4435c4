// Package service implements the business rules on top of the store:
// catalog management, the purchase ledger, lifetime aggregation, sale
// recording and the read-only FIFO simulator. Every write takes an
// explicit owner id; impersonation is resolved by the HTTP layer
// before calls reach here.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"growledger/backend/internal/costing"
	"growledger/backend/internal/domain"
	"growledger/backend/internal/locker"
	"growledger/backend/internal/store"
)

type Service struct {
	repo     store.Repository
	locks    locker.ItemLocker
	strategy costing.Strategy
	log      *logrus.Logger
}

func New(repo store.Repository, locks locker.ItemLocker, strategy costing.Strategy, log *logrus.Logger) *Service {
	if locks == nil {
		locks = locker.NewMemory()
	}
	if strategy == nil {
		strategy = costing.LifetimeAverage{}
	}
	if log == nil {
		log = logrus.New()
	}
	return &Service{repo: repo, locks: locks, strategy: strategy, log: log}
}

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

func (s *Service) logAudit(ctx context.Context, ownerID string, action string, entityType string, entityID string, detail string) {
	actor, _ := ActorFromContext(ctx)
	entry := domain.AuditLog{
		OwnerID:       ownerID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
	}
	if err := s.repo.CreateAuditLog(ctx, entry); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"action": action,
			"entity": entityType,
		}).Warn("failed to write audit log")
	}
}

// -- Catalog --

func (s *Service) Categories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	return s.repo.ListCategories(ctx, ownerID)
}

func (s *Service) CreateCategory(ctx context.Context, ownerID string, req domain.CategoryCreateRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", store.ErrValidation)
	}
	created, err := s.repo.CreateCategory(ctx, domain.Category{OwnerID: ownerID, Name: name})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "category.create", "category", created.ID, created.Name)
	return created, nil
}

func (s *Service) UpdateCategory(ctx context.Context, ownerID string, categoryID string, req domain.CategoryUpdateRequest) (*domain.Category, error) {
	existing, err := s.repo.GetCategory(ctx, ownerID, categoryID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	updated, err := s.repo.UpdateCategory(ctx, *existing)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "category.update", "category", updated.ID, updated.Name)
	return updated, nil
}

func (s *Service) DeleteCategory(ctx context.Context, ownerID string, categoryID string) error {
	if err := s.repo.DeleteCategory(ctx, ownerID, categoryID); err != nil {
		return err
	}
	s.logAudit(ctx, ownerID, "category.delete", "category", categoryID, "")
	return nil
}

func (s *Service) Items(ctx context.Context, ownerID string) ([]domain.Item, error) {
	return s.repo.ListItems(ctx, ownerID)
}

// AvailableItems returns items whose ledger still has unsold units.
func (s *Service) AvailableItems(ctx context.Context, ownerID string) ([]domain.Item, error) {
	items, err := s.repo.ListItems(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	available := make([]domain.Item, 0, len(items))
	for _, item := range items {
		totals, err := s.TotalsForItem(ctx, ownerID, item.ID)
		if err != nil {
			return nil, err
		}
		if totals.RemainingQty > 0 {
			available = append(available, item)
		}
	}
	return available, nil
}

func (s *Service) CreateItem(ctx context.Context, ownerID string, req domain.ItemCreateRequest) (*domain.Item, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: item name is required", store.ErrValidation)
	}
	item := domain.Item{
		OwnerID:           ownerID,
		Name:              name,
		DefaultCategoryID: req.DefaultCategoryID,
		ImageURL:          strings.TrimSpace(req.ImageURL),
	}
	created, err := s.repo.CreateItem(ctx, item)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "item.create", "item", created.ID, created.Name)
	return created, nil
}

func (s *Service) Item(ctx context.Context, ownerID string, itemID string) (*domain.Item, error) {
	return s.repo.GetItem(ctx, ownerID, itemID)
}

func (s *Service) UpdateItem(ctx context.Context, ownerID string, itemID string, req domain.ItemUpdateRequest) (*domain.Item, error) {
	existing, err := s.repo.GetItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	if req.Name != nil {
		existing.Name = strings.TrimSpace(*req.Name)
	}
	if req.DefaultCategoryID != nil {
		existing.DefaultCategoryID = *req.DefaultCategoryID
	}
	if req.ImageURL != nil {
		existing.ImageURL = strings.TrimSpace(*req.ImageURL)
	}
	updated, err := s.repo.UpdateItem(ctx, *existing)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "item.update", "item", updated.ID, updated.Name)
	return updated, nil
}

func (s *Service) DeleteItem(ctx context.Context, ownerID string, itemID string) error {
	if err := s.repo.DeleteItem(ctx, ownerID, itemID); err != nil {
		return err
	}
	s.logAudit(ctx, ownerID, "item.delete", "item", itemID, "")
	return nil
}

// -- Inventory ledger --

func (s *Service) AddLot(ctx context.Context, ownerID string, req domain.LotCreateRequest) (*domain.InventoryEntry, error) {
	if req.Qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
	}
	if req.UnitCost.IsNegative() {
		return nil, fmt.Errorf("%w: unit cost must not be negative", store.ErrValidation)
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	item, err := s.repo.GetItem(ctx, ownerID, req.ItemID)
	if err != nil {
		return nil, err
	}

	lot := domain.InventoryEntry{
		OwnerID:            ownerID,
		ItemID:             item.ID,
		SnapshotName:       item.Name,
		SnapshotCategoryID: item.DefaultCategoryID,
		QuantityBought:     req.Qty,
		UnitCost:           req.UnitCost,
		Currency:           currency,
		Notes:              strings.TrimSpace(req.Notes),
	}
	if req.BoughtAt != nil {
		lot.BoughtAt = req.BoughtAt.UTC()
	}
	created, err := s.repo.CreateLot(ctx, lot)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "lot.create", "lot", created.ID,
		fmt.Sprintf("%s x%d @ %s %s", created.SnapshotName, created.QuantityBought, created.UnitCost, created.Currency))
	return created, nil
}

func (s *Service) Lot(ctx context.Context, ownerID string, lotID string) (*domain.InventoryEntry, error) {
	return s.repo.GetLot(ctx, ownerID, lotID)
}

// UpdateLot edits a purchase lot. Changing the bought quantity resets
// the remaining quantity to the new value; prior simulations never
// mutate state, so the reset is always safe.
func (s *Service) UpdateLot(ctx context.Context, ownerID string, lotID string, req domain.LotUpdateRequest) (*domain.InventoryEntry, error) {
	existing, err := s.repo.GetLot(ctx, ownerID, lotID)
	if err != nil {
		return nil, err
	}
	if req.Qty != nil {
		if *req.Qty < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
		}
		existing.QuantityBought = *req.Qty
		existing.RemainingQty = *req.Qty
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, fmt.Errorf("%w: unit cost must not be negative", store.ErrValidation)
		}
		existing.UnitCost = *req.UnitCost
	}
	if req.BoughtAt != nil {
		existing.BoughtAt = req.BoughtAt.UTC()
	}
	if req.Notes != nil {
		existing.Notes = strings.TrimSpace(*req.Notes)
	}

	updated, err := s.repo.UpdateLot(ctx, *existing)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "lot.update", "lot", updated.ID, "")
	return updated, nil
}

// DeleteLot removes a lot outright. Sales that priced against it keep
// their stored cost and profit; history is frozen at recording time.
func (s *Service) DeleteLot(ctx context.Context, ownerID string, lotID string) error {
	if err := s.repo.DeleteLot(ctx, ownerID, lotID); err != nil {
		return err
	}
	s.logAudit(ctx, ownerID, "lot.delete", "lot", lotID, "")
	return nil
}

func (s *Service) LotsForItem(ctx context.Context, ownerID string, itemID string, openOnly bool) ([]domain.InventoryEntry, error) {
	if _, err := s.repo.GetItem(ctx, ownerID, itemID); err != nil {
		return nil, err
	}
	lots, err := s.repo.ListLotsForItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	if !openOnly {
		return lots, nil
	}
	open := make([]domain.InventoryEntry, 0, len(lots))
	for _, lot := range lots {
		if lot.RemainingQty > 0 {
			open = append(open, lot)
		}
	}
	return open, nil
}

// -- Lifetime aggregation --

// TotalsForItem recomputes lifetime aggregates from the full purchase
// and sale history. Nothing is cached; deleting a lot changes the
// result immediately.
func (s *Service) TotalsForItem(ctx context.Context, ownerID string, itemID string) (*domain.ItemTotals, error) {
	if _, err := s.repo.GetItem(ctx, ownerID, itemID); err != nil {
		return nil, err
	}
	lots, err := s.repo.ListLotsForItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSalesForItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	totals := costing.Totals(itemID, lots, sales)
	return &totals, nil
}

func (s *Service) ProfitForItem(ctx context.Context, ownerID string, itemID string) (*domain.ProfitSummary, error) {
	if _, err := s.repo.GetItem(ctx, ownerID, itemID); err != nil {
		return nil, err
	}
	lots, err := s.repo.ListLotsForItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	sales, err := s.repo.ListSalesForItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	summary := costing.Profit(itemID, lots, sales)
	return &summary, nil
}

// -- Sale recording --

// RecordSale prices the sale with the configured cost basis and
// persists it behind a per-item lock. The store re-checks remaining
// stock inside its own critical section, so the gate holds even with
// several backend instances sharing one database.
func (s *Service) RecordSale(ctx context.Context, ownerID string, req domain.SaleCreateRequest) (*domain.Sale, error) {
	if req.Qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
	}
	if !req.AmountGained.IsPositive() {
		return nil, fmt.Errorf("%w: amount gained must be positive", store.ErrValidation)
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
	}
	if _, err := s.repo.GetItem(ctx, ownerID, req.ItemID); err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, ownerID, req.ItemID)
	if err != nil {
		return nil, err
	}
	defer release()

	totals, err := s.TotalsForItem(ctx, ownerID, req.ItemID)
	if err != nil {
		return nil, err
	}
	lots, err := s.repo.ListLotsForItem(ctx, ownerID, req.ItemID)
	if err != nil {
		return nil, err
	}
	breakdown, totalCost, err := s.strategy.Price(*totals, lots, req.Qty)
	if err != nil {
		return nil, err
	}

	sale := domain.Sale{
		OwnerID:       ownerID,
		ItemID:        req.ItemID,
		QuantitySold:  req.Qty,
		AmountGained:  req.AmountGained,
		Currency:      currency,
		CostBreakdown: breakdown,
		TotalCost:     totalCost,
		Profit:        req.AmountGained.Sub(totalCost),
		Notes:         strings.TrimSpace(req.Notes),
	}
	if req.SoldAt != nil {
		sale.SoldAt = req.SoldAt.UTC()
	}

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		return nil, err
	}
	if s.strategy.ConsumesLots() {
		if err := s.repo.ConsumeLots(ctx, ownerID, created.CostBreakdown); err != nil {
			s.log.WithError(err).WithField("sale_id", created.ID).Warn("failed to decrement lot remainders")
		}
	}
	s.logAudit(ctx, ownerID, "sale.create", "sale", created.ID,
		fmt.Sprintf("x%d for %s %s, profit %s", created.QuantitySold, created.AmountGained, created.Currency, created.Profit))
	return created, nil
}

// UpdateSale edits a recorded sale and reprices it at the item's
// current lifetime average. Edits do not re-run the stock gate and do
// not replay per-lot consumption; the ledger aggregates absorb the
// change on the next read.
func (s *Service) UpdateSale(ctx context.Context, ownerID string, saleID string, req domain.SaleUpdateRequest) (*domain.Sale, error) {
	existing, err := s.repo.GetSale(ctx, ownerID, saleID)
	if err != nil {
		return nil, err
	}
	if req.Qty != nil {
		if *req.Qty < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
		}
		existing.QuantitySold = *req.Qty
	}
	if req.AmountGained != nil {
		if !req.AmountGained.IsPositive() {
			return nil, fmt.Errorf("%w: amount gained must be positive", store.ErrValidation)
		}
		existing.AmountGained = *req.AmountGained
	}
	if req.Currency != nil {
		currency, err := domain.ParseCurrency(*req.Currency)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrValidation, err)
		}
		existing.Currency = currency
	}
	if req.SoldAt != nil {
		existing.SoldAt = req.SoldAt.UTC()
	}
	if req.Notes != nil {
		existing.Notes = strings.TrimSpace(*req.Notes)
	}

	totals, err := s.TotalsForItem(ctx, ownerID, existing.ItemID)
	if err != nil {
		return nil, err
	}
	breakdown, totalCost, err := costing.LifetimeAverage{}.Price(*totals, nil, existing.QuantitySold)
	if err != nil {
		return nil, err
	}
	existing.CostBreakdown = breakdown
	existing.TotalCost = totalCost
	existing.Profit = existing.AmountGained.Sub(totalCost)

	updated, err := s.repo.UpdateSale(ctx, *existing)
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, ownerID, "sale.update", "sale", updated.ID, "")
	return updated, nil
}

func (s *Service) DeleteSale(ctx context.Context, ownerID string, saleID string) error {
	if err := s.repo.DeleteSale(ctx, ownerID, saleID); err != nil {
		return err
	}
	s.logAudit(ctx, ownerID, "sale.delete", "sale", saleID, "")
	return nil
}

func (s *Service) Sale(ctx context.Context, ownerID string, saleID string) (*domain.Sale, error) {
	return s.repo.GetSale(ctx, ownerID, saleID)
}

func (s *Service) SalesForItem(ctx context.Context, ownerID string, itemID string) ([]domain.Sale, error) {
	return s.repo.ListSalesForItem(ctx, ownerID, itemID)
}

func (s *Service) Sales(ctx context.Context, ownerID string) ([]domain.Sale, error) {
	return s.repo.ListSales(ctx, ownerID)
}

// -- FIFO simulation --

// Simulate answers "what would it cost to sell qty units right now at
// this price" by walking open lots oldest first. It never writes.
// When open lots cannot cover the quantity the result carries the
// shortage instead of an error: Insufficient is set, Available echoes
// what is on hand and the projections are zero.
func (s *Service) Simulate(ctx context.Context, ownerID string, itemID string, req domain.SimulateRequest) (*domain.SimulationResult, error) {
	if req.Qty < 1 {
		return nil, fmt.Errorf("%w: quantity must be at least 1", store.ErrValidation)
	}
	if !req.SellUnitPrice.IsPositive() {
		return nil, fmt.Errorf("%w: sell price must be positive", store.ErrValidation)
	}
	if _, err := s.repo.GetItem(ctx, ownerID, itemID); err != nil {
		return nil, err
	}
	lots, err := s.repo.ListLotsForItem(ctx, ownerID, itemID)
	if err != nil {
		return nil, err
	}

	alloc := costing.Allocate(lots, req.Qty)
	result := &domain.SimulationResult{
		ItemID:        itemID,
		Available:     alloc.Available,
		SimulateQty:   req.Qty,
		SellUnitPrice: req.SellUnitPrice,
	}
	if alloc.Short {
		result.Insufficient = true
		result.ProjectedRevenue = decimal.Zero
		result.SimulatedCOGS = decimal.Zero
		result.ProjectedProfit = decimal.Zero
		return result, nil
	}

	result.Breakdown = alloc.Lines
	result.SimulatedCOGS = alloc.TotalCost
	result.ProjectedRevenue = req.SellUnitPrice.Mul(decimal.NewFromInt(int64(req.Qty)))
	result.ProjectedProfit = result.ProjectedRevenue.Sub(result.SimulatedCOGS)
	return result, nil
}

// -- Audit --

func (s *Service) AuditLogs(ctx context.Context, ownerID string, limit int) ([]domain.AuditLog, error) {
	return s.repo.ListAuditLogs(ctx, ownerID, limit)
}

// IsInsufficientStock unwraps the store error carrying the available
// quantity so the HTTP layer can echo it back.
func IsInsufficientStock(err error) (int, bool) {
	var stockErr *store.InsufficientStockError
	if errors.As(err, &stockErr) {
		return stockErr.Available, true
	}
	return 0, false
}
