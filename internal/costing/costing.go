// Package costing holds the money math for the inventory ledger:
// lifetime totals, profit summaries, and the pluggable cost basis
// used when a sale is recorded. All arithmetic is decimal; nothing
// here touches storage.
package costing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"growledger/backend/internal/domain"
)

// Strategy prices the cost side of a sale.
type Strategy interface {
	Name() string
	// Price computes the cost breakdown and total cost for selling qty
	// units. openLots are the item's lots ordered oldest first.
	Price(totals domain.ItemTotals, openLots []domain.InventoryEntry, qty int) ([]domain.CostLine, decimal.Decimal, error)
	// ConsumesLots reports whether recording a sale should decrement
	// per-lot remaining quantities.
	ConsumesLots() bool
}

// ForName resolves a strategy by its config name. The empty string
// selects the default lifetime-average basis.
func ForName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", LifetimeAverage{}.Name():
		return LifetimeAverage{}, nil
	case FIFOConsumption{}.Name():
		return FIFOConsumption{}, nil
	default:
		return nil, fmt.Errorf("unknown costing strategy %q", name)
	}
}

// LifetimeAverage prices every unit at the item's lifetime average
// purchase cost. It never touches per-lot remaining quantities, so
// recorded sales stay valid even when lots are edited or deleted
// later. The breakdown carries a single synthetic line.
type LifetimeAverage struct{}

func (LifetimeAverage) Name() string       { return "lifetime-average" }
func (LifetimeAverage) ConsumesLots() bool { return false }

func (LifetimeAverage) Price(totals domain.ItemTotals, _ []domain.InventoryEntry, qty int) ([]domain.CostLine, decimal.Decimal, error) {
	qtyDec := decimal.NewFromInt(int64(qty))
	total := totals.AvgCost.Mul(qtyDec)
	breakdown := []domain.CostLine{{
		LotID:    domain.CostBasisLifetimeAverage,
		UnitCost: totals.AvgCost,
		QtyUsed:  qty,
	}}
	return breakdown, total, nil
}

// FIFOConsumption prices units against the oldest open lots and
// decrements their remaining quantities. Units not covered by any
// open lot are priced at zero; lot edits and deletes can legitimately
// leave per-lot remainders short of the ledger total.
type FIFOConsumption struct{}

func (FIFOConsumption) Name() string       { return "fifo" }
func (FIFOConsumption) ConsumesLots() bool { return true }

func (FIFOConsumption) Price(_ domain.ItemTotals, openLots []domain.InventoryEntry, qty int) ([]domain.CostLine, decimal.Decimal, error) {
	alloc := Allocate(openLots, qty)
	breakdown := make([]domain.CostLine, 0, len(alloc.Lines))
	for _, line := range alloc.Lines {
		breakdown = append(breakdown, domain.CostLine{
			LotID:    line.LotID,
			UnitCost: line.UnitCost,
			QtyUsed:  line.QtyUsed,
		})
	}
	return breakdown, alloc.TotalCost, nil
}

// Allocation is the result of walking lots oldest-first for a
// requested quantity.
type Allocation struct {
	Lines     []domain.SimulationLine
	TotalCost decimal.Decimal
	Consumed  int
	Available int
	Short     bool
}

// Allocate walks lots in the given order and takes units from each
// lot's remaining quantity until qty is covered. Callers pass lots
// already sorted oldest first. Closed lots contribute nothing.
func Allocate(lots []domain.InventoryEntry, qty int) Allocation {
	alloc := Allocation{TotalCost: decimal.Zero}
	for _, lot := range lots {
		alloc.Available += lot.RemainingQty
	}

	need := qty
	for _, lot := range lots {
		if need <= 0 {
			break
		}
		if lot.RemainingQty <= 0 {
			continue
		}
		take := lot.RemainingQty
		if take > need {
			take = need
		}
		cost := lot.UnitCost.Mul(decimal.NewFromInt(int64(take)))
		alloc.Lines = append(alloc.Lines, domain.SimulationLine{
			LotID:            lot.ID,
			BoughtAt:         lot.BoughtAt,
			UnitCost:         lot.UnitCost,
			QtyUsed:          take,
			CostContribution: cost,
		})
		alloc.TotalCost = alloc.TotalCost.Add(cost)
		alloc.Consumed += take
		need -= take
	}
	alloc.Short = alloc.Consumed < qty
	return alloc
}

// Totals folds an item's full purchase and sale history into lifetime
// aggregates. It is a pure function of its inputs; callers recompute
// rather than cache.
func Totals(itemID string, lots []domain.InventoryEntry, sales []domain.Sale) domain.ItemTotals {
	totals := domain.ItemTotals{
		ItemID:        itemID,
		PurchasedCost: decimal.Zero,
		AvgCost:       decimal.Zero,
	}

	currencies := map[domain.Currency]struct{}{}
	for _, lot := range lots {
		totals.PurchasedQty += lot.QuantityBought
		totals.PurchasedCost = totals.PurchasedCost.Add(
			lot.UnitCost.Mul(decimal.NewFromInt(int64(lot.QuantityBought))))
		currencies[lot.Currency] = struct{}{}
		// Currency follows the first lot. Mixed-currency histories are
		// flagged, never converted.
		if totals.Currency == "" {
			totals.Currency = lot.Currency
		}
	}
	for _, sale := range sales {
		totals.SoldQty += sale.QuantitySold
	}
	totals.RemainingQty = totals.PurchasedQty - totals.SoldQty

	if totals.PurchasedQty > 0 {
		totals.AvgCost = totals.PurchasedCost.Div(decimal.NewFromInt(int64(totals.PurchasedQty)))
	}
	totals.MixedCurrency = len(currencies) > 1
	return totals
}

// Profit folds an item's full history into a lifetime profit summary.
// Cost is the lifetime purchase cost of everything bought, not the
// cost of what was sold, so profit dips while stock sits unsold and
// recovers as it moves. When purchases and sales span more than one
// currency the sums are not comparable and the summary is marked
// undefined.
func Profit(itemID string, lots []domain.InventoryEntry, sales []domain.Sale) domain.ProfitSummary {
	summary := domain.ProfitSummary{
		ItemID:  itemID,
		Revenue: decimal.Zero,
		Cost:    decimal.Zero,
		Profit:  decimal.Zero,
	}

	currencies := map[domain.Currency]struct{}{}
	for _, lot := range lots {
		summary.Cost = summary.Cost.Add(
			lot.UnitCost.Mul(decimal.NewFromInt(int64(lot.QuantityBought))))
		currencies[lot.Currency] = struct{}{}
	}
	for _, sale := range sales {
		summary.Revenue = summary.Revenue.Add(sale.AmountGained)
		currencies[sale.Currency] = struct{}{}
	}
	summary.Profit = summary.Revenue.Sub(summary.Cost)

	if len(currencies) > 1 {
		return summary
	}
	summary.ProfitDefined = true
	for c := range currencies {
		summary.Currency = c
	}
	if summary.Revenue.IsPositive() {
		summary.MarginPct = summary.Profit.Div(summary.Revenue).Mul(decimal.NewFromInt(100))
	}
	return summary
}
