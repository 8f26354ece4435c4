package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Category struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	Protected bool      `json:"protected"`
	CreatedAt time.Time `json:"created_at"`
}

type CategoryCreateRequest struct {
	Name string `json:"name"`
}

type CategoryUpdateRequest struct {
	Name *string `json:"name,omitempty"`
}

type Item struct {
	ID                string    `json:"id"`
	OwnerID           string    `json:"owner_id"`
	Name              string    `json:"name"`
	DefaultCategoryID string    `json:"default_category_id"`
	ImageURL          string    `json:"image_url,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

type ItemCreateRequest struct {
	Name              string `json:"name"`
	DefaultCategoryID string `json:"default_category_id"`
	ImageURL          string `json:"image_url,omitempty"`
}

type ItemUpdateRequest struct {
	Name              *string `json:"name,omitempty"`
	DefaultCategoryID *string `json:"default_category_id,omitempty"`
	ImageURL          *string `json:"image_url,omitempty"`
}

// InventoryEntry is a single purchase lot. SnapshotName and
// SnapshotCategoryID capture the item as it looked when the lot was
// bought and never follow later catalog edits.
type InventoryEntry struct {
	ID                 string          `json:"id"`
	OwnerID            string          `json:"owner_id"`
	ItemID             string          `json:"item_id"`
	SnapshotName       string          `json:"snapshot_name"`
	SnapshotCategoryID string          `json:"snapshot_category_id"`
	QuantityBought     int             `json:"quantity_bought"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
	Currency           Currency        `json:"currency_unit"`
	BoughtAt           time.Time       `json:"bought_at"`
	RemainingQty       int             `json:"remaining_qty"`
	Status             string          `json:"status"`
	Notes              string          `json:"notes,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
}

type LotCreateRequest struct {
	ItemID   string          `json:"item_id"`
	Qty      int             `json:"qty"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Currency string          `json:"currency_unit"`
	BoughtAt *time.Time      `json:"bought_at,omitempty"`
	Notes    string          `json:"notes,omitempty"`
}

type LotUpdateRequest struct {
	Qty      *int             `json:"qty,omitempty"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
	BoughtAt *time.Time       `json:"bought_at,omitempty"`
	Notes    *string          `json:"notes,omitempty"`
}

type LotListResponse struct {
	Lots []InventoryEntry `json:"lots"`
}

// CostLine is one row of a sale's cost breakdown. LotID is either a
// real lot id or the CostBasisLifetimeAverage marker.
type CostLine struct {
	LotID    string          `json:"lot_id"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	QtyUsed  int             `json:"qty_used"`
}

// CostBasisLifetimeAverage marks a synthetic breakdown line priced by
// the blended lifetime-average unit cost rather than a concrete lot.
const CostBasisLifetimeAverage = "lifetime-average"

type Sale struct {
	ID            string          `json:"id"`
	OwnerID       string          `json:"owner_id"`
	ItemID        string          `json:"item_id"`
	QuantitySold  int             `json:"quantity_sold"`
	AmountGained  decimal.Decimal `json:"amount_gained"`
	Currency      Currency        `json:"currency_unit"`
	CostBreakdown []CostLine      `json:"cost_breakdown"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	Profit        decimal.Decimal `json:"profit"`
	SoldAt        time.Time       `json:"sold_at"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type SaleCreateRequest struct {
	ItemID       string          `json:"item_id"`
	Qty          int             `json:"qty"`
	AmountGained decimal.Decimal `json:"amount_gained"`
	Currency     string          `json:"currency_unit"`
	SoldAt       *time.Time      `json:"sold_at,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type SaleUpdateRequest struct {
	Qty          *int             `json:"qty,omitempty"`
	AmountGained *decimal.Decimal `json:"amount_gained,omitempty"`
	Currency     *string          `json:"currency_unit,omitempty"`
	SoldAt       *time.Time       `json:"sold_at,omitempty"`
	Notes        *string          `json:"notes,omitempty"`
}

type SaleListResponse struct {
	Sales []Sale `json:"sales"`
}

// ItemTotals is recomputed from lots and sales on every read and is
// never cached.
type ItemTotals struct {
	ItemID        string          `json:"item_id"`
	PurchasedQty  int             `json:"purchased_qty"`
	PurchasedCost decimal.Decimal `json:"purchased_cost"`
	SoldQty       int             `json:"sold_qty"`
	RemainingQty  int             `json:"remaining_qty"`
	AvgCost       decimal.Decimal `json:"avg_cost"`
	Currency      Currency        `json:"currency_unit"`
	MixedCurrency bool            `json:"mixed_currency"`
}

type ProfitSummary struct {
	ItemID        string          `json:"item_id"`
	Revenue       decimal.Decimal `json:"revenue"`
	Cost          decimal.Decimal `json:"cost"`
	Profit        decimal.Decimal `json:"profit"`
	MarginPct     decimal.Decimal `json:"margin_pct"`
	Currency      Currency        `json:"currency_unit"`
	ProfitDefined bool            `json:"profit_defined"`
}

type SimulateRequest struct {
	Qty           int             `json:"qty"`
	SellUnitPrice decimal.Decimal `json:"sell_unit_price"`
}

type SimulationLine struct {
	LotID            string          `json:"lot_id"`
	BoughtAt         time.Time       `json:"bought_at"`
	UnitCost         decimal.Decimal `json:"unit_cost"`
	QtyUsed          int             `json:"qty_used"`
	CostContribution decimal.Decimal `json:"cost_contribution"`
}

// SimulationResult is a pure projection. Insufficient is a normal
// outcome, not an error: the caller gets Available echoed back with
// zero cost and profit.
type SimulationResult struct {
	ItemID           string           `json:"item_id"`
	Available        int              `json:"available"`
	SimulateQty      int              `json:"simulate_qty"`
	SellUnitPrice    decimal.Decimal  `json:"sell_unit_price"`
	ProjectedRevenue decimal.Decimal  `json:"projected_revenue"`
	SimulatedCOGS    decimal.Decimal  `json:"simulated_cogs"`
	ProjectedProfit  decimal.Decimal  `json:"projected_profit"`
	Insufficient     bool             `json:"insufficient"`
	Breakdown        []SimulationLine `json:"breakdown"`
}

type ImportReport struct {
	Rows     int      `json:"rows"`
	Imported int      `json:"imported"`
	Coerced  int      `json:"coerced"`
	Errors   []string `json:"errors,omitempty"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type User struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}

const (
	LotStatusOpen   = "open"
	LotStatusClosed = "closed"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultCategoryName is the protected fallback category every owner
// has. It cannot be renamed or deleted, and absorbs items whose
// category is removed.
const DefaultCategoryName = "Other"

// LotStatus derives the lifecycle state from the remaining quantity.
func LotStatus(remainingQty int) string {
	if remainingQty > 0 {
		return LotStatusOpen
	}
	return LotStatusClosed
}
