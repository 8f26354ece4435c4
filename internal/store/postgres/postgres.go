package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"growledger/backend/internal/domain"
	"growledger/backend/internal/store"
	"growledger/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error) {
	if err := s.ensureDefaultCategory(ctx, ownerID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, protected, created_at
		FROM categories
		WHERE owner_id = $1
		ORDER BY lower(name)`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Category, 0, 16)
	for rows.Next() {
		var cat domain.Category
		if err := rows.Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.Protected, &cat.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, cat)
	}
	return result, rows.Err()
}

func (s *Store) CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.OwnerID == "" || category.Name == "" {
		return nil, store.ErrValidation
	}
	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, protected, created_at)
		VALUES ($1, $2, $3, FALSE, $4)`,
		category.ID, category.OwnerID, category.Name, category.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category name %q already in use", store.ErrValidation, category.Name)
		}
		return nil, err
	}
	category.Protected = false
	return &category, nil
}

func (s *Store) GetCategory(ctx context.Context, ownerID string, categoryID string) (*domain.Category, error) {
	var cat domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, protected, created_at
		FROM categories
		WHERE owner_id = $1 AND id = $2`, ownerID, categoryID).
		Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.Protected, &cat.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

func (s *Store) UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.OwnerID == "" || category.Name == "" {
		return nil, store.ErrValidation
	}

	existing, err := s.GetCategory(ctx, category.OwnerID, category.ID)
	if err != nil {
		return nil, err
	}
	if existing.Protected {
		return nil, store.ErrProtectedCategory
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE categories SET name = $1
		WHERE owner_id = $2 AND id = $3`,
		category.Name, category.OwnerID, category.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: category name %q already in use", store.ErrValidation, category.Name)
		}
		return nil, err
	}
	existing.Name = category.Name
	return existing, nil
}

func (s *Store) DeleteCategory(ctx context.Context, ownerID string, categoryID string) error {
	existing, err := s.GetCategory(ctx, ownerID, categoryID)
	if err != nil {
		return err
	}
	if existing.Protected {
		return store.ErrProtectedCategory
	}
	fallback, err := s.DefaultCategory(ctx, ownerID)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET default_category_id = $1
		WHERE owner_id = $2 AND default_category_id = $3`,
		fallback.ID, ownerID, categoryID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		DELETE FROM categories WHERE owner_id = $1 AND id = $2`, ownerID, categoryID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return tx.Commit()
}

func (s *Store) DefaultCategory(ctx context.Context, ownerID string) (*domain.Category, error) {
	if err := s.ensureDefaultCategory(ctx, ownerID); err != nil {
		return nil, err
	}
	var cat domain.Category
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, protected, created_at
		FROM categories
		WHERE owner_id = $1 AND protected = TRUE
		LIMIT 1`, ownerID).
		Scan(&cat.ID, &cat.OwnerID, &cat.Name, &cat.Protected, &cat.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &cat, nil
}

// ensureDefaultCategory seeds the protected fallback category for an
// owner on first touch. The partial unique index on (owner_id) WHERE
// protected makes the insert race-safe.
func (s *Store) ensureDefaultCategory(ctx context.Context, ownerID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (id, owner_id, name, protected, created_at)
		VALUES ($1, $2, $3, TRUE, $4)
		ON CONFLICT DO NOTHING`,
		xid.New("cat"), ownerID, domain.DefaultCategoryName, time.Now().UTC())
	if isUniqueViolation(err) {
		return nil
	}
	return err
}

func (s *Store) ListItems(ctx context.Context, ownerID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, default_category_id, COALESCE(image_url, ''), created_at
		FROM items
		WHERE owner_id = $1
		ORDER BY lower(name)`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Item, 0, 32)
	for rows.Next() {
		var item domain.Item
		if err := rows.Scan(&item.ID, &item.OwnerID, &item.Name, &item.DefaultCategoryID, &item.ImageURL, &item.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	return result, rows.Err()
}

func (s *Store) CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.OwnerID == "" || item.Name == "" {
		return nil, store.ErrValidation
	}
	if item.DefaultCategoryID == "" {
		fallback, err := s.DefaultCategory(ctx, item.OwnerID)
		if err != nil {
			return nil, err
		}
		item.DefaultCategoryID = fallback.ID
	} else if _, err := s.GetCategory(ctx, item.OwnerID, item.DefaultCategoryID); err != nil {
		return nil, err
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, owner_id, name, default_category_id, image_url, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.OwnerID, item.Name, item.DefaultCategoryID, nullIfEmpty(item.ImageURL), item.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: item name %q already in use", store.ErrValidation, item.Name)
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItem(ctx context.Context, ownerID string, itemID string) (*domain.Item, error) {
	var item domain.Item
	err := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, name, default_category_id, COALESCE(image_url, ''), created_at
		FROM items
		WHERE owner_id = $1 AND id = $2`, ownerID, itemID).
		Scan(&item.ID, &item.OwnerID, &item.Name, &item.DefaultCategoryID, &item.ImageURL, &item.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.OwnerID == "" || item.Name == "" {
		return nil, store.ErrValidation
	}
	if _, err := s.GetCategory(ctx, item.OwnerID, item.DefaultCategoryID); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE items SET name = $1, default_category_id = $2, image_url = $3
		WHERE owner_id = $4 AND id = $5`,
		item.Name, item.DefaultCategoryID, nullIfEmpty(item.ImageURL), item.OwnerID, item.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: item name %q already in use", store.ErrValidation, item.Name)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &item, nil
}

func (s *Store) DeleteItem(ctx context.Context, ownerID string, itemID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE owner_id = $1 AND id = $2`, ownerID, itemID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const lotColumns = `id, owner_id, item_id, snapshot_name, snapshot_category_id,
	quantity_bought, unit_cost, currency, bought_at, remaining_qty, status,
	COALESCE(notes, ''), created_at`

func scanLot(row interface{ Scan(dest ...any) error }) (domain.InventoryEntry, error) {
	var lot domain.InventoryEntry
	var currency string
	err := row.Scan(&lot.ID, &lot.OwnerID, &lot.ItemID, &lot.SnapshotName, &lot.SnapshotCategoryID,
		&lot.QuantityBought, &lot.UnitCost, &currency, &lot.BoughtAt, &lot.RemainingQty, &lot.Status,
		&lot.Notes, &lot.CreatedAt)
	lot.Currency = domain.Currency(currency)
	return lot, err
}

func (s *Store) CreateLot(ctx context.Context, lot domain.InventoryEntry) (*domain.InventoryEntry, error) {
	if lot.OwnerID == "" || lot.ItemID == "" || lot.QuantityBought < 1 || lot.UnitCost.IsNegative() {
		return nil, store.ErrValidation
	}
	if _, err := s.GetItem(ctx, lot.OwnerID, lot.ItemID); err != nil {
		return nil, err
	}
	if lot.ID == "" {
		lot.ID = xid.New("lot")
	}
	if lot.BoughtAt.IsZero() {
		lot.BoughtAt = time.Now().UTC()
	}
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now().UTC()
	}
	lot.RemainingQty = lot.QuantityBought
	lot.Status = domain.LotStatus(lot.RemainingQty)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lots (id, owner_id, item_id, snapshot_name, snapshot_category_id,
			quantity_bought, unit_cost, currency, bought_at, remaining_qty, status, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		lot.ID, lot.OwnerID, lot.ItemID, lot.SnapshotName, lot.SnapshotCategoryID,
		lot.QuantityBought, lot.UnitCost, string(lot.Currency), lot.BoughtAt,
		lot.RemainingQty, lot.Status, nullIfEmpty(lot.Notes), lot.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (s *Store) GetLot(ctx context.Context, ownerID string, lotID string) (*domain.InventoryEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE owner_id = $1 AND id = $2`, ownerID, lotID)
	lot, err := scanLot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &lot, nil
}

func (s *Store) UpdateLot(ctx context.Context, lot domain.InventoryEntry) (*domain.InventoryEntry, error) {
	if lot.OwnerID == "" || lot.QuantityBought < 1 || lot.UnitCost.IsNegative() {
		return nil, store.ErrValidation
	}
	lot.Status = domain.LotStatus(lot.RemainingQty)

	res, err := s.db.ExecContext(ctx, `
		UPDATE lots SET quantity_bought = $1, unit_cost = $2, bought_at = $3,
			remaining_qty = $4, status = $5, notes = $6
		WHERE owner_id = $7 AND id = $8`,
		lot.QuantityBought, lot.UnitCost, lot.BoughtAt, lot.RemainingQty,
		lot.Status, nullIfEmpty(lot.Notes), lot.OwnerID, lot.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &lot, nil
}

func (s *Store) DeleteLot(ctx context.Context, ownerID string, lotID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM lots WHERE owner_id = $1 AND id = $2`, ownerID, lotID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListLotsForItem(ctx context.Context, ownerID string, itemID string) ([]domain.InventoryEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+lotColumns+`
		FROM lots
		WHERE owner_id = $1 AND item_id = $2
		ORDER BY bought_at, created_at, id`, ownerID, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.InventoryEntry, 0, 16)
	for rows.Next() {
		lot, err := scanLot(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, lot)
	}
	return result, rows.Err()
}

func (s *Store) ConsumeLots(ctx context.Context, ownerID string, uses []domain.CostLine) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, use := range uses {
		if use.LotID == domain.CostBasisLifetimeAverage {
			continue
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE lots
			SET remaining_qty = GREATEST(remaining_qty - $1, 0),
			    status = CASE WHEN GREATEST(remaining_qty - $1, 0) = 0 THEN 'closed' ELSE 'open' END
			WHERE owner_id = $2 AND id = $3`,
			use.QtyUsed, ownerID, use.LotID)
		if err != nil {
			return err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return store.ErrNotFound
		}
	}
	return tx.Commit()
}

// CreateSale runs the stock gate and the insert in one transaction,
// serialized per (owner, item) with an advisory lock so concurrent
// sales of the same item cannot both pass the check.
func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.OwnerID == "" || sale.ItemID == "" || sale.QuantitySold < 1 || !sale.AmountGained.IsPositive() {
		return nil, store.ErrValidation
	}
	if _, err := s.GetItem(ctx, sale.OwnerID, sale.ItemID); err != nil {
		return nil, err
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SoldAt.IsZero() {
		sale.SoldAt = time.Now().UTC()
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	breakdown, err := json.Marshal(sale.CostBreakdown)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1 || ':' || $2, 0))`,
		sale.OwnerID, sale.ItemID); err != nil {
		return nil, err
	}

	var purchased, sold int
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_bought), 0)
		FROM lots WHERE owner_id = $1 AND item_id = $2`,
		sale.OwnerID, sale.ItemID).Scan(&purchased); err != nil {
		return nil, err
	}
	if err := tx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(quantity_sold), 0)
		FROM sales WHERE owner_id = $1 AND item_id = $2`,
		sale.OwnerID, sale.ItemID).Scan(&sold); err != nil {
		return nil, err
	}
	// Items with no purchase history at all accept sales at zero cost;
	// the gate only guards items that have lots to sell from.
	remaining := purchased - sold
	if purchased > 0 && sale.QuantitySold > remaining {
		return nil, &store.InsufficientStockError{Available: remaining}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sales (id, owner_id, item_id, quantity_sold, amount_gained, currency,
			cost_breakdown, total_cost, profit, sold_at, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sale.ID, sale.OwnerID, sale.ItemID, sale.QuantitySold, sale.AmountGained,
		string(sale.Currency), breakdown, sale.TotalCost, sale.Profit, sale.SoldAt,
		nullIfEmpty(sale.Notes), sale.CreatedAt); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &sale, nil
}

const saleColumns = `id, owner_id, item_id, quantity_sold, amount_gained, currency,
	cost_breakdown, total_cost, profit, sold_at, COALESCE(notes, ''), created_at`

func scanSale(row interface{ Scan(dest ...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var currency string
	var breakdown []byte
	err := row.Scan(&sale.ID, &sale.OwnerID, &sale.ItemID, &sale.QuantitySold, &sale.AmountGained,
		&currency, &breakdown, &sale.TotalCost, &sale.Profit, &sale.SoldAt, &sale.Notes, &sale.CreatedAt)
	if err != nil {
		return sale, err
	}
	sale.Currency = domain.Currency(currency)
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &sale.CostBreakdown); err != nil {
			return sale, err
		}
	}
	return sale, nil
}

func (s *Store) GetSale(ctx context.Context, ownerID string, saleID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE owner_id = $1 AND id = $2`, ownerID, saleID)
	sale, err := scanSale(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.OwnerID == "" || sale.QuantitySold < 1 || !sale.AmountGained.IsPositive() {
		return nil, store.ErrValidation
	}
	breakdown, err := json.Marshal(sale.CostBreakdown)
	if err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE sales SET quantity_sold = $1, amount_gained = $2, currency = $3,
			cost_breakdown = $4, total_cost = $5, profit = $6, sold_at = $7, notes = $8
		WHERE owner_id = $9 AND id = $10`,
		sale.QuantitySold, sale.AmountGained, string(sale.Currency), breakdown,
		sale.TotalCost, sale.Profit, sale.SoldAt, nullIfEmpty(sale.Notes),
		sale.OwnerID, sale.ID)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return &sale, nil
}

func (s *Store) DeleteSale(ctx context.Context, ownerID string, saleID string) error {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sales WHERE owner_id = $1 AND id = $2`, ownerID, saleID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListSalesForItem(ctx context.Context, ownerID string, itemID string) ([]domain.Sale, error) {
	return s.listSales(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE owner_id = $1 AND item_id = $2
		ORDER BY sold_at, id`, ownerID, itemID)
}

func (s *Store) ListSales(ctx context.Context, ownerID string) ([]domain.Sale, error) {
	return s.listSales(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE owner_id = $1
		ORDER BY sold_at, id`, ownerID)
}

func (s *Store) listSales(ctx context.Context, query string, args ...any) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sale)
	}
	return result, rows.Err()
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, owner_id, actor_username, actor_role, action,
			entity_type, entity_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.OwnerID, entry.ActorUsername, entry.ActorRole, entry.Action,
		entry.EntityType, nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, ownerID string, limit int) ([]domain.AuditLog, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query := `
		SELECT id, owner_id, actor_username, actor_role, action, entity_type,
			COALESCE(entity_id, ''), COALESCE(detail, ''), created_at
		FROM audit_logs`
	args := []any{}
	if ownerID != "" {
		query += ` WHERE owner_id = $1 ORDER BY created_at DESC LIMIT $2`
		args = append(args, ownerID, limit)
	} else {
		query += ` ORDER BY created_at DESC LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.OwnerID, &entry.ActorUsername, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at)
		VALUES ($1, $2, $3, TRUE, $4)`,
		username, user.Password, user.Role, user.CreatedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q already in use", store.ErrValidation, username)
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, rows.Err()
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET password = $1 WHERE username = $2`, password, username)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if strings.TrimSpace(val) == "" {
		return nil
	}
	return val
}
