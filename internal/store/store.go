package store

import (
	"context"
	"errors"
	"fmt"

	"growledger/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrValidation        = errors.New("validation failed")
	ErrProtectedCategory = errors.New("protected category")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError carries the quantity that was actually
// available when a sale was rejected. It matches ErrInsufficientStock
// under errors.Is so handlers can branch without unwrapping.
type InsufficientStockError struct {
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available", e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Repository persists the four owner-scoped record sets. Every call
// takes an explicit owner id; implementations never read an ambient
// identity.
type Repository interface {
	ListCategories(ctx context.Context, ownerID string) ([]domain.Category, error)
	CreateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	GetCategory(ctx context.Context, ownerID string, categoryID string) (*domain.Category, error)
	UpdateCategory(ctx context.Context, category domain.Category) (*domain.Category, error)
	DeleteCategory(ctx context.Context, ownerID string, categoryID string) error
	DefaultCategory(ctx context.Context, ownerID string) (*domain.Category, error)

	ListItems(ctx context.Context, ownerID string) ([]domain.Item, error)
	CreateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	GetItem(ctx context.Context, ownerID string, itemID string) (*domain.Item, error)
	UpdateItem(ctx context.Context, item domain.Item) (*domain.Item, error)
	DeleteItem(ctx context.Context, ownerID string, itemID string) error

	CreateLot(ctx context.Context, lot domain.InventoryEntry) (*domain.InventoryEntry, error)
	GetLot(ctx context.Context, ownerID string, lotID string) (*domain.InventoryEntry, error)
	UpdateLot(ctx context.Context, lot domain.InventoryEntry) (*domain.InventoryEntry, error)
	DeleteLot(ctx context.Context, ownerID string, lotID string) error
	ListLotsForItem(ctx context.Context, ownerID string, itemID string) ([]domain.InventoryEntry, error)
	ConsumeLots(ctx context.Context, ownerID string, uses []domain.CostLine) error

	// CreateSale applies the remaining-quantity gate and the insert as
	// one atomic step: remaining is recomputed from lots and sales
	// inside the same critical section or transaction, and the insert
	// fails with *InsufficientStockError when the gate does not hold.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, ownerID string, saleID string) (*domain.Sale, error)
	UpdateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	DeleteSale(ctx context.Context, ownerID string, saleID string) error
	ListSalesForItem(ctx context.Context, ownerID string, itemID string) ([]domain.Sale, error)
	ListSales(ctx context.Context, ownerID string) ([]domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, ownerID string, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
