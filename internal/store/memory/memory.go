package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"growledger/backend/internal/domain"
	"growledger/backend/internal/store"
	"growledger/backend/internal/xid"
)

type Store struct {
	mu         sync.RWMutex
	categories map[string]map[string]domain.Category
	items      map[string]map[string]domain.Item
	lots       map[string]map[string]domain.InventoryEntry
	lotSeq     map[string]int
	nextLotSeq int
	sales      map[string]map[string]domain.Sale
	auditLogs  []domain.AuditLog
	users      map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		categories: make(map[string]map[string]domain.Category),
		items:      make(map[string]map[string]domain.Item),
		lots:       make(map[string]map[string]domain.InventoryEntry),
		lotSeq:     make(map[string]int),
		sales:      make(map[string]map[string]domain.Sale),
		auditLogs:  make([]domain.AuditLog, 0, 128),
		users:      make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the initial in-memory accounts for dev/demo mode.
// Credentials come from SEED_ADMIN_PASSWORD and SEED_DEMO_PASSWORD.
// If unset, hardcoded dev defaults are used with a warning. These
// credentials are never used in production (the backend uses
// PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	demoPwd := envOr("SEED_DEMO_PASSWORD", "demo123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_DEMO_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_DEMO_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"demo", demoPwd, domain.RoleUser},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	s := New()
	s.users = seedUsers()

	owner := "demo"
	s.mu.Lock()
	s.ensureOwnerLocked(owner)

	wings := domain.Category{ID: xid.New("cat"), OwnerID: owner, Name: "Wings", CreatedAt: time.Now().UTC()}
	farm := domain.Category{ID: xid.New("cat"), OwnerID: owner, Name: "Farmables", CreatedAt: time.Now().UTC()}
	s.categories[owner][wings.ID] = wings
	s.categories[owner][farm.ID] = farm

	items := []domain.Item{
		{ID: xid.New("item"), OwnerID: owner, Name: "Phoenix Wings", DefaultCategoryID: wings.ID, CreatedAt: time.Now().UTC()},
		{ID: xid.New("item"), OwnerID: owner, Name: "Angel Wings", DefaultCategoryID: wings.ID, CreatedAt: time.Now().UTC()},
		{ID: xid.New("item"), OwnerID: owner, Name: "Chandelier Seed", DefaultCategoryID: farm.ID, CreatedAt: time.Now().UTC()},
		{ID: xid.New("item"), OwnerID: owner, Name: "Laser Grid Seed", DefaultCategoryID: farm.ID, CreatedAt: time.Now().UTC()},
	}
	for _, item := range items {
		s.items[owner][item.ID] = item
	}

	boughtAt := time.Now().UTC().Add(-72 * time.Hour)
	seedLots := []struct {
		item     domain.Item
		qty      int
		unitCost string
		currency domain.Currency
	}{
		{items[0], 3, "42.50", domain.CurrencyDL},
		{items[2], 200, "1.50", domain.CurrencyWL},
		{items[2], 100, "2.00", domain.CurrencyWL},
		{items[3], 150, "0.75", domain.CurrencyWL},
	}
	for i, seed := range seedLots {
		lot := domain.InventoryEntry{
			ID:                 xid.New("lot"),
			OwnerID:            owner,
			ItemID:             seed.item.ID,
			SnapshotName:       seed.item.Name,
			SnapshotCategoryID: seed.item.DefaultCategoryID,
			QuantityBought:     seed.qty,
			UnitCost:           decimal.RequireFromString(seed.unitCost),
			Currency:           seed.currency,
			BoughtAt:           boughtAt.Add(time.Duration(i) * time.Hour),
			RemainingQty:       seed.qty,
			Status:             domain.LotStatusOpen,
			CreatedAt:          time.Now().UTC(),
		}
		s.lots[owner][lot.ID] = lot
		s.nextLotSeq++
		s.lotSeq[lot.ID] = s.nextLotSeq
	}
	s.mu.Unlock()

	return s
}

// ensureOwnerLocked initializes the per-owner record sets and seeds
// the protected fallback category. Callers must hold the write lock.
func (s *Store) ensureOwnerLocked(ownerID string) {
	if _, ok := s.categories[ownerID]; !ok {
		s.categories[ownerID] = make(map[string]domain.Category)
		other := domain.Category{
			ID:        xid.New("cat"),
			OwnerID:   ownerID,
			Name:      domain.DefaultCategoryName,
			Protected: true,
			CreatedAt: time.Now().UTC(),
		}
		s.categories[ownerID][other.ID] = other
	}
	if _, ok := s.items[ownerID]; !ok {
		s.items[ownerID] = make(map[string]domain.Item)
	}
	if _, ok := s.lots[ownerID]; !ok {
		s.lots[ownerID] = make(map[string]domain.InventoryEntry)
	}
	if _, ok := s.sales[ownerID]; !ok {
		s.sales[ownerID] = make(map[string]domain.Sale)
	}
}

func (s *Store) defaultCategoryLocked(ownerID string) domain.Category {
	for _, cat := range s.categories[ownerID] {
		if cat.Protected {
			return cat
		}
	}
	// ensureOwnerLocked guarantees the protected category exists.
	other := domain.Category{
		ID:        xid.New("cat"),
		OwnerID:   ownerID,
		Name:      domain.DefaultCategoryName,
		Protected: true,
		CreatedAt: time.Now().UTC(),
	}
	s.categories[ownerID][other.ID] = other
	return other
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	result := make([]domain.Category, 0, len(s.categories[ownerID]))
	for _, cat := range s.categories[ownerID] {
		result = append(result, cat)
	}
	slices.SortFunc(result, func(a, b domain.Category) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return result, nil
}

func (s *Store) CreateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.OwnerID == "" || category.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(category.OwnerID)

	for _, existing := range s.categories[category.OwnerID] {
		if strings.EqualFold(existing.Name, category.Name) {
			return nil, fmt.Errorf("%w: category name %q already in use", store.ErrValidation, category.Name)
		}
	}

	if category.ID == "" {
		category.ID = xid.New("cat")
	}
	if category.CreatedAt.IsZero() {
		category.CreatedAt = time.Now().UTC()
	}
	category.Protected = false
	s.categories[category.OwnerID][category.ID] = category
	created := category
	return &created, nil
}

func (s *Store) GetCategory(_ context.Context, ownerID string, categoryID string) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	cat, ok := s.categories[ownerID][categoryID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyCat := cat
	return &copyCat, nil
}

func (s *Store) UpdateCategory(_ context.Context, category domain.Category) (*domain.Category, error) {
	category.Name = strings.TrimSpace(category.Name)
	if category.OwnerID == "" || category.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(category.OwnerID)

	existing, ok := s.categories[category.OwnerID][category.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if existing.Protected {
		return nil, store.ErrProtectedCategory
	}
	for id, other := range s.categories[category.OwnerID] {
		if id != category.ID && strings.EqualFold(other.Name, category.Name) {
			return nil, fmt.Errorf("%w: category name %q already in use", store.ErrValidation, category.Name)
		}
	}

	existing.Name = category.Name
	s.categories[category.OwnerID][category.ID] = existing
	updated := existing
	return &updated, nil
}

// DeleteCategory removes the category and repoints every item that
// used it as default to the owner's protected fallback. Lot snapshot
// categories are point-in-time records and stay as written.
func (s *Store) DeleteCategory(_ context.Context, ownerID string, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	cat, ok := s.categories[ownerID][categoryID]
	if !ok {
		return store.ErrNotFound
	}
	if cat.Protected {
		return store.ErrProtectedCategory
	}

	fallback := s.defaultCategoryLocked(ownerID)
	for id, item := range s.items[ownerID] {
		if item.DefaultCategoryID == categoryID {
			item.DefaultCategoryID = fallback.ID
			s.items[ownerID][id] = item
		}
	}
	delete(s.categories[ownerID], categoryID)
	return nil
}

func (s *Store) DefaultCategory(_ context.Context, ownerID string) (*domain.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	cat := s.defaultCategoryLocked(ownerID)
	copyCat := cat
	return &copyCat, nil
}

func (s *Store) ListItems(_ context.Context, ownerID string) ([]domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	result := make([]domain.Item, 0, len(s.items[ownerID]))
	for _, item := range s.items[ownerID] {
		result = append(result, item)
	}
	slices.SortFunc(result, func(a, b domain.Item) int {
		return cmpString(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return result, nil
}

func (s *Store) CreateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.OwnerID == "" || item.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(item.OwnerID)

	for _, existing := range s.items[item.OwnerID] {
		if strings.EqualFold(existing.Name, item.Name) {
			return nil, fmt.Errorf("%w: item name %q already in use", store.ErrValidation, item.Name)
		}
	}
	if item.DefaultCategoryID == "" {
		item.DefaultCategoryID = s.defaultCategoryLocked(item.OwnerID).ID
	} else if _, ok := s.categories[item.OwnerID][item.DefaultCategoryID]; !ok {
		return nil, store.ErrNotFound
	}

	if item.ID == "" {
		item.ID = xid.New("item")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now().UTC()
	}
	s.items[item.OwnerID][item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) GetItem(_ context.Context, ownerID string, itemID string) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	item, ok := s.items[ownerID][itemID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) UpdateItem(_ context.Context, item domain.Item) (*domain.Item, error) {
	item.Name = strings.TrimSpace(item.Name)
	if item.OwnerID == "" || item.Name == "" {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(item.OwnerID)

	if _, ok := s.items[item.OwnerID][item.ID]; !ok {
		return nil, store.ErrNotFound
	}
	for id, other := range s.items[item.OwnerID] {
		if id != item.ID && strings.EqualFold(other.Name, item.Name) {
			return nil, fmt.Errorf("%w: item name %q already in use", store.ErrValidation, item.Name)
		}
	}
	if _, ok := s.categories[item.OwnerID][item.DefaultCategoryID]; !ok {
		return nil, store.ErrNotFound
	}

	s.items[item.OwnerID][item.ID] = item
	updated := item
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, ownerID string, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	if _, ok := s.items[ownerID][itemID]; !ok {
		return store.ErrNotFound
	}
	delete(s.items[ownerID], itemID)
	return nil
}

func (s *Store) CreateLot(_ context.Context, lot domain.InventoryEntry) (*domain.InventoryEntry, error) {
	if lot.OwnerID == "" || lot.ItemID == "" || lot.QuantityBought < 1 || lot.UnitCost.IsNegative() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(lot.OwnerID)

	if _, ok := s.items[lot.OwnerID][lot.ItemID]; !ok {
		return nil, store.ErrNotFound
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

	s.lots[lot.OwnerID][lot.ID] = lot
	s.nextLotSeq++
	s.lotSeq[lot.ID] = s.nextLotSeq
	created := lot
	return &created, nil
}

func (s *Store) GetLot(_ context.Context, ownerID string, lotID string) (*domain.InventoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	lot, ok := s.lots[ownerID][lotID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copyLot := lot
	return &copyLot, nil
}

// UpdateLot replaces the stored lot wholesale. The caller decides the
// remaining-quantity reset; the insertion sequence used for FIFO
// tie-breaking is preserved.
func (s *Store) UpdateLot(_ context.Context, lot domain.InventoryEntry) (*domain.InventoryEntry, error) {
	if lot.OwnerID == "" || lot.QuantityBought < 1 || lot.UnitCost.IsNegative() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(lot.OwnerID)

	if _, ok := s.lots[lot.OwnerID][lot.ID]; !ok {
		return nil, store.ErrNotFound
	}
	lot.Status = domain.LotStatus(lot.RemainingQty)
	s.lots[lot.OwnerID][lot.ID] = lot
	updated := lot
	return &updated, nil
}

// DeleteLot is a hard delete. Sales referencing the lot in their cost
// breakdown are left alone; their stored profit stays frozen.
func (s *Store) DeleteLot(_ context.Context, ownerID string, lotID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	if _, ok := s.lots[ownerID][lotID]; !ok {
		return store.ErrNotFound
	}
	delete(s.lots[ownerID], lotID)
	delete(s.lotSeq, lotID)
	return nil
}

func (s *Store) ListLotsForItem(_ context.Context, ownerID string, itemID string) ([]domain.InventoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	result := make([]domain.InventoryEntry, 0, 16)
	for _, lot := range s.lots[ownerID] {
		if lot.ItemID != itemID {
			continue
		}
		result = append(result, lot)
	}
	slices.SortFunc(result, func(a, b domain.InventoryEntry) int {
		if a.BoughtAt.Before(b.BoughtAt) {
			return -1
		}
		if a.BoughtAt.After(b.BoughtAt) {
			return 1
		}
		return s.lotSeq[a.ID] - s.lotSeq[b.ID]
	})
	return result, nil
}

func (s *Store) ConsumeLots(_ context.Context, ownerID string, uses []domain.CostLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	// Resolve every line before touching any lot, so a missing lot
	// leaves the others undecremented.
	staged := make(map[string]domain.InventoryEntry, len(uses))
	for _, use := range uses {
		if use.LotID == domain.CostBasisLifetimeAverage {
			continue
		}
		lot, ok := staged[use.LotID]
		if !ok {
			lot, ok = s.lots[ownerID][use.LotID]
			if !ok {
				return store.ErrNotFound
			}
		}
		lot.RemainingQty -= use.QtyUsed
		if lot.RemainingQty < 0 {
			lot.RemainingQty = 0
		}
		lot.Status = domain.LotStatus(lot.RemainingQty)
		staged[use.LotID] = lot
	}
	for id, lot := range staged {
		s.lots[ownerID][id] = lot
	}
	return nil
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.OwnerID == "" || sale.ItemID == "" || sale.QuantitySold < 1 || !sale.AmountGained.IsPositive() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(sale.OwnerID)

	if _, ok := s.items[sale.OwnerID][sale.ItemID]; !ok {
		return nil, store.ErrNotFound
	}

	// The stock gate and the insert share this critical section, so two
	// concurrent sales cannot both pass the check and oversell.
	purchased := 0
	for _, lot := range s.lots[sale.OwnerID] {
		if lot.ItemID == sale.ItemID {
			purchased += lot.QuantityBought
		}
	}
	sold := 0
	for _, existing := range s.sales[sale.OwnerID] {
		if existing.ItemID == sale.ItemID {
			sold += existing.QuantitySold
		}
	}
	// Items with no purchase history at all accept sales at zero cost;
	// the gate only guards items that have lots to sell from.
	remaining := purchased - sold
	if purchased > 0 && sale.QuantitySold > remaining {
		return nil, &store.InsufficientStockError{Available: remaining}
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

	s.sales[sale.OwnerID][sale.ID] = cloneSale(sale)
	created := cloneSale(sale)
	return &created, nil
}

func (s *Store) GetSale(_ context.Context, ownerID string, saleID string) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	sale, ok := s.sales[ownerID][saleID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copySale := cloneSale(sale)
	return &copySale, nil
}

func (s *Store) UpdateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	if sale.OwnerID == "" || sale.QuantitySold < 1 || !sale.AmountGained.IsPositive() {
		return nil, store.ErrValidation
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(sale.OwnerID)

	if _, ok := s.sales[sale.OwnerID][sale.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.sales[sale.OwnerID][sale.ID] = cloneSale(sale)
	updated := cloneSale(sale)
	return &updated, nil
}

func (s *Store) DeleteSale(_ context.Context, ownerID string, saleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	if _, ok := s.sales[ownerID][saleID]; !ok {
		return store.ErrNotFound
	}
	delete(s.sales[ownerID], saleID)
	return nil
}

func (s *Store) ListSalesForItem(_ context.Context, ownerID string, itemID string) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	result := make([]domain.Sale, 0, 16)
	for _, sale := range s.sales[ownerID] {
		if sale.ItemID != itemID {
			continue
		}
		result = append(result, cloneSale(sale))
	}
	sortSales(result)
	return result, nil
}

func (s *Store) ListSales(_ context.Context, ownerID string) ([]domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureOwnerLocked(ownerID)

	result := make([]domain.Sale, 0, len(s.sales[ownerID]))
	for _, sale := range s.sales[ownerID] {
		result = append(result, cloneSale(sale))
	}
	sortSales(result)
	return result, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, ownerID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if ownerID != "" && entry.OwnerID != ownerID {
			continue
		}
		result = append(result, entry)
	}
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrValidation
	}
	if _, exists := s.users[username]; exists {
		return fmt.Errorf("%w: username %q already in use", store.ErrValidation, username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleUser
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.users[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrValidation
	}
	user, exists := s.users[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.users[username] = user
	return nil
}

func sortSales(sales []domain.Sale) {
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.SoldAt.Equal(b.SoldAt) {
			return cmpString(a.ID, b.ID)
		}
		if a.SoldAt.Before(b.SoldAt) {
			return -1
		}
		return 1
	})
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src domain.Sale) domain.Sale {
	dup := src
	breakdown := make([]domain.CostLine, len(src.CostBreakdown))
	copy(breakdown, src.CostBreakdown)
	dup.CostBreakdown = breakdown
	return dup
}
