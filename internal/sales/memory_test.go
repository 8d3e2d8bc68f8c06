package sales

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

type memProduct struct {
	owner int64
	name  string
	price decimal.Decimal
	stock int
}

// memoryRepo mimics the store: each stock statement is atomic and a failed
// transaction undoes everything it changed.
type memoryRepo struct {
	mu         sync.Mutex
	products   map[int64]*memProduct
	sales      map[int64]Sale
	nextSaleID int64
	failInsert error
}

type memoryTx struct {
	repo *memoryRepo
	undo []func()
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[int64]*memProduct), sales: make(map[int64]Sale)}
}

func (r *memoryRepo) addProduct(id, owner int64, price int64, stock int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id] = &memProduct{owner: owner, name: "produit", price: decimal.NewFromInt(price), stock: stock}
}

func (r *memoryRepo) stock(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.products[id].stock
}

func (r *memoryRepo) setPrice(id int64, price int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[id].price = decimal.NewFromInt(price)
}

func (r *memoryRepo) activeQuantity(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, s := range r.sales {
		if s.ProductID == productID {
			total += s.Quantity
		}
	}
	return total
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		r.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryRepo) ListSales(ctx context.Context, ownerID int64) ([]Sale, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Sale
	for _, s := range r.sales {
		if s.OwnerID == ownerID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (tx *memoryTx) owned(ownerID, productID int64) (*memProduct, error) {
	p, ok := tx.repo.products[productID]
	if !ok || p.owner != ownerID {
		return nil, ErrProductNotFound
	}
	return p, nil
}

func (tx *memoryTx) DebitStock(ctx context.Context, ownerID, productID int64, qty int) (StockLevel, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	p, err := tx.owned(ownerID, productID)
	if err != nil {
		return StockLevel{}, err
	}
	if p.stock < qty {
		return StockLevel{}, ErrInsufficientStock
	}
	p.stock -= qty
	tx.undo = append(tx.undo, func() { p.stock += qty })
	return StockLevel{ProductName: p.name, Price: p.price, Stock: p.stock}, nil
}

func (tx *memoryTx) CreditStock(ctx context.Context, ownerID, productID int64, qty int) (StockLevel, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	p, err := tx.owned(ownerID, productID)
	if err != nil {
		return StockLevel{}, err
	}
	p.stock += qty
	tx.undo = append(tx.undo, func() { p.stock -= qty })
	return StockLevel{ProductName: p.name, Price: p.price, Stock: p.stock}, nil
}

func (tx *memoryTx) ProductStock(ctx context.Context, ownerID, productID int64) (StockLevel, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	p, err := tx.owned(ownerID, productID)
	if err != nil {
		return StockLevel{}, err
	}
	return StockLevel{ProductName: p.name, Price: p.price, Stock: p.stock}, nil
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	if tx.repo.failInsert != nil {
		return Sale{}, tx.repo.failInsert
	}
	tx.repo.nextSaleID++
	sale.ID = tx.repo.nextSaleID
	sale.CreatedAt = time.Now()
	tx.repo.sales[sale.ID] = sale
	id := sale.ID
	tx.undo = append(tx.undo, func() { delete(tx.repo.sales, id) })
	return sale, nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, ownerID, id int64) (Sale, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	s, ok := tx.repo.sales[id]
	if !ok || s.OwnerID != ownerID {
		return Sale{}, ErrSaleNotFound
	}
	return s, nil
}

func (tx *memoryTx) UpdateSale(ctx context.Context, sale Sale) error {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	prev, ok := tx.repo.sales[sale.ID]
	if !ok || prev.OwnerID != sale.OwnerID {
		return ErrSaleNotFound
	}
	tx.repo.sales[sale.ID] = sale
	tx.undo = append(tx.undo, func() { tx.repo.sales[prev.ID] = prev })
	return nil
}

func (tx *memoryTx) DeleteSale(ctx context.Context, ownerID, id int64) (Sale, error) {
	tx.repo.mu.Lock()
	defer tx.repo.mu.Unlock()
	s, ok := tx.repo.sales[id]
	if !ok || s.OwnerID != ownerID {
		return Sale{}, ErrSaleNotFound
	}
	delete(tx.repo.sales, id)
	tx.undo = append(tx.undo, func() { tx.repo.sales[s.ID] = s })
	return s, nil
}

type memoryIdem struct {
	mu   sync.Mutex
	keys map[string]bool
}

func (m *memoryIdem) CheckAndInsert(ctx context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]bool{}
	}
	if m.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	m.keys[key] = true
	return nil
}

func (m *memoryIdem) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

type recordedAudit struct {
	mu   sync.Mutex
	logs []shared.AuditLog
}

func (a *recordedAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logs = append(a.logs, log)
	return nil
}
