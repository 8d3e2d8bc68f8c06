package sales

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ASS429/ma-boutique-backend/internal/events"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

const owner = int64(1)

type capturePublisher struct {
	mu  sync.Mutex
	got []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, evts ...events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, evts...)
	return nil
}

type countingMetrics struct {
	committed atomic.Int64
	rejected  atomic.Int64
}

func (m *countingMetrics) SaleCommitted(string) { m.committed.Add(1) }
func (m *countingMetrics) StockRejected(string) { m.rejected.Add(1) }

func newTestService(repo *memoryRepo, restock bool) *Service {
	return NewService(repo, &memoryIdem{}, nil, nil, nil, ServiceConfig{RestockOnCancel: restock}, nil)
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

func TestConcreteRecordAmendCancel(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 10)
	svc := newTestService(repo, true)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 4, PaymentMethod: "cash"})
	require.NoError(t, err)
	require.Equal(t, 6, res.Stock)
	require.Equal(t, "4000", res.Sale.Total.String())
	require.Equal(t, 6, repo.stock(10))

	res, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{Quantity: intPtr(6)})
	require.NoError(t, err)
	require.Equal(t, 4, res.Stock)
	require.Equal(t, "6000", res.Sale.Total.String())
	require.Equal(t, 4, repo.stock(10))

	res, err = svc.CancelSale(ctx, owner, res.Sale.ID)
	require.NoError(t, err)
	require.True(t, res.Restocked)
	require.Equal(t, 10, repo.stock(10))
	require.Zero(t, repo.activeQuantity(10))
}

func TestRecordSaleRejectsOversell(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 3)
	metrics := &countingMetrics{}
	svc := NewService(repo, nil, nil, nil, metrics, ServiceConfig{RestockOnCancel: true}, nil)

	_, err := svc.RecordSale(context.Background(), owner, RecordInput{ProductID: 10, Quantity: 4, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
	require.Equal(t, 3, repo.stock(10))
	require.Zero(t, repo.activeQuantity(10))
	require.Equal(t, int64(1), metrics.rejected.Load())
	require.Zero(t, metrics.committed.Load())
}

func TestRecordSaleValidatesInput(t *testing.T) {
	svc := newTestService(newMemoryRepo(), true)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, owner, RecordInput{Quantity: 1, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrProductRequired)
	_, err = svc.RecordSale(ctx, owner, RecordInput{ProductID: 1, Quantity: 0, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.RecordSale(ctx, owner, RecordInput{ProductID: 1, Quantity: 1, PaymentMethod: "  "})
	require.ErrorIs(t, err, ErrPaymentMethodRequired)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRecordSaleScopesProductToOwner(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 5)
	svc := newTestService(repo, true)

	_, err := svc.RecordSale(context.Background(), 2, RecordInput{ProductID: 10, Quantity: 1, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrProductNotFound)
	_, err = svc.RecordSale(context.Background(), owner, RecordInput{ProductID: 99, Quantity: 1, PaymentMethod: "cash"})
	require.ErrorIs(t, err, ErrProductNotFound)
	require.Equal(t, 5, repo.stock(10))
}

func TestRecordSaleRollsBackStockWhenInsertFails(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 5)
	repo.failInsert = errors.New("connection reset")
	idem := &memoryIdem{}
	svc := NewService(repo, idem, nil, nil, nil, ServiceConfig{RestockOnCancel: true}, nil)

	_, err := svc.RecordSale(context.Background(), owner, RecordInput{ProductID: 10, Quantity: 2, PaymentMethod: "cash", IdempotencyKey: "k1"})
	require.Error(t, err)
	require.Equal(t, 5, repo.stock(10))
	require.Empty(t, idem.keys, "failed attempt releases its key")
}

func TestRecordSaleIdempotencyKey(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 5)
	svc := newTestService(repo, true)
	ctx := context.Background()

	_, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 1, PaymentMethod: "cash", IdempotencyKey: "abc"})
	require.NoError(t, err)
	_, err = svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 1, PaymentMethod: "cash", IdempotencyKey: "abc"})
	require.ErrorIs(t, err, shared.ErrConflict)
	require.Equal(t, 4, repo.stock(10))

	// Keys are scoped per owner.
	repo.addProduct(20, 2, 1000, 5)
	_, err = svc.RecordSale(ctx, 2, RecordInput{ProductID: 20, Quantity: 1, PaymentMethod: "cash", IdempotencyKey: "abc"})
	require.NoError(t, err)
}

func TestAmendSaleDecreaseReturnsStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 500, 10)
	svc := newTestService(repo, true)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 5, PaymentMethod: "wave"})
	require.NoError(t, err)

	res, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{Quantity: intPtr(2)})
	require.NoError(t, err)
	require.Equal(t, 8, repo.stock(10))
	require.Equal(t, "1000", res.Sale.Total.String())
}

func TestAmendSaleRepricesAtCurrentPrice(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 10)
	svc := newTestService(repo, true)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 2, PaymentMethod: "cash"})
	require.NoError(t, err)
	repo.setPrice(10, 1200)

	// Payment method only: total stays at the price observed at sale time.
	res, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{PaymentMethod: strPtr("orange money")})
	require.NoError(t, err)
	require.Equal(t, "2000", res.Sale.Total.String())
	require.Equal(t, "orange money", res.Sale.PaymentMethod)
	require.Equal(t, 8, repo.stock(10))

	res, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{Quantity: intPtr(3)})
	require.NoError(t, err)
	require.Equal(t, "3600", res.Sale.Total.String())
	require.Equal(t, 7, repo.stock(10))
}

func TestAmendSaleInsufficientStockLeavesSaleUntouched(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 5)
	svc := newTestService(repo, true)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 4, PaymentMethod: "cash"})
	require.NoError(t, err)

	_, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{Quantity: intPtr(6), PaymentMethod: strPtr("wave")})
	require.ErrorIs(t, err, ErrInsufficientStock)
	require.Equal(t, 1, repo.stock(10))

	list, err := svc.ListSales(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 4, list[0].Quantity)
	require.Equal(t, "cash", list[0].PaymentMethod)
}

func TestAmendSaleErrors(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 5)
	svc := newTestService(repo, true)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 1, PaymentMethod: "cash"})
	require.NoError(t, err)

	_, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{})
	require.ErrorIs(t, err, ErrNothingToAmend)
	_, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{Quantity: intPtr(0)})
	require.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = svc.AmendSale(ctx, 2, res.Sale.ID, AmendInput{Quantity: intPtr(2)})
	require.ErrorIs(t, err, ErrSaleNotFound)
	_, err = svc.AmendSale(ctx, owner, 999, AmendInput{Quantity: intPtr(2)})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCancelSaleWithoutRestockPolicy(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 10)
	svc := newTestService(repo, false)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 4, PaymentMethod: "cash"})
	require.NoError(t, err)

	res, err = svc.CancelSale(ctx, owner, res.Sale.ID)
	require.NoError(t, err)
	require.False(t, res.Restocked)
	require.Equal(t, 6, res.Stock)
	require.Equal(t, 6, repo.stock(10))

	_, err = svc.CancelSale(ctx, owner, res.Sale.ID)
	require.ErrorIs(t, err, ErrSaleNotFound)
}

func TestCommittedOperationsAreAuditedAndPublished(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 10)
	audit := &recordedAudit{}
	pub := &capturePublisher{}
	metrics := &countingMetrics{}
	svc := NewService(repo, nil, audit, pub, metrics, ServiceConfig{RestockOnCancel: true}, nil)
	ctx := context.Background()

	res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 1, PaymentMethod: "cash"})
	require.NoError(t, err)
	_, err = svc.AmendSale(ctx, owner, res.Sale.ID, AmendInput{Quantity: intPtr(2)})
	require.NoError(t, err)
	_, err = svc.CancelSale(ctx, owner, res.Sale.ID)
	require.NoError(t, err)

	require.Len(t, audit.logs, 3)
	require.Equal(t, "sale.record", audit.logs[0].Action)
	require.Equal(t, "sale.cancel", audit.logs[2].Action)

	require.Len(t, pub.got, 3)
	require.Equal(t, events.SaleRecorded, pub.got[0].Type)
	require.Equal(t, events.SaleAmended, pub.got[1].Type)
	require.Equal(t, events.SaleCancelled, pub.got[2].Type)
	require.Equal(t, pub.got[0].AggregateID, pub.got[2].AggregateID)
	require.Equal(t, int64(3), metrics.committed.Load())
}

// Random mixes of record/amend/cancel keep stock equal to the initial stock
// minus the quantities of the sales still on file.
func TestStockInvariantUnderRandomOperations(t *testing.T) {
	const initial = 40
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 20; round++ {
		repo := newMemoryRepo()
		repo.addProduct(10, owner, 250, initial)
		svc := newTestService(repo, true)
		ctx := context.Background()
		var live []int64

		for step := 0; step < 60; step++ {
			switch op := rng.Intn(3); {
			case op == 0 || len(live) == 0:
				res, err := svc.RecordSale(ctx, owner, RecordInput{ProductID: 10, Quantity: 1 + rng.Intn(8), PaymentMethod: "cash"})
				if err != nil {
					require.ErrorIs(t, err, ErrInsufficientStock)
					continue
				}
				live = append(live, res.Sale.ID)
			case op == 1:
				id := live[rng.Intn(len(live))]
				_, err := svc.AmendSale(ctx, owner, id, AmendInput{Quantity: intPtr(1 + rng.Intn(10))})
				if err != nil {
					require.ErrorIs(t, err, ErrInsufficientStock)
				}
			default:
				i := rng.Intn(len(live))
				_, err := svc.CancelSale(ctx, owner, live[i])
				require.NoError(t, err)
				live = append(live[:i], live[i+1:]...)
			}

			stock := repo.stock(10)
			require.GreaterOrEqual(t, stock, 0)
			require.Equal(t, initial-repo.activeQuantity(10), stock)
		}
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	repo := newMemoryRepo()
	repo.addProduct(10, owner, 1000, 20)
	svc := newTestService(repo, true)

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int64
		refused   atomic.Int64
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RecordSale(context.Background(), owner, RecordInput{ProductID: 10, Quantity: 1, PaymentMethod: "cash"})
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, ErrInsufficientStock):
				refused.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int64(20), succeeded.Load())
	require.Equal(t, int64(30), refused.Load())
	require.Equal(t, 0, repo.stock(10))
	require.Equal(t, 20, repo.activeQuantity(10))
}
