package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/ASS429/ma-boutique-backend/internal/events"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// RepositoryPort describes persistence used by the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListSales(ctx context.Context, ownerID int64) ([]Sale, error)
}

// IdempotencyPort guards POST /sales against replays.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// AuditPort records committed changes.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// MetricsPort counts engine outcomes.
type MetricsPort interface {
	SaleCommitted(op string)
	StockRejected(op string)
}

// ServiceConfig captures policy flags.
type ServiceConfig struct {
	// RestockOnCancel puts the units of a cancelled sale back into stock. When
	// false, cancellation only removes the sale row.
	RestockOnCancel bool
}

// Service is the inventory consistency engine: every sale mutation and its stock
// adjustment commit together or not at all.
type Service struct {
	repo      RepositoryPort
	idem      IdempotencyPort
	audit     AuditPort
	publisher events.Publisher
	metrics   MetricsPort
	config    ServiceConfig
	logger    *slog.Logger
}

// NewService builds the sales service. idem, audit, publisher and metrics may be nil.
func NewService(repo RepositoryPort, idem IdempotencyPort, audit AuditPort, publisher events.Publisher, metrics MetricsPort, cfg ServiceConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, idem: idem, audit: audit, publisher: publisher, metrics: metrics, config: cfg, logger: logger}
}

// ListSales returns the owner's sales.
func (s *Service) ListSales(ctx context.Context, ownerID int64) ([]Sale, error) {
	return s.repo.ListSales(ctx, ownerID)
}

// RecordSale debits stock and stores the sale priced at the current unit price.
func (s *Service) RecordSale(ctx context.Context, ownerID int64, in RecordInput) (Result, error) {
	in.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
	switch {
	case in.ProductID <= 0:
		return Result{}, ErrProductRequired
	case in.Quantity <= 0:
		return Result{}, ErrInvalidQuantity
	case in.PaymentMethod == "":
		return Result{}, ErrPaymentMethodRequired
	}

	key, err := s.claim(ctx, ownerID, in.IdempotencyKey)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lvl, err := tx.DebitStock(ctx, ownerID, in.ProductID, in.Quantity)
		if err != nil {
			return err
		}
		sale, err := tx.InsertSale(ctx, Sale{
			ProductID:     in.ProductID,
			ProductName:   lvl.ProductName,
			Quantity:      in.Quantity,
			Total:         lineTotal(lvl.Price, in.Quantity),
			PaymentMethod: in.PaymentMethod,
			OwnerID:       ownerID,
		})
		if err != nil {
			return err
		}
		res = Result{Sale: sale, Stock: lvl.Stock}
		return nil
	})
	if err != nil {
		s.release(ctx, key)
		s.rejected(opRecord, err)
		return Result{}, err
	}

	s.committed(ctx, opRecord, events.SaleRecorded, ownerID, res, map[string]any{
		"product_id": in.ProductID,
		"quantity":   in.Quantity,
		"total":      res.Sale.Total.String(),
	})
	return res, nil
}

// AmendSale changes quantity and/or payment method. A quantity change moves
// stock by the difference and reprices the sale at the product's current price.
func (s *Service) AmendSale(ctx context.Context, ownerID, saleID int64, in AmendInput) (Result, error) {
	if in.Quantity == nil && in.PaymentMethod == nil {
		return Result{}, ErrNothingToAmend
	}
	if in.Quantity != nil && *in.Quantity <= 0 {
		return Result{}, ErrInvalidQuantity
	}
	if in.PaymentMethod != nil {
		pm := strings.TrimSpace(*in.PaymentMethod)
		if pm == "" {
			return Result{}, ErrPaymentMethodRequired
		}
		in.PaymentMethod = &pm
	}

	var (
		res   Result
		delta int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, ownerID, saleID)
		if err != nil {
			return err
		}

		var lvl StockLevel
		switch {
		case in.Quantity != nil && *in.Quantity > sale.Quantity:
			delta = *in.Quantity - sale.Quantity
			lvl, err = tx.DebitStock(ctx, ownerID, sale.ProductID, delta)
		case in.Quantity != nil && *in.Quantity < sale.Quantity:
			delta = *in.Quantity - sale.Quantity
			lvl, err = tx.CreditStock(ctx, ownerID, sale.ProductID, -delta)
		default:
			lvl, err = tx.ProductStock(ctx, ownerID, sale.ProductID)
		}
		if err != nil {
			return err
		}

		if delta != 0 {
			sale.Quantity = *in.Quantity
			sale.Total = lineTotal(lvl.Price, sale.Quantity)
		}
		if in.PaymentMethod != nil {
			sale.PaymentMethod = *in.PaymentMethod
		}
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		res = Result{Sale: sale, Stock: lvl.Stock}
		return nil
	})
	if err != nil {
		s.rejected(opAmend, err)
		return Result{}, err
	}

	s.committed(ctx, opAmend, events.SaleAmended, ownerID, res, map[string]any{
		"product_id":     res.Sale.ProductID,
		"quantity":       res.Sale.Quantity,
		"stock_delta":    -delta,
		"payment_method": res.Sale.PaymentMethod,
		"total":          res.Sale.Total.String(),
	})
	return res, nil
}

// CancelSale deletes the sale and, under the restock policy, returns its units.
func (s *Service) CancelSale(ctx context.Context, ownerID, saleID int64) (Result, error) {
	var res Result
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.DeleteSale(ctx, ownerID, saleID)
		if err != nil {
			return err
		}
		var lvl StockLevel
		if s.config.RestockOnCancel {
			lvl, err = tx.CreditStock(ctx, ownerID, sale.ProductID, sale.Quantity)
		} else {
			lvl, err = tx.ProductStock(ctx, ownerID, sale.ProductID)
		}
		if err != nil {
			return err
		}
		sale.ProductName = lvl.ProductName
		res = Result{Sale: sale, Stock: lvl.Stock, Restocked: s.config.RestockOnCancel}
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	s.committed(ctx, opCancel, events.SaleCancelled, ownerID, res, map[string]any{
		"product_id": res.Sale.ProductID,
		"quantity":   res.Sale.Quantity,
		"restocked":  res.Restocked,
	})
	return res, nil
}

func lineTotal(price decimal.Decimal, qty int) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(qty)))
}

func (s *Service) claim(ctx context.Context, ownerID int64, key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" || s.idem == nil {
		return "", nil
	}
	scoped := fmt.Sprintf("sales:%d:%s", ownerID, key)
	if err := s.idem.CheckAndInsert(ctx, scoped, "sales"); err != nil {
		return "", err
	}
	return scoped, nil
}

func (s *Service) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.idem.Delete(ctx, key); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Service) rejected(op string, err error) {
	if s.metrics != nil && errors.Is(err, shared.ErrInsufficientStock) {
		s.metrics.StockRejected(op)
	}
}

func (s *Service) committed(ctx context.Context, op, eventType string, ownerID int64, res Result, meta map[string]any) {
	if s.metrics != nil {
		s.metrics.SaleCommitted(op)
	}
	id := strconv.FormatInt(res.Sale.ID, 10)
	if s.audit != nil {
		if err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  ownerID,
			Action:   "sale." + op,
			Entity:   "sale",
			EntityID: id,
			Meta:     meta,
		}); err != nil {
			s.logger.Warn("audit record failed", slog.String("op", op), slog.Any("error", err))
		}
	}
	events.Emit(ctx, s.publisher, s.logger, events.New(eventType, "sale:"+id, ownerID, meta))
}
