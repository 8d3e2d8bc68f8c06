package stats

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// RepositoryPort lists the aggregate queries used by the service.
type RepositoryPort interface {
	SalesByCategory(ctx context.Context, ownerID int64) ([]CategorySales, error)
	SalesByDay(ctx context.Context, ownerID int64, tz string) ([]DaySales, error)
	PaymentMethods(ctx context.Context, ownerID int64) ([]PaymentSplit, error)
	TopProducts(ctx context.Context, ownerID int64, limit int) ([]TopProduct, error)
	LowStock(ctx context.Context, ownerID int64, threshold int) ([]LowStock, error)
	AccountTotals(ctx context.Context) (validated, pending decimal.Decimal, err error)
	ValidatedBetween(ctx context.Context, w Window) (decimal.Decimal, error)
	WithdrawnBetween(ctx context.Context, w Window) (decimal.Decimal, error)
	Transactions(ctx context.Context, limit int) ([]Transaction, error)
	MethodBalances(ctx context.Context) (map[string]decimal.Decimal, error)
}

// Service computes statistics. Admin reports go through the cache.
type Service struct {
	repo   RepositoryPort
	cache  *Cache
	group  singleflight.Group
	loc    *time.Location
	clock  shared.Clock
	logger *slog.Logger
}

// NewService wires the repository with the cache. loc is the calendar used for
// daily, weekly and monthly windows.
func NewService(repo RepositoryPort, cache *Cache, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, loc: loc, clock: time.Now, logger: logger}
}

// Invalidate drops cached admin reports.
func (s *Service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *Service) SalesByCategory(ctx context.Context, ownerID int64) ([]CategorySales, error) {
	return s.repo.SalesByCategory(ctx, ownerID)
}

func (s *Service) SalesByDay(ctx context.Context, ownerID int64) ([]DaySales, error) {
	return s.repo.SalesByDay(ctx, ownerID, s.loc.String())
}

func (s *Service) PaymentMethods(ctx context.Context, ownerID int64) ([]PaymentSplit, error) {
	return s.repo.PaymentMethods(ctx, ownerID)
}

func (s *Service) TopProducts(ctx context.Context, ownerID int64) ([]TopProduct, error) {
	return s.repo.TopProducts(ctx, ownerID, TopProductsLimit)
}

// LowStock lists products at or under threshold; a non positive threshold uses the default.
func (s *Service) LowStock(ctx context.Context, ownerID int64, threshold int) ([]LowStock, error) {
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return s.repo.LowStock(ctx, ownerID, threshold)
}

func (s *Service) today() string {
	return shared.Day(s.clock(), s.loc).Format(shared.DateLayout)
}

// Revenue reports validated balance, pending amounts and the income of period.
func (s *Service) Revenue(ctx context.Context, period Period) (Revenue, error) {
	return cached(ctx, s, []string{"revenue", string(period), s.today()}, func(ctx context.Context) (Revenue, error) {
		validated, pending, err := s.repo.AccountTotals(ctx)
		if err != nil {
			return Revenue{}, err
		}
		periodTotal, err := s.repo.ValidatedBetween(ctx, WindowFor(period, s.clock(), s.loc))
		if err != nil {
			return Revenue{}, err
		}
		return Revenue{Balance: validated, PeriodTotal: periodTotal, Pending: pending, Period: period}, nil
	})
}

// Transactions lists the latest Premium accounts.
func (s *Service) Transactions(ctx context.Context, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	return cached(ctx, s, []string{"transactions", strconv.Itoa(limit)}, func(ctx context.Context) ([]Transaction, error) {
		out, err := s.repo.Transactions(ctx, limit)
		if out == nil {
			out = []Transaction{}
		}
		return out, err
	})
}

// Accounts reports balances per payment method and today's movements. The
// three queries run concurrently.
func (s *Service) Accounts(ctx context.Context) (Accounts, error) {
	return cached(ctx, s, []string{"accounts", s.today()}, func(ctx context.Context) (Accounts, error) {
		today := WindowFor(PeriodDaily, s.clock(), s.loc)
		var out Accounts
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			balances, err := s.repo.MethodBalances(ctx)
			out.Accounts = balances
			return err
		})
		g.Go(func() error {
			entries, err := s.repo.ValidatedBetween(ctx, today)
			out.Entries = entries
			return err
		})
		g.Go(func() error {
			withdrawn, err := s.repo.WithdrawnBetween(ctx, today)
			out.Withdrawals = withdrawn
			return err
		})
		if err := g.Wait(); err != nil {
			return Accounts{}, err
		}
		if out.Accounts == nil {
			out.Accounts = map[string]decimal.Decimal{}
		}
		out.Total = decimal.Zero
		for _, v := range out.Accounts {
			out.Total = out.Total.Add(v)
		}
		out.Net = out.Entries.Sub(out.Withdrawals)
		return out, nil
	})
}

// cached serves parts from the cache, coalescing concurrent misses. A cache
// outage falls back to the loader.
func cached[T any](ctx context.Context, s *Service, parts []string, load func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, parts...)
	if err != nil {
		s.logger.Warn("stats cache unavailable", slog.Any("error", err))
		return load(ctx)
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		var out T
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			return load(ctx)
		})
		return out, err
	})
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}
