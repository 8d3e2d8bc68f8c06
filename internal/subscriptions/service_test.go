package subscriptions

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ASS429/ma-boutique-backend/internal/events"
	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

type memoryRepo struct {
	mu       sync.Mutex
	accounts map[int64]Account
	payments []Payment
	nextID   int64
}

type memoryTx struct {
	repo     *memoryRepo
	accounts map[int64]Account
	payments []Payment
	nextID   int64
}

func newMemoryRepo(users ...Account) *memoryRepo {
	r := &memoryRepo{accounts: map[int64]Account{}}
	for _, u := range users {
		if u.Plan == "" {
			u.Plan = PlanFree
		}
		r.accounts[u.UserID] = u
	}
	return r
}

// WithTx works on a copy and publishes it on success, so failed transitions
// leave no trace.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tx := &memoryTx{repo: r, accounts: map[int64]Account{}, nextID: r.nextID}
	for k, v := range r.accounts {
		tx.accounts[k] = v
	}
	tx.payments = append([]Payment(nil), r.payments...)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	r.accounts, r.payments, r.nextID = tx.accounts, tx.payments, tx.nextID
	return nil
}

func (r *memoryRepo) ListPayments(ctx context.Context) ([]Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := append([]Payment(nil), r.payments...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memoryRepo) account(id int64) Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (tx *memoryTx) GetAccountForUpdate(ctx context.Context, userID int64) (Account, error) {
	a, ok := tx.accounts[userID]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return a, nil
}

func (tx *memoryTx) UpdateAccount(ctx context.Context, acct Account) error {
	if _, ok := tx.accounts[acct.UserID]; !ok {
		return ErrUserNotFound
	}
	tx.accounts[acct.UserID] = acct
	return nil
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	tx.nextID++
	p.ID = tx.nextID
	p.Username = tx.accounts[p.UserID].Username
	p.CreatedAt = time.Now()
	tx.payments = append(tx.payments, p)
	return p, nil
}

func (tx *memoryTx) DecidePending(ctx context.Context, userID int64, status Status, adminID int64) error {
	for i := len(tx.payments) - 1; i >= 0; i-- {
		if tx.payments[i].UserID == userID {
			if tx.payments[i].Status != StatusPending {
				return nil
			}
			now := time.Now()
			tx.payments[i].Status = status
			tx.payments[i].DecidedBy = &adminID
			tx.payments[i].DecidedAt = &now
			return nil
		}
	}
	return nil
}

func (tx *memoryTx) ExpireAccounts(ctx context.Context, cutoff time.Time) ([]Account, error) {
	var out []Account
	for id, a := range tx.accounts {
		if a.EffectivePremium() && !a.Expiration.IsZero() && a.Expiration.Before(cutoff) {
			a.Plan = PlanFree
			a.UpgradeStatus = StatusExpired
			tx.accounts[id] = a
			out = append(out, a)
		}
	}
	return out, nil
}

type captureNotifier struct {
	calls []string
	err   error
}

func (n *captureNotifier) SubscriptionRequested(_ context.Context, username string, _ decimal.Decimal, _ string, _ shared.Date) error {
	n.calls = append(n.calls, username)
	return n.err
}

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

type countingCache struct{ n int }

func (c *countingCache) Invalidate(context.Context) error {
	c.n++
	return nil
}

type fixedGrace int

func (g fixedGrace) GraceDays(context.Context) (int, error) { return int(g), nil }

var admin = shared.Principal{UserID: 1, Username: "admin", Role: shared.RoleAdmin}

func date(s string) shared.Date {
	t, err := shared.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return shared.NewDate(t)
}

func upgrade(exp string) UpgradeInput {
	return UpgradeInput{Phone: "771234567", PaymentMethod: "wave", Amount: decimal.NewFromInt(5000), Expiration: date(exp)}
}

func TestRequestThenRejectScenario(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa", Role: shared.RoleUser})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})
	ctx := context.Background()

	acct, err := svc.RequestUpgrade(ctx, 2, upgrade("2025-03-01"))
	require.NoError(t, err)
	require.Equal(t, StatusPending, acct.UpgradeStatus)
	require.Equal(t, PlanPremium, acct.Plan)
	require.False(t, acct.EffectivePremium())
	require.Equal(t, "5000", acct.Amount.Decimal.String())

	acct, err = svc.RejectUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	require.Equal(t, PlanFree, acct.Plan)
	require.Equal(t, StatusRejected, acct.UpgradeStatus)

	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, StatusRejected, payments[0].Status)
	require.Equal(t, admin.UserID, *payments[0].DecidedBy)
}

func TestRequestUpgradeRequiresAllFields(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})
	ctx := context.Background()

	for name, mutate := range map[string]func(*UpgradeInput){
		"phone":      func(in *UpgradeInput) { in.Phone = " " },
		"method":     func(in *UpgradeInput) { in.PaymentMethod = "" },
		"amount":     func(in *UpgradeInput) { in.Amount = decimal.Zero },
		"expiration": func(in *UpgradeInput) { in.Expiration = shared.Date{} },
	} {
		in := upgrade("2025-03-01")
		mutate(&in)
		_, err := svc.RequestUpgrade(ctx, 2, in)
		require.ErrorIs(t, err, ErrMissingFields, name)
	}

	in := upgrade("2025-03-01")
	in.Amount = decimal.NewFromInt(-10)
	_, err := svc.RequestUpgrade(ctx, 2, in)
	require.ErrorIs(t, err, ErrInvalidAmount)

	_, err = svc.RequestUpgrade(ctx, 99, upgrade("2025-03-01"))
	require.ErrorIs(t, err, shared.ErrNotFound)

	require.Equal(t, PlanFree, repo.account(2).Plan)
	require.Equal(t, StatusNone, repo.account(2).UpgradeStatus)
}

func TestApproveIsIdempotent(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	pub := &capturePublisher{}
	cache := &countingCache{}
	svc := NewService(repo, Dependencies{Publisher: pub, Cache: cache}, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RequestUpgrade(ctx, 2, upgrade("2025-03-01"))
	require.NoError(t, err)

	first, err := svc.ApproveUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	second, err := svc.ApproveUpgrade(ctx, admin, 2)
	require.NoError(t, err)

	require.Equal(t, first, second)
	require.Equal(t, PlanPremium, second.Plan)
	require.Equal(t, StatusApproved, second.UpgradeStatus)
	require.True(t, second.EffectivePremium())

	// request + one approval; the no-op approval emits nothing.
	require.Len(t, pub.got, 2)
	require.Equal(t, events.SubscriptionApproved, pub.got[1].Type)
	require.Equal(t, 2, cache.n)
}

func TestApproveAfterRejection(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RequestUpgrade(ctx, 2, upgrade("2025-03-01"))
	require.NoError(t, err)
	_, err = svc.RejectUpgrade(ctx, admin, 2)
	require.NoError(t, err)

	acct, err := svc.ApproveUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	require.True(t, acct.EffectivePremium())
}

func TestConcurrentApprovalsSettleOnce(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	pub := &capturePublisher{}
	svc := NewService(repo, Dependencies{Publisher: pub}, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RequestUpgrade(ctx, 2, upgrade("2025-03-01"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.ApproveUpgrade(ctx, admin, 2)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, StatusApproved, repo.account(2).UpgradeStatus)
	require.Len(t, pub.got, 2)
	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, StatusApproved, payments[0].Status)
}

func TestApproveWithoutRequest(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})

	_, err := svc.ApproveUpgrade(context.Background(), admin, 2)
	require.ErrorIs(t, err, ErrNoUpgradeRequest)

	_, err = svc.ApproveUpgrade(context.Background(), admin, 42)
	require.ErrorIs(t, err, ErrUserNotFound)
}

func TestDecisionsRequireAdmin(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})
	user := shared.Principal{UserID: 2, Role: shared.RoleUser}

	_, err := svc.ApproveUpgrade(context.Background(), user, 2)
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.RejectUpgrade(context.Background(), user, 2)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRejectFromApproved(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})
	ctx := context.Background()

	_, err := svc.RequestUpgrade(ctx, 2, upgrade("2025-03-01"))
	require.NoError(t, err)
	_, err = svc.ApproveUpgrade(ctx, admin, 2)
	require.NoError(t, err)

	settled, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, settled, 1)

	acct, err := svc.RejectUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	require.Equal(t, PlanFree, acct.Plan)
	require.Equal(t, StatusRejected, acct.UpgradeStatus)

	// The paid request stays validated in the history.
	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Equal(t, settled, payments)
	require.Equal(t, StatusApproved, payments[0].Status)
}

func TestApproveAfterExpiryNeedsNewRequest(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	svc := NewService(repo, Dependencies{}, ServiceConfig{AutoDemote: true})
	ctx := context.Background()

	_, err := svc.RequestUpgrade(ctx, 2, upgrade("2025-03-01"))
	require.NoError(t, err)
	_, err = svc.ApproveUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	n, err := svc.DemoteExpired(ctx, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, 1, n)

	settled, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, settled, 1)
	decidedAt := *settled[0].DecidedAt

	_, err = svc.ApproveUpgrade(ctx, admin, 2)
	require.ErrorIs(t, err, ErrNoUpgradeRequest)
	require.Equal(t, StatusExpired, repo.account(2).UpgradeStatus)
	require.Equal(t, PlanFree, repo.account(2).Plan)

	_, err = svc.RejectUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	payments, err := svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	require.Equal(t, StatusApproved, payments[0].Status)
	require.Equal(t, decidedAt, *payments[0].DecidedAt)

	// A renewal opens a new request which approval settles on its own.
	_, err = svc.RequestUpgrade(ctx, 2, upgrade("2025-06-01"))
	require.NoError(t, err)
	acct, err := svc.ApproveUpgrade(ctx, admin, 2)
	require.NoError(t, err)
	require.True(t, acct.EffectivePremium())

	payments, err = svc.ListPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 2)
	require.Equal(t, StatusApproved, payments[0].Status)
	require.Equal(t, "2025-06-01", payments[0].Expiration.String())
	require.Equal(t, decidedAt, *payments[1].DecidedAt)
}

func TestRequestUpgradeBoundsExpiration(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	clock := func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	svc := NewService(repo, Dependencies{}, ServiceConfig{Clock: clock})
	ctx := context.Background()

	for _, exp := range []string{"1700-03-01", "2015-02-28", "2035-03-02"} {
		_, err := svc.RequestUpgrade(ctx, 2, upgrade(exp))
		require.ErrorIs(t, err, ErrExpirationOutOfRange, exp)
		require.ErrorIs(t, err, shared.ErrValidation, exp)
	}
	require.Equal(t, StatusNone, repo.account(2).UpgradeStatus)

	for _, exp := range []string{"2015-03-01", "2035-03-01"} {
		_, err := svc.RequestUpgrade(ctx, 2, upgrade(exp))
		require.NoError(t, err, exp)
	}
}

func TestNotifierFailureDoesNotFailRequest(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"})
	notifier := &captureNotifier{err: errors.New("smtp down")}
	svc := NewService(repo, Dependencies{Notifier: notifier, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}, ServiceConfig{})

	_, err := svc.RequestUpgrade(context.Background(), 2, upgrade("2025-03-01"))
	require.NoError(t, err)
	require.Equal(t, []string{"awa"}, notifier.calls)
}

func TestDemoteExpired(t *testing.T) {
	today := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	users := []Account{
		{UserID: 2, Plan: PlanPremium, UpgradeStatus: StatusApproved, Expiration: date("2025-03-06")},
		{UserID: 3, Plan: PlanPremium, UpgradeStatus: StatusApproved, Expiration: date("2025-03-07")},
		{UserID: 4, Plan: PlanPremium, UpgradeStatus: StatusPending, Expiration: date("2025-01-01")},
	}

	disabled := NewService(newMemoryRepo(users...), Dependencies{Grace: fixedGrace(3)}, ServiceConfig{AutoDemote: false})
	n, err := disabled.DemoteExpired(context.Background(), today)
	require.NoError(t, err)
	require.Zero(t, n)

	repo := newMemoryRepo(users...)
	svc := NewService(repo, Dependencies{Grace: fixedGrace(3)}, ServiceConfig{AutoDemote: true})
	n, err = svc.DemoteExpired(context.Background(), today)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	require.Equal(t, StatusExpired, repo.account(2).UpgradeStatus)
	require.Equal(t, PlanFree, repo.account(2).Plan)
	// 2025-03-07 + 3 days is today: still inside the grace period.
	require.Equal(t, StatusApproved, repo.account(3).UpgradeStatus)
	require.Equal(t, StatusPending, repo.account(4).UpgradeStatus)
}

func TestUpgradeHandlers(t *testing.T) {
	repo := newMemoryRepo(Account{UserID: 2, Username: "awa"}, Account{UserID: 1, Username: "admin", Role: shared.RoleAdmin})
	svc := NewService(repo, Dependencies{}, ServiceConfig{})
	requireAdmin := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, _ := shared.PrincipalFromContext(r.Context())
			if !p.IsAdmin() {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
	h := NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc, requireAdmin)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := shared.Principal{UserID: 2, Role: shared.RoleUser}
			if req.Header.Get("X-Admin") != "" {
				p = admin
			}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	r.Route("/auth", h.MountUpgradeRoutes)
	r.Route("/subscriptions", h.MountRoutes)

	do := func(method, path, body string, asAdmin bool) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		if asAdmin {
			req.Header.Set("X-Admin", "1")
		}
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr
	}

	rr := do(http.MethodPut, "/auth/upgrade", `{"phone":"771234567","payment_method":"wave","amount":5000}`, false)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(http.MethodPut, "/auth/upgrade", `{"phone":"771234567","payment_method":"wave","amount":5000,"expiration":"2025/03/01"}`, false)
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = do(http.MethodPut, "/auth/upgrade", `{"phone":"771234567","payment_method":"wave","amount":5000,"expiration":"2025-03-01"}`, false)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"upgrade_status":"en attente"`)
	require.Contains(t, rr.Body.String(), `"expiration":"2025-03-01"`)

	rr = do(http.MethodPut, "/auth/upgrade/2/approve", "", false)
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(http.MethodPut, "/auth/upgrade/2/approve", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"upgrade_status":"validé"`)

	rr = do(http.MethodPut, "/auth/upgrade/77/reject", "", true)
	require.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(http.MethodGet, "/subscriptions/", "", false)
	require.Equal(t, http.StatusForbidden, rr.Code)
	rr = do(http.MethodGet, "/subscriptions/", "", true)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Contains(t, rr.Body.String(), `"status":"validé"`)
}
