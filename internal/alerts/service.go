package alerts

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// RepositoryPort describes persistence used by the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	WithStateTx(ctx context.Context, fn func(context.Context, StateTx) error) error
	ListCandidates(ctx context.Context) ([]Candidate, error)
	List(ctx context.Context, scope Scope, limit int) ([]Alert, error)
}

// Config tunes the projection.
type Config struct {
	UpcomingDays int
	// Location is the calendar "today" is taken in.
	Location *time.Location
	Clock    shared.Clock
}

// Service computes and tracks payment alerts.
type Service struct {
	repo   RepositoryPort
	window int
	loc    *time.Location
	clock  shared.Clock
	logger *slog.Logger
}

// DefaultListLimit bounds GET /alerts.
const DefaultListLimit = 50

// NewService builds the alerts service.
func NewService(repo RepositoryPort, cfg Config, logger *slog.Logger) *Service {
	if cfg.UpcomingDays < 0 {
		cfg.UpcomingDays = DefaultUpcomingDays
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, window: cfg.UpcomingDays, loc: cfg.Location, clock: cfg.Clock, logger: logger}
}

// Today returns the current calendar day.
func (s *Service) Today() time.Time {
	return shared.Day(s.clock(), s.loc)
}

// Project classifies candidates against today. Late notices come first, most
// overdue first, then upcoming ones soonest first.
func Project(candidates []Candidate, today time.Time, window int) []Notice {
	out := make([]Notice, 0, len(candidates))
	for _, c := range candidates {
		typ, days, ok := Classify(c.Expiration, today, window)
		if !ok {
			continue
		}
		out = append(out, Notice{
			UserID:     c.UserID,
			Username:   c.Username,
			Type:       typ,
			Message:    Describe(typ, days),
			Days:       days,
			Expiration: shared.NewDate(c.Expiration),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type == TypeLate
		}
		if out[i].Type == TypeLate {
			return out[i].Days > out[j].Days
		}
		return out[i].Days < out[j].Days
	})
	return out
}

// Live computes the alerts visible to p without persisting anything.
func (s *Service) Live(ctx context.Context, p shared.Principal) ([]Notice, error) {
	candidates, err := s.repo.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}
	scope := ScopeFor(p)
	visible := candidates[:0:0]
	for _, c := range candidates {
		if scope.Allows(c.UserID) {
			visible = append(visible, c)
		}
	}
	return Project(visible, s.Today(), s.window), nil
}

// Refresh recomputes the materialized alerts in one transaction: current notices
// are upserted onto their (user, type) row and rows that no longer qualify are
// removed. Running it twice on the same day changes nothing.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	today := s.Today()
	var res RefreshResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		res = RefreshResult{}
		candidates, err := tx.ListCandidates(ctx)
		if err != nil {
			return err
		}
		res.Notices = Project(candidates, today, s.window)
		keep := make([]Key, 0, len(res.Notices))
		for _, n := range res.Notices {
			inserted, err := tx.Upsert(ctx, n)
			if err != nil {
				return err
			}
			if inserted {
				res.Inserted++
			} else {
				res.Updated++
			}
			if n.Type == TypeLate {
				res.Late++
			} else {
				res.Upcoming++
			}
			keep = append(keep, n.Key())
		}
		res.Removed, err = tx.DeleteExcept(ctx, keep)
		return err
	})
	if err != nil {
		return RefreshResult{}, err
	}
	s.logger.Info("alerts refreshed",
		slog.Int("late", res.Late),
		slog.Int("upcoming", res.Upcoming),
		slog.Int("inserted", res.Inserted),
		slog.Int("removed", res.Removed),
	)
	return res, nil
}

// List returns the materialized, non archived alerts visible to p.
func (s *Service) List(ctx context.Context, p shared.Principal, limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.repo.List(ctx, ScopeFor(p), limit)
}

// Apply runs a state transition on one alert. Unknown, foreign and archived
// alerts all fail with ErrAlertNotFound.
func (s *Service) Apply(ctx context.Context, p shared.Principal, id int64, action Action) (Alert, error) {
	switch action {
	case ActionSeen, ActionIgnore, ActionArchive:
	default:
		return Alert{}, ErrUnknownAction
	}
	scope := ScopeFor(p)
	var out Alert
	err := s.repo.WithStateTx(ctx, func(ctx context.Context, tx StateTx) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !scope.Allows(current.UserID) || current.State == StateArchived {
			return ErrAlertNotFound
		}
		next := current.State.Next(action)
		if next == current.State {
			out = current
			return nil
		}
		out, err = tx.SetState(ctx, id, next)
		return err
	})
	if err != nil {
		return Alert{}, err
	}
	return out, nil
}
