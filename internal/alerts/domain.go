// Package alerts projects payment alerts from subscription expiration dates.
package alerts

import (
	"encoding/json"
	"time"

	"github.com/ASS429/ma-boutique-backend/internal/shared"
)

// Type distinguishes overdue from soon-due payments.
type Type string

const (
	TypeLate     Type = "late"
	TypeUpcoming Type = "upcoming"
)

// DefaultUpcomingDays is the look-ahead window for upcoming alerts.
const DefaultUpcomingDays = 3

// State is the lifecycle of a materialized alert. Ignored and archived alerts
// count as seen.
type State string

const (
	StateNew      State = "new"
	StateSeen     State = "seen"
	StateIgnored  State = "ignored"
	StateArchived State = "archived"
)

// Action is a user transition applied to an alert.
type Action string

const (
	ActionSeen    Action = "seen"
	ActionIgnore  Action = "ignore"
	ActionArchive Action = "archive"
)

// Next returns the state reached by applying a to s. Transitions that do not
// apply leave the state unchanged.
func (s State) Next(a Action) State {
	switch a {
	case ActionSeen:
		if s == StateNew {
			return StateSeen
		}
	case ActionIgnore:
		if s == StateNew || s == StateSeen {
			return StateIgnored
		}
	case ActionArchive:
		return StateArchived
	}
	return s
}

// Classify places an expiration date relative to today. Late alerts carry the
// days overdue, upcoming ones the days left, zero included.
func Classify(expiration, today time.Time, window int) (Type, int, bool) {
	days := shared.DaysBetween(today, expiration)
	switch {
	case days < 0:
		return TypeLate, -days, true
	case days <= window:
		return TypeUpcoming, days, true
	default:
		return "", 0, false
	}
}

// Candidate is a validated Premium account with an expiration date.
type Candidate struct {
	UserID     int64
	Username   string
	Expiration time.Time
}

// Notice is a computed alert before persistence.
type Notice struct {
	UserID     int64       `json:"user_id"`
	Username   string      `json:"username"`
	Type       Type        `json:"type"`
	Message    string      `json:"message"`
	Days       int         `json:"days"`
	Expiration shared.Date `json:"expiration"`
}

// Key identifies the single alert a user may hold per type.
type Key struct {
	UserID int64
	Type   Type
}

// Key returns the (user, type) identity of n.
func (n Notice) Key() Key {
	return Key{UserID: n.UserID, Type: n.Type}
}

// Alert is a persisted alert row.
type Alert struct {
	ID        int64
	UserID    int64
	Username  string
	Type      Type
	Message   string
	Days      int
	State     State
	CreatedAt time.Time
	UpdatedAt time.Time
}

// MarshalJSON exposes the state both as an enum and as the seen/ignored/archived flags.
func (a Alert) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID        int64     `json:"id"`
		UserID    int64     `json:"user_id"`
		Username  string    `json:"username"`
		Type      Type      `json:"type"`
		Message   string    `json:"message"`
		Days      int       `json:"days"`
		Status    State     `json:"status"`
		Seen      bool      `json:"seen"`
		Ignored   bool      `json:"ignored"`
		Archived  bool      `json:"archived"`
		CreatedAt time.Time `json:"created_at"`
	}{
		ID:        a.ID,
		UserID:    a.UserID,
		Username:  a.Username,
		Type:      a.Type,
		Message:   a.Message,
		Days:      a.Days,
		Status:    a.State,
		Seen:      a.State != StateNew,
		Ignored:   a.State == StateIgnored,
		Archived:  a.State == StateArchived,
		CreatedAt: a.CreatedAt,
	})
}

// RefreshResult summarises a materialized refresh.
type RefreshResult struct {
	Notices  []Notice `json:"-"`
	Late     int      `json:"late"`
	Upcoming int      `json:"upcoming"`
	Inserted int      `json:"inserted"`
	Updated  int      `json:"updated"`
	Removed  int      `json:"removed"`
}

// Scope limits which alerts a caller may see. UserID zero means every user.
type Scope struct {
	UserID int64
}

// ScopeFor returns the visibility of p: admins see every alert.
func ScopeFor(p shared.Principal) Scope {
	if p.IsAdmin() {
		return Scope{}
	}
	return Scope{UserID: p.UserID}
}

// Allows reports whether userID is visible in the scope.
func (s Scope) Allows(userID int64) bool {
	return s.UserID == 0 || s.UserID == userID
}
