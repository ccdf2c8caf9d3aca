package store

import "time"

// Task is a timed todo or a freeform flow session.
type Task struct {
	ID            string     `json:"id"`
	DisplayName   string     `json:"displayName"`
	PlaylistName  string     `json:"playlistName"`
	IsCompleted   bool       `json:"isCompleted"`
	TimeSpent     int64      `json:"timeSpent"` // seconds, excludes the running session
	LastStartedAt *time.Time `json:"lastStartedAt,omitempty"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`
	IsFlowSession bool       `json:"isFlowSession"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Running reports whether the task has a session in flight.
func (t *Task) Running() bool {
	return t.LastStartedAt != nil
}

// TimerState points at the single active task.
type TimerState struct {
	ActiveTaskID string
	Paused       bool
}

// Reward is one entry of the reward catalog.
type Reward struct {
	ID       string `json:"id" db:"id"`
	Value    int    `json:"value" db:"value"`
	Currency string `json:"currency" db:"currency"`
}

type AccountKind string

const (
	KindBalance     AccountKind = "balance"
	KindPoints      AccountKind = "points"
	KindRandomPicks AccountKind = "randomPicks"
)

func (k AccountKind) Valid() bool {
	switch k {
	case KindBalance, KindPoints, KindRandomPicks:
		return true
	}
	return false
}

// Accounts holds the running totals of the three ledger accounts.
type Accounts struct {
	Balance     float64 `json:"balance"`
	Points      float64 `json:"points"`
	RandomPicks float64 `json:"randomPicks"`
}

func (a Accounts) Get(k AccountKind) float64 {
	switch k {
	case KindBalance:
		return a.Balance
	case KindPoints:
		return a.Points
	case KindRandomPicks:
		return a.RandomPicks
	}
	return 0
}

// HistoryItem is the audit record written for every ledger mutation.
// Amount is the signed delta, not the resulting total.
type HistoryItem struct {
	ID          string      `json:"id"`
	Type        AccountKind `json:"type"`
	Amount      float64     `json:"amount"`
	Reason      string      `json:"reason"`
	Date        time.Time   `json:"date"`
	Category    string      `json:"category,omitempty"`
	Subcategory string      `json:"subcategory,omitempty"`
	IsEssential *bool       `json:"isEssential,omitempty"`
	Duration    *int64      `json:"duration,omitempty"` // seconds
}

// HistoryFilter narrows ListHistory. From is inclusive, To exclusive.
type HistoryFilter struct {
	Type     *AccountKind
	Category *string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// DailyTotal is the net amount booked to one account on one UTC day.
type DailyTotal struct {
	Date  string      `db:"day"`
	Type  AccountKind `db:"type"`
	Total float64     `db:"total"`
}

// Playlist is an activity label tasks may be filed under.
type Playlist struct {
	ID        int64
	Name      string
	Color     string
	Category  string
	Archived  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ShopItem is something the balance can be spent on.
type ShopItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Cost      float64   `json:"cost"`
	CreatedAt time.Time `json:"createdAt"`
}

type Setting struct {
	Key   string `json:"key" db:"key"`
	Value string `json:"value" db:"value"`
}

// RewardSettings drives the reward range and anket discount math.
// Time blocks and intervals are in minutes.
type RewardSettings struct {
	ConversionRate         float64  `json:"conversionRate" validate:"required|gt:0"`
	BasicNecessityDiscount float64  `json:"basicNecessityDiscount" validate:"min:0|max:100"`
	MinTimeBlock           float64  `json:"minTimeBlock" validate:"required|gt:0"`
	MinPoints              int      `json:"minPoints" validate:"min:0"`
	MaxTimeBlock           float64  `json:"maxTimeBlock" validate:"required|gt:0"`
	MaxPoints              int      `json:"maxPoints" validate:"min:0"`
	ProgressiveInterval    float64  `json:"progressiveInterval" validate:"required|gt:0"`
	DailyReportParameters  []string `json:"dailyReportParameters"`
}

// DefaultRewardSettings mirrors the values seeded by migration v1.
func DefaultRewardSettings() RewardSettings {
	return RewardSettings{
		ConversionRate:         100,
		BasicNecessityDiscount: 20,
		MinTimeBlock:           15,
		MinPoints:              1,
		MaxTimeBlock:           15,
		MaxPoints:              3,
		ProgressiveInterval:    60,
		DailyReportParameters:  []string{},
	}
}

// Snapshot is the full content of the store, used for backups.
type Snapshot struct {
	Version    int           `json:"version"`
	ExportedAt time.Time     `json:"exportedAt"`
	Tasks      []Task        `json:"tasks"`
	Rewards    []Reward      `json:"rewards"`
	Accounts   Accounts      `json:"accounts"`
	History    []HistoryItem `json:"history"`
	ShopItems  []ShopItem    `json:"shopItems"`
	Settings   []Setting     `json:"settings"`
}
