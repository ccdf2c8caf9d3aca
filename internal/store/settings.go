package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strconv"

	json "github.com/goccy/go-json"
	"github.com/gookit/validate"

	"github.com/sadopc/flowbank/internal/logger"
)

const (
	keyConversionRate         = "conversion_rate"
	keyBasicNecessityDiscount = "basic_necessity_discount"
	keyMinTimeBlock           = "min_time_block"
	keyMinPoints              = "min_points"
	keyMaxTimeBlock           = "max_time_block"
	keyMaxPoints              = "max_points"
	keyProgressiveInterval    = "progressive_interval"
	keyDailyReportParameters  = "daily_report_parameters"
	keyLuckyNumber            = "lucky_number"
	keyActiveTaskID           = "active_task_id"
	keyTimerPaused            = "timer_paused"
	keyLastAnketDate          = "last_anket_date"
)

const defaultLuckyNumber = 1.0

func (s *Store) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("get setting %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("get setting %q: %w", key, err)
	}
	return value, nil
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	return setSetting(ctx, s.db, key, value)
}

func setSetting(ctx context.Context, db execer, key, value string) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}
	return nil
}

func (s *Store) GetAllSettings(ctx context.Context) ([]Setting, error) {
	var settings []Setting
	if err := s.db.SelectContext(ctx, &settings, `SELECT key, value FROM settings ORDER BY key`); err != nil {
		return nil, fmt.Errorf("list settings: %w", err)
	}
	return settings, nil
}

// RewardSettings assembles the reward configuration. Each key is parsed and
// checked against the save rules on its own; an unreadable or out-of-range
// value is logged and replaced by its default.
func (s *Store) RewardSettings(ctx context.Context) (RewardSettings, error) {
	rs := DefaultRewardSettings()
	all, err := s.GetAllSettings(ctx)
	if err != nil {
		return rs, err
	}

	vals := make(map[string]string, len(all))
	for _, st := range all {
		vals[st.Key] = st.Value
	}

	// accept validates one value against otherwise default settings, so a
	// bad key never rejects its neighbours.
	accept := func(key, raw string, set func(*RewardSettings)) {
		trial := DefaultRewardSettings()
		set(&trial)
		if err := ValidateRewardSettings(trial); err != nil {
			s.log.Warnf(logger.TypeStore, "out of range setting %s=%q, using default: %v", key, raw, err)
			return
		}
		set(&rs)
	}
	floatVal := func(key string, field func(*RewardSettings) *float64) {
		raw, ok := vals[key]
		if !ok {
			return
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			s.log.Warnf(logger.TypeStore, "corrupt setting %s=%q, using default", key, raw)
			return
		}
		accept(key, raw, func(r *RewardSettings) { *field(r) = f })
	}
	intVal := func(key string, field func(*RewardSettings) *int) {
		raw, ok := vals[key]
		if !ok {
			return
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.log.Warnf(logger.TypeStore, "corrupt setting %s=%q, using default", key, raw)
			return
		}
		accept(key, raw, func(r *RewardSettings) { *field(r) = n })
	}

	floatVal(keyConversionRate, func(r *RewardSettings) *float64 { return &r.ConversionRate })
	floatVal(keyBasicNecessityDiscount, func(r *RewardSettings) *float64 { return &r.BasicNecessityDiscount })
	floatVal(keyMinTimeBlock, func(r *RewardSettings) *float64 { return &r.MinTimeBlock })
	intVal(keyMinPoints, func(r *RewardSettings) *int { return &r.MinPoints })
	floatVal(keyMaxTimeBlock, func(r *RewardSettings) *float64 { return &r.MaxTimeBlock })
	intVal(keyMaxPoints, func(r *RewardSettings) *int { return &r.MaxPoints })
	floatVal(keyProgressiveInterval, func(r *RewardSettings) *float64 { return &r.ProgressiveInterval })

	if raw, ok := vals[keyDailyReportParameters]; ok && raw != "" {
		var params []string
		if err := json.Unmarshal([]byte(raw), &params); err != nil {
			s.log.Warnf(logger.TypeStore, "corrupt setting %s=%q, using no parameters", keyDailyReportParameters, raw)
		} else if params != nil {
			rs.DailyReportParameters = params
		}
	}
	return rs, nil
}

// ValidateRewardSettings checks rs against its struct rules.
func ValidateRewardSettings(rs RewardSettings) error {
	v := validate.Struct(&rs)
	if !v.Validate() {
		return fmt.Errorf("invalid reward settings: %w", v.Errors)
	}
	return nil
}

func (s *Store) SaveRewardSettings(ctx context.Context, rs RewardSettings) error {
	if err := ValidateRewardSettings(rs); err != nil {
		return err
	}
	params := rs.DailyReportParameters
	if params == nil {
		params = []string{}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal daily report parameters: %w", err)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save settings: %w", err)
	}
	defer tx.Rollback()

	pairs := [][2]string{
		{keyConversionRate, formatFloat(rs.ConversionRate)},
		{keyBasicNecessityDiscount, formatFloat(rs.BasicNecessityDiscount)},
		{keyMinTimeBlock, formatFloat(rs.MinTimeBlock)},
		{keyMinPoints, strconv.Itoa(rs.MinPoints)},
		{keyMaxTimeBlock, formatFloat(rs.MaxTimeBlock)},
		{keyMaxPoints, strconv.Itoa(rs.MaxPoints)},
		{keyProgressiveInterval, formatFloat(rs.ProgressiveInterval)},
		{keyDailyReportParameters, string(paramsJSON)},
	}
	for _, p := range pairs {
		if err := setSetting(ctx, tx, p[0], p[1]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LuckyNumber returns the reward-roll weight multiplier (default 1).
func (s *Store) LuckyNumber(ctx context.Context) (float64, error) {
	raw, err := s.GetSetting(ctx, keyLuckyNumber)
	if errors.Is(err, ErrNotFound) {
		return defaultLuckyNumber, nil
	}
	if err != nil {
		return defaultLuckyNumber, err
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || n <= 0 {
		s.log.Warnf(logger.TypeStore, "corrupt setting %s=%q, using default", keyLuckyNumber, raw)
		return defaultLuckyNumber, nil
	}
	return n, nil
}

func (s *Store) SetLuckyNumber(ctx context.Context, n float64) error {
	if n <= 0 {
		return fmt.Errorf("lucky number must be positive, got %v", n)
	}
	return s.SetSetting(ctx, keyLuckyNumber, formatFloat(n))
}

// LastAnketDate returns the YYYY-MM-DD key of the last filed daily report,
// or "" when none was ever filed.
func (s *Store) LastAnketDate(ctx context.Context) (string, error) {
	v, err := s.GetSetting(ctx, keyLastAnketDate)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}

func (s *Store) SetLastAnketDate(ctx context.Context, day string) error {
	return s.SetSetting(ctx, keyLastAnketDate, day)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
