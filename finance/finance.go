// Package finance exposes the practice's billing configuration and a
// revenue summary aggregated from issued prescriptions.
package finance

import (
	"fmt"
	"sort"
	"time"

	"github.com/medikit/prescriptor-api/catalog"
	"github.com/medikit/prescriptor-api/store"
)

// DayTotal is one day's worth of issued prescriptions.
type DayTotal struct {
	Date  string  `json:"date"`
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

// Summary aggregates prescriptions over a period.
type Summary struct {
	From       time.Time  `json:"from"`
	To         time.Time  `json:"to"`
	Count      int        `json:"count"`
	Total      float64    `json:"total"`
	AverageFee float64    `json:"averageFee"`
	Currency   string     `json:"currency"`
	PerDay     []DayTotal `json:"perDay"`
}

// Service reads and writes billing data.
type Service struct {
	store *store.Store
}

// NewService creates a finance service backed by the local store.
func NewService(st *store.Store) *Service {
	return &Service{store: st}
}

// Config returns the billing configuration. An unset configuration comes
// back zero-valued rather than as an error.
func (s *Service) Config() (catalog.FinanceConfig, error) {
	var cfg catalog.FinanceConfig
	err := s.store.View(func(tx *store.Tx) error {
		stored, err := tx.FinanceConfig()
		if err != nil {
			return err
		}
		if stored != nil {
			cfg = *stored
		}
		return nil
	})
	return cfg, err
}

// SetConfig stores the billing configuration.
func (s *Service) SetConfig(cfg catalog.FinanceConfig) error {
	if cfg.ConsultationFee < 0 {
		return fmt.Errorf("consultation fee cannot be negative")
	}
	if cfg.TaxRate < 0 || cfg.TaxRate > 1 {
		return fmt.Errorf("tax rate must be between 0 and 1")
	}
	return s.store.Update(func(tx *store.Tx) error {
		return tx.PutFinanceConfig(cfg)
	})
}

// Summarize aggregates all prescriptions issued in [from, to), grouped by
// calendar day. A zero `to` means now.
func (s *Service) Summarize(from, to time.Time) (Summary, error) {
	if to.IsZero() {
		to = time.Now()
	}
	if !from.IsZero() && to.Before(from) {
		return Summary{}, fmt.Errorf("period end precedes its start")
	}

	sum := Summary{From: from, To: to}

	err := s.store.View(func(tx *store.Tx) error {
		if cfg, err := tx.FinanceConfig(); err == nil && cfg != nil {
			sum.Currency = cfg.Currency
		}

		list, err := tx.Prescriptions()
		if err != nil {
			return err
		}

		perDay := make(map[string]*DayTotal)
		for _, p := range list {
			if p.IssuedAt.Before(from) || !p.IssuedAt.Before(to) {
				continue
			}
			sum.Count++
			sum.Total += p.Fee

			day := p.IssuedAt.Format("2006-01-02")
			dt, ok := perDay[day]
			if !ok {
				dt = &DayTotal{Date: day}
				perDay[day] = dt
			}
			dt.Count++
			dt.Total += p.Fee
		}

		for _, dt := range perDay {
			sum.PerDay = append(sum.PerDay, *dt)
		}
		return nil
	})
	if err != nil {
		return Summary{}, err
	}

	sort.Slice(sum.PerDay, func(i, j int) bool { return sum.PerDay[i].Date < sum.PerDay[j].Date })
	if sum.Count > 0 {
		sum.AverageFee = sum.Total / float64(sum.Count)
	}
	return sum, nil
}
