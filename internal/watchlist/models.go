package watchlist

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Item is one tracked asset owned by a single user.
type Item struct {
	ID         string    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string    `gorm:"type:uuid;not null;index" json:"userId"`
	Name       string    `gorm:"not null" json:"name"`
	Symbol     string    `gorm:"not null" json:"symbol"`
	PriceAlert *float64  `json:"priceAlert"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Item) TableName() string { return "app_watchlist.watchlist_items" }

// Fields holds the columns an update may touch. Nil means unchanged;
// ClearPriceAlert removes the alert.
type Fields struct {
	Name            *string
	Symbol          *string
	PriceAlert      *float64
	ClearPriceAlert bool
}

func (f Fields) Empty() bool {
	return f.Name == nil && f.Symbol == nil && f.PriceAlert == nil && !f.ClearPriceAlert
}

// apply copies the set fields onto it.
func (f Fields) apply(it *Item) {
	if f.Name != nil {
		it.Name = *f.Name
	}
	if f.Symbol != nil {
		it.Symbol = *f.Symbol
	}
	switch {
	case f.ClearPriceAlert:
		it.PriceAlert = nil
	case f.PriceAlert != nil:
		v := *f.PriceAlert
		it.PriceAlert = &v
	}
}

// PriceAlert is an optional request field. It accepts a JSON number, a
// numeric string or null, and remembers whether the key was present at all.
type PriceAlert struct {
	Set   bool
	Value *float64
}

type priceAlertError struct{}

func (priceAlertError) Error() string             { return "price alert must be a number" }
func (priceAlertError) ValidationMessage() string { return "Price alert must be a number" }

func (p *PriceAlert) UnmarshalJSON(data []byte) error {
	p.Set = true
	p.Value = nil

	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}

	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		p.Value = &n
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return priceAlertError{}
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return priceAlertError{}
	}
	p.Value = &n
	return nil
}
