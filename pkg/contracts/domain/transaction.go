package domain

import "time"

// Transaction represents one registered unit sale from the actual-price
// dataset. RefID is expected to match some Project.ID; the location fields
// back the composite-key fallback.
type Transaction struct {
	RefID    string `json:"ref_id"`
	City     string `json:"city"`
	District string `json:"district"`
	Name     string `json:"name"`

	// Date is the normalized transaction date; nil when the raw value was
	// unparseable (the row still counts toward sold units but is excluded
	// from quarter bucketing).
	Date *time.Time `json:"date,omitempty"`
	// Period is the fiscal-quarter label derived from Date, e.g. "111Y3S".
	Period string `json:"period,omitempty"`

	TotalPrice float64 `json:"total_price,omitempty"`
	UnitPrice  float64 `json:"unit_price,omitempty"`

	// Cancelled marks transactions carrying a non-empty cancellation
	// remark. They are counted separately and skipped for first-sale
	// date lookups.
	Cancelled bool `json:"cancelled,omitempty"`
}

// CompositeKey returns the fallback join key for this transaction.
func (t Transaction) CompositeKey() string {
	return compositeKey(t.City, t.District, t.Name)
}
