package domain

import (
	"strings"
	"time"
)

// Project represents one pre-sale housing development from the registry
// dataset. ID is the primary linkage key; after upstream registry merges it
// may carry a comma-separated list of alias identifiers, which the linker
// expands before matching.
type Project struct {
	ID         string `json:"id"`
	City       string `json:"city"`
	District   string `json:"district"`
	Name       string `json:"name"`
	TotalUnits int    `json:"total_units"`

	// Marketing-start sources in resolution priority order.
	SelfSaleStart    *time.Time `json:"self_sale_start,omitempty"`
	AgentSaleStart   *time.Time `json:"agent_sale_start,omitempty"`
	RegistrationDate *time.Time `json:"registration_date,omitempty"`
	PermitDate       *time.Time `json:"permit_date,omitempty"`
}

// MarketingStart resolves the marketing start date: first non-nil source in
// priority order self-sale > agent-sale > registration > permit. The second
// return is false when no source is available; such projects are excluded
// from time-based analysis.
func (p Project) MarketingStart() (time.Time, bool) {
	for _, src := range []*time.Time{p.SelfSaleStart, p.AgentSaleStart, p.RegistrationDate, p.PermitDate} {
		if src != nil {
			return *src, true
		}
	}
	return time.Time{}, false
}

// CompositeKey returns the fallback join key used when identifier matching
// fails: city, district and name joined with "|", whitespace-trimmed.
func (p Project) CompositeKey() string {
	return compositeKey(p.City, p.District, p.Name)
}

func compositeKey(city, district, name string) string {
	return strings.TrimSpace(city) + "|" + strings.TrimSpace(district) + "|" + strings.TrimSpace(name)
}
