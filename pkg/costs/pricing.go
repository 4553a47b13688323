package costs

import (
	"errors"
	"fmt"
	"sort"

	"mercator-hq/sentinel/pkg/config"
)

// ErrUnknownService is returned by Table.Lookup for services without a
// pricing table. Estimator treats it as a soft gap: the estimate is zero and
// flagged as unpriced.
var ErrUnknownService = errors.New("no pricing for service")

// Tier is a graduated price tier. UpTo is the cumulative upper bound of
// billable units (after the free allotment) covered by the tier; 0 means
// unbounded.
type Tier struct {
	UpTo     int64
	UnitCost float64
}

// Pricing is the pricing function of one service: a monthly free allotment,
// then graduated tiers.
type Pricing struct {
	FreeUnits int64
	Tiers     []Tier
	Currency  string
}

// PricingFromConfig converts a configured pricing table.
func PricingFromConfig(cfg config.PricingConfig) Pricing {
	p := Pricing{
		FreeUnits: cfg.FreeUnits,
		Tiers:     make([]Tier, 0, len(cfg.Tiers)),
		Currency:  cfg.Currency,
	}
	if p.Currency == "" {
		p.Currency = config.DefaultPricingCurrency
	}
	for _, t := range cfg.Tiers {
		p.Tiers = append(p.Tiers, Tier{UpTo: t.UpTo, UnitCost: t.UnitCost})
	}
	return p
}

// Cost returns the price of units in one month. It is a pure function.
//
// Units beyond the bound of a bounded last tier are priced at the last
// tier's unit cost.
func (p Pricing) Cost(units int64) float64 {
	billable := units - p.FreeUnits
	if billable <= 0 || len(p.Tiers) == 0 {
		return 0
	}

	var (
		total   float64
		covered int64
	)
	for i, tier := range p.Tiers {
		last := i == len(p.Tiers)-1
		if tier.UpTo == 0 || last || billable <= tier.UpTo {
			total += float64(billable-covered) * tier.UnitCost
			return total
		}
		total += float64(tier.UpTo-covered) * tier.UnitCost
		covered = tier.UpTo
	}
	return total
}

// Table maps service names to pricing. A Table is built once and never
// mutated.
type Table map[string]Pricing

// NewTable builds a Table from configuration.
func NewTable(cfg map[string]config.PricingConfig) Table {
	t := make(Table, len(cfg))
	for service, pricing := range cfg {
		t[service] = PricingFromConfig(pricing)
	}
	return t
}

// Lookup returns the pricing of service.
func (t Table) Lookup(service string) (Pricing, error) {
	p, ok := t[service]
	if !ok {
		return Pricing{}, fmt.Errorf("%w: %s", ErrUnknownService, service)
	}
	return p, nil
}

// Services returns the priced services sorted by name.
func (t Table) Services() []string {
	services := make([]string, 0, len(t))
	for s := range t {
		services = append(services, s)
	}
	sort.Strings(services)
	return services
}
