package plan

import (
	"github.com/shopspring/decimal"
)

// Offer is a purchasable plan and its list price in rupees.
type Offer struct {
	Plan     Plan
	Name     string
	PriceINR decimal.Decimal
}

const Currency = "INR"

var catalog = map[Plan]Offer{
	Essentials: {Plan: Essentials, Name: "Essentials", PriceINR: decimal.RequireFromString("99")},
	Pro:        {Plan: Pro, Name: "Pro", PriceINR: decimal.RequireFromString("299")},
	Recruiter:  {Plan: Recruiter, Name: "Recruiter", PriceINR: decimal.RequireFromString("999")},
}

var paisePerRupee = decimal.NewFromInt(100)

// OfferFor returns the catalogue entry for a paid plan.
func OfferFor(p Plan) (Offer, bool) {
	o, ok := catalog[p]
	return o, ok
}

// AmountPaise converts the rupee price into the gateway's minor unit.
func (o Offer) AmountPaise() int64 {
	return o.PriceINR.Mul(paisePerRupee).Round(0).IntPart()
}

// Offers returns the catalogue in tier order.
func Offers() []Offer {
	out := make([]Offer, 0, len(catalog))
	for _, p := range All {
		if o, ok := catalog[p]; ok {
			out = append(out, o)
		}
	}
	return out
}
