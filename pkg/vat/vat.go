// Package vat aggregates invoice items and approved receipts into a
// sales-tax liability, and flags line items carrying a tax rate outside the
// configured statutory set.
package vat

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

// Kind distinguishes the sign an item contributes to the liability.
type Kind string

const (
	KindSale     Kind = "sale"
	KindPurchase Kind = "purchase"
)

// InvoiceItem is the minimal shape the reconciliation needs. Receipts are
// mapped into it (as purchases) before aggregation; invoice records arrive
// in it directly.
type InvoiceItem struct {
	ID          string   `json:"id"`
	Date        string   `json:"date,omitempty"`
	VATRate     *float64 `json:"vatRate"` // percent; nil when inconclusive
	AmountNet   float64  `json:"amountNet"`
	AmountGross float64  `json:"amountGross"`
	Kind        Kind     `json:"kind"`
}

// Mismatch flags an item whose vatRate is not a currently valid statutory
// rate.
type Mismatch struct {
	ID      string  `json:"id"`
	Date    string  `json:"date,omitempty"`
	VATRate float64 `json:"vatRate"`
}

// DefaultValidRates are the statutory rates (percent) accepted when no
// configuration overrides them. Policy data, not law of nature: always
// injectable.
var DefaultValidRates = []float64{0, 7, 19, 24}

// Engine evaluates liability and mismatches against a configured rate set.
type Engine struct {
	validRates []float64
}

// NewEngine builds an engine over the given statutory rates (percent);
// nil or empty falls back to DefaultValidRates.
func NewEngine(validRates []float64) *Engine {
	if len(validRates) == 0 {
		validRates = DefaultValidRates
	}
	rates := append([]float64(nil), validRates...)
	return &Engine{validRates: rates}
}

// Liability sums each item's tax portion (gross minus net), purchases
// negative, sales positive. Summation is exact (decimal); rounding to two
// places happens once, on the final sum, so per-item rounding error cannot
// compound.
func (e *Engine) Liability(items []InvoiceItem) float64 {
	acc := decimal.Zero
	for _, it := range items {
		tax := decimal.NewFromFloat(it.AmountGross).Sub(decimal.NewFromFloat(it.AmountNet))
		if it.Kind == KindPurchase {
			acc = acc.Sub(tax)
		} else {
			acc = acc.Add(tax)
		}
	}
	f, _ := acc.Round(2).Float64()
	return f
}

// DetectMismatches returns, in input order, the items whose vatRate is set
// but not in the valid statutory set. Items with a nil rate were already
// flagged soft at mapping time and are skipped here.
func (e *Engine) DetectMismatches(items []InvoiceItem) []Mismatch {
	var out []Mismatch
	for _, it := range items {
		if it.VATRate == nil {
			continue
		}
		if !e.isValidRate(*it.VATRate) {
			out = append(out, Mismatch{ID: it.ID, Date: it.Date, VATRate: *it.VATRate})
		}
	}
	return out
}

// ReceiptToInvoiceItems maps a parsed receipt into invoice items: one per
// line item, or a single item covering the total when the receipt has no
// lines. The rate is inferred from tax/(total-tax) and snapped to the
// nearest statutory rate; an inconclusive ratio (total == 0, total == tax)
// leaves the rate nil and the net equal to the gross.
func (e *Engine) ReceiptToInvoiceItems(p receipt.Parsed, kind Kind) []InvoiceItem {
	rate := e.inferRate(p.Total, p.Tax)
	if len(p.Items) == 0 {
		if p.Total == 0 {
			return nil
		}
		net := p.Total - p.Tax
		if rate == nil {
			net = p.Total
		}
		return []InvoiceItem{{
			ID:          uuid.NewString(),
			Date:        p.Date,
			VATRate:     rate,
			AmountNet:   round2(net),
			AmountGross: round2(p.Total),
			Kind:        kind,
		}}
	}
	out := make([]InvoiceItem, 0, len(p.Items))
	for _, it := range p.Items {
		net := it.Price
		if rate != nil {
			net = it.Price / (1 + *rate/100)
		}
		out = append(out, InvoiceItem{
			ID:          uuid.NewString(),
			Date:        p.Date,
			VATRate:     rate,
			AmountNet:   round2(net),
			AmountGross: round2(it.Price),
			Kind:        kind,
		})
	}
	return out
}

// inferRate derives the percent rate from the receipt's tax and total.
func (e *Engine) inferRate(total, tax float64) *float64 {
	if total <= 0 || tax < 0 || tax >= total {
		return nil
	}
	if tax == 0 {
		// A stated zero tax is conclusive when 0 is a valid rate.
		if e.isValidRate(0) {
			zero := 0.0
			return &zero
		}
		return nil
	}
	ratio := tax / (total - tax) * 100
	return e.snapRate(ratio)
}

// snapRate picks the valid statutory rate nearest to the inferred percent.
// Equidistant ties resolve to the lower rate.
func (e *Engine) snapRate(percent float64) *float64 {
	var best *float64
	bestDist := math.Inf(1)
	for i := range e.validRates {
		r := e.validRates[i]
		d := math.Abs(percent - r)
		if d < bestDist || (d == bestDist && best != nil && r < *best) {
			rc := r
			best = &rc
			bestDist = d
		}
	}
	return best
}

func (e *Engine) isValidRate(rate float64) bool {
	for _, r := range e.validRates {
		if math.Abs(r-rate) < 1e-9 {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
