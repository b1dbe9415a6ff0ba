// Package quality scores a parsed receipt for completeness and arithmetic
// consistency. The score steers manual review; it never blocks approval and
// never mutates the record.
package quality

import (
	"fmt"
	"math"
	"strings"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

// Tolerance for comparing the item sum against the stated total. Generous
// enough to absorb per-line rounding on printed receipts.
const sumTolerance = 0.02

// Component weights. Criteria only ever add; filling a missing field can
// raise the score but never lower it.
const (
	wMerchant    = 0.20
	wDate        = 0.15
	wTotal       = 0.25
	wItems       = 0.15
	wRawText     = 0.10
	wConsistency = 0.15
)

// Assess is a pure function of the parsed receipt.
func Assess(p receipt.Parsed) receipt.Quality {
	var q receipt.Quality
	score := 0.0

	if strings.TrimSpace(p.Merchant) != "" {
		score += wMerchant
	} else {
		q.Issues = append(q.Issues, "merchant not recognized")
	}
	if p.Date != "" {
		score += wDate
	} else {
		q.Issues = append(q.Issues, "date not recognized")
	}
	if p.Total > 0 {
		score += wTotal
	} else {
		q.Issues = append(q.Issues, "total not recognized")
	}
	if len(p.Items) > 0 {
		score += wItems
	} else {
		q.Issues = append(q.Issues, "no line items")
	}
	if strings.TrimSpace(p.RawText) != "" {
		score += wRawText
	} else {
		q.Issues = append(q.Issues, "raw text missing")
	}

	// Invariant violations are flagged, never corrected here.
	if p.Total < 0 || p.Tax < 0 {
		q.Issues = append(q.Issues, "negative amount")
	}
	if p.Total > 0 && p.Tax > p.Total {
		q.Issues = append(q.Issues, fmt.Sprintf("tax %.2f exceeds total %.2f", p.Tax, p.Total))
	}

	if consistent, checked := itemSumConsistent(p); checked {
		if consistent {
			score += wConsistency
		} else {
			q.Issues = append(q.Issues, "item sum does not match total")
		}
	}

	q.Score = math.Round(math.Min(score, 1.0)*100) / 100
	return q
}

// itemSumConsistent compares the item sum against the total, accepting
// either a gross total or a net one (total minus tax). The second return
// value reports whether the check applied at all.
func itemSumConsistent(p receipt.Parsed) (bool, bool) {
	if len(p.Items) == 0 || p.Total <= 0 {
		return false, false
	}
	sum := 0.0
	for _, it := range p.Items {
		sum += it.Price
	}
	if math.Abs(sum-p.Total) <= sumTolerance {
		return true, true
	}
	if p.Tax > 0 && math.Abs(sum-(p.Total-p.Tax)) <= sumTolerance {
		return true, true
	}
	return false, true
}
