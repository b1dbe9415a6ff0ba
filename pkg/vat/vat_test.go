package vat

import (
	"math"
	"testing"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

func rate(v float64) *float64 { return &v }

func TestLiabilitySignsAndRounding(t *testing.T) {
	e := NewEngine(nil)
	items := []InvoiceItem{
		{ID: "s1", VATRate: rate(19), AmountNet: 100.00, AmountGross: 119.00, Kind: KindSale},
		{ID: "s2", VATRate: rate(7), AmountNet: 50.00, AmountGross: 53.50, Kind: KindSale},
		{ID: "p1", VATRate: rate(19), AmountNet: 10.00, AmountGross: 11.90, Kind: KindPurchase},
	}
	got := e.Liability(items)
	// 19.00 + 3.50 - 1.90
	if got != 20.60 {
		t.Fatalf("liability = %v, want 20.60", got)
	}
}

func TestLiabilityEmpty(t *testing.T) {
	e := NewEngine(nil)
	if got := e.Liability(nil); got != 0 {
		t.Fatalf("liability of no items = %v, want 0", got)
	}
}

func TestLiabilitySingleFinalRounding(t *testing.T) {
	e := NewEngine(nil)
	// Each item's tax portion is 0.005; per-item rounding would give 0.03,
	// a single final rounding gives 0.02.
	var items []InvoiceItem
	for i := 0; i < 3; i++ {
		items = append(items, InvoiceItem{VATRate: rate(19), AmountNet: 1.000, AmountGross: 1.005, Kind: KindSale})
	}
	got := e.Liability(items)
	if got != 0.02 {
		t.Fatalf("liability = %v, want 0.02 (rounded once on the sum)", got)
	}
}

func TestLiabilityAdditive(t *testing.T) {
	e := NewEngine(nil)
	a := []InvoiceItem{
		{VATRate: rate(19), AmountNet: 33.33, AmountGross: 39.66, Kind: KindSale},
		{VATRate: rate(7), AmountNet: 12.49, AmountGross: 13.36, Kind: KindPurchase},
	}
	b := []InvoiceItem{
		{VATRate: rate(19), AmountNet: 8.40, AmountGross: 10.00, Kind: KindSale},
	}
	sep := e.Liability(a) + e.Liability(b)
	combined := e.Liability(append(append([]InvoiceItem{}, a...), b...))
	if math.Abs(sep-combined) > 0.01 {
		t.Fatalf("liability not additive: %v vs %v", sep, combined)
	}
}

func TestDetectMismatches(t *testing.T) {
	e := NewEngine(nil)
	items := []InvoiceItem{
		{ID: "a", VATRate: rate(19), Kind: KindSale},
		{ID: "b", VATRate: rate(17), Date: "2024-02-01", Kind: KindSale},
		{ID: "c", VATRate: nil, Kind: KindSale},
		{ID: "d", VATRate: rate(24), Kind: KindPurchase},
		{ID: "e", VATRate: rate(5), Kind: KindSale},
	}
	got := e.DetectMismatches(items)
	if len(got) != 2 {
		t.Fatalf("mismatches = %#v, want 2", got)
	}
	if got[0].ID != "b" || got[0].VATRate != 17 || got[0].Date != "2024-02-01" {
		t.Fatalf("first mismatch = %#v", got[0])
	}
	if got[1].ID != "e" || got[1].VATRate != 5 {
		t.Fatalf("second mismatch = %#v", got[1])
	}
}

func TestDetectMismatchesCustomRates(t *testing.T) {
	e := NewEngine([]float64{0, 20})
	items := []InvoiceItem{
		{ID: "a", VATRate: rate(19), Kind: KindSale},
		{ID: "b", VATRate: rate(20), Kind: KindSale},
	}
	got := e.DetectMismatches(items)
	if len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("mismatches = %#v", got)
	}
}

func TestReceiptMappingSnapsRate(t *testing.T) {
	e := NewEngine(nil)
	// tax/(total-tax) = 1.90/10.00 = 19%
	p := receipt.Parsed{Date: "2024-03-05", Total: 11.90, Tax: 1.90}
	items := e.ReceiptToInvoiceItems(p, KindPurchase)
	if len(items) != 1 {
		t.Fatalf("items = %#v", items)
	}
	it := items[0]
	if it.VATRate == nil || *it.VATRate != 19 {
		t.Fatalf("rate = %v, want 19", it.VATRate)
	}
	if it.AmountNet != 10.00 || it.AmountGross != 11.90 {
		t.Fatalf("amounts = %v / %v", it.AmountNet, it.AmountGross)
	}
	if it.Kind != KindPurchase || it.Date != "2024-03-05" || it.ID == "" {
		t.Fatalf("item = %#v", it)
	}
}

func TestReceiptMappingInconclusiveRate(t *testing.T) {
	e := NewEngine(nil)
	for _, p := range []receipt.Parsed{
		{Total: 0, Tax: 0},
		{Total: -5, Tax: 1},
	} {
		if items := e.ReceiptToInvoiceItems(p, KindPurchase); len(items) != 0 {
			t.Fatalf("total %v mapped to %#v", p.Total, items)
		}
	}
	// tax == total is inconclusive: rate nil, net stays gross.
	items := e.ReceiptToInvoiceItems(receipt.Parsed{Total: 5, Tax: 5}, KindPurchase)
	if len(items) != 1 || items[0].VATRate != nil {
		t.Fatalf("items = %#v", items)
	}
	if items[0].AmountNet != 5 || items[0].AmountGross != 5 {
		t.Fatalf("amounts = %#v", items[0])
	}
}

func TestReceiptMappingZeroTax(t *testing.T) {
	e := NewEngine(nil)
	items := e.ReceiptToInvoiceItems(receipt.Parsed{Total: 10, Tax: 0}, KindPurchase)
	if len(items) != 1 || items[0].VATRate == nil || *items[0].VATRate != 0 {
		t.Fatalf("items = %#v", items)
	}

	// Without 0 in the statutory set, zero tax is inconclusive.
	e2 := NewEngine([]float64{7, 19})
	items = e2.ReceiptToInvoiceItems(receipt.Parsed{Total: 10, Tax: 0}, KindPurchase)
	if len(items) != 1 || items[0].VATRate != nil {
		t.Fatalf("items = %#v", items)
	}
}

func TestReceiptMappingPerLineItems(t *testing.T) {
	e := NewEngine(nil)
	p := receipt.Parsed{
		Total: 11.90,
		Tax:   1.90,
		Items: []receipt.Item{
			{Name: "A", Price: 5.95},
			{Name: "B", Price: 5.95},
		},
	}
	items := e.ReceiptToInvoiceItems(p, KindPurchase)
	if len(items) != 2 {
		t.Fatalf("items = %#v", items)
	}
	for _, it := range items {
		if it.VATRate == nil || *it.VATRate != 19 {
			t.Fatalf("rate = %v", it.VATRate)
		}
		if it.AmountGross != 5.95 || it.AmountNet != 5.00 {
			t.Fatalf("amounts = %v / %v", it.AmountNet, it.AmountGross)
		}
	}
}

func TestSnapRateTieBreaksLow(t *testing.T) {
	e := NewEngine([]float64{10, 20})
	got := e.snapRate(15)
	if got == nil || *got != 10 {
		t.Fatalf("snap(15) = %v, want 10", got)
	}
	if got := e.snapRate(16); got == nil || *got != 20 {
		t.Fatalf("snap(16) = %v, want 20", got)
	}
	if got := e.snapRate(14); got == nil || *got != 10 {
		t.Fatalf("snap(14) = %v, want 10", got)
	}
}
