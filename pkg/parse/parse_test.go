package parse

import (
	"errors"
	"reflect"
	"testing"
)

const sampleReceipt = `ACME Supermarket
Main Street 4
2024-03-05
Milk.............3.49
Bread 2.29
Eggs 10pc 5.20
Subtotal: 10.98
Tax: 1.10
Total: 12.08
Thank you!`

func TestParseSampleReceipt(t *testing.T) {
	p, err := Parse(sampleReceipt)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.Merchant != "ACME Supermarket" {
		t.Fatalf("merchant = %q", p.Merchant)
	}
	if p.Date != "2024-03-05" {
		t.Fatalf("date = %q", p.Date)
	}
	if p.Total != 12.08 {
		t.Fatalf("total = %v", p.Total)
	}
	if p.Tax != 1.10 {
		t.Fatalf("tax = %v", p.Tax)
	}
	if len(p.Items) != 3 {
		t.Fatalf("expected 3 items, got %d: %#v", len(p.Items), p.Items)
	}
	if p.Items[0].Name != "Milk" || p.Items[0].Price != 3.49 {
		t.Fatalf("first item = %#v", p.Items[0])
	}
	if p.RawText != sampleReceipt {
		t.Fatalf("raw text was modified")
	}
}

func TestParseDeterministic(t *testing.T) {
	a, err := Parse(sampleReceipt)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	b, err := Parse(sampleReceipt)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("identical input produced different output:\n%#v\n%#v", a, b)
	}
}

func TestParseEmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t\n"} {
		if _, err := Parse(text); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("expected ErrEmptyInput for %q, got %v", text, err)
		}
	}
}

func TestParseNoisyInputNeverFails(t *testing.T) {
	noisy := "@@##!! 00 ..,, ----\nxXy 9z\n%%%"
	p, err := Parse(noisy)
	if err != nil {
		t.Fatalf("noisy input must degrade, not fail: %v", err)
	}
	if p.RawText != noisy {
		t.Fatalf("raw text was modified")
	}
}

func TestParseGermanReceipt(t *testing.T) {
	text := `Bäckerei Schmidt
05.03.2024
Brezel 1,20
Kaffee 2,80
MwSt 0,64
Summe: 4,00`
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.Merchant != "Bäckerei Schmidt" {
		t.Fatalf("merchant = %q", p.Merchant)
	}
	if p.Date != "2024-03-05" {
		t.Fatalf("date = %q", p.Date)
	}
	if p.Total != 4.00 {
		t.Fatalf("total = %v", p.Total)
	}
	if p.Tax != 0.64 {
		t.Fatalf("tax = %v", p.Tax)
	}
	if len(p.Items) != 2 {
		t.Fatalf("expected 2 items, got %#v", p.Items)
	}
}

func TestParseSubtotalOnly(t *testing.T) {
	// A net subtotal with no grand total carries the tax on top.
	text := "Shop\nSubtotal 10.00\nVAT 1.90"
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if p.Total != 11.90 {
		t.Fatalf("total = %v, want 11.90", p.Total)
	}
}

func TestParseKeywordBoundaries(t *testing.T) {
	// "Sumatra" must not read as the "sum" total keyword.
	text := "Coffee Corner\nSumatra blend 4.50\nTotal 4.50"
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(p.Items) != 1 || p.Items[0].Name != "Sumatra blend" {
		t.Fatalf("items = %#v", p.Items)
	}
	if p.Total != 4.50 {
		t.Fatalf("total = %v", p.Total)
	}
}

func TestParseSlashDate(t *testing.T) {
	p, err := Parse("Store\n03/05/2024\nTotal 5.00")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	// Slash dates read month-first when unambiguous.
	if p.Date != "2024-03-05" {
		t.Fatalf("date = %q", p.Date)
	}
}
