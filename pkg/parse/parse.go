// Package parse converts raw OCR text into a structured receipt record. It
// is pure and deterministic: identical input yields identical output, noisy
// input degrades to a best-effort partial result instead of failing.
package parse

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/mxxx222/converto-receipts/pkg/receipt"
)

// ErrEmptyInput is the only modeled parser failure: structurally invalid
// (empty) input. Garbled-but-present text never errors.
var ErrEmptyInput = errors.New("empty input")

// Keywords are the locale-specific labels marking total/tax lines. Adding a
// language means extending these lists, not touching control flow.
type Keywords struct {
	Total    []string
	Subtotal []string
	Tax      []string
}

// DefaultKeywords covers English and German receipts.
var DefaultKeywords = Keywords{
	Total:    []string{"total", "amount due", "sum", "summe", "gesamt", "gesamtbetrag", "zu zahlen"},
	Subtotal: []string{"subtotal", "sub-total", "zwischensumme"},
	Tax:      []string{"tax", "vat", "mwst", "ust", "mehrwertsteuer"},
}

var (
	reISODate    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	reLocaleDate = regexp.MustCompile(`\b(\d{1,2})([./])(\d{1,2})[./](\d{2,4})\b`)
	// A price-shaped token at the end of a line: decimal amount, optionally
	// thousand-grouped, optionally preceded by dot leaders or a currency mark.
	reTrailingPrice = regexp.MustCompile(`([0-9]{1,3}(?:[.,][0-9]{3})*[.,][0-9]{2})\s*[€$£]?\s*$`)
	// Any amount-shaped token, for labeled total/tax lines.
	reAmountToken = regexp.MustCompile(`[0-9]+(?:[.,][0-9]{3})*(?:[.,][0-9]{1,2})?`)
)

// Parse extracts a structured receipt from OCR text using the default
// keyword locales.
func Parse(text string) (receipt.Parsed, error) {
	return ParseWith(text, DefaultKeywords)
}

// ParseWith is Parse with caller-supplied keyword tables.
func ParseWith(text string, kw Keywords) (receipt.Parsed, error) {
	if strings.TrimSpace(text) == "" {
		return receipt.Parsed{}, ErrEmptyInput
	}
	parsed := receipt.Parsed{RawText: text}

	lines := strings.Split(text, "\n")
	var subtotal float64
	var haveTotal, haveSubtotal bool
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case containsAny(lower, kw.Subtotal):
			if v, ok := lastAmount(line); ok {
				subtotal = v
				haveSubtotal = true
			}
		case containsAny(lower, kw.Total):
			if v, ok := lastAmount(line); ok {
				parsed.Total = v
				haveTotal = true
			}
		case containsAny(lower, kw.Tax):
			if v, ok := lastAmount(line); ok {
				parsed.Tax = v
			}
		default:
			if m := reTrailingPrice.FindStringSubmatch(line); m != nil {
				name := strings.TrimRight(line[:strings.LastIndex(line, m[1])], " .·:…-*\t")
				price, ok := ParseAmount(m[1])
				if ok && name != "" {
					parsed.Items = append(parsed.Items, receipt.Item{Name: name, Price: price})
				}
			} else if parsed.Merchant == "" && isHeaderLine(line) {
				parsed.Merchant = line
			}
		}
	}

	// A receipt quoting only a net subtotal carries the tax on top of it.
	if !haveTotal && haveSubtotal {
		parsed.Total = round2(subtotal + parsed.Tax)
	}
	parsed.Date = findDate(text)
	return parsed, nil
}

// isHeaderLine accepts the first merchant-looking line: mostly letters, not
// an amount or date fragment.
func isHeaderLine(line string) bool {
	letters, digits := 0, 0
	for _, r := range line {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r > 127:
			letters++
		case r >= '0' && r <= '9':
			digits++
		}
	}
	return letters > 0 && letters > digits
}

// containsAny matches keywords on word boundaries, so "Sumatra" never reads
// as "sum" and "subtotal" never reads as "total".
func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		for idx := 0; ; {
			i := strings.Index(lower[idx:], k)
			if i < 0 {
				break
			}
			pos := idx + i
			before := pos == 0 || !isasciiLetter(lower[pos-1])
			after := pos+len(k) >= len(lower) || !isasciiLetter(lower[pos+len(k)])
			if before && after {
				return true
			}
			idx = pos + len(k)
		}
	}
	return false
}

func isasciiLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// lastAmount returns the rightmost amount-shaped token of a labeled line.
func lastAmount(line string) (float64, bool) {
	tokens := reAmountToken.FindAllString(line, -1)
	for i := len(tokens) - 1; i >= 0; i-- {
		if v, ok := ParseAmount(tokens[i]); ok {
			return v, true
		}
	}
	return 0, false
}

// findDate returns the first ISO-shaped date in the text, else the first
// locale-shaped one normalized to ISO. Dot separators read day-first
// (German); slashes read month-first unless the first field exceeds 12.
func findDate(text string) string {
	if m := reISODate.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		if validDate(y, mo, d) {
			return m[0]
		}
	}
	if m := reLocaleDate.FindStringSubmatch(text); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[3])
		y, _ := strconv.Atoi(m[4])
		if y < 100 {
			y += 2000
		}
		day, month := a, b
		if m[2] == "/" && a <= 12 && b <= 12 {
			month, day = a, b
		} else if a <= 12 && b > 12 {
			month, day = a, b
		}
		if validDate(y, month, day) {
			return fmt.Sprintf("%04d-%02d-%02d", y, month, day)
		}
	}
	return ""
}

func validDate(y, m, d int) bool {
	return y >= 1970 && y <= 2100 && m >= 1 && m <= 12 && d >= 1 && d <= 31
}
