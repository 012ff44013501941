package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func dl(qty, rate string) DocumentLine {
	return DocumentLine{
		Qty:      decimal.RequireFromString(qty),
		UnitRate: decimal.RequireFromString(rate),
	}
}

func TestCalculateDocumentTotals_GstExclusive(t *testing.T) {
	totals := CalculateDocumentTotals([]DocumentLine{
		dl("2", "100"),
		dl("1", "50"),
	}, false)

	if totals.Subtotal.String() != "250" {
		t.Fatalf("expected subtotal 250, got %s", totals.Subtotal)
	}
	if totals.GstAmount.String() != "25" {
		t.Fatalf("expected gst 25, got %s", totals.GstAmount)
	}
	if totals.Total.String() != "275" {
		t.Fatalf("expected total 275, got %s", totals.Total)
	}
}

func TestCalculateDocumentTotals_GstInclusive(t *testing.T) {
	totals := CalculateDocumentTotals([]DocumentLine{
		dl("1", "110"),
	}, true)

	if totals.GstAmount.String() != "10" {
		t.Fatalf("expected gst 10, got %s", totals.GstAmount)
	}
	if totals.Subtotal.String() != "100" {
		t.Fatalf("expected subtotal 100, got %s", totals.Subtotal)
	}
	if totals.Total.String() != "110" {
		t.Fatalf("expected total 110, got %s", totals.Total)
	}
}

// Subtotal + GstAmount must equal Total at 2 dp regardless of how awkward the
// line amounts are. GST is applied once at document scale, so per-line
// rounding can never introduce a cent of drift.
func TestCalculateDocumentTotals_Reconciles(t *testing.T) {
	lineSets := [][]DocumentLine{
		{dl("3", "33.33")},
		{dl("1", "99.99"), dl("2", "0.05")},
		{dl("7", "14.2857"), dl("1", "0.01")},
		{dl("1.5", "66.67"), dl("2.25", "19.99"), dl("1", "0.03")},
		{dl("1", "0.01")},
	}

	for _, lines := range lineSets {
		for _, inclusive := range []bool{true, false} {
			totals := CalculateDocumentTotals(lines, inclusive)
			sum := totals.Subtotal.Add(totals.GstAmount)
			if !sum.Equal(totals.Total) {
				t.Fatalf("inclusive=%v: subtotal %s + gst %s = %s, want total %s",
					inclusive, totals.Subtotal, totals.GstAmount, sum, totals.Total)
			}
		}
	}
}

func TestCalculateDocumentTotals_Empty(t *testing.T) {
	totals := CalculateDocumentTotals(nil, false)
	if !totals.Subtotal.IsZero() || !totals.GstAmount.IsZero() || !totals.Total.IsZero() {
		t.Fatalf("expected all-zero totals, got %s/%s/%s", totals.Subtotal, totals.GstAmount, totals.Total)
	}
}
