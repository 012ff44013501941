package models

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tradietrack/tradietrack_backend/utils"
)

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}

// DocumentLine is the amount-bearing part of a quote/invoice detail row,
// shared so the totals math stays in one place.
type DocumentLine struct {
	Qty      decimal.Decimal
	UnitRate decimal.Decimal
}

// DocumentTotals is what a quote/invoice stores after recalculation.
// Invariant: Subtotal + GstAmount == Total at 2 dp.
type DocumentTotals struct {
	Subtotal  decimal.Decimal
	GstAmount decimal.Decimal
	Total     decimal.Decimal
}

// CalculateDocumentTotals sums line amounts and applies GST once at document
// scale. GST is never summed per line; per-line rounding would let the
// reconciliation drift by a cent per line.
func CalculateDocumentTotals(lines []DocumentLine, isGstInclusive bool) DocumentTotals {

	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Qty.Mul(line.UnitRate))
	}
	subtotal = subtotal.Round(2)

	gstAmount := utils.CalculateGstAmount(subtotal, isGstInclusive)

	var total decimal.Decimal
	if isGstInclusive {
		// gst is already inside the line amounts
		total = subtotal
		subtotal = subtotal.Sub(gstAmount)
	} else {
		total = subtotal.Add(gstAmount)
	}

	return DocumentTotals{
		Subtotal:  subtotal,
		GstAmount: gstAmount,
		Total:     total,
	}
}
