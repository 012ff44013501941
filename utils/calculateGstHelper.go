package utils

import (
	"github.com/shopspring/decimal"
)

// GstRatePercent is the Australian goods-and-services tax rate.
var GstRatePercent = decimal.NewFromInt(10)

// CalculateGstAmount computes the GST portion of an amount.
// Tax-inclusive: (amount / (100 + rate)) * rate
// Tax-exclusive: (amount / 100) * rate
// Rounded to 2 dp at the end so line sums reconcile at document scale.
func CalculateGstAmount(amount decimal.Decimal, isGstInclusive bool) decimal.Decimal {
	var gstAmount decimal.Decimal
	if isGstInclusive {
		gstAmount = amount.DivRound(GstRatePercent.Add(decimal.NewFromInt(100)), 4).Mul(GstRatePercent)
	} else {
		gstAmount = amount.DivRound(decimal.NewFromInt(100), 4).Mul(GstRatePercent)
	}
	return gstAmount.Round(2)
}

// CalculateDiscountAmount computes a discount from a percentage ("P") or
// absolute ("A") discount value.
func CalculateDiscountAmount(subTotal decimal.Decimal, discount decimal.Decimal, discountType string) decimal.Decimal {

	var discountAmount decimal.Decimal

	decimalOneHundred := decimal.NewFromInt(100)

	if discount.GreaterThan(decimal.Zero) {
		if discountType == "P" {
			discountAmount = subTotal.Mul(discount).DivRound(decimalOneHundred, 2)
		} else {
			discountAmount = discount
		}
	} else {
		discountAmount = decimal.Zero
	}

	return discountAmount
}
