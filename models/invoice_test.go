package models

import "testing"

func TestInvoiceStatusTransitions(t *testing.T) {
	cases := []struct {
		from    InvoiceStatus
		to      InvoiceStatus
		allowed bool
	}{
		{InvoiceStatusDraft, InvoiceStatusSent, true},
		{InvoiceStatusDraft, InvoiceStatusVoid, true},
		{InvoiceStatusSent, InvoiceStatusPaid, true},
		{InvoiceStatusSent, InvoiceStatusOverdue, true},
		{InvoiceStatusSent, InvoiceStatusVoid, true},
		{InvoiceStatusOverdue, InvoiceStatusPaid, true},
		{InvoiceStatusOverdue, InvoiceStatusVoid, true},

		{InvoiceStatusDraft, InvoiceStatusPaid, false},
		{InvoiceStatusDraft, InvoiceStatusOverdue, false},
		{InvoiceStatusSent, InvoiceStatusDraft, false},
		{InvoiceStatusOverdue, InvoiceStatusSent, false},
		{InvoiceStatusSent, InvoiceStatusSent, false},
	}
	for _, tc := range cases {
		if got := isValidInvoiceTransition(tc.from, tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

// Paid and void are terminal. A paid invoice never goes overdue; a void
// invoice never comes back.
func TestInvoiceStatusTransitions_TerminalStates(t *testing.T) {
	all := []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusVoid}
	for _, terminal := range []InvoiceStatus{InvoiceStatusPaid, InvoiceStatusVoid} {
		for _, to := range all {
			if isValidInvoiceTransition(terminal, to) {
				t.Fatalf("%s is terminal but allows a move to %s", terminal, to)
			}
		}
	}
}
