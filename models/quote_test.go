package models

import "testing"

func TestQuoteStatusTransitions(t *testing.T) {
	cases := []struct {
		from    QuoteStatus
		to      QuoteStatus
		allowed bool
	}{
		{QuoteStatusDraft, QuoteStatusSent, true},
		{QuoteStatusSent, QuoteStatusAccepted, true},
		{QuoteStatusSent, QuoteStatusDeclined, true},
		{QuoteStatusSent, QuoteStatusExpired, true},

		{QuoteStatusDraft, QuoteStatusAccepted, false},
		{QuoteStatusDraft, QuoteStatusDeclined, false},
		{QuoteStatusSent, QuoteStatusDraft, false},
		{QuoteStatusAccepted, QuoteStatusDeclined, false},
		{QuoteStatusDeclined, QuoteStatusSent, false},
		{QuoteStatusExpired, QuoteStatusAccepted, false},
		{QuoteStatusDraft, QuoteStatusDraft, false},
	}
	for _, tc := range cases {
		if got := isValidQuoteTransition(tc.from, tc.to); got != tc.allowed {
			t.Fatalf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
}

// Accepted, declined, and expired are terminal. Nothing moves out of them.
func TestQuoteStatusTransitions_TerminalStates(t *testing.T) {
	all := []QuoteStatus{QuoteStatusDraft, QuoteStatusSent, QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired}
	for _, terminal := range []QuoteStatus{QuoteStatusAccepted, QuoteStatusDeclined, QuoteStatusExpired} {
		for _, to := range all {
			if isValidQuoteTransition(terminal, to) {
				t.Fatalf("%s is terminal but allows a move to %s", terminal, to)
			}
		}
	}
}
