package models

import "testing"

func TestGetValidPurposesForFamily(t *testing.T) {
	email := GetValidPurposesForFamily(TemplateFamilyEmail)
	if len(email) == 0 {
		t.Fatal("email family must carry event purposes")
	}
	for _, p := range email {
		if p == "general" {
			t.Fatal("email family must not fall back to the general purpose")
		}
	}

	sms := GetValidPurposesForFamily(TemplateFamilySms)
	for _, p := range sms {
		if len(p) < 4 || p[:4] != "sms_" {
			t.Fatalf("sms purpose %q must carry the sms_ prefix", p)
		}
	}

	// the sms vocabulary is the sms_-prefixed mirror of the email vocabulary
	if len(sms) != len(email) {
		t.Fatalf("sms family has %d purposes, email has %d; the two must mirror", len(sms), len(email))
	}
	for _, p := range email {
		if !IsValidPurposeForFamily(TemplateFamilySms, "sms_"+p) {
			t.Fatalf("sms family missing purpose sms_%s", p)
		}
	}

	warranty := GetValidPurposesForFamily(TemplateFamilyWarranty)
	if len(warranty) != 1 || warranty[0] != "general" {
		t.Fatalf("document families take the single general purpose, got %v", warranty)
	}
}

func TestIsValidPurposeForFamily(t *testing.T) {
	cases := []struct {
		family  TemplateFamily
		purpose string
		valid   bool
	}{
		{TemplateFamilyEmail, "invoice_sent", true},
		{TemplateFamilyEmail, "sms_invoice_sent", false},
		{TemplateFamilyEmail, "general", false},
		{TemplateFamilySms, "sms_payment_reminder", true},
		{TemplateFamilySms, "payment_reminder", false},
		{TemplateFamilyChecklist, "general", true},
		{TemplateFamilyChecklist, "invoice_sent", false},
	}
	for _, tc := range cases {
		if got := IsValidPurposeForFamily(tc.family, tc.purpose); got != tc.valid {
			t.Fatalf("IsValidPurposeForFamily(%s, %s) expected %v, got %v", tc.family, tc.purpose, tc.valid, got)
		}
	}
}

func TestRenderTemplate(t *testing.T) {
	data := map[string]string{
		"client_name":   "Dave",
		"invoice_total": "275.00",
	}

	got := RenderTemplate("Hi {{client_name}}, your invoice for ${{invoice_total}} is ready.", data)
	if got != "Hi Dave, your invoice for $275.00 is ready." {
		t.Fatalf("unexpected render: %q", got)
	}

	// unknown tokens stay in place so a bad template is visible
	got = RenderTemplate("Hi {{client_name}}, ref {{job_number}}", data)
	if got != "Hi Dave, ref {{job_number}}" {
		t.Fatalf("unknown token must be left in place, got %q", got)
	}

	got = RenderTemplate("{{client_name}} and {{client_name}}", data)
	if got != "Dave and Dave" {
		t.Fatalf("repeated token must be replaced everywhere, got %q", got)
	}

	if got := RenderTemplate("no tokens here", data); got != "no tokens here" {
		t.Fatalf("plain content must pass through, got %q", got)
	}
}
