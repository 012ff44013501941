package config

// SystemTemplate is the built-in fallback used when a tenant has no active
// template for a (family, purpose) pair. Resolution misses are a soft
// condition, not an error; callers render these instead.
type SystemTemplate struct {
	Family  string
	Purpose string
	Subject string
	Body    string
}

var systemTemplates = map[string]SystemTemplate{
	"email:quote_sent": {
		Family: "email", Purpose: "quote_sent",
		Subject: "Your quote {{quote_number}} from {{business_name}}",
		Body:    "Hi {{client_name}},\n\nPlease find attached quote {{quote_number}} for {{total}}.\n\nRegards,\n{{business_name}}",
	},
	"email:invoice_sent": {
		Family: "email", Purpose: "invoice_sent",
		Subject: "Invoice {{invoice_number}} from {{business_name}}",
		Body:    "Hi {{client_name}},\n\nInvoice {{invoice_number}} for {{total}} is now due.\n\nRegards,\n{{business_name}}",
	},
	"email:payment_reminder": {
		Family: "email", Purpose: "payment_reminder",
		Subject: "Payment reminder: invoice {{invoice_number}}",
		Body:    "Hi {{client_name}},\n\nThis is a friendly reminder that invoice {{invoice_number}} for {{total}} is outstanding.\n\nRegards,\n{{business_name}}",
	},
	"email:job_confirmation": {
		Family: "email", Purpose: "job_confirmation",
		Subject: "Booking confirmed: {{job_title}}",
		Body:    "Hi {{client_name}},\n\nYour booking for {{job_title}} on {{scheduled_date}} is confirmed.\n\nRegards,\n{{business_name}}",
	},
	"email:job_completed": {
		Family: "email", Purpose: "job_completed",
		Subject: "Job completed: {{job_title}}",
		Body:    "Hi {{client_name}},\n\nWe have completed {{job_title}}. Thank you for your business.\n\nRegards,\n{{business_name}}",
	},
	"sms:sms_job_confirmation": {
		Family: "sms", Purpose: "sms_job_confirmation",
		Body: "{{business_name}}: your booking for {{job_title}} on {{scheduled_date}} is confirmed.",
	},
	"sms:sms_payment_reminder": {
		Family: "sms", Purpose: "sms_payment_reminder",
		Body: "{{business_name}}: invoice {{invoice_number}} for {{total}} is outstanding.",
	},
}

// GetSystemTemplate returns the built-in template for family:purpose.
// ok=false means there is no system fallback and the caller must skip.
func GetSystemTemplate(family, purpose string) (SystemTemplate, bool) {
	t, ok := systemTemplates[family+":"+purpose]
	return t, ok
}

// ListSystemTemplates returns every built-in template, used to seed a new
// tenant's template set.
func ListSystemTemplates() []SystemTemplate {
	out := make([]SystemTemplate, 0, len(systemTemplates))
	for _, t := range systemTemplates {
		out = append(out, t)
	}
	return out
}
