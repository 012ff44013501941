package models

import (
	"encoding/json"
	"errors"
)

type SubscriptionTier string

const (
	SubscriptionTierFree  SubscriptionTier = "free"
	SubscriptionTierPro   SubscriptionTier = "pro"
	SubscriptionTierTeam  SubscriptionTier = "team"
	SubscriptionTierTrial SubscriptionTier = "trial"
)

func (t *SubscriptionTier) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("subscriptionTier must be string")
	}

	tiers := map[string]SubscriptionTier{
		"free":  SubscriptionTierFree,
		"pro":   SubscriptionTierPro,
		"team":  SubscriptionTierTeam,
		"trial": SubscriptionTierTrial,
	}

	var ok bool
	*t, ok = tiers[str]
	if !ok {
		return errors.New("invalid subscriptionTier")
	}
	return nil
}

type UserRole string

const (
	UserRoleOwner UserRole = "owner"
	UserRoleAdmin UserRole = "admin"
	UserRoleStaff UserRole = "staff"
)

func (r *UserRole) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("userRole must be string")
	}

	roles := map[string]UserRole{
		"owner": UserRoleOwner,
		"admin": UserRoleAdmin,
		"staff": UserRoleStaff,
	}

	var ok bool
	*r, ok = roles[str]
	if !ok {
		return errors.New("invalid userRole")
	}
	return nil
}

// JobStatus is an ordered progression; a job never moves backwards.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusScheduled  JobStatus = "scheduled"
	JobStatusInProgress JobStatus = "in_progress"
	JobStatusDone       JobStatus = "done"
	JobStatusInvoiced   JobStatus = "invoiced"
)

// jobStatusOrder backs the forward-only transition check.
var jobStatusOrder = map[JobStatus]int{
	JobStatusPending:    0,
	JobStatusScheduled:  1,
	JobStatusInProgress: 2,
	JobStatusDone:       3,
	JobStatusInvoiced:   4,
}

func (s *JobStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("jobStatus must be string")
	}

	statuses := map[string]JobStatus{
		"pending":     JobStatusPending,
		"scheduled":   JobStatusScheduled,
		"in_progress": JobStatusInProgress,
		"done":        JobStatusDone,
		"invoiced":    JobStatusInvoiced,
	}

	var ok bool
	*s, ok = statuses[str]
	if !ok {
		return errors.New("invalid jobStatus")
	}
	return nil
}

type QuoteStatus string

const (
	QuoteStatusDraft    QuoteStatus = "draft"
	QuoteStatusSent     QuoteStatus = "sent"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusDeclined QuoteStatus = "declined"
	QuoteStatusExpired  QuoteStatus = "expired"
)

func (s *QuoteStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("quoteStatus must be string")
	}

	statuses := map[string]QuoteStatus{
		"draft":    QuoteStatusDraft,
		"sent":     QuoteStatusSent,
		"accepted": QuoteStatusAccepted,
		"declined": QuoteStatusDeclined,
		"expired":  QuoteStatusExpired,
	}

	var ok bool
	*s, ok = statuses[str]
	if !ok {
		return errors.New("invalid quoteStatus")
	}
	return nil
}

type InvoiceStatus string

const (
	InvoiceStatusDraft   InvoiceStatus = "draft"
	InvoiceStatusSent    InvoiceStatus = "sent"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
	InvoiceStatusVoid    InvoiceStatus = "void"
)

func (s *InvoiceStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("invoiceStatus must be string")
	}

	statuses := map[string]InvoiceStatus{
		"draft":   InvoiceStatusDraft,
		"sent":    InvoiceStatusSent,
		"paid":    InvoiceStatusPaid,
		"overdue": InvoiceStatusOverdue,
		"void":    InvoiceStatusVoid,
	}

	var ok bool
	*s, ok = statuses[str]
	if !ok {
		return errors.New("invalid invoiceStatus")
	}
	return nil
}

type RecurrencePattern string

const (
	RecurrencePatternWeekly      RecurrencePattern = "weekly"
	RecurrencePatternFortnightly RecurrencePattern = "fortnightly"
	RecurrencePatternMonthly     RecurrencePattern = "monthly"
	RecurrencePatternQuarterly   RecurrencePattern = "quarterly"
	RecurrencePatternYearly      RecurrencePattern = "yearly"
)

func (p *RecurrencePattern) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("recurrencePattern must be string")
	}

	patterns := map[string]RecurrencePattern{
		"weekly":      RecurrencePatternWeekly,
		"fortnightly": RecurrencePatternFortnightly,
		"monthly":     RecurrencePatternMonthly,
		"quarterly":   RecurrencePatternQuarterly,
		"yearly":      RecurrencePatternYearly,
	}

	var ok bool
	*p, ok = patterns[str]
	if !ok {
		return errors.New("invalid recurrencePattern")
	}
	return nil
}

type RecurrenceStatus string

const (
	RecurrenceStatusActive    RecurrenceStatus = "active"
	RecurrenceStatusPaused    RecurrenceStatus = "paused"
	RecurrenceStatusCompleted RecurrenceStatus = "completed"
)

func (s *RecurrenceStatus) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("recurrenceStatus must be string")
	}

	statuses := map[string]RecurrenceStatus{
		"active":    RecurrenceStatusActive,
		"paused":    RecurrenceStatusPaused,
		"completed": RecurrenceStatusCompleted,
	}

	var ok bool
	*s, ok = statuses[str]
	if !ok {
		return errors.New("invalid recurrenceStatus")
	}
	return nil
}

type TemplateFamily string

const (
	TemplateFamilyTermsConditions TemplateFamily = "terms_conditions"
	TemplateFamilyWarranty        TemplateFamily = "warranty"
	TemplateFamilyEmail           TemplateFamily = "email"
	TemplateFamilySms             TemplateFamily = "sms"
	TemplateFamilySafetyForm      TemplateFamily = "safety_form"
	TemplateFamilyChecklist       TemplateFamily = "checklist"
	TemplateFamilyPaymentNotice   TemplateFamily = "payment_notice"
)

func (f *TemplateFamily) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("templateFamily must be string")
	}

	families := map[string]TemplateFamily{
		"terms_conditions": TemplateFamilyTermsConditions,
		"warranty":         TemplateFamilyWarranty,
		"email":            TemplateFamilyEmail,
		"sms":              TemplateFamilySms,
		"safety_form":      TemplateFamilySafetyForm,
		"checklist":        TemplateFamilyChecklist,
		"payment_notice":   TemplateFamilyPaymentNotice,
	}

	var ok bool
	*f, ok = families[str]
	if !ok {
		return errors.New("invalid templateFamily")
	}
	return nil
}

type AutomationEntityType string

const (
	AutomationEntityTypeJob     AutomationEntityType = "job"
	AutomationEntityTypeQuote   AutomationEntityType = "quote"
	AutomationEntityTypeInvoice AutomationEntityType = "invoice"
)

func (t *AutomationEntityType) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("automationEntityType must be string")
	}

	entityTypes := map[string]AutomationEntityType{
		"job":     AutomationEntityTypeJob,
		"quote":   AutomationEntityTypeQuote,
		"invoice": AutomationEntityTypeInvoice,
	}

	var ok bool
	*t, ok = entityTypes[str]
	if !ok {
		return errors.New("invalid automationEntityType")
	}
	return nil
}

type AutomationResult string

const (
	AutomationResultPending AutomationResult = "pending"
	AutomationResultSuccess AutomationResult = "success"
	AutomationResultError   AutomationResult = "error"
)

type NotificationChannel string

const (
	NotificationChannelEmail NotificationChannel = "email"
	NotificationChannelSms   NotificationChannel = "sms"
)

func (c *NotificationChannel) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return errors.New("notificationChannel must be string")
	}

	channels := map[string]NotificationChannel{
		"email": NotificationChannelEmail,
		"sms":   NotificationChannelSms,
	}

	var ok bool
	*c, ok = channels[str]
	if !ok {
		return errors.New("invalid notificationChannel")
	}
	return nil
}

type OutboxPublishStatus string

const (
	OutboxPublishStatusPending    OutboxPublishStatus = "PENDING"
	OutboxPublishStatusProcessing OutboxPublishStatus = "PROCESSING"
	OutboxPublishStatusSent       OutboxPublishStatus = "SENT"
	OutboxPublishStatusFailed     OutboxPublishStatus = "FAILED"
	OutboxPublishStatusDead       OutboxPublishStatus = "DEAD"
)

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "P"
	DiscountTypeAmount     DiscountType = "A"
)
