package config

import (
	"os"
	"strings"
)

// NotificationsDirectProcessing controls the in-process outbox fallback worker.
//
// Set via env:
// - NOTIFICATIONS_DIRECT_PROCESSING=true|false
//
// Default: run as a safety-net even when Pub/Sub is configured, so queued
// notifications are eventually delivered when push delivery is misconfigured.
// Processing is protected by the automation dedup log, so at-least-once
// delivery of the trigger is safe.
func NotificationsDirectProcessing() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("NOTIFICATIONS_DIRECT_PROCESSING")))
	if v == "false" || v == "0" || v == "no" || v == "n" {
		return false
	}
	return true
}

// EnforceTierLimits toggles subscription quota enforcement on entity creation.
//
// Set via env:
// - ENFORCE_TIER_LIMITS=false to disable (dev/test convenience).
func EnforceTierLimits() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("ENFORCE_TIER_LIMITS")))
	if v == "false" || v == "0" || v == "no" || v == "n" {
		return false
	}
	return true
}
