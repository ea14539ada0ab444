package internaldefs

import (
	"github.com/civicpulse/authcore"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine latency histogram to its exported name.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// Prefix is shared by every exported metric name.
const Prefix = "authcore_"

// CounterDefs lists every exported counter.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricCodeIssued, Name: Prefix + "code_issued_total", Help: "One-time codes issued."},
	{ID: authcore.MetricCodeCooldown, Name: Prefix + "code_cooldown_total", Help: "Issue requests refused by the resend cooldown."},
	{ID: authcore.MetricCodeThrottled, Name: Prefix + "code_throttled_total", Help: "Code requests refused by the per-address throttle."},
	{ID: authcore.MetricCodeVerified, Name: Prefix + "code_verified_total", Help: "Codes consumed successfully."},
	{ID: authcore.MetricCodeMismatch, Name: Prefix + "code_mismatch_total", Help: "Wrong codes submitted with attempts left."},
	{ID: authcore.MetricCodeExpired, Name: Prefix + "code_expired_total", Help: "Verifications against an expired code."},
	{ID: authcore.MetricCodeExhausted, Name: Prefix + "code_exhausted_total", Help: "Verifications refused after the attempt budget was spent."},
	{ID: authcore.MetricCodeNotFound, Name: Prefix + "code_not_found_total", Help: "Verifications with no code on record."},
	{ID: authcore.MetricLoginSuccess, Name: Prefix + "login_success_total", Help: "Sessions minted by password or code login."},
	{ID: authcore.MetricLoginFailure, Name: Prefix + "login_failure_total", Help: "Password logins rejected for bad credentials."},
	{ID: authcore.MetricLoginLocked, Name: Prefix + "login_locked_total", Help: "Password logins refused because the account was locked."},
	{ID: authcore.MetricLoginUnverified, Name: Prefix + "login_unverified_total", Help: "Logins refused because the account was unverified."},
	{ID: authcore.MetricAccountLocked, Name: Prefix + "account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: authcore.MetricAccountCreated, Name: Prefix + "account_created_total", Help: "Accounts registered."},
	{ID: authcore.MetricAccountVerified, Name: Prefix + "account_verified_total", Help: "Accounts verified by signup code."},
	{ID: authcore.MetricPasswordReset, Name: Prefix + "password_reset_total", Help: "Passwords reset by code."},
	{ID: authcore.MetricEmailChanged, Name: Prefix + "email_changed_total", Help: "Account identities changed by code."},
	{ID: authcore.MetricDeliveryFailure, Name: Prefix + "delivery_failure_total", Help: "Notifications the notifier failed to send."},
	{ID: authcore.MetricStoreUnavailable, Name: Prefix + "store_unavailable_total", Help: "Operations failed by store errors."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: authcore.MetricIssueLatency, Name: Prefix + "issue_latency_seconds", Help: "Code issuance latency."},
	{ID: authcore.MetricVerifyLatency, Name: Prefix + "verify_latency_seconds", Help: "Code verification latency."},
	{ID: authcore.MetricAuthenticateLatency, Name: Prefix + "authenticate_latency_seconds", Help: "Password authentication latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = Prefix + "audit_dropped_total"

// HistogramBounds are the finite upper bounds in seconds; the last engine
// bucket is +Inf.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// flatten histograms into gauges.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets copies raw into the fixed eight-bucket layout.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
