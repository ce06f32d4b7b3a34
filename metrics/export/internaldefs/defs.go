package internaldefs

import (
	"github.com/MrEthical07/warden"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   warden.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram for export. Names end in
// _seconds; bounds are HistogramBounds.
type HistogramDef struct {
	ID   warden.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in render order.
var CounterDefs = []CounterDef{
	{ID: warden.MetricLoginSuccess, Name: "warden_login_success_total", Help: "Successful logins."},
	{ID: warden.MetricLoginFailure, Name: "warden_login_failure_total", Help: "Logins rejected for bad credentials."},
	{ID: warden.MetricLoginRateLimited, Name: "warden_login_rate_limited_total", Help: "Logins rejected by the throttle."},
	{ID: warden.MetricLoginDisabled, Name: "warden_login_disabled_total", Help: "Logins rejected for disabled accounts."},
	{ID: warden.MetricRegisterSuccess, Name: "warden_register_success_total", Help: "Accounts registered."},
	{ID: warden.MetricRegisterDuplicate, Name: "warden_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: warden.MetricRegisterRejected, Name: "warden_register_rejected_total", Help: "Registrations rejected for invalid input or weak password."},
	{ID: warden.MetricTokenIssued, Name: "warden_token_issued_total", Help: "Session tokens issued."},
	{ID: warden.MetricVerifySuccess, Name: "warden_verify_success_total", Help: "Tokens authenticated."},
	{ID: warden.MetricVerifyFailure, Name: "warden_verify_failure_total", Help: "Tokens rejected as malformed or expired."},
	{ID: warden.MetricVerifyRevoked, Name: "warden_verify_revoked_total", Help: "Tokens rejected as revoked."},
	{ID: warden.MetricLogout, Name: "warden_logout_total", Help: "Single-token logouts."},
	{ID: warden.MetricLogoutAll, Name: "warden_logout_all_total", Help: "Logout-all operations."},
	{ID: warden.MetricRoleChanged, Name: "warden_role_changed_total", Help: "Role changes."},
	{ID: warden.MetricAccountDisabled, Name: "warden_account_disabled_total", Help: "Accounts disabled."},
	{ID: warden.MetricAccountEnabled, Name: "warden_account_enabled_total", Help: "Accounts re-enabled."},
	{ID: warden.MetricAccountDeleted, Name: "warden_account_deleted_total", Help: "Accounts deleted."},
	{ID: warden.MetricForbidden, Name: "warden_forbidden_total", Help: "Operations denied by role."},
	{ID: warden.MetricSelfModificationRejected, Name: "warden_self_modification_rejected_total", Help: "Admin operations rejected because they targeted the actor."},
	{ID: warden.MetricRevocationSwept, Name: "warden_revocation_swept_total", Help: "Expired revocation entries removed."},
	{ID: warden.MetricBackendUnavailable, Name: "warden_backend_unavailable_total", Help: "Operations that failed on an unavailable backend."},
}

// HistogramDefs lists every exported latency histogram.
var HistogramDefs = []HistogramDef{
	{ID: warden.MetricLoginLatency, Name: "warden_login_latency_seconds", Help: "Login latency."},
	{ID: warden.MetricVerifyLatency, Name: "warden_verify_latency_seconds", Help: "Token authentication latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const (
	AuditDroppedName = "warden_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped because the dispatcher buffer was full."
)

// HistogramBounds are the upper bounds, in seconds, of the engine's buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// NormalizeBuckets pads or truncates raw to exactly eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets converts per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
