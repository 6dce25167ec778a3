package approval

// Status represents the current state of an approval request.
type Status string

const (
	StatusPending      Status = "pending"
	StatusApproved     Status = "approved"
	StatusDenied       Status = "denied"
	StatusTimeout      Status = "timeout"
	StatusAutoApproved Status = "auto_approved"
)

// Terminal reports whether the status is a final resolution. A deferred
// request returns to PENDING and is therefore never terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusDenied, StatusTimeout, StatusAutoApproved:
		return true
	}
	return false
}

// Executable reports whether a request in this status may be executed.
func (s Status) Executable() bool {
	return s == StatusApproved || s == StatusAutoApproved
}

// Verdict is an explicit human decision applied to a pending request.
type Verdict string

const (
	VerdictApprove Verdict = "approve"
	VerdictDeny    Verdict = "deny"
)
