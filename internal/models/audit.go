package models

import (
	"encoding/json"
	"time"
)

// AuditAction constants represent actions to be logged.
const (
	AuditActionLogin             = "LOGIN"
	AuditActionLogout            = "LOGOUT"
	AuditActionPasswordChange    = "PASSWORD_CHANGE"
	AuditActionUserCreate        = "USER_CREATE"
	AuditActionUserUpdate        = "USER_UPDATE"
	AuditActionUserDelete        = "USER_DELETE"
	AuditActionStudentCreate     = "STUDENT_CREATE"
	AuditActionStudentUpdate     = "STUDENT_UPDATE"
	AuditActionStudentDeactivate = "STUDENT_DEACTIVATE"
	AuditActionConsentDecision   = "CONSENT_DECISION"
	AuditActionSurveySend        = "SURVEY_SEND"
	AuditActionSweep             = "SWEEP"
)

// AuditLog represents an audit trail record for mutating staff requests.
type AuditLog struct {
	ID         string          `db:"id" json:"id"`
	UserID     *string         `db:"user_id" json:"user_id,omitempty"`
	Action     string          `db:"action" json:"action"`
	Resource   string          `db:"resource" json:"resource"`
	ResourceID *string         `db:"resource_id" json:"resource_id,omitempty"`
	Detail     json.RawMessage `db:"detail" json:"detail,omitempty"`
	IPAddress  string          `db:"ip_address" json:"ip_address"`
	UserAgent  string          `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
