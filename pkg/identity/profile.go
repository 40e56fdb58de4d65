package identity

import (
	"slices"

	"github.com/google/uuid"
)

// ComplianceVerified marks tenants cleared for plans that require compliance review.
const ComplianceVerified = "compliance_verified"

// Profile holds the tenant attributes billing decisions depend on.
type Profile struct {
	TenantID        uuid.UUID `json:"tenant_id"`
	Name            string    `json:"name"`
	Region          string    `json:"region"`
	ComplianceFlags []string  `json:"compliance_flags,omitempty"`
	BillingEmail    string    `json:"billing_email,omitempty"`
	Active          bool      `json:"active"`
}

// HasCompliance reports whether the tenant carries the given flag.
func (p Profile) HasCompliance(flag string) bool {
	return slices.Contains(p.ComplianceFlags, flag)
}
