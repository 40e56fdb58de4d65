package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// FilterAction defines the action to take on matched detail fields
type FilterAction string

const (
	FilterActionRemove FilterAction = "remove"
	FilterActionHash   FilterAction = "hash"
	FilterActionMask   FilterAction = "mask"
)

// Payment data that must never reach the audit log in clear text.
var defaultSensitiveFields = map[string]FilterAction{
	"card_number":    FilterActionMask,
	"cvc":            FilterActionRemove,
	"cvv":            FilterActionRemove,
	"iban":           FilterActionMask,
	"account_number": FilterActionMask,
	"payment_method": FilterActionMask,
	"api_key":        FilterActionRemove,
	"secret":         FilterActionRemove,
	"token":          FilterActionRemove,
	"email":          FilterActionHash,
	"billing_email":  FilterActionHash,
}

// MetadataFilter scrubs sensitive values from entry details.
type MetadataFilter struct {
	rules map[string]FilterAction
}

// FilterOption configures MetadataFilter behavior
type FilterOption func(*MetadataFilter)

// NewMetadataFilter creates a filter with the default payment data rules.
func NewMetadataFilter(opts ...FilterOption) *MetadataFilter {
	f := &MetadataFilter{rules: make(map[string]FilterAction, len(defaultSensitiveFields))}
	for k, v := range defaultSensitiveFields {
		f.rules[k] = v
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithCustomField adds or overrides a field rule.
func WithCustomField(field string, action FilterAction) FilterOption {
	return func(f *MetadataFilter) {
		f.rules[strings.ToLower(field)] = action
	}
}

// WithAllowedField lets a field through unfiltered.
func WithAllowedField(field string) FilterOption {
	return func(f *MetadataFilter) {
		delete(f.rules, strings.ToLower(field))
	}
}

// Filter returns a filtered copy of details.
func (f *MetadataFilter) Filter(details map[string]any) map[string]any {
	if details == nil {
		return nil
	}

	filtered := make(map[string]any, len(details))
	for key, value := range details {
		action, ok := f.rules[strings.ToLower(key)]
		if !ok {
			filtered[key] = value
			continue
		}
		switch action {
		case FilterActionRemove:
		case FilterActionHash:
			filtered[key] = hashValue(value)
		case FilterActionMask:
			filtered[key] = maskValue(value)
		default:
			filtered[key] = value
		}
	}
	return filtered
}

func hashValue(value any) string {
	sum := sha256.Sum256(fmt.Appendf(nil, "%v", value))
	return hex.EncodeToString(sum[:])
}

// maskValue keeps only the last four characters, e.g. "************4242".
func maskValue(value any) string {
	str := fmt.Sprintf("%v", value)
	if len(str) <= 4 {
		return strings.Repeat("*", len(str))
	}
	return strings.Repeat("*", len(str)-4) + str[len(str)-4:]
}
