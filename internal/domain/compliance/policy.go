package compliance

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RetentionPolicy maps a data category to its maximum retention window.
// HardDelete marks categories whose overdue data is purged outright rather
// than anonymized.
type RetentionPolicy struct {
	Category      Category
	RetentionDays int
	MeasuredFrom  string
	HardDelete    bool
}

func (p RetentionPolicy) Window() time.Duration {
	return time.Duration(p.RetentionDays) * 24 * time.Hour
}

// DefaultPolicies is the statutory retention table for the clinic. The set of
// categories is fixed; only the windows may be overridden via config.
func DefaultPolicies() []RetentionPolicy {
	return []RetentionPolicy{
		{Category: CategoryCustomerData, RetentionDays: 7 * 365, MeasuredFrom: "last activity (login or booking)"},
		{Category: CategoryBookingRecords, RetentionDays: 10 * 365, MeasuredFrom: "booking completion"},
		{Category: CategoryPaymentData, RetentionDays: 7 * 365, MeasuredFrom: "payment date"},
		{Category: CategoryMarketingData, RetentionDays: 3 * 365, MeasuredFrom: "consent grant or withdrawal", HardDelete: true},
		{Category: CategorySessionLogs, RetentionDays: 365, MeasuredFrom: "session creation", HardDelete: true},
	}
}

type policyOverrideFile struct {
	RetentionDays map[string]int `yaml:"retentionDays"`
}

// LoadPolicies returns the default table with windows overridden from the
// YAML file at path, if one is configured. Overrides may only tighten or
// relax windows for known categories; unknown categories are an error so a
// typo cannot silently leave a category on its default.
func LoadPolicies(path string) ([]RetentionPolicy, error) {
	policies := DefaultPolicies()
	if path == "" {
		return policies, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	var overrides policyOverrideFile
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	known := make(map[Category]int, len(policies))
	for i, p := range policies {
		known[p.Category] = i
	}
	for name, days := range overrides.RetentionDays {
		idx, ok := known[Category(name)]
		if !ok {
			return nil, fmt.Errorf("%w: unknown data category %q in policy file", ErrValidation, name)
		}
		if days <= 0 {
			return nil, fmt.Errorf("%w: retention window for %q must be positive", ErrValidation, name)
		}
		policies[idx].RetentionDays = days
	}
	return policies, nil
}
