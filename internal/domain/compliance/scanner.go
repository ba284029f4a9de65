package compliance

import (
	"sort"
	"time"
)

// Scan evaluates every customer snapshot against the retention table and
// returns one issue per customer in violation. The result is stable for a
// fixed input: issues are ordered by customer id.
//
// Action precedence per customer: a missing measured-from timestamp on an
// applicable category forces REVIEW (fail safe); otherwise DELETE wins if any
// exceeded category is hard-deletable, else ANONYMIZE.
func Scan(now time.Time, policies []RetentionPolicy, customers []CustomerSnapshot) []ComplianceIssue {
	var issues []ComplianceIssue
	for _, c := range customers {
		if c.Anonymized {
			continue
		}
		if issue, ok := scanCustomer(now, policies, c); ok {
			issues = append(issues, issue)
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].CustomerID < issues[j].CustomerID })
	return issues
}

func scanCustomer(now time.Time, policies []RetentionPolicy, c CustomerSnapshot) (ComplianceIssue, bool) {
	var (
		categories  []Category
		maxOverdue  int
		hardFlagged bool
		ambiguous   bool
	)

	for _, p := range policies {
		measured, applicable, known := measuredFrom(p.Category, c)
		if !applicable {
			continue
		}
		if !known {
			// Rows exist but the timestamp the policy measures from is
			// absent. Flag only when the account itself is old enough that
			// the window could plausibly be exceeded.
			if days := overdueDays(now, c.CreatedAt, p.Window()); days > 0 {
				ambiguous = true
				categories = append(categories, p.Category)
				if days > maxOverdue {
					maxOverdue = days
				}
			}
			continue
		}
		days := overdueDays(now, measured, p.Window())
		if days <= 0 {
			continue
		}
		categories = append(categories, p.Category)
		if days > maxOverdue {
			maxOverdue = days
		}
		if p.HardDelete {
			hardFlagged = true
		}
	}

	if len(categories) == 0 {
		return ComplianceIssue{}, false
	}

	action := ActionAnonymize
	switch {
	case ambiguous:
		action = ActionReview
	case hardFlagged:
		action = ActionDelete
	}
	return ComplianceIssue{
		CustomerID:        c.CustomerID,
		DaysOverdue:       maxOverdue,
		RecommendedAction: action,
		Categories:        categories,
	}, true
}

// overdueDays returns how many whole days the record is past its window, with
// a floor of one day for any violation. A record exactly at the boundary
// (age == window) is not overdue.
func overdueDays(now, measured time.Time, window time.Duration) int {
	age := now.Sub(measured)
	if age <= window {
		return 0
	}
	days := int((age - window) / (24 * time.Hour))
	if days < 1 {
		days = 1
	}
	return days
}

func measuredFrom(category Category, c CustomerSnapshot) (ts time.Time, applicable, known bool) {
	switch category {
	case CategoryCustomerData:
		// Last activity is the latest of login and booking; a customer who
		// never logged in is measured from account creation.
		ts = c.CreatedAt
		if c.LastLoginAt != nil && c.LastLoginAt.After(ts) {
			ts = *c.LastLoginAt
		}
		if c.LastBookingAt != nil && c.LastBookingAt.After(ts) {
			ts = *c.LastBookingAt
		}
		return ts, true, true
	case CategoryBookingRecords:
		if c.BookingCount == 0 {
			return time.Time{}, false, false
		}
		if c.LastBookingAt == nil {
			return time.Time{}, true, false
		}
		return *c.LastBookingAt, true, true
	case CategoryPaymentData:
		if c.PaymentCount == 0 {
			return time.Time{}, false, false
		}
		if c.LastPaymentAt == nil {
			return time.Time{}, true, false
		}
		return *c.LastPaymentAt, true, true
	case CategoryMarketingData:
		if c.ConsentCount == 0 {
			return time.Time{}, false, false
		}
		if c.LastConsentAt == nil {
			return time.Time{}, true, false
		}
		return *c.LastConsentAt, true, true
	case CategorySessionLogs:
		if c.SessionCount == 0 {
			return time.Time{}, false, false
		}
		if c.LastSessionAt == nil {
			return time.Time{}, true, false
		}
		return *c.LastSessionAt, true, true
	default:
		return time.Time{}, false, false
	}
}
