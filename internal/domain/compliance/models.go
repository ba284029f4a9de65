package compliance

import "time"

type Customer struct {
	ID                    string     `json:"id"`
	FirstName             string     `json:"firstName"`
	LastName              string     `json:"lastName"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	MedicalNotes          string     `json:"medicalNotes,omitempty"`
	EmergencyContactName  string     `json:"emergencyContactName,omitempty"`
	EmergencyContactPhone string     `json:"emergencyContactPhone,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	LastLoginAt           *time.Time `json:"lastLoginAt,omitempty"`
	AnonymizedAt          *time.Time `json:"anonymizedAt,omitempty"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

type DataSubjectRequest struct {
	ID          string        `json:"id"`
	CustomerID  string        `json:"customerId"`
	Kind        RequestKind   `json:"kind"`
	Status      RequestStatus `json:"status"`
	SubmittedAt time.Time     `json:"submittedAt"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	Details     string        `json:"details,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// CustomerSnapshot is the per-customer input to the retention scanner.
// A Last* pointer is nil when the customer has rows in that category but
// none carries the timestamp the policy measures from.
type CustomerSnapshot struct {
	CustomerID    string
	CreatedAt     time.Time
	LastLoginAt   *time.Time
	BookingCount  int
	LastBookingAt *time.Time
	PaymentCount  int
	LastPaymentAt *time.Time
	ConsentCount  int
	LastConsentAt *time.Time
	SessionCount  int
	LastSessionAt *time.Time
	Anonymized    bool
}

type ComplianceIssue struct {
	CustomerID        string     `json:"customerId"`
	DaysOverdue       int        `json:"daysOverdue"`
	RecommendedAction Action     `json:"recommendedAction"`
	Categories        []Category `json:"categories"`
}

// OperationResult is returned by export, anonymize and delete. Failures are
// reported through Success and Detail, never as a panic past the operation
// boundary.
type OperationResult struct {
	Success bool           `json:"success"`
	Detail  string         `json:"detail,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}

type RunStats struct {
	Processed   int       `json:"processed"`
	Errors      int       `json:"errors"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

type RetentionRun struct {
	ID          string    `json:"id"`
	Processed   int       `json:"processed"`
	Errors      int       `json:"errors"`
	Status      string    `json:"status"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

type ExportRecord struct {
	ID         string     `json:"id"`
	CustomerID string     `json:"customerId"`
	FilePath   string     `json:"filePath"`
	PDFPath    string     `json:"pdfPath"`
	TokenHash  string     `json:"-"`
	Encrypted  bool       `json:"encrypted"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	CreatedAt  time.Time  `json:"createdAt"`
	DownloadAt *time.Time `json:"downloadedAt,omitempty"`
}
