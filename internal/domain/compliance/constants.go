package compliance

type RequestKind string

const (
	RequestKindAccess        RequestKind = "access"
	RequestKindErasure       RequestKind = "erasure"
	RequestKindRectification RequestKind = "rectification"
)

type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "pending"
	RequestStatusProcessing RequestStatus = "processing"
	RequestStatusCompleted  RequestStatus = "completed"
	RequestStatusRejected   RequestStatus = "rejected"
)

// Terminal reports whether no further transition is allowed from the status.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusRejected
}

type Action string

const (
	ActionAnonymize Action = "ANONYMIZE"
	ActionDelete    Action = "DELETE"
	ActionReview    Action = "REVIEW"
)

type Category string

const (
	CategoryCustomerData   Category = "customer_data"
	CategoryBookingRecords Category = "booking_records"
	CategoryPaymentData    Category = "payment_data"
	CategoryMarketingData  Category = "marketing_data"
	CategorySessionLogs    Category = "session_logs"
)
