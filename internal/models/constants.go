package models

// Роли пользователей.
const (
	RoleSeeker   = "seeker"
	RoleReferrer = "referrer"
)

// RequestStatus константы статусов запроса рекомендации.
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusCompleted = "completed"
	RequestStatusCancelled = "cancelled"
)

// NotificationStatus константы статусов actionable-уведомлений.
const (
	NotificationStatusWaiting    = "waiting"
	NotificationStatusInProgress = "in_progress"
	NotificationStatusCompleted  = "completed"
	NotificationStatusRejected   = "rejected"
	NotificationStatusExpired    = "expired"
)

// NotificationType константы типов уведомлений.
const (
	NotificationTypeReferralRequest    = "referral_request"
	NotificationTypeReferralAccepted   = "referral_accepted"
	NotificationTypeReferralRejected   = "referral_rejected"
	NotificationTypeApplicationUpdate  = "application_update"
	NotificationTypePaymentReceived    = "payment_received"
	NotificationTypePaymentSent        = "payment_sent"
	NotificationTypeInterviewScheduled = "interview_scheduled"
	NotificationTypeMessage            = "message"
	NotificationTypeSystem             = "system"
)

// Приоритеты уведомлений.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// EscrowStatus константы статусов escrow.
const (
	EscrowStatusHeld     = "held"
	EscrowStatusReleased = "released"
	EscrowStatusRefunded = "refunded"
)

// ValidRoles список валидных ролей.
var ValidRoles = map[string]struct{}{
	RoleSeeker:   {},
	RoleReferrer: {},
}

// ValidRequestStatuses список валидных статусов запроса.
var ValidRequestStatuses = map[string]struct{}{
	RequestStatusPending:   {},
	RequestStatusAccepted:  {},
	RequestStatusCompleted: {},
	RequestStatusCancelled: {},
}

// ValidNotificationStatuses список валидных статусов уведомления.
var ValidNotificationStatuses = map[string]struct{}{
	NotificationStatusWaiting:    {},
	NotificationStatusInProgress: {},
	NotificationStatusCompleted:  {},
	NotificationStatusRejected:   {},
	NotificationStatusExpired:    {},
}
