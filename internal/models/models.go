package models

import "time"

type EventStatus string

const (
	EventNew      EventStatus = "new"
	EventPending  EventStatus = "pending"
	EventApproved EventStatus = "approved"
	EventRejected EventStatus = "rejected"
)

type EventSource string

const (
	SourceParser  EventSource = "parser"
	SourcePartner EventSource = "partner"
	SourceManual  EventSource = "manual"
	SourceFile    EventSource = "file"
)

// Sentinel values stored in the url column for events that have no canonical
// source link. They are exempt from url uniqueness.
const (
	SentinelInvite     = "invite"
	SentinelFileUpload = "file_upload"
)

func IsSentinelURL(url string) bool {
	return url == "" || url == SentinelInvite || url == SentinelFileUpload
}

type EventPriority string

const (
	PriorityHigh   EventPriority = "high"
	PriorityMedium EventPriority = "medium"
)

type Event struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Location     string        `json:"location"`
	DateText     string        `json:"date_text"`
	EventAt      *time.Time    `json:"event_at,omitempty"`
	SourceURL    string        `json:"source_url"`
	Summary      string        `json:"summary"`
	AnalysisJSON string        `json:"-"`
	Score        int           `json:"score"`
	Priority     EventPriority `json:"priority"`
	RequiredRank int           `json:"required_rank"`
	Status       EventStatus   `json:"status"`
	Source       EventSource   `json:"source"`
	CreatedAt    time.Time     `json:"created_at"`
}

type UserStatus string

const (
	UserPending  UserStatus = "pending"
	UserApproved UserStatus = "approved"
)

type User struct {
	ID             string     `json:"id"`
	ExternalID     string     `json:"external_id"`
	FullName       string     `json:"full_name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	Position       string     `json:"position"`
	Rank           int        `json:"rank"`
	Status         UserStatus `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ApprovedAt     *time.Time `json:"approved_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

type RegistrationStatus string

const (
	RegistrationPending  RegistrationStatus = "pending"
	RegistrationApproved RegistrationStatus = "approved"
)

// Registration links a user to an event. Absence of a row means "not
// registered"; rejection and cancellation both delete the row.
type Registration struct {
	UserID      string             `json:"user_id"`
	EventID     string             `json:"event_id"`
	Status      RegistrationStatus `json:"status"`
	RequestedAt time.Time          `json:"requested_at"`
}

// UserEvent is an event joined with the caller's registration status.
type UserEvent struct {
	Event  Event              `json:"event"`
	Status RegistrationStatus `json:"status"`
}

// PendingRegistration is a ledger row joined with display data for the
// approval queue.
type PendingRegistration struct {
	UserID       string    `json:"user_id"`
	EventID      string    `json:"event_id"`
	UserName     string    `json:"user_name"`
	UserPosition string    `json:"user_position"`
	EventTitle   string    `json:"event_title"`
	EventDate    string    `json:"event_date"`
	Location     string    `json:"location"`
	SourceURL    string    `json:"source_url"`
	RequestedAt  time.Time `json:"requested_at"`
}

type AdminRole string

const (
	RoleOwner      AdminRole = "Owner"
	RoleGreatAdmin AdminRole = "GreatAdmin"
	RoleAdmin      AdminRole = "Admin"
	RoleModerator  AdminRole = "Moderator"
)

// RoleWeight orders roles for manager resolution. Unknown roles weigh zero.
func RoleWeight(r AdminRole) int {
	switch r {
	case RoleOwner:
		return 4
	case RoleGreatAdmin:
		return 3
	case RoleAdmin:
		return 2
	case RoleModerator:
		return 1
	default:
		return 0
	}
}

func ValidRole(r AdminRole) bool { return RoleWeight(r) > 0 }

type Admin struct {
	ID           string    `json:"id"`
	ExternalID   string    `json:"external_id"`
	Username     string    `json:"username"`
	Role         AdminRole `json:"role"`
	Active       bool      `json:"active"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Session struct {
	ID            string
	AdminID       string
	TokenHash     string
	ExpiresAt     time.Time
	IdleExpiresAt time.Time
	CreatedAt     time.Time
	LastSeenAt    time.Time
	RevokedAt     *time.Time
}

// EventQuery filters list reads over the event corpus.
type EventQuery struct {
	Status   EventStatus
	Source   EventSource
	Q        string
	AfterID  string
	Limit    int
	Offset   int
	MinScore int
}

type Stats struct {
	TotalEvents          int     `json:"total_events"`
	PendingEvents        int     `json:"pending_events"`
	ApprovedEvents       int     `json:"approved_events"`
	RejectedEvents       int     `json:"rejected_events"`
	PartnerEvents        int     `json:"partner_events"`
	EventsThisMonth      int     `json:"events_this_month"`
	AvgApprovedScore     float64 `json:"avg_approved_score"`
	TotalAdmins          int     `json:"total_admins"`
	PendingUsers         int     `json:"pending_users"`
	PendingRegistrations int     `json:"pending_registrations"`
}
