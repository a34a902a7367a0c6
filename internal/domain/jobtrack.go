package domain

import "time"

type JobStatus string

const (
	JobStatusApplied   JobStatus = "APPLIED"
	JobStatusPending   JobStatus = "PENDING"
	JobStatusInterview JobStatus = "INTERVIEW"
	JobStatusOffer     JobStatus = "OFFER"
	JobStatusAccepted  JobStatus = "ACCEPTED"
	JobStatusRejected  JobStatus = "REJECTED"
)

func (s JobStatus) Valid() bool {
	switch s {
	case JobStatusApplied, JobStatusPending, JobStatusInterview,
		JobStatusOffer, JobStatusAccepted, JobStatusRejected:
		return true
	}
	return false
}

type ContractType string

const (
	ContractCDI            ContractType = "CDI"
	ContractCDD            ContractType = "CDD"
	ContractFreelance      ContractType = "FREELANCE"
	ContractInternship     ContractType = "INTERNSHIP"
	ContractApprenticeship ContractType = "APPRENTICESHIP"
)

func (c ContractType) Valid() bool {
	switch c {
	case ContractCDI, ContractCDD, ContractFreelance, ContractInternship, ContractApprenticeship:
		return true
	}
	return false
}

// JobTrack representa una candidatura registrada por el usuario.
type JobTrack struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	Title        string       `json:"title"`
	Company      string       `json:"company,omitempty"`
	JobURL       string       `json:"job_url,omitempty"`
	AppliedAt    *time.Time   `json:"applied_at,omitempty"`
	Status       JobStatus    `json:"status"`
	ContractType ContractType `json:"contract_type,omitempty"`
	Notes        string       `json:"notes,omitempty"`
	CVFileName   string       `json:"cv_file_name,omitempty"`
	LMFileName   string       `json:"lm_file_name,omitempty"`
	Reminder     *Reminder    `json:"reminder,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Reminder programa un recordatorio periodico de seguimiento.
type Reminder struct {
	ID             string     `json:"id"`
	JobTrackID     string     `json:"job_track_id"`
	FrequencyDays  int        `json:"frequency"`
	NextReminderAt time.Time  `json:"next_reminder_at"`
	LastSentAt     *time.Time `json:"last_sent_at,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ReminderStats cuenta los recordatorios activos por horizonte de vencimiento.
type ReminderStats struct {
	TotalActive int `json:"totalActive"`
	DueNow      int `json:"dueNow"`
	DueToday    int `json:"dueToday"`
	DueThisWeek int `json:"dueThisWeek"`
}

// DueReminder junta el recordatorio con los datos necesarios para el email.
type DueReminder struct {
	Reminder  Reminder
	JobTrack  JobTrack
	UserEmail string
	Username  string
}

// DocumentKind identifica el tipo de documento adjunto a una candidatura.
type DocumentKind string

const (
	DocumentCV DocumentKind = "cv"
	DocumentLM DocumentKind = "lm"
)

func (k DocumentKind) Valid() bool {
	return k == DocumentCV || k == DocumentLM
}
