package model

import "time"

// RecordStatus represents the enrichment lifecycle state of a record.
type RecordStatus string

const (
	RecordStatusPending    RecordStatus = "pending"
	RecordStatusProcessing RecordStatus = "processing"
	RecordStatusCompleted  RecordStatus = "completed"
	RecordStatusFailed     RecordStatus = "failed"
)

// Record is a contact captured from a scanned card or manual entry.
//
// Identity and contact fields are user-supplied and are only ever filled in
// by auto-fill when empty, never overwritten. Derived fields are written
// exclusively by the enrichment orchestrator.
type Record struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`

	// Identity
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	JobTitle  string `json:"job_title"`

	// Contact
	Email string `json:"email"`
	Phone string `json:"phone"`

	// Auto-fill bookkeeping
	AutoFilledFields   []string `json:"auto_filled_fields,omitempty"`
	AutoFillSource     string   `json:"auto_fill_source,omitempty"`
	AutoFillConfidence float64  `json:"auto_fill_confidence,omitempty"`

	// Derived (orchestrator-owned)
	ReputationScore *float64          `json:"reputation_score,omitempty"`
	ReviewCount     int               `json:"review_count,omitempty"`
	Reviews         []Review          `json:"reviews,omitempty"`
	Photos          []string          `json:"photos,omitempty"`
	ProfileURL      string            `json:"profile_url,omitempty"`
	CompanyFacts    *CompanyFacts     `json:"company_facts,omitempty"`
	News            []NewsItem        `json:"news,omitempty"`
	SocialLinks     map[string]string `json:"social_links,omitempty"`
	Summary         string            `json:"summary,omitempty"`
	Drafts          *MessageDrafts    `json:"drafts,omitempty"`
	SyncWarning     string            `json:"sync_warning,omitempty"`

	Status    RecordStatus `json:"status"`
	Error     string       `json:"error,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Review is a single customer review of the record's company.
type Review struct {
	Author string  `json:"author"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
}

// CompanyFacts holds slow-changing facts about the record's company.
type CompanyFacts struct {
	Description  string `json:"description,omitempty"`
	Industry     string `json:"industry,omitempty"`
	FoundedYear  string `json:"founded_year,omitempty"`
	EmployeeSize string `json:"employee_size,omitempty"`
	Headquarters string `json:"headquarters,omitempty"`
	Website      string `json:"website,omitempty"`
}

// NewsItem is one recent news mention of the company.
type NewsItem struct {
	Title   string `json:"title"`
	URL     string `json:"url,omitempty"`
	Summary string `json:"summary,omitempty"`
}

// MessageDrafts holds generated outreach drafts for the contact.
type MessageDrafts struct {
	Email string `json:"email,omitempty"`
	SMS   string `json:"sms,omitempty"`
}

// HasIdentity reports whether the record carries a usable person name.
func (r *Record) HasIdentity() bool {
	return r.FirstName != "" || r.LastName != ""
}

// FullName joins the first and last name, tolerating either being empty.
func (r *Record) FullName() string {
	switch {
	case r.FirstName == "":
		return r.LastName
	case r.LastName == "":
		return r.FirstName
	default:
		return r.FirstName + " " + r.LastName
	}
}
