package domain

import (
	"time"

	"jobtrack-engine/internal/status"
)

// Application is the single tracked record for one real-world job application.
type Application struct {
	ID       string        `json:"id"`
	EmailID  string        `json:"emailId"` // most recently linked email, not unique
	Company  string        `json:"company"`
	JobTitle string        `json:"jobTitle"`
	Location string        `json:"location"`
	Status   status.Status `json:"status"`

	// ApplicationDate is set once at creation and never moved by later matches.
	ApplicationDate time.Time `json:"applicationDate"`

	Sender      string    `json:"sender"`
	Subject     string    `json:"subject"`
	Confidence  string    `json:"confidence"`
	LastUpdated time.Time `json:"lastUpdated"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ProcessedEmail is a ledger entry. An empty LinkedApplicationID means the email was
// consumed without producing or updating an application.
type ProcessedEmail struct {
	EmailID             string    `json:"emailId"`
	ProcessedAt         time.Time `json:"processedAt"`
	LinkedApplicationID string    `json:"linkedApplicationId,omitempty"`
	Note                string    `json:"note,omitempty"`
}
