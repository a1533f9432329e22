// internal/model/contact.go
package model

import (
	"strings"
	"time"
)

type ContactStatus string

const (
	ContactActive       ContactStatus = "ACTIVE"
	ContactUnsubscribed ContactStatus = "UNSUBSCRIBED"
	ContactBounced      ContactStatus = "BOUNCED"
	ContactComplained   ContactStatus = "COMPLAINED"
)

type Contact struct {
	ID         string        `db:"id" json:"id"`
	UserID     string        `db:"user_id" json:"user_id"`
	Email      string        `db:"email" json:"email"`
	Name       string        `db:"name" json:"name,omitempty"`
	FirstName  string        `db:"first_name" json:"first_name,omitempty"`
	LastName   string        `db:"last_name" json:"last_name,omitempty"`
	Company    string        `db:"company" json:"company,omitempty"`
	JobTitle   string        `db:"job_title" json:"job_title,omitempty"`
	Phone      string        `db:"phone" json:"phone,omitempty"`
	Website    string        `db:"website" json:"website,omitempty"`
	Address    string        `db:"address" json:"address,omitempty"`
	City       string        `db:"city" json:"city,omitempty"`
	State      string        `db:"state" json:"state,omitempty"`
	Country    string        `db:"country" json:"country,omitempty"`
	PostalCode string        `db:"postal_code" json:"postal_code,omitempty"`
	Tags       []string      `db:"tags" json:"tags"`
	Status     ContactStatus `db:"status" json:"status"`
	CreatedAt  time.Time     `db:"created_at" json:"created_at"`
}

// HasAnyTag reports whether the contact carries at least one of tags.
func (c *Contact) HasAnyTag(tags []string) bool {
	for _, want := range tags {
		for _, have := range c.Tags {
			if have == want {
				return true
			}
		}
	}
	return false
}

// Eligible reports whether the contact may receive a campaign targeting tags.
// An empty tag list targets every active contact.
func (c *Contact) Eligible(tags []string) bool {
	if c.Status != ContactActive {
		return false
	}
	return len(tags) == 0 || c.HasAnyTag(tags)
}

// FullName is Name when set, otherwise first and last name joined.
func (c *Contact) FullName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return strings.TrimSpace(strings.TrimSpace(c.FirstName) + " " + strings.TrimSpace(c.LastName))
}

// SMTPCredentials are the outbound credentials a user stored in their settings.
type SMTPCredentials struct {
	Host      string `db:"smtp_host" json:"smtp_host"`
	Port      int    `db:"smtp_port" json:"smtp_port"`
	Username  string `db:"smtp_user" json:"smtp_user"`
	Password  string `db:"smtp_password" json:"-"`
	FromEmail string `db:"from_email" json:"from_email"`
	FromName  string `db:"from_name" json:"from_name"`
	SSL       bool   `db:"smtp_ssl" json:"smtp_ssl"`
}

// Present reports whether enough fields are set to open a connection.
func (c *SMTPCredentials) Present() bool {
	return c != nil && c.Host != "" && c.Username != "" && c.Password != ""
}
