package domain

import "time"

// Contact is the read-only view of a CRM contact that the engine needs.
// The CRM owns the full record; the engine never writes to it.
type Contact struct {
	Document  string     `json:"document" db:"document"` // national document identifier
	Name      string     `json:"name" db:"name"`
	Phone     string     `json:"phone" db:"phone"`
	Email     string     `json:"email" db:"email"`
	BirthDate *time.Time `json:"birth_date" db:"birth_date"`
	RenewalAt *time.Time `json:"renewal_at" db:"renewal_at"`
	Region    string     `json:"region,omitempty" db:"region"`
	Segment   string     `json:"segment,omitempty" db:"segment"`
}

// FirstName returns the leading word of the contact's name, used for
// message personalization.
func (c Contact) FirstName() string {
	for i := 0; i < len(c.Name); i++ {
		if c.Name[i] == ' ' {
			return c.Name[:i]
		}
	}
	return c.Name
}
