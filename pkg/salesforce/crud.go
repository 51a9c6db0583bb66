package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	FirstName string `json:"FirstName" salesforce:"FirstName"`
	LastName  string `json:"LastName" salesforce:"LastName"`
	Email     string `json:"Email" salesforce:"Email"`
	Phone     string `json:"Phone" salesforce:"Phone"`
	Title     string `json:"Title" salesforce:"Title"`
}

// contactFields are the SOQL fields selected for Contact queries.
var contactFields = []string{
	"Id", "FirstName", "LastName", "Email", "Phone", "Title",
}

// escapeSoql escapes single quotes and backslashes in a SOQL string literal.
func escapeSoql(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, "'", `\'`)
}

// FindContactByEmail queries Salesforce for a Contact matching the given email.
// Returns nil if no contact is found.
func FindContactByEmail(ctx context.Context, c Client, email string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT %s FROM Contact WHERE Email = '%s' LIMIT 1",
		strings.Join(contactFields, ", "),
		escapeSoql(email),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by email %s", email))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// UpsertContact updates the Contact matching the given email, or creates a new
// one when no match exists. Returns the Salesforce ID either way.
func UpsertContact(ctx context.Context, c Client, email string, fields map[string]any) (string, error) {
	if email == "" {
		return "", eris.New("sf: contact email is required")
	}
	if len(fields) == 0 {
		return "", eris.New("sf: no fields to upsert")
	}

	existing, err := FindContactByEmail(ctx, c, email)
	if err != nil {
		return "", err
	}

	if existing != nil {
		if err := c.UpdateOne(ctx, "Contact", existing.ID, fields); err != nil {
			return "", eris.Wrap(err, fmt.Sprintf("sf: update contact %s", existing.ID))
		}
		return existing.ID, nil
	}

	fields["Email"] = email
	id, err := c.InsertOne(ctx, "Contact", fields)
	if err != nil {
		return "", eris.Wrap(err, "sf: create contact")
	}
	return id, nil
}
