package enrich

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/pkg/salesforce"
)

// syncCRM pushes the enriched contact to Salesforce. Best effort: any
// failure comes back as a warning string for the record, never an error,
// because the attempt's outcome must not depend on a downstream system.
func syncCRM(ctx context.Context, client salesforce.Client, rec *model.Record) (warning string) {
	if client == nil {
		return ""
	}
	if rec.Email == "" {
		return "crm sync skipped: record has no email"
	}

	fields := map[string]any{}
	if rec.FirstName != "" {
		fields["FirstName"] = rec.FirstName
	}
	if rec.LastName != "" {
		fields["LastName"] = rec.LastName
	}
	if rec.Phone != "" {
		fields["Phone"] = rec.Phone
	}
	if rec.JobTitle != "" {
		fields["Title"] = rec.JobTitle
	}
	if rec.Summary != "" {
		fields["Description"] = rec.Summary
	}
	if len(fields) == 0 {
		return "crm sync skipped: nothing to write"
	}

	if _, err := salesforce.UpsertContact(ctx, client, rec.Email, fields); err != nil {
		return eris.Wrap(err, "enrich: crm sync").Error()
	}
	return ""
}
