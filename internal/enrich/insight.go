package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/pkg/anthropic"
)

const insightSystem = `You write brief, grounded sales intelligence. Use only the facts
provided; never invent names, numbers, or events. Keep a warm, plain tone.`

const insightPromptFormat = `Based on the contact dossier below, return ONLY a JSON object with:
- summary: string, two or three sentences describing who this contact is and why they matter
- email: string, a short outreach email draft addressed to the contact
- sms: string, an outreach text message under 300 characters

No prose outside the JSON, no markdown fences.

Dossier:
%s`

// insightOutput is the JSON shape the model is asked to produce.
type insightOutput struct {
	Summary string `json:"summary"`
	Email   string `json:"email"`
	SMS     string `json:"sms"`
}

// generateInsight runs the post-merge summary step: one model call that
// turns the merged record into a summary and outreach drafts.
func generateInsight(ctx context.Context, client anthropic.Client, modelName string, maxTokens int64, rec *model.Record) (string, *model.MessageDrafts, anthropic.TokenUsage, error) {
	resp, err := client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     modelName,
		MaxTokens: maxTokens,
		System:    insightSystem,
		Messages: []anthropic.Message{
			{Role: "user", Content: fmt.Sprintf(insightPromptFormat, dossier(rec))},
		},
	})
	if err != nil {
		return "", nil, anthropic.TokenUsage{}, eris.Wrap(err, "enrich: insight call")
	}

	var out insightOutput
	if err := json.Unmarshal([]byte(cleanJSON(resp.Text())), &out); err != nil {
		return "", nil, resp.Usage, eris.Wrap(err, "enrich: parse insight")
	}
	if out.Summary == "" {
		return "", nil, resp.Usage, eris.New("enrich: insight returned no summary")
	}

	drafts := &model.MessageDrafts{Email: out.Email, SMS: out.SMS}
	return out.Summary, drafts, resp.Usage, nil
}

// dossier renders the merged record as a compact plain-text brief for the
// insight prompt. Absent fields are simply omitted.
func dossier(rec *model.Record) string {
	var b strings.Builder
	write := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", label, value)
		}
	}

	write("Name", rec.FullName())
	write("Title", rec.JobTitle)
	write("Company", rec.Company)
	write("Profile", rec.ProfileURL)

	if rec.ReputationScore != nil {
		fmt.Fprintf(&b, "Rating: %.1f from %d reviews\n", *rec.ReputationScore, rec.ReviewCount)
	}
	if f := rec.CompanyFacts; f != nil {
		write("About", f.Description)
		write("Industry", f.Industry)
		write("Founded", f.FoundedYear)
		write("Size", f.EmployeeSize)
		write("Headquarters", f.Headquarters)
	}
	for _, n := range rec.News {
		write("News", n.Title+" "+n.Summary)
	}
	for network, url := range rec.SocialLinks {
		write("Social ("+network+")", url)
	}
	return b.String()
}

// cleanJSON strips markdown fences and surrounding prose from a model
// response expected to carry a single JSON object.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return strings.TrimSpace(text)
}
