// Package research turns deep-research provider output into structured
// company facts, news, and leadership data.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/pkg/perplexity"
)

const factsPrompt = `Research the company "%s". Return ONLY a JSON object with these fields:
- description: string (one or two sentences)
- industry: string
- founded_year: string
- employee_size: string (e.g. "51-200")
- headquarters: string (city and region)
- website: string

Use an empty string for any field you cannot determine. No prose, no markdown.`

const newsPrompt = `Find recent news about the company "%s" from the last twelve months.
Return ONLY a JSON array of at most %d objects with these fields:
- title: string
- url: string
- summary: string (one sentence)

Return [] if you find nothing. No prose, no markdown.`

const leadershipPrompt = `List the leadership of the company "%s": owners, founders,
executives, and other decision makers. Return ONLY a JSON array of objects with
these fields:
- name: string
- title: string
- profile_url: string (public professional profile, or empty)

Return [] if you find nobody. No prose, no markdown.`

// Result is the combined output of one research pass.
type Result struct {
	Facts   *model.CompanyFacts
	News    []model.NewsItem
	Queries int
}

// Service fans a research request into typed sub-queries.
type Service struct {
	client  perplexity.Client
	maxNews int
}

// NewService creates a research service. maxNews caps the news list.
func NewService(client perplexity.Client, maxNews int) *Service {
	if maxNews <= 0 {
		maxNews = 5
	}
	return &Service{client: client, maxNews: maxNews}
}

// Research runs the company-facts and news sub-queries concurrently.
// One sub-query failing degrades the result instead of sinking it; the
// error is returned only when both fail.
func (s *Service) Research(ctx context.Context, company string) (*Result, error) {
	if company == "" {
		return nil, eris.New("research: company is required")
	}
	log := zap.L().With(zap.String("company", company))

	res := &Result{Queries: 2}
	var factsErr, newsErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res.Facts, factsErr = s.CompanyFacts(gctx, company)
		return nil
	})
	g.Go(func() error {
		res.News, newsErr = s.RecentNews(gctx, company)
		return nil
	})
	_ = g.Wait()

	if factsErr != nil && newsErr != nil {
		return nil, eris.Wrap(factsErr, "research: all sub-queries failed")
	}
	if factsErr != nil {
		log.Warn("research: company facts failed", zap.Error(factsErr))
	}
	if newsErr != nil {
		log.Warn("research: news lookup failed", zap.Error(newsErr))
	}
	return res, nil
}

// CompanyFacts asks for slow-changing facts about the company.
func (s *Service) CompanyFacts(ctx context.Context, company string) (*model.CompanyFacts, error) {
	out, err := s.client.Ask(ctx, "", fmt.Sprintf(factsPrompt, company))
	if err != nil {
		return nil, eris.Wrap(err, "research: company facts")
	}

	var facts model.CompanyFacts
	if err := json.Unmarshal([]byte(extractJSONObject(out)), &facts); err != nil {
		return nil, eris.Wrap(err, "research: parse company facts")
	}
	return &facts, nil
}

// RecentNews asks for recent news mentions of the company.
func (s *Service) RecentNews(ctx context.Context, company string) ([]model.NewsItem, error) {
	out, err := s.client.Ask(ctx, "", fmt.Sprintf(newsPrompt, company, s.maxNews))
	if err != nil {
		return nil, eris.Wrap(err, "research: news")
	}

	var news []model.NewsItem
	if err := json.Unmarshal([]byte(extractJSONArray(out)), &news); err != nil {
		return nil, eris.Wrap(err, "research: parse news")
	}
	if len(news) > s.maxNews {
		news = news[:s.maxNews]
	}
	return news, nil
}

// Leadership asks for the company's decision makers.
func (s *Service) Leadership(ctx context.Context, company string) ([]model.Executive, error) {
	out, err := s.client.Ask(ctx, "", fmt.Sprintf(leadershipPrompt, company))
	if err != nil {
		return nil, eris.Wrap(err, "research: leadership")
	}

	var execs []model.Executive
	if err := json.Unmarshal([]byte(extractJSONArray(out)), &execs); err != nil {
		return nil, eris.Wrap(err, "research: parse leadership")
	}
	return execs, nil
}

// stripFences removes markdown code fences that models wrap JSON in.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}
	return strings.TrimSpace(text)
}

// extractJSONObject pulls the first {...} span out of possibly-wrapped text.
func extractJSONObject(text string) string {
	text = stripFences(text)
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}

// extractJSONArray pulls the first [...] span out of possibly-wrapped text.
func extractJSONArray(text string) string {
	text = stripFences(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
