// Package enrich runs the phased enrichment flow for a record: auto-fill,
// a priority reputation phase, a concurrent provider fan-out, an
// order-independent merge, an insight step, and a best-effort CRM sync.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/metspa/network-buddy-sub000/internal/autofill"
	"github.com/metspa/network-buddy-sub000/internal/cache"
	"github.com/metspa/network-buddy-sub000/internal/config"
	"github.com/metspa/network-buddy-sub000/internal/cost"
	"github.com/metspa/network-buddy-sub000/internal/model"
	"github.com/metspa/network-buddy-sub000/internal/research"
	"github.com/metspa/network-buddy-sub000/internal/resilience"
	"github.com/metspa/network-buddy-sub000/internal/store"
	"github.com/metspa/network-buddy-sub000/pkg/anthropic"
	"github.com/metspa/network-buddy-sub000/pkg/apollo"
	"github.com/metspa/network-buddy-sub000/pkg/google"
	"github.com/metspa/network-buddy-sub000/pkg/jina"
	"github.com/metspa/network-buddy-sub000/pkg/proxycurl"
	"github.com/metspa/network-buddy-sub000/pkg/salesforce"
)

// ErrRecordNotFound is returned when the record id resolves to nothing.
var ErrRecordNotFound = eris.New("enrich: record not found")

// ErrNotAllowed is returned when the account's quota is exhausted and no
// credits remain. Callers surface it as an upgrade prompt.
var ErrNotAllowed = eris.New("enrich: monthly quota exhausted and no credits remain")

// Gate is the admission and metering surface the orchestrator needs.
// Satisfied by meter.Gate.
type Gate interface {
	CheckAllowed(ctx context.Context, accountID string) (allowed bool, reason string, err error)
	Decrement(ctx context.Context, accountID, attemptID string, costUSD float64) error
}

// Resolver fills record gaps before enrichment. Satisfied by
// autofill.Resolver.
type Resolver interface {
	Resolve(ctx context.Context, rec *model.Record) (*autofill.Result, error)
}

// Researcher runs the deep-research sub-queries. Satisfied by
// research.Service.
type Researcher interface {
	Research(ctx context.Context, company string) (*research.Result, error)
}

// Deps bundles the orchestrator's collaborators. Nil provider clients
// disable their phase instead of failing it.
type Deps struct {
	Store      store.Store
	Cache      cache.Store
	Gate       Gate
	Resolver   Resolver
	Calc       *cost.Calculator
	Google     google.Client
	Proxycurl  proxycurl.Client
	Apollo     apollo.Client
	Research   Researcher
	Jina       jina.Client
	Anthropic  anthropic.Client
	Salesforce salesforce.Client
}

// Orchestrator drives enrichment attempts. Safe for concurrent use:
// attempts share only the cache and the metering gate.
type Orchestrator struct {
	cfg    *config.Config
	deps   Deps
	broker *Broker
}

// New creates an orchestrator.
func New(cfg *config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps, broker: NewBroker()}
}

// Progress exposes the event broker for streaming consumers.
func (o *Orchestrator) Progress() *Broker {
	return o.broker
}

// Enrich runs one full attempt for the record. Provider failures degrade
// individual fields; only a failure to load the record, pass admission,
// or persist the result is fatal. The returned attempt reflects the
// terminal status.
func (o *Orchestrator) Enrich(ctx context.Context, recordID string) (*model.Attempt, error) {
	rec, err := o.deps.Store.GetRecord(ctx, recordID)
	if err != nil {
		return nil, eris.Wrapf(err, "enrich: load record %s", recordID)
	}
	if rec == nil {
		return nil, ErrRecordNotFound
	}

	allowed, reason, err := o.deps.Gate.CheckAllowed(ctx, rec.AccountID)
	if err != nil {
		// Fail closed: an unreachable account store never grants a free run.
		return nil, eris.Wrap(err, "enrich: admission check")
	}
	if !allowed {
		return nil, eris.Wrap(ErrNotAllowed, reason)
	}

	attempt, err := o.deps.Store.CreateAttempt(ctx, rec.ID, rec.AccountID)
	if err != nil {
		return nil, eris.Wrap(err, "enrich: create attempt")
	}

	// Provider calls run under the attempt deadline; store writes use the
	// caller's context so a timed-out fan-out still persists its partial
	// result.
	attemptCtx := ctx
	if secs := o.cfg.Enrich.AttemptTimeoutSecs; secs > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, time.Duration(secs)*time.Second)
		defer cancel()
	}

	log := zap.L().With(
		zap.String("record_id", rec.ID),
		zap.String("attempt_id", attempt.ID),
	)
	log.Info("enrichment starting")

	o.setStatus(ctx, log, rec.ID, model.RecordStatusProcessing, "")

	track := func(name, message string, fn func() (map[string]any, error)) {
		start := time.Now()
		meta, phaseErr := fn()
		pr := model.PhaseResult{
			Name:     name,
			Status:   model.PhaseStatusComplete,
			Duration: time.Since(start).Milliseconds(),
			Metadata: meta,
		}
		if phaseErr != nil {
			pr.Status = model.PhaseStatusFailed
			pr.Error = phaseErr.Error()
			log.Warn("phase degraded", zap.String("phase", name), zap.Error(phaseErr))
		} else {
			log.Info("phase complete",
				zap.String("phase", name),
				zap.Int64("duration_ms", pr.Duration),
			)
		}
		if recErr := o.deps.Store.RecordPhase(ctx, attempt.ID, pr); recErr != nil {
			log.Warn("phase record write failed", zap.String("phase", name), zap.Error(recErr))
		}
		o.broker.Publish(rec.ID, model.ProgressEvent{Phase: name, Message: message, Data: meta})
	}

	usedPremium := false
	// extraCost accumulates metered spend beyond the flat attempt rate:
	// research sub-queries and insight tokens.
	extraCost := 0.0

	// Auto-fill before any enrichment so the providers see the best
	// available identity. Its fills are persisted immediately.
	track(model.PhaseAutoFill, "filling missing fields", func() (map[string]any, error) {
		res, resolveErr := o.deps.Resolver.Resolve(attemptCtx, rec)
		if resolveErr != nil {
			return nil, resolveErr
		}
		rec = res.Record
		usedPremium = usedPremium || res.UsedPremium
		if len(res.ChangedFields) == 0 {
			return map[string]any{"scenario": string(res.Scenario)}, nil
		}
		if saveErr := o.deps.Store.SaveRecordFields(ctx, rec.ID, autofillFields(rec)); saveErr != nil {
			return nil, eris.Wrap(saveErr, "enrich: save auto-fill")
		}
		return map[string]any{
			"scenario": string(res.Scenario),
			"changed":  res.ChangedFields,
		}, nil
	})

	// Phase 1: reputation runs alone and first. It is the fastest and the
	// most visible partial result, so its completion is streamed before
	// the fan-out starts.
	var rep *reputation
	track(model.PhaseReputation, "fetching reviews and ratings", func() (map[string]any, error) {
		if o.deps.Google == nil || rec.Company == "" {
			return map[string]any{"skipped": "no company"}, nil
		}
		r, repErr := o.fetchReputation(attemptCtx, rec.Company)
		if repErr != nil {
			return nil, repErr
		}
		rep = r
		return map[string]any{"rating": r.Score, "reviews": len(r.Reviews)}, nil
	})

	// Phase 2/3: the remaining providers have no ordering dependency and
	// fan out together. Each failure is contained in its own phase.
	var f fanout
	g := new(errgroup.Group)

	g.Go(func() error {
		track(model.PhaseProfile, "searching professional profile", func() (map[string]any, error) {
			if o.deps.Proxycurl == nil || !rec.HasIdentity() {
				return map[string]any{"skipped": "no identity"}, nil
			}
			profile, profErr := o.fetchProfile(attemptCtx, rec)
			if profErr != nil {
				return nil, profErr
			}
			f.Profile = profile
			return map[string]any{"url": profile.URL}, nil
		})
		return nil
	})

	g.Go(func() error {
		track(model.PhaseContact, "looking up contact details", func() (map[string]any, error) {
			if o.deps.Apollo == nil || !rec.HasIdentity() || rec.Company == "" {
				return map[string]any{"skipped": "not enough identity"}, nil
			}
			person, fromCache, contactErr := o.fetchContact(attemptCtx, rec)
			if !fromCache {
				// Invoked is what costs, found or not.
				usedPremium = true
			}
			if contactErr != nil {
				return nil, contactErr
			}
			f.Contact = person
			return map[string]any{"from_cache": fromCache}, nil
		})
		return nil
	})

	g.Go(func() error {
		track(model.PhaseResearch, "researching the company", func() (map[string]any, error) {
			if o.deps.Research == nil || rec.Company == "" {
				return map[string]any{"skipped": "no company"}, nil
			}
			result, fromCache, resErr := o.fetchResearch(attemptCtx, rec.Company)
			if resErr != nil {
				return nil, resErr
			}
			if !fromCache {
				extraCost += o.deps.Calc.Research(result.Queries)
			}
			f.Research = result
			return map[string]any{"news": len(result.News), "from_cache": fromCache}, nil
		})
		return nil
	})

	g.Go(func() error {
		track(model.PhaseSocial, "discovering social profiles", func() (map[string]any, error) {
			if o.deps.Jina == nil || (rec.FullName() == "" && rec.Company == "") {
				return map[string]any{"skipped": "nothing to search"}, nil
			}
			links, socialErr := o.fetchSocial(attemptCtx, rec)
			if socialErr != nil {
				return nil, socialErr
			}
			f.Social = links
			return map[string]any{"links": len(links)}, nil
		})
		return nil
	})

	_ = g.Wait()

	// Merge is pure and order-independent; every provider has settled.
	applyReputation(rec, rep)
	applyFanout(rec, f)

	if saveErr := o.deps.Store.SaveRecordFields(ctx, rec.ID, derivedFields(rec)); saveErr != nil {
		return o.fail(ctx, log, rec, attempt, usedPremium, extraCost, eris.Wrap(saveErr, "enrich: persist merge"))
	}

	// Insight needs the merged facts, so it runs after the fan-out.
	track(model.PhaseInsight, "writing summary and drafts", func() (map[string]any, error) {
		if o.deps.Anthropic == nil {
			return map[string]any{"skipped": "disabled"}, nil
		}
		summary, drafts, usage, insErr := generateInsight(
			attemptCtx, o.deps.Anthropic, o.cfg.Anthropic.Model, o.cfg.Anthropic.MaxTokens, rec)
		if insErr != nil {
			return nil, insErr
		}
		usage.LogUsage(o.cfg.Anthropic.Model, "insight")
		extraCost += o.deps.Calc.Insight(usage.InputTokens, usage.OutputTokens)
		rec.Summary = summary
		rec.Drafts = drafts
		if saveErr := o.deps.Store.SaveRecordFields(ctx, rec.ID, map[string]any{
			"summary": summary,
			"drafts":  drafts,
		}); saveErr != nil {
			return nil, eris.Wrap(saveErr, "enrich: save insight")
		}
		return map[string]any{
			"input_tokens":  usage.InputTokens,
			"output_tokens": usage.OutputTokens,
		}, nil
	})

	track(model.PhaseSync, "syncing to crm", func() (map[string]any, error) {
		if o.deps.Salesforce == nil {
			return map[string]any{"skipped": "disabled"}, nil
		}
		warning := syncCRM(attemptCtx, o.deps.Salesforce, rec)
		if warning == "" {
			return nil, nil
		}
		rec.SyncWarning = warning
		log.Warn("crm sync degraded", zap.String("warning", warning))
		if saveErr := o.deps.Store.SaveRecordFields(ctx, rec.ID, map[string]any{"sync_warning": warning}); saveErr != nil {
			log.Warn("sync warning write failed", zap.Error(saveErr))
		}
		return map[string]any{"warning": warning}, nil
	})

	o.setStatus(ctx, log, rec.ID, model.RecordStatusCompleted, "")

	costUSD := o.deps.Calc.Attempt(usedPremium) + extraCost
	if compErr := o.deps.Store.CompleteAttempt(ctx, attempt.ID, model.AttemptStatusCompleted, usedPremium, costUSD, ""); compErr != nil {
		log.Warn("attempt completion write failed", zap.Error(compErr))
	}
	if decErr := o.deps.Gate.Decrement(ctx, rec.AccountID, attempt.ID, costUSD); decErr != nil {
		// The provider cost is already incurred; never unwind the attempt.
		log.Error("usage decrement failed", zap.Error(decErr))
	}

	o.broker.Publish(rec.ID, model.ProgressEvent{
		Phase:   model.PhaseComplete,
		Message: "enrichment complete",
	})
	log.Info("enrichment complete",
		zap.Bool("used_premium", usedPremium),
		zap.Float64("cost_usd", costUSD),
	)

	attempt.Status = model.AttemptStatusCompleted
	attempt.UsedPremium = usedPremium
	attempt.CostUSD = costUSD
	return attempt, nil
}

// fail marks the record and attempt failed and emits the terminal error
// event. Used only for attempt-fatal conditions.
func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, rec *model.Record, attempt *model.Attempt, usedPremium bool, extraCost float64, cause error) (*model.Attempt, error) {
	msg := cause.Error()
	o.setStatus(ctx, log, rec.ID, model.RecordStatusFailed, msg)

	costUSD := o.deps.Calc.Attempt(usedPremium) + extraCost
	if compErr := o.deps.Store.CompleteAttempt(ctx, attempt.ID, model.AttemptStatusFailed, usedPremium, costUSD, msg); compErr != nil {
		log.Warn("attempt completion write failed", zap.Error(compErr))
	}
	if decErr := o.deps.Gate.Decrement(ctx, rec.AccountID, attempt.ID, costUSD); decErr != nil {
		log.Error("usage decrement failed", zap.Error(decErr))
	}

	o.broker.Publish(rec.ID, model.ProgressEvent{Phase: model.PhaseError, Message: msg})
	log.Error("enrichment failed", zap.Error(cause))

	attempt.Status = model.AttemptStatusFailed
	attempt.UsedPremium = usedPremium
	attempt.CostUSD = costUSD
	attempt.Error = msg
	return attempt, cause
}

func (o *Orchestrator) setStatus(ctx context.Context, log *zap.Logger, recordID string, status model.RecordStatus, errMsg string) {
	if err := o.deps.Store.UpdateRecordStatus(ctx, recordID, status, errMsg); err != nil {
		log.Warn("status update failed", zap.String("status", string(status)), zap.Error(err))
	}
}

// autofillFields is the partial-save column map for a post-resolve record.
func autofillFields(rec *model.Record) map[string]any {
	return map[string]any{
		"first_name":           rec.FirstName,
		"last_name":            rec.LastName,
		"company":              rec.Company,
		"job_title":            rec.JobTitle,
		"email":                rec.Email,
		"phone":                rec.Phone,
		"auto_filled_fields":   rec.AutoFilledFields,
		"auto_fill_source":     rec.AutoFillSource,
		"auto_fill_confidence": rec.AutoFillConfidence,
	}
}

// retryCfg retries transient provider errors (rate limits, 5xx) inside
// the per-call timeout.
func retryCfg(provider string) resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.OnRetry = func(attempt int, err error) {
		zap.L().Debug("retrying provider call",
			zap.String("provider", provider),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return cfg
}

func (o *Orchestrator) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	secs := o.cfg.Enrich.ProviderTimeoutSecs
	if secs <= 0 {
		secs = 20
	}
	return context.WithTimeout(ctx, time.Duration(secs)*time.Second)
}

func (o *Orchestrator) fetchReputation(ctx context.Context, company string) (*reputation, error) {
	key := cache.Key(cache.KindReviews, company)
	var cached reputation
	if o.cacheLookup(ctx, key, cache.KindReviews, &cached) {
		return &cached, nil
	}

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()
	resp, err := resilience.DoVal(pctx, retryCfg("google"), func(ctx context.Context) (*google.TextSearchResponse, error) {
		return o.deps.Google.TextSearch(ctx, company)
	})
	if err != nil {
		return nil, err
	}

	rep := reputationFromPlace(resp.Places[0], o.cfg.Enrich.MaxReviews)
	o.cacheStore(ctx, key, cache.KindReviews, rep)
	return &rep, nil
}

func (o *Orchestrator) fetchProfile(ctx context.Context, rec *model.Record) (*proxycurl.Profile, error) {
	key := cache.Key(cache.KindProfile, rec.FirstName, rec.LastName, rec.Company)
	var cached proxycurl.Profile
	if o.cacheLookup(ctx, key, cache.KindProfile, &cached) {
		return &cached, nil
	}

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()
	profile, err := resilience.DoVal(pctx, retryCfg("proxycurl"), func(ctx context.Context) (*proxycurl.Profile, error) {
		return o.deps.Proxycurl.LookupPerson(ctx, proxycurl.LookupRequest{
			FirstName: rec.FirstName,
			LastName:  rec.LastName,
			Company:   rec.Company,
		})
	})
	if err != nil {
		return nil, err
	}

	o.cacheStore(ctx, key, cache.KindProfile, profile)
	return profile, nil
}

// fetchContact resolves extra contact detail through the premium
// provider. The fromCache flag lets the caller skip the premium cost when
// no network call happened.
func (o *Orchestrator) fetchContact(ctx context.Context, rec *model.Record) (person *apollo.Person, fromCache bool, err error) {
	key := cache.Key(cache.KindContact, rec.FirstName, rec.LastName, rec.Company)
	var cached apollo.Person
	if o.cacheLookup(ctx, key, cache.KindContact, &cached) {
		return &cached, true, nil
	}

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()
	person, err = resilience.DoVal(pctx, retryCfg("apollo"), func(ctx context.Context) (*apollo.Person, error) {
		return o.deps.Apollo.MatchPerson(ctx, apollo.MatchRequest{
			FirstName:        rec.FirstName,
			LastName:         rec.LastName,
			OrganizationName: rec.Company,
			Email:            rec.Email,
		})
	})
	if err != nil {
		return nil, false, err
	}

	o.cacheStore(ctx, key, cache.KindContact, person)
	return person, false, nil
}

// fetchResearch runs the deep-research sub-queries. The fromCache flag
// lets the caller skip the per-query research cost when no provider
// calls happened.
func (o *Orchestrator) fetchResearch(ctx context.Context, company string) (result *research.Result, fromCache bool, err error) {
	key := cache.Key(cache.KindResearch, company)
	var cached research.Result
	if o.cacheLookup(ctx, key, cache.KindResearch, &cached) {
		return &cached, true, nil
	}

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()
	result, err = o.deps.Research.Research(pctx, company)
	if err != nil {
		return nil, false, err
	}

	o.cacheStore(ctx, key, cache.KindResearch, result)
	return result, false, nil
}

func (o *Orchestrator) fetchSocial(ctx context.Context, rec *model.Record) (map[string]string, error) {
	key := cache.Key(cache.KindSocial, rec.FullName(), rec.Company)
	var cached map[string]string
	if o.cacheLookup(ctx, key, cache.KindSocial, &cached) {
		return cached, nil
	}

	pctx, cancel := o.providerCtx(ctx)
	defer cancel()
	results, err := resilience.DoVal(pctx, retryCfg("jina"), func(ctx context.Context) ([]jina.SearchResult, error) {
		return o.deps.Jina.Search(ctx, socialQuery(rec))
	})
	if err != nil {
		return nil, err
	}

	links := classifySocial(results)
	o.cacheStore(ctx, key, cache.KindSocial, links)
	return links, nil
}

func socialQuery(rec *model.Record) string {
	terms := make([]string, 0, 2)
	if name := rec.FullName(); name != "" {
		terms = append(terms, fmt.Sprintf("%q", name))
	}
	if rec.Company != "" {
		terms = append(terms, fmt.Sprintf("%q", rec.Company))
	}
	sites := "site:linkedin.com OR site:facebook.com OR site:instagram.com OR site:x.com"
	return strings.Join(terms, " ") + " " + sites
}

// socialNetworks maps a URL substring to the link's network key. First
// result per network wins; search relevance order decides ties.
var socialNetworks = []struct {
	match   string
	network string
}{
	{"linkedin.com", "linkedin"},
	{"facebook.com", "facebook"},
	{"instagram.com", "instagram"},
	{"x.com", "x"},
	{"twitter.com", "x"},
}

func classifySocial(results []jina.SearchResult) map[string]string {
	links := make(map[string]string)
	for _, r := range results {
		for _, sn := range socialNetworks {
			if strings.Contains(strings.ToLower(r.URL), sn.match) {
				if _, seen := links[sn.network]; !seen {
					links[sn.network] = r.URL
				}
				break
			}
		}
	}
	return links
}

// cacheLookup reads and decodes a cache entry. Any backend or decode
// failure degrades to a miss.
func (o *Orchestrator) cacheLookup(ctx context.Context, key string, kind cache.Kind, out any) bool {
	if o.deps.Cache == nil {
		return false
	}
	outcome, err := o.deps.Cache.Get(ctx, key, kind)
	if err != nil {
		zap.L().Debug("cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if !outcome.Hit {
		return false
	}
	if err := json.Unmarshal(outcome.Payload, out); err != nil {
		zap.L().Debug("cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// cacheStore writes a provider result with the kind's default TTL.
// Write failures are logged only; the cache never gates enrichment.
func (o *Orchestrator) cacheStore(ctx context.Context, key string, kind cache.Kind, v any) {
	if o.deps.Cache == nil {
		return
	}
	payload, err := json.Marshal(v)
	if err != nil {
		zap.L().Debug("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	ttl := cache.DefaultTTL(kind, o.cfg.Cache.VolatileDays, o.cfg.Cache.LongLivedDays)
	if err := o.deps.Cache.Set(ctx, key, kind, payload, ttl); err != nil {
		zap.L().Debug("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
