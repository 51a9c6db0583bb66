package main

import (
	"context"
	"os"

	sflib "github.com/k-capehart/go-salesforce/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/metspa/network-buddy-sub000/internal/autofill"
	"github.com/metspa/network-buddy-sub000/internal/cache"
	"github.com/metspa/network-buddy-sub000/internal/cost"
	"github.com/metspa/network-buddy-sub000/internal/enrich"
	"github.com/metspa/network-buddy-sub000/internal/meter"
	"github.com/metspa/network-buddy-sub000/internal/research"
	"github.com/metspa/network-buddy-sub000/internal/store"
	anthropicpkg "github.com/metspa/network-buddy-sub000/pkg/anthropic"
	"github.com/metspa/network-buddy-sub000/pkg/apollo"
	"github.com/metspa/network-buddy-sub000/pkg/google"
	"github.com/metspa/network-buddy-sub000/pkg/jina"
	"github.com/metspa/network-buddy-sub000/pkg/perplexity"
	"github.com/metspa/network-buddy-sub000/pkg/proxycurl"
	sfpkg "github.com/metspa/network-buddy-sub000/pkg/salesforce"
)

// enrichEnv holds the initialized store, cache, gate, and orchestrator
// shared by the enrich/serve/accounts commands.
type enrichEnv struct {
	Store        store.Store
	Cache        cache.Store
	Gate         *meter.Gate
	Orchestrator *enrich.Orchestrator
}

// Close releases resources held by the environment.
func (e *enrichEnv) Close() {
	if e.Cache != nil {
		_ = e.Cache.Close()
	}
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "network-buddy.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initSalesforce() (sfpkg.Client, error) {
	if cfg.Salesforce.ClientID == "" {
		zap.L().Debug("salesforce not configured, crm sync disabled")
		return nil, nil
	}

	pemData, err := os.ReadFile(cfg.Salesforce.KeyPath)
	if err != nil {
		return nil, eris.Wrap(err, "read salesforce JWT private key")
	}

	sf, err := sflib.Init(sflib.Creds{
		Domain:         cfg.Salesforce.LoginURL,
		Username:       cfg.Salesforce.Username,
		ConsumerKey:    cfg.Salesforce.ClientID,
		ConsumerRSAPem: string(pemData),
	})
	if err != nil {
		return nil, eris.Wrap(err, "init salesforce")
	}

	return sfpkg.NewClient(sf, sfpkg.WithRateLimit(cfg.Salesforce.RPS)), nil
}

func initGate(st store.Store) (*meter.Gate, *cost.Calculator, error) {
	catalog := meter.DefaultCatalog()
	if cfg.Meter.PlansPath != "" {
		loaded, err := meter.LoadCatalog(cfg.Meter.PlansPath)
		if err != nil {
			return nil, nil, eris.Wrap(err, "load plan catalog")
		}
		catalog = loaded
	}

	rates := cost.DefaultRates()
	if cfg.Meter.BaseCostUSD > 0 {
		rates.BaseUSD = cfg.Meter.BaseCostUSD
	}
	if cfg.Meter.PremiumCostUSD > 0 {
		rates.PremiumUSD = cfg.Meter.PremiumCostUSD
	}
	calc := cost.NewCalculator(rates)

	gate := meter.New(st, catalog, cfg.Meter.DefaultPlan, cfg.Meter.DefaultQuota)
	return gate, calc, nil
}

// initEnv sets up the store, cache, metering gate, all provider clients,
// and the orchestrator. Callers should defer env.Close(). Providers with
// no key configured are left nil; their phases are skipped.
func initEnv(ctx context.Context) (*enrichEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	cacheStore, err := cache.New(cfg.Cache)
	if err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "init cache")
	}

	gate, calc, err := initGate(st)
	if err != nil {
		cacheStore.Close()
		_ = st.Close()
		return nil, err
	}

	sfClient, err := initSalesforce()
	if err != nil {
		cacheStore.Close()
		_ = st.Close()
		return nil, err
	}

	var googleClient google.Client
	if cfg.Google.Key != "" {
		googleClient = google.NewClient(cfg.Google.Key, google.WithBaseURL(cfg.Google.BaseURL))
	} else {
		zap.L().Warn("google places key not set, reputation phase disabled")
	}

	var apolloClient apollo.Client
	if cfg.Apollo.Key != "" {
		apolloClient = apollo.NewClient(cfg.Apollo.Key,
			apollo.WithBaseURL(cfg.Apollo.BaseURL),
			apollo.WithRateLimit(cfg.Apollo.RPS),
		)
	} else {
		zap.L().Warn("apollo key not set, contact lookup disabled")
	}

	var proxycurlClient proxycurl.Client
	if cfg.Proxycurl.Key != "" {
		proxycurlClient = proxycurl.NewClient(cfg.Proxycurl.Key, proxycurl.WithBaseURL(cfg.Proxycurl.BaseURL))
	}

	var researcher enrich.Researcher
	if cfg.Perplexity.Key != "" {
		pplx := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
		)
		researcher = research.NewService(pplx, cfg.Enrich.MaxNewsItems)
	}

	var jinaClient jina.Client
	if cfg.Jina.Key != "" {
		jinaClient = jina.NewClient(cfg.Jina.Key, jina.WithBaseURL(cfg.Jina.SearchBaseURL))
	}

	var aiClient anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		aiClient = anthropicpkg.NewClient(cfg.Anthropic.Key)
	} else {
		zap.L().Warn("anthropic key not set, insight phase disabled")
	}

	var leadership autofill.LeadershipSource
	if svc, ok := researcher.(*research.Service); ok {
		leadership = svc
	}
	resolver := autofill.NewResolver(apolloClient, leadership)

	orch := enrich.New(cfg, enrich.Deps{
		Store:      st,
		Cache:      cacheStore,
		Gate:       gate,
		Resolver:   resolver,
		Calc:       calc,
		Google:     googleClient,
		Proxycurl:  proxycurlClient,
		Apollo:     apolloClient,
		Research:   researcher,
		Jina:       jinaClient,
		Anthropic:  aiClient,
		Salesforce: sfClient,
	})

	return &enrichEnv{
		Store:        st,
		Cache:        cacheStore,
		Gate:         gate,
		Orchestrator: orch,
	}, nil
}
