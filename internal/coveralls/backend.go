// Package coveralls fetches the build coverage history of a repository from Coveralls.
package coveralls

import (
	"context"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Backend identity.
const (
	BackendName    = "coveralls"
	BackendVersion = "0.0.1"
)

var categories = []schema.Category{schema.TestCoverageCategory}

// Coveralls collects every build of one repository, page by page.
type Coveralls struct {
	repo      string
	tag       string
	sslVerify bool
	baseURL   string
	fetcher   contract.PageFetcher
	clock     func() time.Time
	logger    *zap.Logger
}

var _ contract.Backend = &Coveralls{} // Compile-time check

// Option configures a Coveralls backend.
type Option func(*Coveralls)

// WithTag sets the label attached to items. Empty keeps the repository.
func WithTag(tag string) Option {
	return func(c *Coveralls) { c.tag = tag }
}

// WithSSLVerify toggles TLS certificate verification.
func WithSSLVerify(verify bool) Option {
	return func(c *Coveralls) { c.sslVerify = verify }
}

// WithBaseURL points the backend at another Coveralls-compatible origin.
// Empty keeps the default.
func WithBaseURL(baseURL string) Option {
	return func(c *Coveralls) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithFetcher replaces the HTTP page client.
func WithFetcher(f contract.PageFetcher) Option {
	return func(c *Coveralls) { c.fetcher = f }
}

// WithClock replaces time.Now for the retrieved_on stamp.
func WithClock(now func() time.Time) Option {
	return func(c *Coveralls) { c.clock = now }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Coveralls) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates a backend for repo, e.g. "github/chaoss/grimoirelab-perceval".
func New(repo string, opts ...Option) (*Coveralls, error) {
	if err := contract.ValidateRepository(repo); err != nil {
		return nil, err
	}

	c := &Coveralls{
		repo:      repo,
		sslVerify: true,
		baseURL:   contract.DefaultBaseURL,
		clock:     time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tag == "" {
		c.tag = repo
	}
	if c.fetcher == nil {
		if err := contract.ValidateBaseURL(c.baseURL); err != nil {
			return nil, err
		}
		c.fetcher = NewClient(c.baseURL, c.sslVerify, c.logger)
	}
	return c, nil
}

// NewFromConfig is the registry factory.
func NewFromConfig(cfg *contract.Config, logger *zap.Logger) (contract.Backend, error) {
	return New(cfg.Repo,
		WithTag(cfg.Tag),
		WithSSLVerify(cfg.SSLVerify),
		WithBaseURL(cfg.BaseURL),
		WithLogger(logger),
	)
}

// Info describes the backend for listings.
func Info() schema.BackendInfo {
	c := &Coveralls{}
	return schema.BackendInfo{
		Name:         BackendName,
		Version:      BackendVersion,
		Categories:   c.Categories(),
		HasArchiving: c.HasArchiving(),
		HasResuming:  c.HasResuming(),
	}
}

func init() {
	contract.RegisterBackend(contract.BackendSpec{Info: Info(), New: NewFromConfig})
}

// Name returns the registry name.
func (c *Coveralls) Name() string { return BackendName }

// Version returns the backend version stamped on items.
func (c *Coveralls) Version() string { return BackendVersion }

// Origin returns the repository path.
func (c *Coveralls) Origin() string { return c.repo }

// Tag returns the label attached to items.
func (c *Coveralls) Tag() string { return c.tag }

// SSLVerify reports whether TLS certificates are verified.
func (c *Coveralls) SSLVerify() bool { return c.sslVerify }

// Categories lists the item categories this backend produces.
func (c *Coveralls) Categories() []schema.Category {
	return append([]schema.Category(nil), categories...)
}

// pendingBuild remembers where a raw build came from.
type pendingBuild struct {
	page  int
	url   string
	index int // position within its page
	rec   map[string]any
}

// FetchAll retrieves page 1, then pages 2..pages in order, and normalizes
// every build with a single retrieval instant. Any failure discards all pages.
func (c *Coveralls) FetchAll(ctx context.Context, category schema.Category) ([]schema.BuildCoverage, error) {
	if category != schema.TestCoverageCategory {
		return nil, contract.NewConfigurationError("unknown category %q for backend %s", category, BackendName)
	}

	c.logger.Info("Fetching coveralls coverage", zap.String("repo", c.repo))

	first, err := c.fetcher.FetchPage(ctx, c.repo, 1)
	if err != nil {
		return nil, err
	}

	raw := make([]pendingBuild, 0, len(first.Builds))
	collect := func(page int, env *schema.Envelope) {
		for i, b := range env.Builds {
			raw = append(raw, pendingBuild{page: page, url: env.URL, index: i, rec: b})
		}
	}
	collect(1, first)
	for page := 2; page <= first.Pages; page++ {
		env, err := c.fetcher.FetchPage(ctx, c.repo, page)
		if err != nil {
			return nil, err
		}
		collect(page, env)
	}

	retrievedOn := c.clock()
	builds := make([]schema.BuildCoverage, 0, len(raw))
	for _, p := range raw {
		b, err := normalize(p.rec, retrievedOn)
		if err != nil {
			return nil, contract.NewParseError(p.url, p.page, errors.Wrapf(err, "build %d", p.index))
		}
		builds = append(builds, b)
	}

	c.logger.Info("Fetch finished",
		zap.String("repo", c.repo),
		zap.Int("pages", max(first.Pages, 1)),
		zap.Int("builds", len(builds)),
	)
	return builds, nil
}

// normalize drops url, lifts commit_sha and stamps retrieved_on.
func normalize(rec map[string]any, retrievedOn time.Time) (schema.BuildCoverage, error) {
	sha, ok := rec[schema.CommitSHAField].(string)
	if !ok || sha == "" {
		return schema.BuildCoverage{}, errors.Errorf("missing string %s", schema.CommitSHAField)
	}

	fields := make(map[string]any, len(rec))
	for k, v := range rec {
		switch k {
		case schema.URLField, schema.CommitSHAField, schema.RetrievedOnField:
			continue
		}
		fields[k] = v
	}
	return schema.BuildCoverage{CommitSHA: sha, RetrievedOn: retrievedOn, Fields: fields}, nil
}

// Identity is the commit SHA of the build.
func (c *Coveralls) Identity(rec schema.BuildCoverage) string { return rec.CommitSHA }

// Category is always test_coverage.
func (c *Coveralls) Category(schema.BuildCoverage) schema.Category {
	return schema.TestCoverageCategory
}

// Timestamp is the retrieval instant of the build.
func (c *Coveralls) Timestamp(rec schema.BuildCoverage) time.Time { return rec.RetrievedOn }

// SearchFields indexes the build by its commit SHA.
func (c *Coveralls) SearchFields(rec schema.BuildCoverage) map[string]string {
	return map[string]string{schema.DefaultSearchField: rec.CommitSHA}
}

// HasArchiving reports false: fetched pages are not archived.
func (c *Coveralls) HasArchiving() bool { return false }

// HasResuming reports false: every fetch starts from page 1.
func (c *Coveralls) HasResuming() bool { return false }
