package coveralls

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/covtrail/covtrail/internal/contract"
	"github.com/covtrail/covtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// expectedSHAs is the fixture history in page order, then origin order within each page.
var expectedSHAs = []string{
	"47891c0d6dd2512169bb9c8d1c0eca5ddda5ee9b",
	"fccd4755032c404d075b1159364a2c21b0b129fd",
	"0cd4982d6fc5129d070320824896e72051ebfa5d",
	"4298cd6d40b7fff1817ba8fc5bab6a84f4a09cc9",
	"390399efc46de9739235374da696d7eedc38f798",
	"eed8d1d332eb3a8385188a0a32dcadc9c032a924",
	"f2b4e2295e4b816401eefaf027e0505a6bfa63b6",
	"09345ac57f6d0aad9ba971438063a5d1dd6e15d5",
	"b54c11927a036f908f3865cebf018fb1561ec489",
	"69e3bd3d1ca21faabc9ef9fb3b3388268759d313",
	"ba19bfd5e40bffdd422ca8e68526326b47f97491",
	"fbcc918a9c216ff6f72d2c44a1b0ebb7c1d1d9e3",
	"6dae52541d4b79b8959dc0991e30f776ad337050",
	"85557907a94a76ce4d7058fa84352d30b1f44272",
	"5fa9c522520d1c3dc5c783289182391a268de270",
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// fixtureServer serves the three fixture pages and records the requested page numbers.
type fixtureServer struct {
	*httptest.Server
	mu        sync.Mutex
	requested []int
}

func newFixtureServer(t *testing.T, failPage int) *fixtureServer {
	t.Helper()
	fs := &fixtureServer{}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/"+mockRepo+".json" {
			http.NotFound(w, r)
			return
		}
		page, err := strconv.Atoi(r.URL.Query().Get("page"))
		if err != nil {
			http.Error(w, "bad page", http.StatusBadRequest)
			return
		}
		fs.mu.Lock()
		fs.requested = append(fs.requested, page)
		fs.mu.Unlock()
		if page == failPage {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		_, _ = w.Write(readFixture(t, page))
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fixtureServer) pages() []int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]int(nil), fs.requested...)
}

func (fs *fixtureServer) baseURL() string { return fs.URL + "/" }

func TestNew(t *testing.T) {
	c, err := New(mockRepo, WithTag("test"))
	require.NoError(t, err)
	assert.Equal(t, mockRepo, c.Origin())
	assert.Equal(t, "test", c.Tag())
	assert.True(t, c.SSLVerify())

	// An empty tag falls back to the repository
	c, err = New(mockRepo, WithSSLVerify(false))
	require.NoError(t, err)
	assert.Equal(t, mockRepo, c.Tag())
	assert.False(t, c.SSLVerify())

	c, err = New(mockRepo, WithTag(""))
	require.NoError(t, err)
	assert.Equal(t, mockRepo, c.Tag())
}

func TestNewInvalidConfiguration(t *testing.T) {
	tests := []struct {
		name string
		repo string
		opts []Option
	}{
		{"empty repo", "", nil},
		{"blank repo", "  ", nil},
		{"repo with space", "github/user/my repo", nil},
		{"repo with query", "github/user/repo?page=1", nil},
		{"bad base url", mockRepo, []Option{WithBaseURL("coveralls.io")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.repo, tt.opts...)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.ErrorIs(t, err, contract.ErrConfiguration)
		})
	}
}

func TestCapabilities(t *testing.T) {
	c, err := New(mockRepo)
	require.NoError(t, err)

	assert.Equal(t, "coveralls", c.Name())
	assert.Equal(t, "0.0.1", c.Version())
	assert.False(t, c.HasArchiving())
	assert.False(t, c.HasResuming())
	assert.Equal(t, []schema.Category{schema.TestCoverageCategory}, c.Categories())
}

func TestRegistered(t *testing.T) {
	spec, err := contract.LookupBackend(BackendName)
	require.NoError(t, err)
	assert.Equal(t, Info(), spec.Info)

	b, err := spec.New(&contract.Config{Repo: mockRepo, BaseURL: contract.DefaultBaseURL, SSLVerify: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, mockRepo, b.Tag())
}

func TestFetchAll(t *testing.T) {
	srv := newFixtureServer(t, 0)
	c, err := New(mockRepo, WithBaseURL(srv.baseURL()), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)

	builds, err := c.FetchAll(context.Background(), schema.TestCoverageCategory)
	require.NoError(t, err)
	require.Len(t, builds, 15)
	assert.Equal(t, []int{1, 2, 3}, srv.pages())

	shas := make([]string, len(builds))
	for i, b := range builds {
		shas[i] = b.CommitSHA
	}
	assert.Equal(t, expectedSHAs, shas)

	for _, b := range builds {
		assert.Equal(t, fixedNow, b.RetrievedOn)
		assert.Len(t, b.CommitSHA, 40)
		_, hasURL := b.Get(schema.URLField)
		assert.False(t, hasURL, "url must be dropped from %s", b.CommitSHA)
		_, hasSHA := b.Get(schema.CommitSHAField)
		assert.False(t, hasSHA)

		assert.Equal(t, b.CommitSHA, c.Identity(b))
		assert.Equal(t, schema.TestCoverageCategory, c.Category(b))
		assert.Equal(t, fixedNow, c.Timestamp(b))
		assert.Equal(t, map[string]string{"item_id": b.CommitSHA}, c.SearchFields(b))
	}

	pct, ok := builds[0].Float(schema.CoveredPercentField)
	require.True(t, ok)
	assert.InDelta(t, 84.2, pct, 1e-9)
	assert.Equal(t, "user/repo", builds[0].String("repo_name"))
}

func TestFetchAllSinglePage(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = w.Write([]byte(`{"page": 1, "pages": 1, "total": 2, "builds": [
			{"commit_sha": "a1", "url": "https://coveralls.io/builds/1", "covered_percent": 90},
			{"commit_sha": "b2", "covered_percent": 80.5}
		]}`))
	}))
	defer srv.Close()

	c, err := New(mockRepo, WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	builds, err := c.FetchAll(context.Background(), schema.TestCoverageCategory)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	require.Len(t, builds, 2)
	assert.Equal(t, "a1", builds[0].CommitSHA)
	assert.Equal(t, "b2", builds[1].CommitSHA)
	assert.Equal(t, builds[0].RetrievedOn, builds[1].RetrievedOn)
}

func TestFetchAllEmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"page": 1, "pages": 0, "total": 0, "builds": []}`))
	}))
	defer srv.Close()

	c, err := New(mockRepo, WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	builds, err := c.FetchAll(context.Background(), schema.TestCoverageCategory)
	require.NoError(t, err)
	assert.Empty(t, builds)
}

func TestFetchAllAbortsOnPageFailure(t *testing.T) {
	srv := newFixtureServer(t, 2)
	c, err := New(mockRepo, WithBaseURL(srv.baseURL()))
	require.NoError(t, err)

	builds, err := c.FetchAll(context.Background(), schema.TestCoverageCategory)
	require.Error(t, err)
	assert.Nil(t, builds)
	assert.ErrorIs(t, err, contract.ErrTransport)
	assert.Equal(t, []int{1, 2}, srv.pages())
}

func TestFetchAllUnknownCategory(t *testing.T) {
	srv := newFixtureServer(t, 0)
	c, err := New(mockRepo, WithBaseURL(srv.baseURL()))
	require.NoError(t, err)

	builds, err := c.FetchAll(context.Background(), schema.Category("commit"))
	require.Error(t, err)
	assert.Nil(t, builds)
	assert.ErrorIs(t, err, contract.ErrConfiguration)
	assert.Empty(t, srv.pages())
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchPage(ctx context.Context, repo string, page int) (*schema.Envelope, error) {
	args := m.Called(ctx, repo, page)
	env, _ := args.Get(0).(*schema.Envelope)
	return env, args.Error(1)
}

func TestFetchAllMissingCommitSHA(t *testing.T) {
	f := &mockFetcher{}
	f.On("FetchPage", mock.Anything, mockRepo, 1).Return(&schema.Envelope{
		Pages:  2,
		Builds: []map[string]any{{"commit_sha": "a1"}, {"commit_sha": "b2"}, {"commit_sha": "c3"}},
	}, nil).Once()
	f.On("FetchPage", mock.Anything, mockRepo, 2).Return(&schema.Envelope{
		Pages:  2,
		Builds: []map[string]any{{"commit_sha": 42}},
	}, nil).Once()

	c, err := New(mockRepo, WithFetcher(f))
	require.NoError(t, err)

	builds, err := c.FetchAll(context.Background(), schema.TestCoverageCategory)
	require.Error(t, err)
	assert.Nil(t, builds)
	assert.ErrorIs(t, err, contract.ErrParse)
	assert.Contains(t, err.Error(), "page 2")
	assert.Contains(t, err.Error(), "build 0")

	var fetchErr *contract.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, 2, fetchErr.Page)
	f.AssertExpectations(t)
}

func TestFetchAllBadBuildNamesPageURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			_, _ = w.Write([]byte(`{"pages": 2, "builds": [{"commit_sha": "a1"}, {"commit_sha": "b2"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"pages": 2, "builds": [{"commit_sha": "c3"}, {"commit_sha": ""}]}`))
	}))
	defer srv.Close()

	c, err := New(mockRepo, WithBaseURL(srv.URL+"/"))
	require.NoError(t, err)

	_, err = c.FetchAll(context.Background(), schema.TestCoverageCategory)
	require.Error(t, err)
	assert.ErrorIs(t, err, contract.ErrParse)
	assert.Contains(t, err.Error(), srv.URL+"/"+mockRepo+".json?page=2")
	assert.Contains(t, err.Error(), "build 1")
}

func TestInfoCapabilities(t *testing.T) {
	c, err := New(mockRepo)
	require.NoError(t, err)

	info := Info()
	assert.Equal(t, c.HasArchiving(), info.HasArchiving)
	assert.Equal(t, c.HasResuming(), info.HasResuming)
	assert.Equal(t, c.Categories(), info.Categories)
	assert.Equal(t, c.Version(), info.Version)
}

func TestFetchAllPropagatesFetcherError(t *testing.T) {
	f := &mockFetcher{}
	fetchErr := contract.NewParseError("u", 1, assert.AnError)
	f.On("FetchPage", mock.Anything, mockRepo, 1).Return(nil, fetchErr).Once()

	c, err := New(mockRepo, WithFetcher(f))
	require.NoError(t, err)

	_, err = c.FetchAll(context.Background(), schema.TestCoverageCategory)
	assert.ErrorIs(t, err, contract.ErrParse)
	assert.ErrorIs(t, err, assert.AnError)
	f.AssertExpectations(t)
}

func TestNormalize(t *testing.T) {
	now := fixedNow
	b, err := normalize(map[string]any{
		"commit_sha":   "abc",
		"url":          nil,
		"retrieved_on": "stale",
		"branch":       "main",
	}, now)
	require.NoError(t, err)
	assert.Equal(t, "abc", b.CommitSHA)
	assert.Equal(t, now, b.RetrievedOn)
	assert.Equal(t, map[string]any{"branch": "main"}, b.Fields)

	_, err = normalize(map[string]any{"branch": "main"}, now)
	assert.Error(t, err)
	_, err = normalize(map[string]any{"commit_sha": ""}, now)
	assert.Error(t, err)
}
