package advisory

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AhmadRadith/jycc-sub001/internal/domain"
	"github.com/AhmadRadith/jycc-sub001/internal/repository"
	apperrors "github.com/AhmadRadith/jycc-sub001/pkg/util/errorutil"
)

// geminiStub serves generateContent and counts calls.
func geminiStub(t *testing.T, text string, status int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/models/test-model:generateContent"), r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-goog-api-key"))
		assert.Empty(t, r.URL.RawQuery)

		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"status":"UNAVAILABLE","message":"overloaded"}}`))
			return
		}
		resp := map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"parts": []any{map[string]any{"text": text}}},
			}},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func seededTicket(t *testing.T, repo repository.TicketRepository) *domain.Ticket {
	t.Helper()
	ticket := sampleTicket()
	ticket.ID = ""
	require.NoError(t, repo.Create(context.Background(), ticket))
	return ticket
}

func reload(t *testing.T, repo repository.TicketRepository, id string) *domain.Ticket {
	t.Helper()
	got, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	return got
}

func TestGenerateUsesCacheUnlessForced(t *testing.T) {
	srv, calls := geminiStub(t, "```json\n"+validAdvisory+"\n```", http.StatusOK)
	repo := repository.NewMemoryTicketRepository()
	ticket := seededTicket(t, repo)

	fixed := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	svc := NewService(repo, NewGeminiGenerator(srv.Client(), srv.URL, "test-model", "k"), time.Second, zap.NewNop(),
		WithClock(func() time.Time { return fixed }))
	viewer := domain.Identity{ID: "d-1", Role: domain.RoleDaerah}

	first, err := svc.Generate(context.Background(), viewer, reload(t, repo, ticket.ID), false)
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, "S", first.Analysis.Summary)
	assert.Equal(t, fixed, first.Analysis.GeneratedAt)
	assert.Equal(t, int32(1), calls.Load())

	stored := reload(t, repo, ticket.ID)
	require.NotNil(t, stored.AIAnalysis)

	cached, err := svc.Generate(context.Background(), viewer, stored, false)
	require.NoError(t, err)
	assert.True(t, cached.Cached)
	assert.Equal(t, first.Analysis, cached.Analysis)
	assert.Equal(t, int32(1), calls.Load(), "cached read must not call the generator")

	forced, err := svc.Generate(context.Background(), viewer, stored, true)
	require.NoError(t, err)
	assert.False(t, forced.Cached)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateFailuresAreTyped(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seededTicket(t, repo)
	viewer := domain.Identity{ID: "p-1", Role: domain.RolePusat}

	t.Run("not-configured", func(t *testing.T) {
		svc := NewService(repo, nil, time.Second, zap.NewNop())
		_, err := svc.Generate(context.Background(), viewer, reload(t, repo, ticket.ID), false)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAdvisoryGenerationFailed))
		assert.ErrorIs(t, err, ErrNotConfigured)
	})

	t.Run("upstream-error", func(t *testing.T) {
		srv, _ := geminiStub(t, "", http.StatusServiceUnavailable)
		svc := NewService(repo, NewGeminiGenerator(srv.Client(), srv.URL, "test-model", "k"), time.Second, zap.NewNop())
		_, err := svc.Generate(context.Background(), viewer, reload(t, repo, ticket.ID), false)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAdvisoryGenerationFailed))
		var genErr *GeneratorError
		require.True(t, errors.As(err, &genErr))
		assert.Equal(t, http.StatusServiceUnavailable, genErr.StatusCode)
		assert.Equal(t, "overloaded", genErr.Message)
	})

	t.Run("schema-mismatch-is-not-cached", func(t *testing.T) {
		srv, _ := geminiStub(t, `{"summary": 42}`, http.StatusOK)
		svc := NewService(repo, NewGeminiGenerator(srv.Client(), srv.URL, "test-model", "k"), time.Second, zap.NewNop())
		_, err := svc.Generate(context.Background(), viewer, reload(t, repo, ticket.ID), false)
		assert.True(t, apperrors.IsCode(err, apperrors.CodeAdvisoryGenerationFailed))
		assert.ErrorIs(t, err, ErrSchemaMismatch)
		assert.Nil(t, reload(t, repo, ticket.ID).AIAnalysis)
	})
}

type blockingGenerator struct {
	calls   atomic.Int32
	release chan struct{}
}

func (g *blockingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return validAdvisory, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func TestConcurrentGenerationIsShared(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seededTicket(t, repo)
	gen := &blockingGenerator{release: make(chan struct{})}
	svc := NewService(repo, gen, 5*time.Second, zap.NewNop())
	viewer := domain.Identity{ID: "d-1", Role: domain.RoleDaerah}

	const callers = 4
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		current := reload(t, repo, ticket.ID)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Generate(context.Background(), viewer, current, true)
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return gen.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	// Let the other callers join the in-flight call before it completes.
	time.Sleep(50 * time.Millisecond)
	close(gen.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestGeneratorTimeoutIsBounded(t *testing.T) {
	repo := repository.NewMemoryTicketRepository()
	ticket := seededTicket(t, repo)
	gen := &blockingGenerator{release: make(chan struct{})}
	svc := NewService(repo, gen, 20*time.Millisecond, zap.NewNop())

	start := time.Now()
	_, err := svc.Generate(context.Background(), domain.Identity{Role: domain.RoleDaerah}, reload(t, repo, ticket.ID), true)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeAdvisoryGenerationFailed))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGeneratorTransportErrorOmitsAPIKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	endpoint := srv.URL
	srv.Close()

	gen := NewGeminiGenerator(&http.Client{Timeout: time.Second}, endpoint, "test-model", "SECRET-KEY-123")
	_, err := gen.Generate(context.Background(), "prompt")
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "SECRET-KEY-123")
	assert.Contains(t, err.Error(), "sending request")
}
