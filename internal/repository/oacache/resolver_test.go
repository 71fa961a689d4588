package oacache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/paperscout/backend/internal/cache/memory"
	"github.com/paperscout/backend/internal/domain"
)

type fakeResolver struct {
	info  *domain.OpenAccessInfo
	err   error
	calls int
}

func (f *fakeResolver) Lookup(_ context.Context, _ string) (*domain.OpenAccessInfo, error) {
	f.calls++
	return f.info, f.err
}

func TestLookupCachesByDOI(t *testing.T) {
	inner := &fakeResolver{
		info: &domain.OpenAccessInfo{IsOpenAccess: true, PDFURL: "https://example.org/p.pdf", License: "cc-by"},
	}
	r := Wrap(inner, memory.New(), 7*24*time.Hour, zap.NewNop())

	first, err := r.Lookup(context.Background(), "10.1038/nature12373")
	require.NoError(t, err)
	assert.True(t, first.IsOpenAccess)
	assert.Equal(t, 1, inner.calls)

	second, err := r.Lookup(context.Background(), "10.1038/nature12373")
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls, "second lookup should be served from cache")
}

func TestLookupKeyFoldsCase(t *testing.T) {
	inner := &fakeResolver{info: &domain.OpenAccessInfo{IsOpenAccess: true}}
	r := Wrap(inner, memory.New(), time.Hour, zap.NewNop())

	_, err := r.Lookup(context.Background(), "10.1038/NATURE12373")
	require.NoError(t, err)
	_, err = r.Lookup(context.Background(), "10.1038/nature12373")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestLookupErrorNotCached(t *testing.T) {
	inner := &fakeResolver{err: errors.New("unpaywall down")}
	r := Wrap(inner, memory.New(), time.Hour, zap.NewNop())

	_, err := r.Lookup(context.Background(), "10.1000/x")
	require.Error(t, err)

	inner.err = nil
	inner.info = &domain.OpenAccessInfo{IsOpenAccess: false}
	info, err := r.Lookup(context.Background(), "10.1000/x")
	require.NoError(t, err)
	assert.False(t, info.IsOpenAccess)
	assert.Equal(t, 2, inner.calls)
}

func TestNegativeResultCached(t *testing.T) {
	// Closed access answers are worth caching too; the DOI will not open up
	// within the TTL.
	inner := &fakeResolver{info: &domain.OpenAccessInfo{IsOpenAccess: false}}
	r := Wrap(inner, memory.New(), time.Hour, zap.NewNop())

	_, err := r.Lookup(context.Background(), "10.1000/closed")
	require.NoError(t, err)
	_, err = r.Lookup(context.Background(), "10.1000/closed")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
}
