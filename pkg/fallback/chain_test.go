package fallback_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/storefront/pkg/fallback"
)

var (
	errNotFound = errors.New("404")
	errDenied   = errors.New("401")
)

func continueOnNotFound(err error) bool {
	return errors.Is(err, errNotFound)
}

func attempt(name string, calls *[]string, result string, err error) fallback.Attempt[string] {
	return fallback.Attempt[string]{
		Name: name,
		Run: func(ctx context.Context) (string, error) {
			*calls = append(*calls, name)
			return result, err
		},
	}
}

func TestChain_FirstSuccessWins(t *testing.T) {
	var calls []string
	chain := fallback.Chain[string]{
		Attempts: []fallback.Attempt[string]{
			attempt("a", &calls, "", errNotFound),
			attempt("b", &calls, "token-b", nil),
			attempt("c", &calls, "token-c", nil),
		},
		Continue: continueOnNotFound,
	}

	got, err := chain.Do(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "token-b", got)
	assert.Equal(t, []string{"a", "b"}, calls)
}

func TestChain_FatalErrorStops(t *testing.T) {
	var calls []string
	chain := fallback.Chain[string]{
		Attempts: []fallback.Attempt[string]{
			attempt("a", &calls, "", errDenied),
			attempt("b", &calls, "token-b", nil),
		},
		Continue: continueOnNotFound,
	}

	_, err := chain.Do(context.Background())

	assert.ErrorIs(t, err, errDenied)
	assert.Equal(t, []string{"a"}, calls)
}

func TestChain_ExhaustedReturnsLastError(t *testing.T) {
	var calls []string
	var skipped []string
	chain := fallback.Chain[string]{
		Attempts: []fallback.Attempt[string]{
			attempt("a", &calls, "", errNotFound),
			attempt("b", &calls, "", errNotFound),
		},
		Continue: continueOnNotFound,
		OnSkip: func(name string, err error) {
			skipped = append(skipped, name)
		},
	}

	_, err := chain.Do(context.Background())

	assert.ErrorIs(t, err, errNotFound)
	assert.Contains(t, err.Error(), "b")
	assert.Equal(t, []string{"a", "b"}, skipped)
}

func TestChain_Empty(t *testing.T) {
	chain := fallback.Chain[string]{}
	_, err := chain.Do(context.Background())
	assert.ErrorIs(t, err, fallback.ErrNoAttempts)
}

func TestChain_CancelledContext(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chain := fallback.Chain[string]{
		Attempts: []fallback.Attempt[string]{attempt("a", &calls, "x", nil)},
	}

	_, err := chain.Do(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, calls)
}

func TestChain_ContextDoneKeepsLastError(t *testing.T) {
	var calls []string
	ctx, cancel := context.WithCancel(context.Background())

	chain := fallback.Chain[string]{
		Attempts: []fallback.Attempt[string]{
			{Name: "a", Run: func(ctx context.Context) (string, error) {
				calls = append(calls, "a")
				cancel()
				return "", errNotFound
			}},
			attempt("b", &calls, "x", nil),
		},
		Continue: continueOnNotFound,
	}

	_, err := chain.Do(ctx)
	assert.ErrorIs(t, err, errNotFound)
	assert.Equal(t, []string{"a"}, calls)
}
