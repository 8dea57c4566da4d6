package service

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/require"
)

var shortIDPattern = regexp.MustCompile(`^STD\d{4}$`)
var fallbackIDPattern = regexp.MustCompile(`^STD[0-9A-F]{8}$`)

func TestAllocateStudentIDShortPath(t *testing.T) {
	var checked []string
	id, err := AllocateStudentID(context.Background(), func(ctx context.Context, candidate string) (bool, error) {
		checked = append(checked, candidate)
		return false, nil
	})
	require.NoError(t, err)
	require.Regexp(t, shortIDPattern, id)
	require.Len(t, checked, 1)
	require.Equal(t, checked[0], id)
}

func TestAllocateStudentIDRetriesOnCollision(t *testing.T) {
	calls := 0
	id, err := AllocateStudentID(context.Background(), func(ctx context.Context, candidate string) (bool, error) {
		calls++
		return calls < 5, nil
	})
	require.NoError(t, err)
	require.Regexp(t, shortIDPattern, id)
	require.Equal(t, 5, calls)
}

func TestAllocateStudentIDFallsBackWhenExhausted(t *testing.T) {
	calls := 0
	id, err := AllocateStudentID(context.Background(), func(ctx context.Context, candidate string) (bool, error) {
		calls++
		return true, nil
	})
	require.NoError(t, err)
	require.Equal(t, maxStudentIDAttempts, calls)
	// The fallback is UUID-derived and never checked against the store.
	require.Regexp(t, fallbackIDPattern, id)
}

func TestAllocateStudentIDFallbackIsUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := fallbackStudentID()
		require.False(t, seen[id], "fallback produced duplicate %s", id)
		seen[id] = true
	}
}

func TestAllocateStudentIDPropagatesCheckErrors(t *testing.T) {
	boom := errors.New("store down")
	_, err := AllocateStudentID(context.Background(), func(ctx context.Context, candidate string) (bool, error) {
		return false, boom
	})
	require.ErrorIs(t, err, boom)
}
