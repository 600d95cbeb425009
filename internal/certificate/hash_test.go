package certificate

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedFacts() Facts {
	return Facts{
		TS:        time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		OwnerID:   uuid.MustParse("6f1c2b1e-8a4d-4f0e-9c3b-2d7e5a1f0b9c"),
		Amount:    500,
		CreatedAt: time.Date(2024, 4, 30, 12, 0, 0, 123456789, time.UTC),
	}
}

func TestHasherStable(t *testing.T) {
	h, err := NewHasher("s3cret")
	require.NoError(t, err)

	first, err := h.Sum(fixedFacts())
	require.NoError(t, err)
	second, err := h.Sum(fixedFacts())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Regexp(t, "^[0-9a-f]{64}$", first)
	assert.True(t, h.Verify(fixedFacts(), first))
}

func TestHasherIgnoresZoneAndSubMicros(t *testing.T) {
	h, err := NewHasher("s3cret")
	require.NoError(t, err)

	base, err := h.Sum(fixedFacts())
	require.NoError(t, err)

	shifted := fixedFacts()
	tokyo := time.FixedZone("JST", 9*3600)
	shifted.TS = shifted.TS.In(tokyo)
	shifted.CreatedAt = time.Date(2024, 4, 30, 12, 0, 0, 123456000, time.UTC).In(tokyo)
	got, err := h.Sum(shifted)
	require.NoError(t, err)
	assert.Equal(t, base, got)
}

func TestHasherBindsEveryFact(t *testing.T) {
	h, err := NewHasher("s3cret")
	require.NoError(t, err)
	base, err := h.Sum(fixedFacts())
	require.NoError(t, err)

	mutations := map[string]func(*Facts){
		"ts":         func(f *Facts) { f.TS = f.TS.Add(24 * time.Hour) },
		"owner":      func(f *Facts) { f.OwnerID = uuid.New() },
		"amount":     func(f *Facts) { f.Amount++ },
		"created_at": func(f *Facts) { f.CreatedAt = f.CreatedAt.Add(time.Second) },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			f := fixedFacts()
			mutate(&f)
			got, err := h.Sum(f)
			require.NoError(t, err)
			assert.NotEqual(t, base, got)
			assert.False(t, h.Verify(f, base))
		})
	}

	other, err := NewHasher("different")
	require.NoError(t, err)
	got, err := other.Sum(fixedFacts())
	require.NoError(t, err)
	assert.NotEqual(t, base, got)
}

func TestNewHasherRequiresSecret(t *testing.T) {
	_, err := NewHasher("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
