package metrics

import (
	"errors"
	"testing"

	dmerrors "github.com/rohankatakam/defectminer/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompute_MinorThresholdIsInclusive(t *testing.T) {
	tests := []struct {
		name      string
		weight    int
		total     int
		wantMinor bool
	}{
		{"exactly 5 percent", 5, 100, true},
		{"5.01 percent", 501, 10000, false},
		{"4.99 percent", 499, 10000, true},
		{"single line of twenty", 1, 20, true},
		{"single line of nineteen", 1, 19, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := Counter{"subject@x.org": tt.weight, "rest@x.org": tt.total - tt.weight}
			m, err := Compute(counter, "subject@x.org")
			require.NoError(t, err)

			assert.Equal(t, tt.wantMinor, IsMinor(tt.weight, tt.total))
			if tt.wantMinor {
				assert.Equal(t, 1, m.Minor)
				assert.Equal(t, 1, m.Major)
			} else {
				assert.Equal(t, 0, m.Minor)
				assert.Equal(t, 2, m.Major)
			}
		})
	}
}

func TestCompute(t *testing.T) {
	counter := NewCounter([]string{
		"alice@x.org", "alice@x.org", "alice@x.org", "alice@x.org", "alice@x.org",
		"alice@x.org", "alice@x.org", "alice@x.org", "alice@x.org", "alice@x.org",
		"alice@x.org", "alice@x.org", "alice@x.org", "alice@x.org", "alice@x.org",
		"bob@x.org", "bob@x.org", "bob@x.org", "bob@x.org",
		"carol@x.org",
	})

	m, err := Compute(counter, "bob@x.org")
	require.NoError(t, err)

	assert.Equal(t, 3, m.Total)
	assert.Equal(t, 1, m.Minor) // carol, 1 of 20
	assert.Equal(t, 2, m.Major)
	assert.Equal(t, "alice@x.org", m.Owner)
	assert.InDelta(t, 0.75, m.Ownership, 1e-9)
	assert.InDelta(t, 0.20, m.AuthorShare, 1e-9)
	assert.False(t, m.AuthorIsOwner)
}

func TestCompute_SubjectAbsent(t *testing.T) {
	m, err := Compute(Counter{"alice@x.org": 3}, "nobody@x.org")
	require.NoError(t, err)
	assert.Equal(t, 0.0, m.AuthorShare)
	assert.False(t, m.AuthorIsOwner)
	assert.Equal(t, 1.0, m.Ownership)
}

func TestCompute_TieGoesToSmallestIdentity(t *testing.T) {
	counter := Counter{"zoe@x.org": 4, "adam@x.org": 4, "mia@x.org": 4}

	for i := 0; i < 20; i++ {
		m, err := Compute(counter, "adam@x.org")
		require.NoError(t, err)
		assert.Equal(t, "adam@x.org", m.Owner)
		assert.True(t, m.AuthorIsOwner)
	}
}

func TestCompute_EmptyCounter(t *testing.T) {
	_, err := Compute(Counter{}, "a@x.org")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyCounter))
	assert.Equal(t, dmerrors.ErrorTypePrecondition, dmerrors.GetType(err))

	_, err = Compute(Counter{"a@x.org": 0}, "a@x.org")
	assert.ErrorIs(t, err, ErrEmptyCounter)
}

func TestCounter_Add(t *testing.T) {
	c := Counter{}
	c.Add("a@x.org", 3)
	c.Add("a@x.org", 2)
	assert.Equal(t, 5, c["a@x.org"])
	assert.Equal(t, 5, c.Total())
}
