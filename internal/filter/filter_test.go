package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/flightcounts/internal/models"
	"github.com/lox/flightcounts/internal/schema"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		dest   string
		want   bool
	}{
		{"departure", "JFK", "LAX", true},
		{"arrival", "BOS", "JFK", true},
		{"self loop", "JFK", "JFK", true},
		{"padded", "  JFK ", "LAX", true},
		{"unrelated", "LGA", "EWR", false},
		{"lowercase is not a match", "jfk", "LAX", false},
		{"no partial match", "JFKX", "XJFK", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Matches(models.RawRecord{Origin: tt.origin, Dest: tt.dest}, "JFK")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTag(t *testing.T) {
	fr, ok := Tag(models.RawRecord{Origin: "JFK", Dest: "LAX"}, "JFK")
	require.True(t, ok)
	assert.True(t, fr.IsDeparture)
	assert.False(t, fr.IsArrival)

	fr, ok = Tag(models.RawRecord{Origin: "BOS", Dest: " JFK"}, "JFK")
	require.True(t, ok)
	assert.False(t, fr.IsDeparture)
	assert.True(t, fr.IsArrival)

	fr, ok = Tag(models.RawRecord{Origin: "JFK", Dest: "JFK"}, "JFK")
	require.True(t, ok)
	assert.True(t, fr.IsDeparture)
	assert.True(t, fr.IsArrival)

	_, ok = Tag(models.RawRecord{Origin: "ORD", Dest: "LAX"}, "JFK")
	assert.False(t, ok)
}

func TestRecords(t *testing.T) {
	frame, err := schema.NewNormalizer(nil).Normalize([][]string{
		{"FL_DATE", "ORIGIN", "DEST", "CANCELLED"},
		{"2024-01-01", "JFK", "LAX", "0"},
		{"2024-01-01", "ORD", "LAX", "1"},
		{"2024-01-01", "BOS", " JFK ", "1"},
		{"garbage", "JFK", "SEA", "0"},
		{"2024-01-02", "MIA", "ATL", "0"},
	})
	require.NoError(t, err)

	matched, err := Frame(frame, "JFK")
	require.NoError(t, err)
	assert.Equal(t, 3, matched.Len())
	assert.Equal(t, 5, matched.Rows)

	recs, bad, err := Records(frame, "JFK")
	require.NoError(t, err)
	assert.Equal(t, 1, bad)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].IsDeparture)
	assert.True(t, recs[1].IsArrival)
	assert.Equal(t, 1.0, recs[1].Cancelled)
}

func TestRecords_NoMatches(t *testing.T) {
	frame, err := schema.NewNormalizer(nil).Normalize([][]string{
		{"FL_DATE", "ORIGIN", "DEST"},
		{"2024-01-01", "ORD", "LAX"},
	})
	require.NoError(t, err)

	recs, bad, err := Records(frame, "JFK")
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, bad)
}
