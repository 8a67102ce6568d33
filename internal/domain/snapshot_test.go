package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() *Snapshot {
	return &Snapshot{
		Chunks: []Chunk{
			{ID: "p0", Text: "Sviluppatore backend con esperienza in Go.", Index: 0},
			{ID: "p1", Text: "Progetti open source di ricerca full-text.", Index: 1},
		},
		IDF:      map[string]float64{"go": 0.9162907318741551, "progetti": 1.0986122886681098, "backend": 1.0986122886681098},
		Vectors:  []SparseVector{{"go": 0.9162907318741551, "backend": 1.0986122886681098}, {"progetti": 1.0986122886681098}},
		Norms:    []float64{1.430574866451822, 1.0986122886681098},
		Sections: Sections{"bio": "Sviluppatore backend con esperienza in Go."},
	}
}

func TestSnapshotJSONRoundTrip(t *testing.T) {
	snap := sampleSnapshot()
	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var got Snapshot
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, *snap, got)
}

func TestSnapshotJSONIsSortedAndStable(t *testing.T) {
	a, err := json.Marshal(sampleSnapshot())
	require.NoError(t, err)
	b, err := json.Marshal(sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"idf":[["backend",1.0986122886681098],["go",0.9162907318741551],["progetti",1.0986122886681098]]`)
	assert.Contains(t, string(a), `"chunkIds":["p0","p1"]`)
}

func TestSnapshotUnmarshalRejectsMismatchedLengths(t *testing.T) {
	var snap Snapshot
	err := json.Unmarshal([]byte(`{"chunks":["a"],"chunkIds":[],"idf":[],"vectors":[[]],"norms":[1]}`), &snap)
	require.Error(t, err)
}

func TestSnapshotEmpty(t *testing.T) {
	var nilSnap *Snapshot
	assert.True(t, nilSnap.Empty())
	assert.True(t, (&Snapshot{}).Empty())
	assert.False(t, sampleSnapshot().Empty())
}
