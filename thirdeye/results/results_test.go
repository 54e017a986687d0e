package results

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/third-eye/thirdeye/analysis"
	"github.com/ZanzyTHEbar/third-eye/thirdeye/dialogue"
)

var stamp = time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

func turns(rounds int) []dialogue.Turn {
	var out []dialogue.Turn
	for r := 1; r <= rounds; r++ {
		for _, p := range dialogue.Personas() {
			out = append(out, dialogue.Turn{Round: r, Persona: p, Text: p.Label() + " speaks", Timestamp: stamp})
		}
	}
	return out
}

func completeOutcome(id string) dialogue.SeedOutcome {
	return dialogue.SeedOutcome{
		Seed:            dialogue.SeedText{ID: id, Content: "content of " + id},
		Status:          dialogue.StatusComplete,
		RoundsCompleted: 2,
		Turns:           turns(2),
		Report: &analysis.Report{
			Pairs:                analysis.Pairs{InterpreterSkeptic: 0.42, InterpreterObserver: 0.71, SkepticObserver: 0.65},
			Classification:       analysis.ObserverEquidistant,
			ObserverLeans:        "interpreter",
			ObserverEquidistance: 0.06,
			EquidistanceVerdict:  analysis.VerdictNovel,
			Dimensions:           3,
			Thresholds:           analysis.DefaultThresholds(),
		},
	}
}

func abandonedOutcome(id string) dialogue.SeedOutcome {
	return dialogue.SeedOutcome{
		Seed:            dialogue.SeedText{ID: id, Content: "content of " + id},
		Status:          dialogue.StatusAbandoned,
		Reason:          `seed "` + id + `" round 2 failed at skeptic: upstream`,
		RoundsCompleted: 1,
		Turns:           turns(1),
	}
}

func TestAggregate(t *testing.T) {
	result, err := Aggregate([]dialogue.SeedOutcome{completeOutcome("math"), abandonedOutcome("recipe")})
	require.NoError(t, err)

	assert.Equal(t, []string{"math", "recipe"}, result.IDs())
	assert.Equal(t, "content of math", result["math"].Seed)
	assert.Len(t, result["math"].Transcript, 6)
	assert.NotNil(t, result["math"].Similarity)
	assert.Nil(t, result["recipe"].Similarity)
	assert.Contains(t, result["recipe"].Reason, "round 2")
}

func TestAggregate_DuplicateSeed(t *testing.T) {
	_, err := Aggregate([]dialogue.SeedOutcome{completeOutcome("math"), abandonedOutcome("math")})
	assert.ErrorIs(t, err, ErrDuplicateSeed)
}

func TestAggregator_ResultIsSnapshot(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Add(completeOutcome("math")))

	snap := agg.Result()
	require.NoError(t, agg.Add(completeOutcome("noise")))

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, agg.Len())
}

func TestMarshal_ArtifactShape(t *testing.T) {
	result, err := Aggregate([]dialogue.SeedOutcome{completeOutcome("math"), abandonedOutcome("recipe")})
	require.NoError(t, err)

	data, err := Marshal(result)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))

	math := raw["math"]
	transcript := math["transcript"].([]any)
	first := transcript[0].(map[string]any)
	assert.Equal(t, float64(1), first["round"])
	assert.Equal(t, "interpreter", first["persona"])
	assert.Equal(t, "Interpreter speaks", first["text"])

	sim := math["similarity"].(map[string]any)
	assert.Equal(t, "observer-equidistant", sim["classification"])
	assert.Equal(t, 0.42, sim["pairs"].(map[string]any)["interpreter_skeptic"])
	assert.Equal(t, 0.9, sim["thresholds"].(map[string]any)["convergence"])

	recipe := raw["recipe"]
	assert.Contains(t, recipe, "similarity")
	assert.Nil(t, recipe["similarity"])
	assert.Equal(t, "abandoned", recipe["status"])
}

func TestMarshal_ClosingStatements(t *testing.T) {
	o := completeOutcome("math")
	o.Closing = &dialogue.Closing{Interpreter: "i", Skeptic: "s", Observer: "o"}
	result, err := Aggregate([]dialogue.SeedOutcome{o})
	require.NoError(t, err)

	data, err := Marshal(result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"closing": {`)
}

func TestValidateArtifact_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"empty", `{}`},
		{"not-object", `[]`},
		{"missing-transcript", `{"math": {"seed": "x", "status": "complete", "rounds_completed": 0, "similarity": null}}`},
		{"unknown-persona", `{"math": {"seed": "x", "status": "complete", "rounds_completed": 1, "similarity": null,
			"transcript": [{"round": 1, "persona": "narrator", "text": "t", "timestamp": "2025-03-14T09:00:00Z"}]}}`},
		{"similarity-out-of-range", `{"math": {"seed": "x", "status": "complete", "rounds_completed": 0, "transcript": [],
			"similarity": {"pairs": {"interpreter_skeptic": 1.5, "interpreter_observer": 0, "skeptic_observer": 0},
			"classification": "divergent", "observer_leans": "neither", "observer_equidistance": 0,
			"equidistance_verdict": "novel", "thresholds": {"convergence": 0.9, "divergence": 0.3, "equidistance_epsilon": 0.1, "equidistance_lean": 0.2}}}}`},
		{"bad-status", `{"math": {"seed": "x", "status": "running", "rounds_completed": 0, "transcript": [], "similarity": null}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, ValidateArtifact([]byte(tt.doc)), ErrInvalidArtifact)
		})
	}
}

func TestWriteAndReadArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "third_eye_results.json")
	result, err := Aggregate([]dialogue.SeedOutcome{completeOutcome("math"), abandonedOutcome("recipe")})
	require.NoError(t, err)

	require.NoError(t, WriteArtifact(path, result))

	back, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Equal(t, result, back)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriteArtifact_InvalidResultLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")

	err := WriteArtifact(path, ExperimentResult{})
	assert.ErrorIs(t, err, ErrInvalidArtifact)
	assert.NoFileExists(t, path)
}

func TestCheckpointer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.partial.json")
	agg := NewAggregator()
	cp := NewCheckpointer(agg, path, zerolog.Nop())

	cp.Record(completeOutcome("math"))
	first, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Len(t, first, 1)

	cp.Record(abandonedOutcome("recipe"))
	cp.Record(abandonedOutcome("recipe"))
	second, err := ReadArtifact(path)
	require.NoError(t, err)
	assert.Len(t, second, 2)
	assert.Equal(t, 2, agg.Len())
}

func TestSummarize(t *testing.T) {
	result, err := Aggregate([]dialogue.SeedOutcome{abandonedOutcome("recipe"), completeOutcome("math")})
	require.NoError(t, err)

	summary := Summarize(result)
	require.Len(t, summary, 2)
	assert.Equal(t, "math", summary[0].SeedID)
	assert.True(t, summary[0].HasReport)
	assert.Equal(t, 0.71, summary[0].Pairs.InterpreterObserver)
	assert.Equal(t, analysis.VerdictNovel, summary[0].Verdict)
	assert.False(t, summary[1].HasReport)

	assert.Equal(t, map[analysis.Classification]int{analysis.ObserverEquidistant: 1, "": 1}, summary.Counts())

	var buf bytes.Buffer
	summary.Log(zerolog.New(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], `"classification":"observer-equidistant"`)
	assert.Contains(t, lines[1], `"status":"abandoned"`)
	assert.Contains(t, lines[2], `"complete":1`)
	assert.Contains(t, lines[2], `"abandoned":1`)
	assert.Contains(t, lines[2], `"unreported":1`)
	assert.Contains(t, lines[2], `"observer-equidistant":1`)
	assert.Contains(t, lines[2], `"convergent":0`)
}
