// Package testutil provides shared test fixtures for building prediction and
// annotation datasets.
package testutil

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// Scores maps a tooth label to a model confidence.
type Scores map[string]float64

// AllTeeth returns a score for every catalogued tooth, as the legacy model
// emits.
func AllTeeth(score float64) Scores {
	s := make(Scores, teeth.Count)
	for _, l := range teeth.Catalog() {
		s[string(l)] = score
	}
	return s
}

// With returns a copy of s with the given label set to score.
func (s Scores) With(label string, score float64) Scores {
	out := make(Scores, len(s)+1)
	for k, v := range s {
		out[k] = v
	}
	out[label] = score
	return out
}

// Without returns a copy of s with the given labels removed.
func (s Scores) Without(labels ...string) Scores {
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	for _, l := range labels {
		delete(out, l)
	}
	return out
}

// PredictionJSON renders a model output document with entities in label order.
func PredictionJSON(t *testing.T, scores Scores) []byte {
	t.Helper()
	labels := make([]string, 0, len(scores))
	for l := range scores {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	type entity struct {
		ClassName string  `json:"class_name"`
		Score     float64 `json:"score"`
	}
	doc := struct {
		Entities []entity `json:"entities"`
	}{Entities: make([]entity, 0, len(labels))}
	for _, l := range labels {
		doc.Entities = append(doc.Entities, entity{ClassName: l, Score: scores[l]})
	}

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

// AnnotationJSON renders an annotation document listing the given labels.
func AnnotationJSON(t *testing.T, labels ...string) []byte {
	t.Helper()
	type region struct {
		Label string `json:"label"`
	}
	doc := make([]region, 0, len(labels))
	for _, l := range labels {
		doc = append(doc, region{Label: l})
	}
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	return data
}

// WriteFiles writes name -> content under dir on fsys.
func WriteFiles(t *testing.T, fsys fsutil.FileSystem, dir string, files map[string][]byte) {
	t.Helper()
	require.NoError(t, fsys.MkdirAll(dir, 0755))
	for name, data := range files {
		require.NoError(t, fsys.WriteFile(filepath.Join(dir, name), data, 0644))
	}
}
