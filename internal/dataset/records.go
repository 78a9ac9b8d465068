// Package dataset reads model output and ground-truth annotation files and
// pairs them by base file name.
package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/banshee-data/dental.report/internal/teeth"
)

// Entity is one detection emitted by the model.
type Entity struct {
	ClassName string  `json:"class_name"`
	Score     float64 `json:"score"`
}

// Prediction is the content of one model output file.
type Prediction struct {
	Entities []Entity `json:"entities"`
}

// Region is one ground-truth annotation entry.
type Region struct {
	Label string `json:"label"`
}

// Annotation is the content of one annotation file.
type Annotation []Region

// Pair is a prediction and annotation for the same image.
type Pair struct {
	Name       string
	Prediction Prediction
	Annotation Annotation
}

// Index maps each tooth label to the first entity carrying it. Later
// duplicates are ignored.
func (p Prediction) Index() map[teeth.Label]Entity {
	idx := make(map[teeth.Label]Entity, len(p.Entities))
	for _, e := range p.Entities {
		l := teeth.Label(e.ClassName)
		if _, seen := idx[l]; !seen {
			idx[l] = e
		}
	}
	return idx
}

// Present returns the set of labels annotated as present.
func (a Annotation) Present() map[teeth.Label]bool {
	set := make(map[teeth.Label]bool, len(a))
	for _, r := range a {
		set[teeth.Label(r.Label)] = true
	}
	return set
}

// DecodePrediction parses a model output document.
func DecodePrediction(data []byte) (Prediction, error) {
	var p Prediction
	if err := json.Unmarshal(data, &p); err != nil {
		return Prediction{}, fmt.Errorf("failed to parse prediction JSON: %w", err)
	}
	return p, nil
}

// DecodeAnnotation parses an annotation document.
func DecodeAnnotation(data []byte) (Annotation, error) {
	var a Annotation
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to parse annotation JSON: %w", err)
	}
	return a, nil
}
