package dataset

import "fmt"

// DatasetMismatchError reports that the prediction and annotation listings
// had different lengths and were truncated to the shorter one.
type DatasetMismatchError struct {
	Predictions int
	Annotations int
	Kept        int
}

func (e *DatasetMismatchError) Error() string {
	return fmt.Sprintf("dataset mismatch: %d prediction files, %d annotation files; truncated to %d",
		e.Predictions, e.Annotations, e.Kept)
}
