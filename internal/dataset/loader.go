package dataset

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/banshee-data/dental.report/internal/fsutil"
	"github.com/banshee-data/dental.report/internal/monitoring"
)

// Loader lists and decodes paired prediction/annotation files.
type Loader struct {
	FS fsutil.FileSystem
}

// NewLoader creates a Loader on the given filesystem. A nil fsys uses the
// real filesystem.
func NewLoader(fsys fsutil.FileSystem) *Loader {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	return &Loader{FS: fsys}
}

// baseName strips the directory and the final extension.
func baseName(name string) string {
	name = filepath.Base(name)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// listFiles returns the regular files in dir, sorted by name.
func (l *Loader) listFiles(dir string) ([]string, error) {
	entries, err := l.FS.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, e.Name())
	}
	sort.Strings(files)
	return files, nil
}

// byBase indexes files by base name. When two files share a base name the
// first in sorted order wins.
func byBase(dir string, files []string) map[string]string {
	out := make(map[string]string, len(files))
	for _, f := range files {
		b := baseName(f)
		if prev, dup := out[b]; dup {
			monitoring.Warnf("%s: %s and %s share base name %q; using %s", dir, prev, f, b, prev)
			continue
		}
		out[b] = f
	}
	return out
}

// ListPairs returns the sorted base names present in both outputDir and
// annotationDir. Files present on only one side are excluded and logged.
func (l *Loader) ListPairs(outputDir, annotationDir string) ([]string, error) {
	outputs, annotations, err := l.pairIndex(outputDir, annotationDir)
	if err != nil {
		return nil, err
	}
	return commonBases(outputs, annotations), nil
}

func (l *Loader) pairIndex(outputDir, annotationDir string) (map[string]string, map[string]string, error) {
	outFiles, err := l.listFiles(outputDir)
	if err != nil {
		return nil, nil, err
	}
	annFiles, err := l.listFiles(annotationDir)
	if err != nil {
		return nil, nil, err
	}
	return byBase(outputDir, outFiles), byBase(annotationDir, annFiles), nil
}

func commonBases(outputs, annotations map[string]string) []string {
	var common []string
	var unmatched int
	for b := range outputs {
		if _, ok := annotations[b]; ok {
			common = append(common, b)
		} else {
			unmatched++
		}
	}
	for b := range annotations {
		if _, ok := outputs[b]; !ok {
			unmatched++
		}
	}
	if unmatched > 0 {
		monitoring.Warnf("%d files have no counterpart and were excluded", unmatched)
	}
	sort.Strings(common)
	return common
}

// Load reads and decodes every base-name-matched pair, in base name order.
func (l *Loader) Load(outputDir, annotationDir string) ([]Pair, error) {
	outputs, annotations, err := l.pairIndex(outputDir, annotationDir)
	if err != nil {
		return nil, err
	}

	bases := commonBases(outputs, annotations)
	pairs := make([]Pair, 0, len(bases))
	for _, b := range bases {
		p, err := l.readPair(b,
			filepath.Join(outputDir, outputs[b]),
			filepath.Join(annotationDir, annotations[b]))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// LoadSynchronised reproduces the legacy resampling loader: both directories
// are listed in sorted order without base-name matching, the longer list is
// truncated with Synchronise, and files are paired by position. Pairs whose
// base names differ are kept but logged. Prefer Load.
func (l *Loader) LoadSynchronised(outputDir, annotationDir string) ([]Pair, error) {
	outFiles, err := l.listFiles(outputDir)
	if err != nil {
		return nil, err
	}
	annFiles, err := l.listFiles(annotationDir)
	if err != nil {
		return nil, err
	}

	outFiles, annFiles, err = Synchronise(outFiles, annFiles)
	if err != nil {
		monitoring.Warnf("%v", err)
	}

	pairs := make([]Pair, 0, len(outFiles))
	for i := range outFiles {
		if baseName(outFiles[i]) != baseName(annFiles[i]) {
			monitoring.Warnf("positional pair %d mismatched: %s vs %s", i, outFiles[i], annFiles[i])
		}
		p, err := l.readPair(baseName(outFiles[i]),
			filepath.Join(outputDir, outFiles[i]),
			filepath.Join(annotationDir, annFiles[i]))
		if err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	return pairs, nil
}

// Synchronise truncates the longer list to the length of the shorter one.
// This drops trailing entries without regard to which files they are, so a
// *DatasetMismatchError is returned whenever the lengths differ; the returned
// slices are still usable.
func Synchronise(outputs, annotations []string) ([]string, []string, error) {
	if len(outputs) == len(annotations) {
		return outputs, annotations, nil
	}
	n := min(len(outputs), len(annotations))
	err := &DatasetMismatchError{Predictions: len(outputs), Annotations: len(annotations), Kept: n}
	return outputs[:n], annotations[:n], err
}

func (l *Loader) readPair(name, predPath, annPath string) (Pair, error) {
	predData, err := l.FS.ReadFile(predPath)
	if err != nil {
		return Pair{}, fmt.Errorf("read prediction %s: %w", predPath, err)
	}
	pred, err := DecodePrediction(predData)
	if err != nil {
		return Pair{}, fmt.Errorf("%s: %w", predPath, err)
	}

	annData, err := l.FS.ReadFile(annPath)
	if err != nil {
		return Pair{}, fmt.Errorf("read annotation %s: %w", annPath, err)
	}
	ann, err := DecodeAnnotation(annData)
	if err != nil {
		return Pair{}, fmt.Errorf("%s: %w", annPath, err)
	}

	return Pair{Name: name, Prediction: pred, Annotation: ann}, nil
}
