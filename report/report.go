// Package report assembles the diagnostics of an Evaluator into a single
// document and writes it as YAML or JSON.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/swdee/go-reideval"
	"gopkg.in/yaml.v3"
)

// Options controls what goes into a report
type Options struct {
	// MaxRank is the length of the CMC curve
	MaxRank int
	// TopK is the number of ranked results kept per query in the error lists
	TopK int
	// Errors is how many entries of each error list are kept
	Errors int
	// Bins is the histogram bin count for the distributions
	Bins int
}

// DefaultOptions returns the options the reideval command uses by default
func DefaultOptions() Options {
	return Options{
		MaxRank: 50,
		TopK:    reideval.DefaultTopK,
		Errors:  10,
		Bins:    80,
	}
}

// Distributions holds the summaries of the sampled similarity groups.  The
// camera summaries are nil when the gallery lacks same or different camera
// pairs.
type Distributions struct {
	Positive   reideval.Distribution  `json:"positive" yaml:"positive"`
	Negative   reideval.Distribution  `json:"negative" yaml:"negative"`
	Separation reideval.Separation    `json:"separation" yaml:"separation"`
	SameCamera *reideval.Distribution `json:"same_camera,omitempty" yaml:"same_camera,omitempty"`
	DiffCamera *reideval.Distribution `json:"diff_camera,omitempty" yaml:"diff_camera,omitempty"`
}

// Report is the full diagnostics document
type Report struct {
	NumQuery      int                    `json:"num_query" yaml:"num_query"`
	NumGallery    int                    `json:"num_gallery" yaml:"num_gallery"`
	Metrics       reideval.Metrics       `json:"metrics" yaml:"metrics"`
	Rank1         float64                `json:"rank1" yaml:"rank1"`
	Rank5         float64                `json:"rank5" yaml:"rank5"`
	Rank10        float64                `json:"rank10" yaml:"rank10"`
	Correct       int                    `json:"correct" yaml:"correct"`
	Incorrect     int                    `json:"incorrect" yaml:"incorrect"`
	HardCorrect   []reideval.RankedQuery `json:"hard_correct" yaml:"hard_correct"`
	HardIncorrect []reideval.RankedQuery `json:"hard_incorrect" yaml:"hard_incorrect"`
	Distributions Distributions          `json:"distributions" yaml:"distributions"`
}

// Build runs every diagnostic of the evaluator
func Build(e *reideval.Evaluator, opts Options) (*Report, error) {

	metrics, err := e.Evaluate(opts.MaxRank)

	if err != nil {
		return nil, fmt.Errorf("error computing metrics: %w", err)
	}

	top, err := e.TopErrorsK(opts.TopK)

	if err != nil {
		return nil, fmt.Errorf("error computing top errors: %w", err)
	}

	dists, err := buildDistributions(e, opts.Bins)

	if err != nil {
		return nil, err
	}

	return &Report{
		NumQuery:      e.NumQuery(),
		NumGallery:    e.NumGallery(),
		Metrics:       metrics,
		Rank1:         metrics.Rank(1),
		Rank5:         metrics.Rank(5),
		Rank10:        metrics.Rank(10),
		Correct:       len(top.Correct),
		Incorrect:     len(top.Incorrect),
		HardCorrect:   head(top.Correct, opts.Errors),
		HardIncorrect: head(top.Incorrect, opts.Errors),
		Distributions: *dists,
	}, nil
}

func buildDistributions(e *reideval.Evaluator, bins int) (*Distributions, error) {

	pos, neg, err := e.PositiveNegative()

	if err != nil {
		return nil, fmt.Errorf("error sampling positive/negative pairs: %w", err)
	}

	var d Distributions

	if d.Positive, err = reideval.Summarize(pos, bins); err != nil {
		return nil, err
	}

	if d.Negative, err = reideval.Summarize(neg, bins); err != nil {
		return nil, err
	}

	if d.Separation, err = reideval.Separate(pos, neg); err != nil {
		return nil, err
	}

	same, diff, err := e.SameDiffCamera()

	if errors.Is(err, reideval.ErrEmptyResult) {
		// camera split is not measurable on this gallery
		return &d, nil
	}

	if err != nil {
		return nil, fmt.Errorf("error sampling camera pairs: %w", err)
	}

	sameDist, err := reideval.Summarize(same, bins)

	if err != nil {
		return nil, err
	}

	diffDist, err := reideval.Summarize(diff, bins)

	if err != nil {
		return nil, err
	}

	d.SameCamera = &sameDist
	d.DiffCamera = &diffDist

	return &d, nil
}

func head(items []reideval.RankedQuery, n int) []reideval.RankedQuery {

	if n >= 0 && len(items) > n {
		return items[:n]
	}

	return items
}

// Format is the encoding a report is written in
type Format string

const (
	YAML Format = "yaml"
	JSON Format = "json"
)

// ParseFormat validates a format name
func ParseFormat(s string) (Format, error) {

	switch Format(s) {
	case YAML, JSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Write encodes the report to w
func (r *Report) Write(w io.Writer, format Format) error {

	switch format {
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)

	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)

		if err := enc.Encode(r); err != nil {
			return err
		}

		return enc.Close()

	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// Save writes the report to a file, or stdout when path is "-" or empty
func (r *Report) Save(path string, format Format) error {

	if path == "" || path == "-" {
		return r.Write(os.Stdout, format)
	}

	f, err := os.Create(path)

	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}

	if err := r.Write(f, format); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}
