package experiment

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thalesfsp/rectgp"
	"github.com/thalesfsp/rectgp/internal/config"
)

// Report is the outcome of one Run.
type Report struct {
	ID        string         `yaml:"id"`
	StartedAt time.Time      `yaml:"started_at"`
	Duration  time.Duration  `yaml:"duration"`
	Dataset   DatasetSummary `yaml:"dataset"`
	Models    []ModelResult  `yaml:"models"`
	Config    *config.Config `yaml:"config"`
}

// DatasetSummary describes the generated splits.
type DatasetSummary struct {
	Width             int     `yaml:"width"`
	Height            int     `yaml:"height"`
	TrainCount        int     `yaml:"train_count"`
	TestCount         int     `yaml:"test_count"`
	TrainTallFraction float64 `yaml:"train_tall_fraction"`
	TestTallFraction  float64 `yaml:"test_tall_fraction"`
	Attempts          int     `yaml:"attempts"`
	Exhausted         int     `yaml:"exhausted"`
}

// ModelResult holds one classifier's numbers.
type ModelResult struct {
	Name           string         `yaml:"name"`
	Lengthscale    float64        `yaml:"lengthscale"`
	Tuned          bool           `yaml:"tuned"`
	Evaluations    int            `yaml:"evaluations,omitempty"`
	LeaveOneOutNLL float64        `yaml:"loo_nll,omitempty"`
	FitDuration    time.Duration  `yaml:"fit_duration"`
	Train          rectgp.Metrics `yaml:"train"`
	Test           rectgp.Metrics `yaml:"test"`
}

// WriteYAML encodes the report.
func (r *Report) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)

	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	return enc.Close()
}

// Summary prints a plain-text table of the results.
func (r *Report) Summary(w io.Writer) error {
	d := r.Dataset

	lines := []string{
		fmt.Sprintf("Run:       %s", r.ID),
		fmt.Sprintf("Canvas:    %dx%d", d.Width, d.Height),
		fmt.Sprintf("Train:     %d samples (%.0f%% tall)", d.TrainCount, 100*d.TrainTallFraction),
		fmt.Sprintf("Test:      %d samples (%.0f%% tall)", d.TestCount, 100*d.TestTallFraction),
		fmt.Sprintf("Exhausted: %d", d.Exhausted),
		"",
		fmt.Sprintf("%-20s %12s %10s %10s %12s", "model", "lengthscale", "train acc", "test acc", "test loglik"),
	}

	for _, m := range r.Models {
		lines = append(lines, fmt.Sprintf("%-20s %12.4f %10.3f %10.3f %12.4f",
			m.Name, m.Lengthscale, m.Train.Accuracy, m.Test.Accuracy, m.Test.LogLikelihood))
	}

	lines = append(lines, "", fmt.Sprintf("Took %s", r.Duration.Round(time.Millisecond)))

	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}

	return nil
}
