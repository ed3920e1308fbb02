// Package report aggregates batch records into summary statistics and
// renders them as a table, markdown or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/astroviz/navbench/internal/result"
)

// Percentile levels reported for each error metric. 68, 95 and 99.7
// correspond to the one, two and three sigma coverage of a normal law.
var percentiles = []float64{0.50, 0.68, 0.95, 0.997}

// MetricSummary describes one error metric over scored trials.
type MetricSummary struct {
	Mean        float64            `json:"mean"`
	StdDev      float64            `json:"stddev"`
	Percentiles map[string]float64 `json:"percentiles"`
}

// Summary is the aggregate outcome of a batch.
type Summary struct {
	Trials   int `json:"trials"`
	Scored   int `json:"scored"`
	Failed   int `json:"failed"`
	Rejected int `json:"rejected"`

	SuccessRate   float64 `json:"success_rate"`
	FailureRate   float64 `json:"failure_rate"`
	RejectionRate float64 `json:"rejection_rate"`

	// Metrics keyed by name; empty when no trial scored.
	Metrics map[string]MetricSummary `json:"metrics,omitempty"`

	FailureReasons map[string]int `json:"failure_reasons,omitempty"`
}

// Aggregate reduces records to a summary. Error statistics cover scored
// trials only; the rates cover every terminal record and sum to one.
func Aggregate(recs []*result.Record) *Summary {
	s := &Summary{Trials: len(recs), FailureReasons: map[string]int{}}
	var pos, ang, lat, dist []float64
	for _, r := range recs {
		switch r.State {
		case result.StateScored:
			s.Scored++
			pos = append(pos, *r.PositionErr)
			ang = append(ang, *r.AngularErrDeg)
			lat = append(lat, *r.LateralErr)
			dist = append(dist, *r.DistanceErr)
		case result.StateRejected:
			s.Rejected++
		default:
			s.Failed++
			if r.Reason != "" {
				s.FailureReasons[r.Reason]++
			}
		}
	}
	if s.Trials > 0 {
		n := float64(s.Trials)
		s.SuccessRate = float64(s.Scored) / n
		s.FailureRate = float64(s.Failed) / n
		s.RejectionRate = float64(s.Rejected) / n
	}
	if s.Scored > 0 {
		s.Metrics = map[string]MetricSummary{
			"position_err":    summarize(pos),
			"angular_err_deg": summarize(ang),
			"lateral_err":     summarize(lat),
			"distance_err":    summarize(dist),
		}
	}
	return s
}

func summarize(xs []float64) MetricSummary {
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	m := MetricSummary{
		Mean:        stat.Mean(sorted, nil),
		Percentiles: map[string]float64{},
	}
	if len(sorted) > 1 {
		m.StdDev = stat.StdDev(sorted, nil)
	}
	for _, p := range percentiles {
		m.Percentiles[percentileKey(p)] = stat.Quantile(p, stat.Empirical, sorted, nil)
	}
	return m
}

func percentileKey(p float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("p%.1f", p*100), "0"), ".")
}

// Generate reads the records of a run directory and writes the summary
// in the requested format.
func Generate(runDir, format string, w io.Writer) error {
	recs, err := CollectRecords(runDir)
	if err != nil {
		return err
	}
	return Write(Aggregate(recs), format, w)
}

// Write renders a summary. Formats: table (default), markdown, json.
func Write(s *Summary, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(s, w)
	case "json":
		return writeJSON(s, w)
	default:
		return writeTable(s, w)
	}
}

// CollectRecords walks a run directory for record.json files.
func CollectRecords(runDir string) ([]*result.Record, error) {
	var recs []*result.Record
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == "record.json" {
			rec, err := result.ReadRecord(path)
			if err != nil {
				return nil
			}
			recs = append(recs, rec)
		}
		return nil
	})
	sort.Slice(recs, func(i, j int) bool { return recs[i].Trial < recs[j].Trial })
	return recs, err
}

var metricOrder = []string{"position_err", "angular_err_deg", "lateral_err", "distance_err"}

func writeTable(s *Summary, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "trials: %d  scored: %d  failed: %d  rejected: %d\n",
		s.Trials, s.Scored, s.Failed, s.Rejected)
	fmt.Fprintf(tw, "success rate: %.1f%%  failure rate: %.1f%%  rejection rate: %.1f%%\n",
		s.SuccessRate*100, s.FailureRate*100, s.RejectionRate*100)
	if len(s.Metrics) > 0 {
		fmt.Fprintln(tw, strings.Repeat("-", 80))
		fmt.Fprintln(tw, "METRIC\tMEAN\tSTDDEV\tP50\tP68\tP95\tP99.7")
		for _, name := range metricOrder {
			m, ok := s.Metrics[name]
			if !ok {
				continue
			}
			fmt.Fprintf(tw, "%s\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\t%.4g\n",
				name, m.Mean, m.StdDev,
				m.Percentiles["p50"], m.Percentiles["p68"],
				m.Percentiles["p95"], m.Percentiles["p99.7"])
		}
	}
	if len(s.FailureReasons) > 0 {
		fmt.Fprintln(tw, strings.Repeat("-", 80))
		var reasons []string
		for r := range s.FailureReasons {
			reasons = append(reasons, r)
		}
		sort.Strings(reasons)
		for _, r := range reasons {
			fmt.Fprintf(tw, "failure %q\t%d\n", r, s.FailureReasons[r])
		}
	}
	return tw.Flush()
}

func writeMarkdown(s *Summary, w io.Writer) error {
	fmt.Fprintf(w, "**Trials:** %d (scored %d, failed %d, rejected %d)\n\n",
		s.Trials, s.Scored, s.Failed, s.Rejected)
	fmt.Fprintln(w, "| Metric | Mean | StdDev | P50 | P68 | P95 | P99.7 |")
	fmt.Fprintln(w, "|---|---|---|---|---|---|---|")
	for _, name := range metricOrder {
		m, ok := s.Metrics[name]
		if !ok {
			continue
		}
		fmt.Fprintf(w, "| %s | %.4g | %.4g | %.4g | %.4g | %.4g | %.4g |\n",
			name, m.Mean, m.StdDev,
			m.Percentiles["p50"], m.Percentiles["p68"],
			m.Percentiles["p95"], m.Percentiles["p99.7"])
	}
	return nil
}

func writeJSON(s *Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
