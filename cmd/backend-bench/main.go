/*
 * MIT License
 * Copyright (c) 2026 Crrow
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/crrow/evbridge/pkg/backend"
	"github.com/crrow/evbridge/pkg/config"
	"github.com/crrow/evbridge/pkg/event"
	"github.com/crrow/evbridge/pkg/xev"
)

const (
	reportDir  = "benchmarks/reports"
	latestJSON = "benchmarks/reports/latest.json"
	latestMD   = "benchmarks/reports/latest.md"

	scenarioTimeout = 2 * time.Minute
)

type scenario struct {
	name        string
	description string
	delay       time.Duration
	persistent  bool
}

var scenarios = []scenario{
	{name: "oneshot_zero", description: "chains of zero-delay one-shot timers", delay: 0},
	{name: "oneshot_1ms", description: "chains of 1ms one-shot timers", delay: time.Millisecond},
	{name: "persistent_1ms", description: "persistent 1ms timers", delay: time.Millisecond, persistent: true},
}

type scenarioResult struct {
	Scenario    string  `json:"scenario"`
	Description string  `json:"description"`
	Events      int     `json:"events"`
	Concurrency int     `json:"concurrency"`
	DurationMs  float64 `json:"duration_ms"`
	Throughput  float64 `json:"throughput_eps"`
	P50Us       float64 `json:"p50_lateness_us"`
	P95Us       float64 `json:"p95_lateness_us"`
	P99Us       float64 `json:"p99_lateness_us"`
	Errors      int     `json:"errors"`
}

type targetReport struct {
	Backend   string           `json:"backend"`
	Scenarios []scenarioResult `json:"scenarios"`
}

type gateConfig struct {
	MinThroughputRatio float64 `json:"min_throughput_ratio"`
	MaxP99Ratio        float64 `json:"max_p99_ratio"`
}

type comparison struct {
	Scenario             string  `json:"scenario"`
	ThroughputRatio      float64 `json:"throughput_ratio"`
	P99Ratio             float64 `json:"p99_ratio"`
	ThroughputPass       bool    `json:"throughput_pass"`
	P99Pass              bool    `json:"p99_pass"`
	OverallPass          bool    `json:"overall_pass"`
	CandidateEPS         float64 `json:"candidate_throughput_eps"`
	BaselineEPS          float64 `json:"baseline_throughput_eps"`
	CandidateP99Us       float64 `json:"candidate_p99_us"`
	BaselineP99Us        float64 `json:"baseline_p99_us"`
	CandidateErrorCount  int     `json:"candidate_error_count"`
	BaselineErrorCount   int     `json:"baseline_error_count"`
	CandidateBackendName string  `json:"candidate_backend"`
}

type benchmarkReport struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Events      int            `json:"events"`
	Concurrency int            `json:"concurrency"`
	Gates       gateConfig     `json:"gates"`
	Targets     []targetReport `json:"targets"`
	Comparisons []comparison   `json:"comparisons"`
	Command     string         `json:"command"`
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "compare":
		if err := runCompare(os.Args[2:]); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "bench-compare error: %v\n", err)
			os.Exit(1)
		}
	case "report":
		if err := runReport(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "bench-report error: %v\n", err)
			os.Exit(1)
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	_, _ = fmt.Fprintln(os.Stderr, "usage:")
	_, _ = fmt.Fprintln(os.Stderr, "  backend-bench compare --events 2000 --concurrency 16")
	_, _ = fmt.Fprintln(os.Stderr, "  backend-bench report")
}

func runCompare(args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	events := fs.Int("events", 2000, "callbacks dispatched per scenario")
	concurrency := fs.Int("concurrency", 16, "number of concurrent timer chains")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *events <= 0 || *concurrency <= 0 {
		return errors.New("events and concurrency must be > 0")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := cfg.Logger(os.Stderr)

	backends := []config.Backend{config.BackendAsync}
	if cfg.Backend == config.BackendXev || xev.Available() {
		backends = append(backends, config.BackendXev)
	} else {
		log.Warn().Msg("libxev not available; benchmarking the async backend only")
	}

	report := benchmarkReport{
		GeneratedAt: time.Now().UTC(),
		Events:      *events,
		Concurrency: *concurrency,
		Gates: gateConfig{
			MinThroughputRatio: 0.70,
			MaxP99Ratio:        1.50,
		},
		Command: strings.Join(os.Args, " "),
	}
	for _, name := range backends {
		bcfg := cfg
		bcfg.Backend = name
		results, err := benchmarkBackend(bcfg, log, scenarios, *events, *concurrency)
		if err != nil {
			return fmt.Errorf("benchmark %s backend failed: %w", name, err)
		}
		report.Targets = append(report.Targets, targetReport{Backend: string(name), Scenarios: results})
	}
	if len(report.Targets) > 1 {
		report.Comparisons = buildComparisons(report.Gates, report.Targets[1], report.Targets[0].Scenarios)
	}

	if err := writeReport(report); err != nil {
		return err
	}
	printComparison(report)
	return nil
}

func runReport() error {
	data, err := os.ReadFile(latestJSON)
	if err != nil {
		return fmt.Errorf("read latest json report failed: %w", err)
	}

	var report benchmarkReport
	if err = json.Unmarshal(data, &report); err != nil {
		return fmt.Errorf("decode latest json report failed: %w", err)
	}

	md := renderMarkdown(report)
	if err = os.WriteFile(latestMD, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write markdown report failed: %w", err)
	}

	ts := report.GeneratedAt.Format("20060102-150405")
	versioned := filepath.Join(reportDir, fmt.Sprintf("report-%s.md", ts))
	if err = os.WriteFile(versioned, []byte(md), 0o644); err != nil {
		return fmt.Errorf("write versioned markdown report failed: %w", err)
	}

	_, _ = fmt.Printf("wrote markdown report: %s\n", latestMD)
	return nil
}

func benchmarkBackend(cfg config.Config, log zerolog.Logger, scs []scenario, events, concurrency int) ([]scenarioResult, error) {
	results := make([]scenarioResult, 0, len(scs))
	for _, sc := range scs {
		res, err := runScenario(cfg, sc, events, concurrency)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sc.name, err)
		}
		log.Info().
			Str("backend", string(cfg.Backend)).
			Str("scenario", sc.name).
			Float64("throughput_eps", res.Throughput).
			Float64("p99_us", res.P99Us).
			Msg("scenario done")
		results = append(results, res)
	}
	return results, nil
}

// chain tracks one timer chain: a one-shot timer that re-registers itself,
// or a persistent timer. Lateness is measured against the deadline the
// chain expected.
type chain struct {
	run      *benchRun
	expected time.Time
}

type benchRun struct {
	sc        scenario
	events    int
	fired     int
	lateness  []float64
	errors    int
	lastError error
}

func (c *chain) OnEvent(b *event.Base, ev event.Fired) error {
	r := c.run
	now := time.Now()
	r.lateness = append(r.lateness, float64(now.Sub(c.expected).Microseconds()))
	r.fired++
	if r.fired >= r.events {
		return b.BreakLoop()
	}

	c.expected = c.expected.Add(r.sc.delay)
	if r.sc.persistent {
		if c.expected.Before(now) {
			c.expected = now.Add(r.sc.delay)
		}
		return nil
	}
	c.expected = now.Add(r.sc.delay)
	if _, err := b.Once(r.sc.delay, c); err != nil {
		r.errors++
		r.lastError = err
	}
	return nil
}

func runScenario(cfg config.Config, sc scenario, events, concurrency int) (scenarioResult, error) {
	base, err := backend.NewBase(cfg, zerolog.Nop())
	if err != nil {
		return scenarioResult{}, err
	}
	defer func() { _ = base.Destroy() }()

	run := &benchRun{sc: sc, events: events, lateness: make([]float64, 0, events)}
	start := time.Now()
	for i := 0; i < concurrency; i++ {
		c := &chain{run: run, expected: time.Now().Add(sc.delay)}
		if _, err := base.RegisterTimer(sc.delay, 0, sc.persistent, c); err != nil {
			return scenarioResult{}, err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), scenarioTimeout)
	defer cancel()
	if err := base.Run(ctx); err != nil {
		return scenarioResult{}, err
	}
	dur := time.Since(start)
	if run.fired < events {
		return scenarioResult{}, fmt.Errorf("dispatched %d of %d events: %v", run.fired, events, run.lastError)
	}

	sort.Float64s(run.lateness)
	return scenarioResult{
		Scenario:    sc.name,
		Description: sc.description,
		Events:      events,
		Concurrency: concurrency,
		DurationMs:  dur.Seconds() * 1000.0,
		Throughput:  float64(run.fired) / dur.Seconds(),
		P50Us:       percentile(run.lateness, 50),
		P95Us:       percentile(run.lateness, 95),
		P99Us:       percentile(run.lateness, 99),
		Errors:      run.errors,
	}, nil
}

func writeReport(report benchmarkReport) error {
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return fmt.Errorf("create reports dir failed: %w", err)
	}

	blob, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report failed: %w", err)
	}
	if err = os.WriteFile(latestJSON, blob, 0o644); err != nil {
		return fmt.Errorf("write latest report failed: %w", err)
	}
	ts := report.GeneratedAt.Format("20060102-150405")
	versioned := filepath.Join(reportDir, fmt.Sprintf("benchmark-%s.json", ts))
	if err = os.WriteFile(versioned, blob, 0o644); err != nil {
		return fmt.Errorf("write versioned report failed: %w", err)
	}
	_, _ = fmt.Printf("wrote benchmark report: %s\n", latestJSON)
	return nil
}

// buildComparisons rates the candidate backend against the baseline, per
// scenario present in both.
func buildComparisons(gates gateConfig, candidate targetReport, baseline []scenarioResult) []comparison {
	baseByScenario := make(map[string]scenarioResult, len(baseline))
	for _, r := range baseline {
		baseByScenario[r.Scenario] = r
	}

	out := make([]comparison, 0, len(candidate.Scenarios))
	for _, c := range candidate.Scenarios {
		r, ok := baseByScenario[c.Scenario]
		if !ok {
			continue
		}
		thrRatio := 0.0
		if r.Throughput > 0 {
			thrRatio = c.Throughput / r.Throughput
		}
		p99Ratio := 0.0
		if r.P99Us > 0 {
			p99Ratio = c.P99Us / r.P99Us
		}
		thrPass := thrRatio >= gates.MinThroughputRatio
		p99Pass := p99Ratio <= gates.MaxP99Ratio
		out = append(out, comparison{
			Scenario:             c.Scenario,
			ThroughputRatio:      thrRatio,
			P99Ratio:             p99Ratio,
			ThroughputPass:       thrPass,
			P99Pass:              p99Pass,
			OverallPass:          thrPass && p99Pass,
			CandidateEPS:         c.Throughput,
			BaselineEPS:          r.Throughput,
			CandidateP99Us:       c.P99Us,
			BaselineP99Us:        r.P99Us,
			CandidateErrorCount:  c.Errors,
			BaselineErrorCount:   r.Errors,
			CandidateBackendName: candidate.Backend,
		})
	}
	return out
}

const comparisonHeader = "scenario | candidate eps | async eps | throughput ratio | candidate p99 us | async p99 us | p99 ratio | pass"

func printComparison(report benchmarkReport) {
	for _, t := range report.Targets {
		_, _ = fmt.Printf("%s:\n", t.Backend)
		for _, s := range t.Scenarios {
			_, _ = fmt.Printf("  %-16s %10.1f eps  p50 %8.1f us  p99 %8.1f us\n", s.Scenario, s.Throughput, s.P50Us, s.P99Us)
		}
	}
	if len(report.Comparisons) == 0 {
		return
	}
	_, _ = fmt.Println(comparisonHeader)
	_, _ = fmt.Println("---|---:|---:|---:|---:|---:|---:|---")
	for _, c := range report.Comparisons {
		_, _ = fmt.Println(comparisonRow(c))
	}
}

func comparisonRow(c comparison) string {
	return fmt.Sprintf("%s | %.1f | %.1f | %.3f | %.1f | %.1f | %.3f | %t",
		c.Scenario,
		c.CandidateEPS,
		c.BaselineEPS,
		c.ThroughputRatio,
		c.CandidateP99Us,
		c.BaselineP99Us,
		c.P99Ratio,
		c.OverallPass,
	)
}

func renderMarkdown(report benchmarkReport) string {
	var b strings.Builder
	b.WriteString("# Event Backend Benchmark Report\n\n")
	_, _ = fmt.Fprintf(&b, "Generated at: %s UTC\n\n", report.GeneratedAt.Format(time.RFC3339))
	_, _ = fmt.Fprintf(&b, "Events per scenario: %d\n\n", report.Events)
	_, _ = fmt.Fprintf(&b, "Concurrent chains: %d\n\n", report.Concurrency)

	b.WriteString("## Scenarios\n\n")
	for _, sc := range scenarios {
		_, _ = fmt.Fprintf(&b, "- %s: %s\n", sc.name, sc.description)
	}
	b.WriteByte('\n')

	if len(report.Comparisons) > 0 {
		b.WriteString("## Gates\n\n")
		_, _ = fmt.Fprintf(&b, "- throughput ratio >= %.2f\n", report.Gates.MinThroughputRatio)
		_, _ = fmt.Fprintf(&b, "- p99 ratio <= %.2f\n\n", report.Gates.MaxP99Ratio)

		b.WriteString("## Comparison\n\n")
		b.WriteString(comparisonHeader + "\n")
		b.WriteString("---|---:|---:|---:|---:|---:|---:|---\n")
		for _, c := range report.Comparisons {
			b.WriteString(comparisonRow(c) + "\n")
		}
		b.WriteByte('\n')
	}

	b.WriteString("## Backend Details\n\n")
	for _, target := range report.Targets {
		_, _ = fmt.Fprintf(&b, "### %s\n\n", target.Backend)
		b.WriteString("scenario | throughput eps | p50 us | p95 us | p99 us | errors\n")
		b.WriteString("---|---:|---:|---:|---:|---:\n")
		for _, s := range target.Scenarios {
			_, _ = fmt.Fprintf(&b, "%s | %.1f | %.1f | %.1f | %.1f | %d\n",
				s.Scenario,
				s.Throughput,
				s.P50Us,
				s.P95Us,
				s.P99Us,
				s.Errors,
			)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[len(sorted)-1]
	}
	idx := int((p / 100.0) * float64(len(sorted)-1))
	return sorted[idx]
}
