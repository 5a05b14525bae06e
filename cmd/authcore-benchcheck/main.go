// Command authcore-benchcheck compares two `go test -bench` outputs and exits
// non-zero when a tracked benchmark regressed past the threshold. Run each
// side with -count >= 5 so medians are stable.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

const defaultThreshold = 0.30

var trackedMetrics = map[string][]string{
	"BenchmarkAuthenticate":         {"ns/op", "allocs/op"},
	"BenchmarkAuthenticateParallel": {"ns/op"},
	"BenchmarkRefresh":              {"ns/op"},
	"BenchmarkMetricsIncParallel":   {"ns/op"},
}

// sampleSet maps benchmark name to unit to observed values.
type sampleSet map[string]map[string][]float64

type result struct {
	benchmark string
	unit      string
	baseline  float64
	candidate float64
	delta     float64
}

func main() {
	var (
		baselinePath  string
		candidatePath string
		threshold     float64
	)
	flag.StringVar(&baselinePath, "baseline", "", "path to baseline benchmark output")
	flag.StringVar(&candidatePath, "candidate", "", "path to candidate benchmark output")
	flag.Float64Var(&threshold, "threshold", defaultThreshold, "maximum allowed regression ratio (0.30 = +30%)")
	flag.Parse()

	if baselinePath == "" || candidatePath == "" {
		fmt.Fprintln(os.Stderr, "-baseline and -candidate are required")
		os.Exit(2)
	}
	if threshold < 0 {
		fmt.Fprintln(os.Stderr, "-threshold must be >= 0")
		os.Exit(2)
	}

	baseline, err := parseFile(baselinePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse baseline: %v\n", err)
		os.Exit(1)
	}
	candidate, err := parseFile(candidatePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse candidate: %v\n", err)
		os.Exit(1)
	}

	results, failures := compare(baseline, candidate, threshold)
	fmt.Println("benchmark unit baseline candidate delta")
	for _, r := range results {
		fmt.Printf("%s %s %.3f %.3f %+0.2f%%\n", r.benchmark, r.unit, r.baseline, r.candidate, r.delta*100)
	}
	if len(failures) > 0 {
		fmt.Fprintln(os.Stderr, "performance regression threshold exceeded:")
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "  - %s\n", f)
		}
		os.Exit(1)
	}
}

// compare returns per-metric medians in a stable order and the list of
// regressions or missing samples.
func compare(baseline, candidate sampleSet, threshold float64) ([]result, []string) {
	names := make([]string, 0, len(trackedMetrics))
	for name := range trackedMetrics {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		results  []result
		failures []string
	)
	for _, name := range names {
		for _, unit := range trackedMetrics[name] {
			base, cand := baseline[name][unit], candidate[name][unit]
			if len(base) == 0 || len(cand) == 0 {
				failures = append(failures, fmt.Sprintf("missing samples for %s %s", name, unit))
				continue
			}
			b, c := median(base), median(cand)
			if b <= 0 {
				// allocs/op can legitimately be zero on both sides.
				if c > b {
					failures = append(failures, fmt.Sprintf("%s %s grew from %.0f to %.3f", name, unit, b, c))
				}
				results = append(results, result{benchmark: name, unit: unit, baseline: b, candidate: c})
				continue
			}
			r := result{benchmark: name, unit: unit, baseline: b, candidate: c, delta: (c - b) / b}
			results = append(results, r)
			if r.delta > threshold {
				failures = append(failures, fmt.Sprintf("%s %s regressed by %+0.2f%% (limit %+0.2f%%)", name, unit, r.delta*100, threshold*100))
			}
		}
	}
	return results, failures
}

func parseFile(path string) (sampleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parse(f)
}

func parse(r io.Reader) (sampleSet, error) {
	samples := sampleSet{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "Benchmark") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		name := normalizeName(fields[0])
		if _, ok := trackedMetrics[name]; !ok {
			continue
		}
		if samples[name] == nil {
			samples[name] = map[string][]float64{}
		}
		// fields[1] is the iteration count; value/unit pairs follow.
		for i := 2; i+1 < len(fields); i += 2 {
			v, err := strconv.ParseFloat(fields[i], 64)
			if err != nil {
				continue
			}
			samples[name][fields[i+1]] = append(samples[name][fields[i+1]], v)
		}
	}
	return samples, scanner.Err()
}

// normalizeName strips the -GOMAXPROCS suffix.
func normalizeName(raw string) string {
	if idx := strings.LastIndexByte(raw, '-'); idx > 0 {
		if _, err := strconv.Atoi(raw[idx+1:]); err == nil {
			return raw[:idx]
		}
	}
	return raw
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
