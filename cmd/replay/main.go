// Command replay runs a raw sample fixture through the full analytics chain
// in process and checks the output for internal consistency: parse integrity,
// determinism of derived IDs and scores, and the scoring and alerting
// invariants. Exit code 0 means every phase passed.
//
// Usage:
//
//	go run ./cmd/replay -in data/fixtures/samples_72c.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/airshedlabs/enviro-risk-service/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// cycleOutput is one station-cycle's derived state.
type cycleOutput struct {
	reading      domain.SensorReading
	assessment   domain.RiskAssessment
	correlations []domain.CorrelationEvent
	alert        *domain.Alert
}

func main() {
	in := flag.String("in", "", "path to a raw sample JSON fixture")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*in))
}

func run(path string) int {
	samples, err := loadSamples(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load fixture: %v\n", err)
		return 1
	}

	fmt.Println("=== Analytics Replay Validation ===")
	fmt.Println()

	first := replay(samples)
	second := replay(samples)

	phases := []*phase{
		validateParseIntegrity(samples),
		validateDeterminism(first, second),
		validateScoringInvariants(first),
		validateAlertingInvariants(first),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	printSummary(samples, first)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadSamples(path string) ([]domain.RawSample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var samples []domain.RawSample
	if err := json.Unmarshal(data, &samples); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("fixture is empty")
	}
	return samples, nil
}

// replay runs the fixture through normalize, score, correlate, and alert,
// maintaining per-station history in fixture order.
func replay(samples []domain.RawSample) []cycleOutput {
	normCfg := domain.DefaultNormalizerConfig()
	riskCfg := domain.DefaultRiskConfig()
	corrCfg := domain.DefaultCorrelationConfig()

	histories := map[string][]domain.SensorReading{}
	outputs := make([]cycleOutput, 0, len(samples))

	for _, sample := range samples {
		hist := histories[sample.LocationID]
		reading := domain.Normalize(sample, hist, normCfg)
		assessment := domain.Score(reading, riskCfg)
		correlations := domain.Detect(reading, hist, corrCfg)
		alert := domain.GenerateAlert(assessment, correlations, riskCfg)

		outputs = append(outputs, cycleOutput{
			reading:      reading,
			assessment:   assessment,
			correlations: correlations,
			alert:        alert,
		})
		histories[sample.LocationID] = append([]domain.SensorReading{reading}, hist...)
	}
	return outputs
}

// ── Phase 1: Parse Integrity ──

func validateParseIntegrity(samples []domain.RawSample) *phase {
	p := &phase{name: "Phase 1: Parse Integrity"}

	for i, s := range samples {
		if s.LocationID == "" {
			p.errorf("sample %d: missing location_id", i)
		}
		if s.Timestamp.IsZero() {
			p.errorf("sample %d (%s): missing timestamp", i, s.LocationID)
		}
		if s.HumidityPct != nil && (*s.HumidityPct < 0 || *s.HumidityPct > 100) {
			p.errorf("sample %d (%s): humidity %.1f outside 0-100", i, s.LocationID, *s.HumidityPct)
		}
		for name, v := range map[string]*float64{"pm25": s.PM25, "noise_db": s.NoiseDB, "wind_kph": s.WindKph} {
			if v != nil && *v < 0 {
				p.errorf("sample %d (%s): negative %s %.1f", i, s.LocationID, name, *v)
			}
		}
	}
	return p
}

// ── Phase 2: Determinism ──
// Two replays of the same fixture must produce identical derived output.

func validateDeterminism(first, second []cycleOutput) *phase {
	p := &phase{name: "Phase 2: Determinism (replay twice)"}

	if len(first) != len(second) {
		p.errorf("output length differs: %d vs %d", len(first), len(second))
		return p
	}
	for i := range first {
		a, b := first[i], second[i]
		if a.reading.ID != b.reading.ID {
			p.errorf("cycle %d: reading ID differs: %s vs %s", i, a.reading.ID, b.reading.ID)
		}
		if a.assessment.Score != b.assessment.Score {
			p.errorf("cycle %d: score differs: %d vs %d", i, a.assessment.Score, b.assessment.Score)
		}
		if len(a.correlations) != len(b.correlations) {
			p.errorf("cycle %d: correlation count differs: %d vs %d", i, len(a.correlations), len(b.correlations))
		}
		switch {
		case (a.alert == nil) != (b.alert == nil):
			p.errorf("cycle %d: alert presence differs", i)
		case a.alert != nil && a.alert.ID != b.alert.ID:
			p.errorf("cycle %d: alert ID differs: %s vs %s", i, a.alert.ID, b.alert.ID)
		}
	}
	return p
}

// ── Phase 3: Scoring Invariants ──

func validateScoringInvariants(outputs []cycleOutput) *phase {
	p := &phase{name: "Phase 3: Scoring Invariants"}
	riskCfg := domain.DefaultRiskConfig()

	for i, out := range outputs {
		a := out.assessment
		if a.Score < 0 || a.Score > 100 {
			p.errorf("cycle %d (%s): score %d outside 0-100", i, a.LocationID, a.Score)
		}
		if got := domain.LevelForScore(a.Score, riskCfg); got != a.Level {
			p.errorf("cycle %d (%s): level %s does not match score %d (expected %s)", i, a.LocationID, a.Level, a.Score, got)
		}
		if a.ReadingID != out.reading.ID {
			p.errorf("cycle %d (%s): assessment reading ID %s != reading %s", i, a.LocationID, a.ReadingID, out.reading.ID)
		}

		var weightSum float64
		for _, f := range a.ContributingFactors {
			weightSum += f.Weight
			if f.SubScore < 0 || f.SubScore > 100 {
				p.errorf("cycle %d (%s): factor %s sub-score %.1f outside 0-100", i, a.LocationID, f.Factor, f.SubScore)
			}
		}
		if len(a.ContributingFactors) > 0 && (weightSum < 0.999 || weightSum > 1.001) {
			p.errorf("cycle %d (%s): contributing weights sum to %.4f, expected 1", i, a.LocationID, weightSum)
		}
	}
	return p
}

// ── Phase 4: Alerting Invariants ──

func validateAlertingInvariants(outputs []cycleOutput) *phase {
	p := &phase{name: "Phase 4: Alerting Invariants"}
	riskCfg := domain.DefaultRiskConfig()

	for i, out := range outputs {
		stagnation := hasCorrelation(out.correlations, domain.CorrelationStagnation)
		compound := hasCorrelation(out.correlations, domain.CorrelationCompoundRisk)
		shouldFire := out.assessment.Score >= riskCfg.ModerateAt || stagnation || compound

		if shouldFire && out.alert == nil {
			p.errorf("cycle %d (%s): score %d warrants an alert but none fired", i, out.assessment.LocationID, out.assessment.Score)
		}
		if !shouldFire && out.alert != nil {
			p.errorf("cycle %d (%s): alert %s fired at score %d without a qualifying correlation",
				i, out.assessment.LocationID, out.alert.ID, out.assessment.Score)
		}
		if out.alert != nil {
			if out.alert.Message == "" {
				p.errorf("cycle %d (%s): alert %s has empty message", i, out.assessment.LocationID, out.alert.ID)
			}
			if out.alert.RecommendedAction == "" {
				p.errorf("cycle %d (%s): alert %s has empty recommended action", i, out.assessment.LocationID, out.alert.ID)
			}
		}
	}
	return p
}

func hasCorrelation(events []domain.CorrelationEvent, t domain.CorrelationType) bool {
	for _, e := range events {
		if e.Type == t {
			return true
		}
	}
	return false
}

func printSummary(samples []domain.RawSample, outputs []cycleOutput) {
	stations := map[string]int{}
	levelCounts := map[domain.RiskLevel]int{}
	alerts := 0
	for i, out := range outputs {
		stations[samples[i].LocationID]++
		levelCounts[out.assessment.Level]++
		if out.alert != nil {
			alerts++
		}
	}

	names := make([]string, 0, len(stations))
	for name := range stations {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println()
	fmt.Printf("Samples: %d across %d stations\n", len(samples), len(stations))
	for _, name := range names {
		fmt.Printf("  %-24s %d cycles\n", name, stations[name])
	}
	fmt.Printf("Levels: Low=%d, Moderate=%d, High=%d, Critical=%d\n",
		levelCounts[domain.RiskLow], levelCounts[domain.RiskModerate],
		levelCounts[domain.RiskHigh], levelCounts[domain.RiskCritical])
	fmt.Printf("Alerts: %d\n", alerts)
}
