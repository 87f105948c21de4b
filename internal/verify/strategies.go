package verify

import (
	"fmt"
	"strings"
	"unicode"

	"hivekit/internal/task"
)

// Strategy is one verification check. Strategies are pure functions of
// the verifier input: same input, same score.
type Strategy interface {
	// Name identifies the strategy in reports and logs.
	Name() string

	// Evaluate scores the input in [0, 1] and reports any defects found.
	Evaluate(in Input) (float64, []Discrepancy)
}

// strategiesFor maps a verification level to the checks it runs.
// Comprehensive additionally runs the whole set twice; the coordinator
// handles that.
func strategiesFor(level task.VerificationLevel) []Strategy {
	switch level {
	case task.VerificationBasic:
		return []Strategy{goalAlignment{}}
	case task.VerificationStandard:
		return []Strategy{goalAlignment{}, qualityCheck{}}
	case task.VerificationComprehensive:
		return []Strategy{goalAlignment{}, qualityCheck{}, artifactCheck{}, processCheck{}}
	default:
		return nil
	}
}

// goalAlignment measures how much of the goal and success criteria the
// output actually addresses, by token coverage. It is deliberately
// blind to everything except the submitted goal and the output.
type goalAlignment struct{}

func (goalAlignment) Name() string { return "goal_alignment" }

func (goalAlignment) Evaluate(in Input) (float64, []Discrepancy) {
	outputTokens := tokenSet(in.Output)
	if len(outputTokens) == 0 {
		return 0, []Discrepancy{{
			Description: "output is empty",
			Severity:    SeverityCritical,
			Expected:    in.OriginalGoal,
		}}
	}

	goalTokens := tokenSet(in.OriginalGoal)
	var discrepancies []Discrepancy

	score := coverage(goalTokens, outputTokens)

	// Each unaddressed criterion drags the score down and is reported
	// individually.
	for _, criterion := range in.SuccessCriteria {
		c := coverage(tokenSet(criterion), outputTokens)
		if c < 0.25 {
			discrepancies = append(discrepancies, Discrepancy{
				Description: "success criterion not addressed",
				Severity:    SeverityMajor,
				Expected:    criterion,
			})
		}
		score = (score + c) / 2
	}

	if score < 0.2 && len(discrepancies) == 0 {
		discrepancies = append(discrepancies, Discrepancy{
			Description: "output does not address the goal",
			Severity:    SeverityCritical,
			Expected:    in.OriginalGoal,
			Actual:      clip(in.Output, 120),
		})
	}
	return score, discrepancies
}

// qualityCheck applies workmanship heuristics to the output.
type qualityCheck struct{}

func (qualityCheck) Name() string { return "quality" }

var defectMarkers = []string{"todo", "fixme", "not implemented", "placeholder", "xxx"}

func (qualityCheck) Evaluate(in Input) (float64, []Discrepancy) {
	out := strings.TrimSpace(in.Output)
	if out == "" {
		return 0, []Discrepancy{{
			Description: "output is empty",
			Severity:    SeverityCritical,
		}}
	}

	score := 1.0
	var discrepancies []Discrepancy

	lower := strings.ToLower(out)
	for _, marker := range defectMarkers {
		if strings.Contains(lower, marker) {
			score -= 0.2
			discrepancies = append(discrepancies, Discrepancy{
				Description: fmt.Sprintf("output contains unfinished-work marker %q", marker),
				Severity:    SeverityMajor,
				Actual:      marker,
			})
		}
	}

	// An output much shorter than its own goal statement rarely
	// delivers the work.
	if len(out) < len(in.OriginalGoal)/2 {
		score -= 0.3
		discrepancies = append(discrepancies, Discrepancy{
			Description: "output is substantially shorter than the goal statement",
			Severity:    SeverityMinor,
			Actual:      clip(out, 120),
		})
	}

	if score < 0 {
		score = 0
	}
	return score, discrepancies
}

// artifactCheck verifies that declared artifacts carry content.
type artifactCheck struct{}

func (artifactCheck) Name() string { return "artifacts" }

func (artifactCheck) Evaluate(in Input) (float64, []Discrepancy) {
	if len(in.Artifacts) == 0 {
		return 1, nil
	}

	score := 1.0
	var discrepancies []Discrepancy
	for name, content := range in.Artifacts {
		if strings.TrimSpace(content) == "" {
			score -= 0.25
			discrepancies = append(discrepancies, Discrepancy{
				Description: fmt.Sprintf("artifact %q is empty", name),
				Severity:    SeverityMajor,
				Expected:    name,
			})
		}
	}
	if score < 0 {
		score = 0
	}
	return score, discrepancies
}

// processCheck sanity-checks the execution against its estimate.
type processCheck struct{}

func (processCheck) Name() string { return "process" }

func (processCheck) Evaluate(in Input) (float64, []Discrepancy) {
	if in.EstimatedDuration <= 0 || in.Duration <= 0 {
		return 1, nil
	}

	ratio := float64(in.Duration) / float64(in.EstimatedDuration)
	switch {
	case ratio < 0.01:
		return 0.5, []Discrepancy{{
			Description: "execution finished implausibly fast for the estimate",
			Severity:    SeverityMajor,
			Expected:    in.EstimatedDuration.String(),
			Actual:      in.Duration.String(),
		}}
	case ratio > 3:
		return 0.8, []Discrepancy{{
			Description: "execution ran far over its estimate",
			Severity:    SeverityMinor,
			Expected:    in.EstimatedDuration.String(),
			Actual:      in.Duration.String(),
		}}
	default:
		return 1, nil
	}
}

// stopwords carry no signal for goal coverage.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "that": true, "with": true,
	"this": true, "from": true, "are": true, "was": true, "were": true,
	"will": true, "should": true, "must": true, "has": true, "have": true,
	"not": true, "all": true, "its": true, "into": true, "when": true,
}

// tokenSet splits text into a set of lowercase word tokens, dropping
// stopwords and words shorter than three characters.
func tokenSet(text string) map[string]bool {
	tokens := make(map[string]bool)
	var b strings.Builder
	flush := func() {
		if b.Len() >= 3 {
			w := b.String()
			if !stopwords[w] {
				tokens[w] = true
			}
		}
		b.Reset()
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// coverage returns the fraction of want tokens present in have.
func coverage(want, have map[string]bool) float64 {
	if len(want) == 0 {
		return 1
	}
	hits := 0
	for w := range want {
		if have[w] {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

// clip truncates text for inclusion in a discrepancy.
func clip(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}
