package capability

import (
	"math"
	"testing"

	"hivekit/internal/errors"
)

func TestCapabilityValidate(t *testing.T) {
	tests := []struct {
		name    string
		cap     Capability
		wantErr bool
	}{
		{"valid", Capability{Name: "code-review", Proficiency: 0.7, LearningRate: 0.1}, false},
		{"zero proficiency", Capability{Name: "testing", Proficiency: 0, LearningRate: 0}, false},
		{"max proficiency", Capability{Name: "testing", Proficiency: 1, LearningRate: 1}, false},
		{"empty name", Capability{Proficiency: 0.5}, true},
		{"proficiency too high", Capability{Name: "x", Proficiency: 1.1}, true},
		{"negative proficiency", Capability{Name: "x", Proficiency: -0.1}, true},
		{"learning rate too high", Capability{Name: "x", Proficiency: 0.5, LearningRate: 1.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cap.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errors.ErrInvalidInput) {
				t.Errorf("expected validation errors to wrap ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestCapabilityLearn(t *testing.T) {
	tests := []struct {
		name    string
		cap     Capability
		quality float64
		want    float64
	}{
		{"improves toward quality", Capability{Name: "x", Proficiency: 0.5, LearningRate: 0.2}, 1.0, 0.6},
		{"degrades toward quality", Capability{Name: "x", Proficiency: 0.8, LearningRate: 0.5}, 0.4, 0.6},
		{"zero rate is static", Capability{Name: "x", Proficiency: 0.5, LearningRate: 0}, 1.0, 0.5},
		{"full rate jumps to quality", Capability{Name: "x", Proficiency: 0.3, LearningRate: 1}, 0.9, 0.9},
		{"at quality stays put", Capability{Name: "x", Proficiency: 0.7, LearningRate: 0.3}, 0.7, 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.cap.Proficiency
			got := tt.cap.Learn(tt.quality)
			if math.Abs(got.Proficiency-tt.want) > 1e-9 {
				t.Errorf("Learn(%g) proficiency = %g, want %g", tt.quality, got.Proficiency, tt.want)
			}
			if tt.cap.Proficiency != before {
				t.Error("Learn mutated receiver")
			}
		})
	}
}

func TestRequirementScore(t *testing.T) {
	req := Requirement{Name: "testing", MinProficiency: 0.6}

	tests := []struct {
		proficiency float64
		want        float64
	}{
		{0.6, 1.0}, // exactly at minimum
		{0.9, 1.0}, // above minimum caps at 1
		{0.3, 0.5}, // half the minimum
		{0.0, 0.0}, // no skill
	}

	for _, tt := range tests {
		got := req.Score(tt.proficiency)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Score(%g) = %g, want %g", tt.proficiency, got, tt.want)
		}
	}
}

func TestRequirementValidate(t *testing.T) {
	if err := (Requirement{Name: "x", MinProficiency: 0.5}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Requirement{Name: "x", MinProficiency: 0}).Validate(); err == nil {
		t.Error("expected error for zero min proficiency")
	}
	if err := (Requirement{MinProficiency: 0.5}).Validate(); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestSet(t *testing.T) {
	set := NewSet([]Capability{
		{Name: "coding", Proficiency: 0.8},
		{Name: "review", Proficiency: 0.4},
	})

	if !set.Has("coding") {
		t.Error("expected set to contain coding")
	}
	if set.Has("design") {
		t.Error("did not expect set to contain design")
	}
	if got := set.Proficiency("review"); got != 0.4 {
		t.Errorf("Proficiency(review) = %g, want 0.4", got)
	}
	if got := set.Proficiency("missing"); got != 0 {
		t.Errorf("Proficiency(missing) = %g, want 0", got)
	}

	clone := set.Clone()
	clone["coding"] = Capability{Name: "coding", Proficiency: 0.1}
	if set.Proficiency("coding") != 0.8 {
		t.Error("mutating clone changed original set")
	}
}

func TestRegistryOpenByDefault(t *testing.T) {
	r, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}
	if !r.Allowed("anything-goes") {
		t.Error("empty registry should allow any non-empty name")
	}
	if r.Allowed("") {
		t.Error("empty name must never be allowed")
	}
}

func TestRegistryAllowList(t *testing.T) {
	r, err := NewRegistry([]string{"code.*", "review"})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	tests := []struct {
		name    string
		allowed bool
	}{
		{"code.generation", true},
		{"code.refactor", true},
		{"review", true},
		{"design", false},
		{"reviewing", false},
	}
	for _, tt := range tests {
		if got := r.Allowed(tt.name); got != tt.allowed {
			t.Errorf("Allowed(%q) = %v, want %v", tt.name, got, tt.allowed)
		}
	}

	if err := r.Check("design"); err == nil {
		t.Error("expected Check to reject disallowed name")
	}
}

func TestRegistryInvalidPattern(t *testing.T) {
	if _, err := NewRegistry([]string{"[unclosed"}); err == nil {
		t.Error("expected error for invalid glob pattern")
	}
}

func TestRegistryKnownCatalog(t *testing.T) {
	r, _ := NewRegistry(nil)

	r.Record("review")
	r.Record("coding")
	r.Record("coding")

	known := r.Known()
	if len(known) != 2 || known[0] != "coding" || known[1] != "review" {
		t.Errorf("Known() = %v, want [coding review]", known)
	}

	r.Forget("coding")
	if len(r.Known()) != 2 {
		t.Error("coding still referenced, should remain known")
	}
	r.Forget("coding")
	known = r.Known()
	if len(known) != 1 || known[0] != "review" {
		t.Errorf("Known() after forget = %v, want [review]", known)
	}
}
