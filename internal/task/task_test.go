package task

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusAssigned, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusInProgress, false},
		{StatusAssigned, StatusInProgress, true},
		{StatusAssigned, StatusPending, true},
		{StatusAssigned, StatusCancelled, true},
		{StatusInProgress, StatusAwaitingVerification, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusCancelled, false},
		{StatusAwaitingVerification, StatusCompleted, true},
		{StatusAwaitingVerification, StatusFailed, true},
		{StatusAwaitingVerification, StatusPending, false},
		{StatusCompleted, StatusPending, false},
		{StatusFailed, StatusAssigned, false},
		{StatusCancelled, StatusAssigned, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	active := []Status{StatusPending, StatusAssigned, StatusInProgress, StatusAwaitingVerification}
	for _, s := range active {
		if s.IsTerminal() {
			t.Errorf("expected %s not to be terminal", s)
		}
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{"low", PriorityLow, false},
		{"medium", PriorityMedium, false},
		{"high", PriorityHigh, false},
		{"critical", PriorityCritical, false},
		{"urgent", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParsePriority(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePriority(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParsePriority(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParseVerificationLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    VerificationLevel
		wantErr bool
	}{
		{"", VerificationNone, false},
		{"none", VerificationNone, false},
		{"basic", VerificationBasic, false},
		{"standard", VerificationStandard, false},
		{"comprehensive", VerificationComprehensive, false},
		{"paranoid", VerificationNone, true},
	}
	for _, tt := range tests {
		got, err := ParseVerificationLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVerificationLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if err == nil && got != tt.want {
			t.Errorf("ParseVerificationLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVerifiable(t *testing.T) {
	plain := &Task{Description: "x"}
	if plain.Verifiable() {
		t.Error("task without spec should not be verifiable")
	}

	none := &Task{Description: "x", Verification: &VerificationSpec{OriginalGoal: "g", Level: VerificationNone}}
	if none.Verifiable() {
		t.Error("level none should not be verifiable")
	}

	basic := &Task{Description: "x", Verification: &VerificationSpec{OriginalGoal: "g", Level: VerificationBasic}}
	if !basic.Verifiable() {
		t.Error("level basic should be verifiable")
	}
}

func TestCloneIsDeep(t *testing.T) {
	orig := &Task{
		ID:          "task-1",
		Description: "original",
		Verification: &VerificationSpec{
			OriginalGoal:    "the goal",
			SuccessCriteria: []string{"criterion"},
			Level:           VerificationStandard,
		},
		Result: &Result{Output: "out", Artifacts: map[string]string{"a": "1"}},
	}

	clone := orig.Clone()
	clone.Verification.SuccessCriteria[0] = "mutated"
	clone.Result.Artifacts["a"] = "mutated"

	if orig.Verification.SuccessCriteria[0] != "criterion" {
		t.Error("clone shares success criteria with original")
	}
	if orig.Result.Artifacts["a"] != "1" {
		t.Error("clone shares artifacts with original")
	}
}
