package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from string
		to   string
		want bool
	}{
		// forward steps
		{StatusNew, StatusContacted, true},
		{StatusContacted, StatusInterested, true},
		{StatusInterested, StatusQualified, true},
		{StatusQualified, StatusConverted, true},
		{StatusQualified, StatusLost, true},

		// direct jumps are allowed
		{StatusNew, StatusQualified, true},
		{StatusNew, StatusConverted, true},
		{StatusNew, StatusLost, true},
		{StatusContacted, StatusConverted, true},

		// no going backwards
		{StatusContacted, StatusNew, false},
		{StatusQualified, StatusInterested, false},

		// terminal statuses can never be left
		{StatusConverted, StatusContacted, false},
		{StatusConverted, StatusLost, false},
		{StatusLost, StatusContacted, false},
		{StatusLost, StatusConverted, false},

		// self-transitions are not in the table
		{StatusNew, StatusNew, false},
		{StatusConverted, StatusConverted, false},

		// unknown states
		{"bogus", StatusContacted, false},
		{StatusNew, "bogus", false},
	}

	for _, tc := range tests {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTerminal(t *testing.T) {
	for _, status := range []string{StatusNew, StatusContacted, StatusInterested, StatusQualified} {
		if IsTerminal(status) {
			t.Errorf("IsTerminal(%q) = true, want false", status)
		}
	}
	for _, status := range []string{StatusConverted, StatusLost} {
		if !IsTerminal(status) {
			t.Errorf("IsTerminal(%q) = false, want true", status)
		}
	}
}

func TestDerivePhase(t *testing.T) {
	tests := []struct {
		name         string
		status       string
		contacted    bool
		currentPhase string
		want         string
	}{
		{"new lead", StatusNew, false, PhaseNewIntake, PhaseNewIntake},
		{"contacted lead", StatusContacted, true, PhaseNewIntake, PhaseFollowUp},
		{"interested before contact log", StatusInterested, false, PhaseNewIntake, PhaseNewIntake},
		{"qualified after contact", StatusQualified, true, PhaseFollowUp, PhaseFollowUp},
		{"lost goes to withdrawal", StatusLost, true, PhaseFollowUp, PhaseWithdrawal},
		{"converted keeps phase", StatusConverted, true, PhaseFollowUp, PhaseFollowUp},
		{"converted with empty phase", StatusConverted, true, "", PhaseFollowUp},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DerivePhase(tc.status, tc.contacted, tc.currentPhase)
			if got != tc.want {
				t.Errorf("DerivePhase(%q, %v, %q) = %q, want %q",
					tc.status, tc.contacted, tc.currentPhase, got, tc.want)
			}
		})
	}
}

func TestValidateStateCombination(t *testing.T) {
	tests := []struct {
		status   string
		phase    string
		wantFail bool
	}{
		{StatusLost, PhaseWithdrawal, false},
		{StatusLost, PhaseFollowUp, true},
		{StatusContacted, PhaseWithdrawal, true},
		{StatusNew, PhaseNewIntake, false},
		{StatusNew, PhaseFollowUp, true},
		{StatusQualified, PhaseFollowUp, false},
		{StatusConverted, PhaseFollowUp, false},
	}

	for _, tc := range tests {
		reason := ValidateStateCombination(tc.status, tc.phase)
		if tc.wantFail && reason == "" {
			t.Errorf("ValidateStateCombination(%q, %q) should have returned a reason", tc.status, tc.phase)
		}
		if !tc.wantFail && reason != "" {
			t.Errorf("ValidateStateCombination(%q, %q) unexpected reason: %s", tc.status, tc.phase, reason)
		}
	}
}
