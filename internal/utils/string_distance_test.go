package utils

import "testing"

func TestComputeDistanceIdentical(t *testing.T) {
	if d := ComputeDistance("claude_cli", "claude_cli"); d != 0 {
		t.Errorf("ComputeDistance(same, same) = %d, want 0", d)
	}
}

func TestComputeDistanceIsCaseInsensitive(t *testing.T) {
	if d := ComputeDistance("Claude_CLI", "claude_cli"); d != 0 {
		t.Errorf("ComputeDistance(mixed case) = %d, want 0", d)
	}
}

func TestComputeDistanceCountsEdits(t *testing.T) {
	if d := ComputeDistance("calude_cli", "claude_cli"); d != 2 {
		t.Errorf("ComputeDistance(typo) = %d, want 2", d)
	}
}
