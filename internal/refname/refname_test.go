package refname

import "testing"

func TestValidateAgentKeyAcceptsExpectedValues(t *testing.T) {
	for _, key := range []string{"claude", "codex_1", "agent-A"} {
		if err := ValidateAgentKey(key); err != nil {
			t.Errorf("ValidateAgentKey(%q) = %v, want nil", key, err)
		}
	}
}

func TestValidateAgentKeyRejectsInvalidValues(t *testing.T) {
	cases := []struct {
		key  string
		rule string
	}{
		{"", "empty"},
		{"bad key", "invalid_char"},
		{"../oops", "invalid_char"},
	}
	for _, c := range cases {
		err := ValidateAgentKey(c.key)
		rerr, ok := err.(*Error)
		if !ok || rerr.Rule != c.rule {
			t.Errorf("ValidateAgentKey(%q) = %v, want rule %q", c.key, err, c.rule)
		}
	}
}

func TestValidateBranchNameAcceptsExpectedValues(t *testing.T) {
	for _, b := range []string{
		"hydra/run/agent/claude",
		"feature/harden-timeouts",
		"release/v1.2.3",
	} {
		if err := ValidateBranchName(b); err != nil {
			t.Errorf("ValidateBranchName(%q) = %v, want nil", b, err)
		}
	}
}

func TestValidateBranchNameRejectsUnsafePatterns(t *testing.T) {
	cases := []struct {
		branch string
		rule   string
	}{
		{"", "empty"},
		{"/leading/slash", "starts_with_slash"},
		{"trailing/slash/", "ends_with_slash"},
		{"nested//slash", "repeated_slash"},
		{"bad/../path", "parent_traversal"},
		{"heads/main@{1}", "reflog_syntax"},
		{"refs/main.lock", "lock_suffix"},
		{"refs/.hidden", "hidden_segment"},
		{"refs/main.", "trailing_dot_segment"},
		{"refs/contains space", "invalid_char"},
	}
	for _, c := range cases {
		err := ValidateBranchName(c.branch)
		rerr, ok := err.(*Error)
		if !ok || rerr.Rule != c.rule {
			t.Errorf("ValidateBranchName(%q) = %v, want rule %q", c.branch, err, c.rule)
		}
	}
}

func TestValidateBranchNameRejectsTooLong(t *testing.T) {
	long := make([]byte, MaxBranchNameLen+1)
	for i := range long {
		long[i] = 'a'
	}
	err := ValidateBranchName(string(long))
	rerr, ok := err.(*Error)
	if !ok || rerr.Rule != "too_long" {
		t.Errorf("ValidateBranchName(long) = %v, want rule too_long", err)
	}
}
