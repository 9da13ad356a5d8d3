package main

import (
	"strings"
	"testing"
)

func TestOutcome(t *testing.T) {
	if got := outcome("bfgs", true, false); !strings.Contains(got, "(* bfgs)") {
		t.Errorf("solved outcome = %q, want solving method", got)
	}
	if got := outcome("", false, true); !strings.Contains(got, "interrupted") {
		t.Errorf("interrupted outcome = %q", got)
	}
	if got := outcome("", false, false); !strings.Contains(got, "not solved") {
		t.Errorf("unsolved outcome = %q", got)
	}
}
