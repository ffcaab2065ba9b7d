package backend

import "testing"

func TestToRemoteToCanonicalBijection(t *testing.T) {
	for canonical, remote := range fieldMap {
		if got := toRemote(canonical); got != remote {
			t.Errorf("toRemote(%q) = %q, want %q", canonical, got, remote)
		}
		if canonical == "createdStart" || canonical == "createdEnd" {
			continue
		}
		if got := toCanonical(remote); got != canonical {
			t.Errorf("toCanonical(%q) = %q, want %q", remote, got, canonical)
		}
	}
}

func TestUnknownKeysPassThrough(t *testing.T) {
	if got := toRemote("sysparm_fields"); got != "sysparm_fields" {
		t.Errorf("toRemote passthrough failed: got %q", got)
	}
	if got := toCanonical("totally_unknown"); got != "totally_unknown" {
		t.Errorf("toCanonical passthrough failed: got %q", got)
	}
}
