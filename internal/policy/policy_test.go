package policy

import "testing"

func TestNormalizeSubdomainCollapsesWWW(t *testing.T) {
	if NormalizeSubdomain("www.abc.com") != NormalizeSubdomain("abc.com") {
		t.Fatal("www.abc.com and abc.com should collapse to the same bucket")
	}
}

func TestIsUserGenDomainMatchesSuffix(t *testing.T) {
	domains := []string{"wix.com", "joomla.com"}
	if !IsUserGenDomain(domains, "mystore.wix.com") {
		t.Fatal("expected subdomain of a user-gen platform to match")
	}
	if IsUserGenDomain(domains, "example.com") {
		t.Fatal("unrelated domain should not match")
	}
}

func TestIsTrustedAndExemptReporter(t *testing.T) {
	trusted := map[string]string{"Sucuri": "198103515"}
	if !IsTrustedReporter(trusted, "198103515") {
		t.Fatal("expected reporter ID to be trusted")
	}
	if IsTrustedReporter(trusted, "") {
		t.Fatal("empty reporter ID must never be trusted")
	}
	if IsTrustedReporter(trusted, "000000") {
		t.Fatal("unknown reporter ID must not be trusted")
	}
}

func TestCapReachedIsExactEquality(t *testing.T) {
	if CapReached(4) {
		t.Fatal("4 open incidents must not reach the cap")
	}
	if !CapReached(5) {
		t.Fatal("5 open incidents must reach the cap")
	}
}
