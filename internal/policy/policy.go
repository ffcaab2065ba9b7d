// Package policy holds the pure admission rules applied before a ticket is
// created or updated: reporter trust/exemption, user-generated-content
// domain detection and the open-incident domain cap. None of these
// functions perform I/O themselves; the engine supplies whatever store
// lookups they need.
package policy

import "strings"

// IsTrustedReporter reports whether reporterID appears in the configured
// trusted-reporter table, keyed by reporter name (e.g. "Sucuri", "DBP").
func IsTrustedReporter(trusted map[string]string, reporterID string) bool {
	return containsValue(trusted, reporterID)
}

// IsExemptReporter reports whether reporterID is exempt from the domain cap.
func IsExemptReporter(exempt map[string]string, reporterID string) bool {
	return containsValue(exempt, reporterID)
}

func containsValue(m map[string]string, id string) bool {
	if id == "" {
		return false
	}
	for _, v := range m {
		if v == id {
			return true
		}
	}
	return false
}

// NormalizeSubdomain lowercases domain and strips a leading "www." so that
// www.example.com and example.com fall into the same domain-cap bucket.
func NormalizeSubdomain(domain string) string {
	return strings.TrimPrefix(strings.ToLower(domain), "www.")
}

// IsUserGenDomain reports whether domain (after subdomain normalization) is
// hosted on a known user-generated-content platform, meaning the true
// offender is a third-party account rather than the platform itself.
func IsUserGenDomain(userGenDomains []string, domain string) bool {
	normalized := NormalizeSubdomain(domain)
	for _, d := range userGenDomains {
		if normalized == d || strings.HasSuffix(normalized, "."+d) {
			return true
		}
	}
	return false
}

// DomainCap is the maximum number of non-CLOSED incidents permitted on a
// single (type, subdomain-or-domain) bucket before new admissions are
// rejected (invariant 3).
const DomainCap = 5

// CapReached reports whether openCount, the result of the domain-cap
// incident-store query, has reached DomainCap exactly. The store caps that
// count at the limit it is given (DomainCap), so openCount does not exceed
// DomainCap; the equality check (rather than >=) is deliberate and matches
// the reference count check.
func CapReached(openCount int) bool {
	return openCount == DomainCap
}
