package backend

// fieldMap is the canonical-to-remote field name mapping. It is an
// immutable, compile-time constant table over a known closed key set,
// per the "dynamic field-name translation tables" design note — the
// original's request-time dynamic dict is replaced by this fixed map plus
// the bijection helpers below.
var fieldMap = map[string]string{
	"ticketId":         "u_number",
	"reporter":         "u_reporter",
	"source":           "u_source",
	"sourceDomainOrIp": "u_source_domain_or_ip",
	"closed":           "u_closed",
	"createdAt":        "sys_created_on",
	"closedAt":         "u_closed_date",
	"type":             "u_type",
	"target":           "u_target",
	"proxy":            "u_proxy_ip",
	"intentional":      "u_intentional",
	"info":             "u_info",
	"infoUrl":          "u_url_more_info",
	"limit":            "sysparm_limit",
	"offset":           "sysparm_offset",
	"createdStart":     "sys_created_on",
	"createdEnd":       "sys_created_on",
}

// remoteToCanonical is the inverse of fieldMap, built once at init. Because
// createdStart/createdEnd share sys_created_on with createdAt
// on the remote side, the inverse favors the single canonical name used for
// reporter-facing reads ("createdAt"); range params are write/query-only and
// never appear in a response body.
var remoteToCanonical = func() map[string]string {
	m := make(map[string]string, len(fieldMap))
	for k, v := range fieldMap {
		if k == "createdStart" || k == "createdEnd" {
			continue
		}
		m[v] = k
	}
	return m
}()

// toRemote translates a canonical key to its remote name. Unknown keys pass
// through untranslated, per invariant 4 (field-name translation is a
// bijection over the mapping table; unknown keys pass through untranslated).
func toRemote(key string) string {
	if v, ok := fieldMap[key]; ok {
		return v
	}
	return key
}

// toCanonical translates a remote key back to its canonical name. Unknown
// keys pass through untranslated.
func toCanonical(key string) string {
	if v, ok := remoteToCanonical[key]; ok {
		return v
	}
	return key
}
