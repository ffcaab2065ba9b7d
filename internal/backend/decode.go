package backend

import (
	"encoding/json"
	"fmt"
	"strings"
)

// resultEnvelope is the shape every list/item read returns: {"result": ...}.
type resultEnvelope struct {
	Result json.RawMessage `json:"result"`
}

// DecodeResultList decodes a list-shaped {"result": [...]}  response into
// one canonical map per record.
func DecodeResultList(body []byte) ([]map[string]interface{}, error) {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("backend: decode envelope: %w", err)
	}
	var raw []map[string]interface{}
	if err := json.Unmarshal(env.Result, &raw); err != nil {
		return nil, fmt.Errorf("backend: decode result list: %w", err)
	}
	out := make([]map[string]interface{}, len(raw))
	for i, rec := range raw {
		out[i] = CanonicalizeRecord(rec)
	}
	return out, nil
}

// DecodeResultOne decodes an item-shaped {"result": {...}} response, or the
// first element when result is itself a single-element list (both shapes
// are returned by the remote backend depending on the endpoint).
func DecodeResultOne(body []byte) (map[string]interface{}, error) {
	var env resultEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("backend: decode envelope: %w", err)
	}

	var one map[string]interface{}
	if err := json.Unmarshal(env.Result, &one); err == nil {
		return CanonicalizeRecord(one), nil
	}

	var many []map[string]interface{}
	if err := json.Unmarshal(env.Result, &many); err != nil {
		return nil, fmt.Errorf("backend: decode result: %w", err)
	}
	if len(many) == 0 {
		return nil, nil
	}
	return CanonicalizeRecord(many[0]), nil
}

// CanonicalizeRecord rewrites a remote record's keys to their canonical
// names and normalizes the remote "true"/"false" string encoding of
// u_closed into a real boolean under the canonical "closed" key.
func CanonicalizeRecord(remote map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(remote))
	for k, v := range remote {
		ck := toCanonical(k)
		if ck == "closed" {
			if s, ok := v.(string); ok {
				v = strings.Contains(strings.ToLower(s), "true")
			}
		}
		out[ck] = v
	}
	return out
}
