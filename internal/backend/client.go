// Package backend is the stateless HTTP client facade for the remote
// ticketing backend. It owns field-name translation, URL-parameter
// construction (including range operators for date filters), POST-payload
// construction, pagination-link synthesis and per-call timeouts — the
// shape is adapted from the teacher's scanner_client.go newRequest/doJSON
// helpers, generalized from one third-party API to the ticket table's
// sys_id-addressed resource model.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// TicketTable is the remote table name for abuse tickets.
const TicketTable = "u_dcu_ticket"

// Response is the decoded result of a backend call: status code, a few
// headers the engine cares about, and the raw body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// API is the Backend Adapter's capability surface, satisfied by *Client.
// The Ticket Engine depends on this interface rather than the concrete
// type so a test double can stand in for the remote ticketing backend.
type API interface {
	GetRequest(ctx context.Context, path string) (*Response, error)
	PostRequest(ctx context.Context, path string, jsonBody []byte) (*Response, error)
	PatchRequest(ctx context.Context, path string, jsonBody []byte) (*Response, error)
	ResolveSysID(ctx context.Context, ticketId string) (string, error)
}

var _ API = (*Client)(nil)

// Client is a stateless HTTPS client against the remote ticketing backend.
// A new http.Client is not created per call (the underlying transport is
// pooled and safe for concurrent use, same as the teacher's httpScannerClient),
// but every call opens its own bounded-timeout context.
type Client struct {
	baseURL string
	user    string
	pass    string
	timeout time.Duration
	http    *http.Client
}

// NewClient constructs a ready-to-use backend Client.
func NewClient(baseURL, user, pass string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		user:    user,
		pass:    pass,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
	}
}

// GetRequest issues an authenticated GET against path (which must begin
// with "/").
func (c *Client) GetRequest(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// PostRequest issues an authenticated POST with jsonBody against path.
func (c *Client) PostRequest(ctx context.Context, path string, jsonBody []byte) (*Response, error) {
	return c.do(ctx, http.MethodPost, path, jsonBody)
}

// PatchRequest issues an authenticated PATCH with jsonBody against path.
func (c *Client) PatchRequest(ctx context.Context, path string, jsonBody []byte) (*Response, error) {
	return c.do(ctx, http.MethodPatch, path, jsonBody)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.SetBasicAuth(c.user, c.pass)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: http do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("backend: read body: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Headers: resp.Header, Body: raw}, nil
}

// ResolveSysID looks up the remote sys_id for a ticketId, needed to address
// the PATCH endpoint of UpdateTicket. Mirrors the original's _get_sys_id
// helper, kept as its own Backend Adapter operation rather than inlined
// into the engine.
func (c *Client) ResolveSysID(ctx context.Context, ticketId string) (string, error) {
	path := fmt.Sprintf("/%s?u_number=%s", TicketTable, url.QueryEscape(ticketId))
	resp, err := c.GetRequest(ctx, path)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("backend: resolve sys_id: unexpected status %d", resp.StatusCode)
	}

	var decoded struct {
		Result []map[string]interface{} `json:"result"`
	}
	if err := json.Unmarshal(resp.Body, &decoded); err != nil {
		return "", fmt.Errorf("backend: resolve sys_id: decode: %w", err)
	}
	if len(decoded.Result) == 0 {
		return "", fmt.Errorf("backend: no records found for %s", ticketId)
	}
	sysID, _ := decoded.Result[0]["sys_id"].(string)
	if sysID == "" {
		return "", fmt.Errorf("backend: sys_id missing for %s", ticketId)
	}
	return sysID, nil
}

// CreatePostPayload rewrites keys of canonical via the canonical-to-remote
// mapping; unknown keys pass through verbatim, values are serialized as-is.
func CreatePostPayload(canonical map[string]interface{}) ([]byte, error) {
	remote := make(map[string]interface{}, len(canonical))
	for k, v := range canonical {
		remote[toRemote(k)] = v
	}
	return json.Marshal(remote)
}

// CreateURLParameters rewrites keys of canonical via the same mapping;
// operator is "=" by default, ">=" for createdStart, "<=" for createdEnd.
// The result is prefixed with "?" and fields are "&"-joined. Empty input
// yields the empty string.
func CreateURLParameters(canonical map[string]interface{}) string {
	if len(canonical) == 0 {
		return ""
	}
	parts := make([]string, 0, len(canonical))
	for k, v := range canonical {
		operator := "="
		switch k {
		case "createdStart":
			operator = ">="
		case "createdEnd":
			operator = "<="
		}
		parts = append(parts, fmt.Sprintf("%s%s%v", toRemote(k), operator, v))
	}
	return "?" + strings.Join(parts, "&")
}

// CreateParamQuery emits a sysparm_query fragment selecting on a creation
// date range, using the ServiceNow-style date-generator expression, with
// 00:00:00 as the low time and 23:59:59 as the high time. It emits
// BETWEEN low@high when both bounds are present, >=low or <=high when only
// one is, and the empty string when neither is.
func CreateParamQuery(createdStart, createdEnd string) string {
	const jsgen = "javascript:gs.dateGenerate('%s','%s')"
	const early = "00:00:00"
	const late = "23:59:59"

	switch {
	case createdStart != "" && createdEnd != "":
		low := fmt.Sprintf(jsgen, createdStart, early)
		high := fmt.Sprintf(jsgen, createdEnd, late)
		return fmt.Sprintf("&sysparm_query=sys_created_onBETWEEN%s@%s^ORDERBYDESCu_number", low, high)
	case createdStart != "":
		low := fmt.Sprintf(jsgen, createdStart, early)
		return fmt.Sprintf("&sysparm_query=sys_created_on>=%s^ORDERBYDESCu_number", low)
	case createdEnd != "":
		high := fmt.Sprintf(jsgen, createdEnd, late)
		return fmt.Sprintf("&sysparm_query=sys_created_on<=%s^ORDERBYDESCu_number", high)
	default:
		return ""
	}
}

// CreatePaginationLinks implements the Enterprise Standards pagination
// algorithm. The off-by-one when total is an exact multiple of limit is
// preserved verbatim per §9's open question — it is not a bug to be fixed
// here, it is a contract prior revisions have relied on.
func CreatePaginationLinks(offset, limit, total int) Pagination {
	p := Pagination{Limit: limit, Total: total, FirstOffset: 0}

	if offset > 0 {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		p.PreviousOffset = &prev
	}

	next := offset + limit
	last := (total / limit) * limit

	if total > next {
		n := next
		p.NextOffset = &n
	}

	if total%limit == 0 {
		last -= limit
	}

	if next < last || total <= next {
		l := last
		p.LastOffset = &l
	}

	return p
}

// Pagination mirrors the remote backend's pagination-link contract.
type Pagination struct {
	Limit          int
	Total          int
	FirstOffset    int
	PreviousOffset *int
	NextOffset     *int
	LastOffset     *int
}

// TotalCountFromHeader parses the x-total-count response header, if present.
func TotalCountFromHeader(h http.Header) (int, bool) {
	v := h.Get("X-Total-Count")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
