package ticket

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gdsec-test/dcu-phishstory-service/internal/backend"
	"github.com/gdsec-test/dcu-phishstory-service/internal/config"
	"github.com/gdsec-test/dcu-phishstory-service/internal/policy"
	"github.com/gdsec-test/dcu-phishstory-service/internal/queue"
	"github.com/gdsec-test/dcu-phishstory-service/internal/store"
)

// Engine is the ticket admission and lifecycle engine: it composes the
// Backend Adapter, Incident Store Adapter, Task Publisher and Policy
// Module into the five operations the transport layer calls.
type Engine struct {
	backend   backend.API
	store     store.Store
	publisher queue.Publisher
	cfg       config.Config
}

// NewEngine wires the Ticket Engine's dependencies together.
func NewEngine(b backend.API, s store.Store, p queue.Publisher, cfg config.Config) *Engine {
	return &Engine{backend: b, store: s, publisher: p, cfg: cfg}
}

// CreateTicket admits a new abuse report: duplicate check, domain-cap
// check, remote create, local persist, queue publish — in that exact
// order, with degraded mode suppressing every step after the remote POST.
func (e *Engine) CreateTicket(ctx context.Context, args CreateArgs) (string, error) {
	if !IsSupportedType(args.Type) {
		return "", invalidArgument(fmt.Sprintf("unsupported type %q", args.Type))
	}

	reclassifiedFrom := args.reclassifiedFrom()
	isDup, dupIds, err := e.CheckDuplicate(ctx, args.Source, reclassifiedFrom)
	if err != nil {
		return "", err
	}

	degraded := e.cfg.DatabaseImpacted
	trusted := policy.IsTrustedReporter(e.cfg.TrustedReporters, args.Reporter)

	if isDup {
		if !degraded {
			if args.ReporterEmail != "" {
				if ackErr := e.store.AddEmailAck(ctx, EmailAck{Source: args.Source, Email: args.ReporterEmail, Created: nowFunc()}); ackErr != nil {
					return "", internal("persist email ack", ackErr)
				}
			} else if trusted && len(dupIds) > 0 {
				for _, id := range dupIds {
					if updErr := e.store.UpdateIncident(ctx, id, func(inc *Incident) error {
						inc.AbuseVerified = true
						return nil
					}); updErr != nil {
						return "", internal("flag abuseVerified on duplicate", updErr)
					}
				}
			}
		}
		return "", alreadyExists("existing open ticket")
	}

	if !degraded && !trusted {
		reached, capErr := e.domainCapReached(ctx, args.Type, args.Reporter, args.SourceSubDomain, args.SourceDomainOrIp)
		if capErr != nil {
			return "", internal("domain cap check", capErr)
		}
		if reached {
			return "", resourceExhausted("domain cap reached")
		}
	}

	payload, err := backend.CreatePostPayload(map[string]interface{}{
		"type":             string(args.Type),
		"source":           args.Source,
		"sourceDomainOrIp": args.SourceDomainOrIp,
		"target":           args.Target,
		"proxy":            args.Proxy,
		"reporter":         args.Reporter,
		"info":             args.Info,
		"infoUrl":          args.InfoUrl,
		"intentional":      args.Intentional,
	})
	if err != nil {
		return "", internal("build create payload", err)
	}

	resp, err := e.backend.PostRequest(ctx, "/"+backend.TicketTable, payload)
	if err != nil {
		return "", internal("remote create", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return "", internal(fmt.Sprintf("remote create: unexpected status %d", resp.StatusCode), nil)
	}

	created, err := backend.DecodeResultOne(resp.Body)
	if err != nil {
		return "", internal("decode create response", err)
	}
	ticketId, _ := created["ticketId"].(string)
	if ticketId == "" {
		return "", internal("remote create: missing ticketId in response", nil)
	}

	if !degraded {
		projection := Incident{
			TicketId:         ticketId,
			Type:             args.Type,
			Source:           args.Source,
			SourceDomainOrIp: args.SourceDomainOrIp,
			SourceSubDomain:  args.SourceSubDomain,
			Target:           args.Target,
			Proxy:            args.Proxy,
			Reporter:         args.Reporter,
			Metadata:         args.Metadata,
			PhishstoryStatus: StatusOpen,
			AbuseVerified:    trusted,
		}
		if args.Info != "" {
			projection.Evidence = &Evidence{Snow: true}
		}

		if err := e.store.AddIncident(ctx, projection); err != nil {
			return "", internal("persist incident", err)
		}
		if args.ReporterEmail != "" {
			if err := e.store.AddEmailAck(ctx, EmailAck{Source: args.Source, Email: args.ReporterEmail, Created: nowFunc()}); err != nil {
				return "", internal("persist email ack", err)
			}
		}

		e.publisher.PublishMiddleware(ctx, middlewareProjection(projection))
	}

	return ticketId, nil
}

// domainCapReached implements the Policy Module's domainCapReached,
// delegating the count query to the Incident Store.
func (e *Engine) domainCapReached(ctx context.Context, t Type, reporter, subdomain, domain string) (bool, error) {
	if t == TypeContent {
		return false, nil
	}
	if subdomain == "" && domain == "" {
		return false, nil
	}
	if policy.IsExemptReporter(e.cfg.ExemptReporters, reporter) {
		return false, nil
	}

	dynamicUserGen, err := e.store.UserGenDomains(ctx)
	if err != nil {
		dynamicUserGen = nil
	}
	allUserGen := append(append([]string{}, e.cfg.UserGenDomains...), dynamicUserGen...)
	if policy.IsUserGenDomain(allUserGen, domain) {
		return false, nil
	}

	normalizedSubdomain := policy.NormalizeSubdomain(subdomain)
	count, err := e.store.CountOpenByTypeAndDomain(ctx, t, normalizedSubdomain, domain, policy.DomainCap)
	if err != nil {
		return false, err
	}
	return policy.CapReached(count), nil
}

// UpdateTicket mutates an existing ticket's remote record, closes the local
// incident when requested, and fires the hubstream-sync task.
func (e *Engine) UpdateTicket(ctx context.Context, args UpdateArgs) error {
	if e.cfg.DatabaseImpacted {
		return unavailable("updates are unavailable in degraded mode")
	}
	if args.Closed {
		if args.CloseReason == "" {
			return invalidArgument("close_reason is required when closing")
		}
		if !IsSupportedClosure(args.CloseReason) {
			return invalidArgument(fmt.Sprintf("unsupported close_reason %q", args.CloseReason))
		}
	}

	sysID, err := e.backend.ResolveSysID(ctx, args.TicketId)
	if err != nil {
		return notFound(fmt.Sprintf("ticket %q not found", args.TicketId))
	}

	patch := map[string]interface{}{}
	if args.Closed {
		patch["closed"] = "true"
		patch["close_reason"] = string(args.CloseReason)
	}
	if args.Target != "" {
		patch["target"] = args.Target
	}
	if args.Type != "" {
		patch["type"] = string(args.Type)
	}

	body, err := backend.CreatePostPayload(patch)
	if err != nil {
		return internal("build update payload", err)
	}

	resp, err := e.backend.PatchRequest(ctx, fmt.Sprintf("/%s/%s", backend.TicketTable, sysID), body)
	if err != nil {
		return internal("remote update", err)
	}
	if resp.StatusCode != http.StatusOK {
		return internal(fmt.Sprintf("remote update: unexpected status %d", resp.StatusCode), nil)
	}

	if args.Closed {
		if err := e.store.CloseIncident(ctx, args.TicketId, args.CloseReason, nowFunc()); err != nil {
			return internal("close local incident", err)
		}
	}

	e.publisher.PublishHubstreamSync(ctx, map[string]interface{}{"ticketId": args.TicketId})
	return nil
}

// GetTickets performs a paginated search against the remote backend,
// returning only ticket identifiers plus optional pagination metadata.
func (e *Engine) GetTickets(ctx context.Context, args GetTicketsArgs) (GetTicketsResult, error) {
	limit := args.Limit
	if limit <= 0 {
		limit = 10
	}

	params := map[string]interface{}{
		"sysparm_fields": "u_number",
		"limit":          limit,
		"offset":         args.Offset,
	}
	if args.Type != "" {
		params["type"] = string(args.Type)
	}
	if args.Reporter != "" {
		params["reporter"] = args.Reporter
	}
	if args.Closed != nil {
		params["closed"] = fmt.Sprintf("%v", *args.Closed)
	}

	urlParams := backend.CreateURLParameters(params)
	paramQuery := backend.CreateParamQuery(args.CreatedStart, args.CreatedEnd)

	resp, err := e.backend.GetRequest(ctx, "/"+backend.TicketTable+urlParams+paramQuery)
	if err != nil {
		return GetTicketsResult{}, internal("remote search", err)
	}
	if resp.StatusCode != http.StatusOK {
		return GetTicketsResult{}, notFound(fmt.Sprintf("remote search: unexpected status %d", resp.StatusCode))
	}

	records, err := backend.DecodeResultList(resp.Body)
	if err != nil {
		return GetTicketsResult{}, internal("decode search response", err)
	}
	if len(records) == 0 {
		return GetTicketsResult{}, notFound("no tickets matched")
	}

	ids := make([]string, 0, len(records))
	for _, r := range records {
		if id, ok := r["ticketId"].(string); ok {
			ids = append(ids, id)
		}
	}

	result := GetTicketsResult{TicketIds: ids}
	if total, ok := backend.TotalCountFromHeader(resp.Headers); ok {
		links := backend.CreatePaginationLinks(args.Offset, limit, total)
		result.Pagination = &Pagination{
			Limit:          links.Limit,
			Total:          links.Total,
			FirstOffset:    links.FirstOffset,
			PreviousOffset: links.PreviousOffset,
			NextOffset:     links.NextOffset,
			LastOffset:     links.LastOffset,
		}
	}
	return result, nil
}

// GetTicket fetches a single ticket and projects it into the reporter-facing
// model.
func (e *Engine) GetTicket(ctx context.Context, args GetTicketArgs) (ReporterTicket, error) {
	path := fmt.Sprintf("/%s?sysparam_limit=1&u_number=%s", backend.TicketTable, url.QueryEscape(args.TicketId))
	if args.Reporter != "" {
		path += "&u_reporter=" + url.QueryEscape(args.Reporter)
	}

	resp, err := e.backend.GetRequest(ctx, path)
	if err != nil {
		return ReporterTicket{}, internal("remote get", err)
	}
	if resp.StatusCode != http.StatusOK {
		return ReporterTicket{}, notFound(fmt.Sprintf("ticket %q not found", args.TicketId))
	}

	record, err := backend.DecodeResultOne(resp.Body)
	if err != nil {
		return ReporterTicket{}, internal("decode get response", err)
	}
	if record == nil {
		return ReporterTicket{}, notFound(fmt.Sprintf("ticket %q not found", args.TicketId))
	}

	return projectReporterTicket(record), nil
}

// CheckDuplicate reports whether an open ticket already exists for source,
// excluding the ticket identified by excluded (used to let a reclassified
// ticket exempt itself from its own duplicate check).
func (e *Engine) CheckDuplicate(ctx context.Context, source, excluded string) (bool, []string, error) {
	if source == "" {
		return false, nil, invalidArgument("source is required")
	}

	params := backend.CreateURLParameters(map[string]interface{}{
		"closed": "false",
		"source": source,
	})

	resp, err := e.backend.GetRequest(ctx, "/"+backend.TicketTable+params)
	if err != nil {
		return false, nil, internal("remote duplicate check", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, nil, internal(fmt.Sprintf("remote duplicate check: unexpected status %d", resp.StatusCode), nil)
	}

	records, err := backend.DecodeResultList(resp.Body)
	if err != nil {
		return false, nil, internal("decode duplicate check response", err)
	}

	dupIds := make([]string, 0, len(records))
	for _, r := range records {
		id, _ := r["ticketId"].(string)
		if id != "" && id != excluded {
			dupIds = append(dupIds, id)
		}
	}
	return len(dupIds) > 0, dupIds, nil
}

func middlewareProjection(inc Incident) map[string]interface{} {
	p := map[string]interface{}{
		"ticketId":         inc.TicketId,
		"type":             string(inc.Type),
		"source":           inc.Source,
		"sourceDomainOrIp": inc.SourceDomainOrIp,
		"sourceSubDomain":  inc.SourceSubDomain,
		"target":           inc.Target,
		"proxy":            inc.Proxy,
		"reporter":         inc.Reporter,
	}
	if len(inc.Metadata) > 0 {
		p["metadata"] = inc.Metadata
	}
	if inc.Evidence != nil {
		p["evidence"] = map[string]bool{"snow": inc.Evidence.Snow}
	}
	if inc.AbuseVerified {
		p["abuseVerified"] = true
	}
	return p
}

func projectReporterTicket(canonical map[string]interface{}) ReporterTicket {
	get := func(k string) string {
		v, _ := canonical[k].(string)
		return v
	}
	closed, _ := canonical["closed"].(bool)
	return ReporterTicket{
		TicketId:         get("ticketId"),
		Reporter:         get("reporter"),
		Source:           get("source"),
		SourceDomainOrIp: get("sourceDomainOrIp"),
		Closed:           closed,
		CreatedAt:        get("createdAt"),
		ClosedAt:         get("closedAt"),
		Type:             Type(get("type")),
		Target:           get("target"),
		Proxy:            get("proxy"),
	}
}

// nowFunc is a seam for time.Now, kept as a package-level var so tests can
// substitute a fixed clock.
var nowFunc = time.Now
