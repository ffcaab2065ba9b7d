// Package store is the Incident Store Adapter: local Postgres persistence
// for incidents, acknowledgement-email audit records and the cached
// user-generated-content domain allowlist. It plays the role the teacher's
// repository/db.Querier plays for discovery-service, hand-written against
// pgx/v5 directly because no sqlc-generated querier exists for this schema
// in the retrieved reference pack (see the repository-level grounding note
// in DESIGN.md).
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gdsec-test/dcu-phishstory-service/internal/ticket"
)

// ErrNotFound is returned when a lookup finds no matching row.
var ErrNotFound = errors.New("store: not found")

// Store is the Incident Store Adapter's capability surface.
type Store interface {
	AddIncident(ctx context.Context, inc ticket.Incident) error
	UpdateIncident(ctx context.Context, ticketId string, fn func(*ticket.Incident) error) error
	CloseIncident(ctx context.Context, ticketId string, reason ticket.CloseReason, closedAt time.Time) error
	GetIncident(ctx context.Context, ticketId string) (ticket.Incident, error)
	// CountOpenByTypeAndDomain counts incidents with phishstory_status != CLOSED,
	// matching type t and either subdomain or domain (subdomain arrives
	// www-stripped; implementations match both it and its "www."-prefixed
	// form), capped at limit (callers stop caring once the cap is reached).
	CountOpenByTypeAndDomain(ctx context.Context, t ticket.Type, subdomain, domain string, limit int) (int, error)
	AddEmailAck(ctx context.Context, ack ticket.EmailAck) error
	UserGenDomains(ctx context.Context) ([]string, error)
}

// PGStore is a Store backed by a pgxpool.Pool.
type PGStore struct {
	pool *pgxpool.Pool

	once       sync.Once
	ugdCache   []string
	ugdFromCfg []string
}

// NewPGStore constructs a PGStore. fallbackUserGenDomains seeds the
// lazily-loaded cache that UserGenDomains falls back to when the database
// read fails, per the failure-tolerant caching design note: a transient DB
// error must never block ticket admission on the user-gen-domain check.
func NewPGStore(pool *pgxpool.Pool, fallbackUserGenDomains []string) *PGStore {
	return &PGStore{pool: pool, ugdFromCfg: fallbackUserGenDomains}
}

// AddIncident inserts a new incident row. TicketId is the primary key.
func (s *PGStore) AddIncident(ctx context.Context, inc ticket.Incident) error {
	metadata, err := json.Marshal(inc.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}
	var evidenceSnow bool
	if inc.Evidence != nil {
		evidenceSnow = inc.Evidence.Snow
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO incidents (
			ticket_id, type, source, source_domain_or_ip, source_sub_domain,
			target, proxy, reporter, metadata, evidence_snow, abuse_verified,
			phishstory_status, close_reason, closed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		inc.TicketId, inc.Type, inc.Source, inc.SourceDomainOrIp, inc.SourceSubDomain,
		inc.Target, inc.Proxy, inc.Reporter, metadata, evidenceSnow, inc.AbuseVerified,
		inc.PhishstoryStatus, nullableCloseReason(inc.CloseReason), inc.ClosedAt,
	)
	if err != nil {
		return fmt.Errorf("store: insert incident: %w", err)
	}
	return nil
}

// UpdateIncident loads the incident, applies fn, and writes back the
// mutable fields. fn returning an error aborts the write.
func (s *PGStore) UpdateIncident(ctx context.Context, ticketId string, fn func(*ticket.Incident) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	inc, err := getIncidentTx(ctx, tx, ticketId)
	if err != nil {
		return err
	}

	if err := fn(&inc); err != nil {
		return err
	}

	metadata, err := json.Marshal(inc.Metadata)
	if err != nil {
		return fmt.Errorf("store: marshal metadata: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE incidents SET
			type = $2, target = $3, proxy = $4, metadata = $5,
			phishstory_status = $6, close_reason = $7, closed_at = $8,
			abuse_verified = $9
		WHERE ticket_id = $1
	`, ticketId, inc.Type, inc.Target, inc.Proxy, metadata,
		inc.PhishstoryStatus, nullableCloseReason(inc.CloseReason), inc.ClosedAt,
		inc.AbuseVerified)
	if err != nil {
		return fmt.Errorf("store: update incident: %w", err)
	}

	return tx.Commit(ctx)
}

// CloseIncident transitions an incident to CLOSED, recording the reason and
// timestamp. The update is applied whatever the incident's current status:
// closing an already-CLOSED incident overwrites its reason and timestamp.
func (s *PGStore) CloseIncident(ctx context.Context, ticketId string, reason ticket.CloseReason, closedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE incidents SET phishstory_status = $2, close_reason = $3, closed_at = $4
		WHERE ticket_id = $1
	`, ticketId, ticket.StatusClosed, string(reason), closedAt)
	if err != nil {
		return fmt.Errorf("store: close incident: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetIncident fetches the local projection of one incident.
func (s *PGStore) GetIncident(ctx context.Context, ticketId string) (ticket.Incident, error) {
	return getIncidentTx(ctx, s.pool, ticketId)
}

// CountOpenByTypeAndDomain implements the domain-cap query: count of
// incidents with phishstory_status != CLOSED, type = t, and either
// source_sub_domain or source_domain_or_ip matching subdomain/domain. When
// subdomain is empty the filter degenerates to source_domain_or_ip = domain,
// matching the spec's "when subdomain is absent" rule. subdomain arrives
// already www-stripped (policy.NormalizeSubdomain), but incidents are
// persisted with their raw reported subdomain, so the query matches both
// the stripped and "www."-prefixed forms rather than assuming storage was
// normalized on write. The SQL counts every matching row; the returned
// count is then capped at limit (when limit > 0), so a bucket holding more
// than limit open incidents reports exactly limit.
func (s *PGStore) CountOpenByTypeAndDomain(ctx context.Context, t ticket.Type, subdomain, domain string, limit int) (int, error) {
	var count int
	var err error
	if subdomain != "" {
		withWWW := "www." + subdomain
		err = s.pool.QueryRow(ctx, `
			SELECT count(*) FROM incidents
			WHERE phishstory_status != $1
			  AND type = $2
			  AND (source_sub_domain IN ($3, $4) OR source_domain_or_ip IN ($3, $4))
		`, ticket.StatusClosed, t, subdomain, withWWW).Scan(&count)
	} else {
		err = s.pool.QueryRow(ctx, `
			SELECT count(*) FROM incidents
			WHERE phishstory_status != $1
			  AND type = $2
			  AND source_domain_or_ip = $3
		`, ticket.StatusClosed, t, domain).Scan(&count)
	}
	if err != nil {
		return 0, fmt.Errorf("store: count open incidents: %w", err)
	}
	if limit > 0 && count > limit {
		count = limit
	}
	return count, nil
}

// AddEmailAck appends an acknowledgement-email audit record. The table is
// append-only: no update or delete path exists for it.
func (s *PGStore) AddEmailAck(ctx context.Context, ack ticket.EmailAck) error {
	id := ack.ID
	if id == "" {
		generated, err := uuidV7String()
		if err != nil {
			return fmt.Errorf("store: generate email ack id: %w", err)
		}
		id = generated
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO acknowledge_email (id, source, email, created) VALUES ($1,$2,$3,$4)
	`, id, ack.Source, ack.Email, ack.Created)
	if err != nil {
		return fmt.Errorf("store: insert email ack: %w", err)
	}
	return nil
}

// UserGenDomains returns the cached user-generated-content domain allowlist,
// loading it from the database at most once per process lifetime (it is
// treated as effectively static configuration data, same as the original's
// module-level USER_GEN constant). A failed load falls back to the
// statically configured list rather than blocking or erroring out, since a
// down database must never stop ticket admission.
func (s *PGStore) UserGenDomains(ctx context.Context) ([]string, error) {
	s.once.Do(func() {
		rows, err := s.pool.Query(ctx, `SELECT domain FROM user_gen_domains`)
		if err != nil {
			s.ugdCache = s.ugdFromCfg
			return
		}
		defer rows.Close()

		var domains []string
		for rows.Next() {
			var d string
			if err := rows.Scan(&d); err != nil {
				s.ugdCache = s.ugdFromCfg
				return
			}
			domains = append(domains, d)
		}
		if err := rows.Err(); err != nil || len(domains) == 0 {
			s.ugdCache = s.ugdFromCfg
			return
		}
		s.ugdCache = domains
	})
	return s.ugdCache, nil
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func getIncidentTx(ctx context.Context, q rowQuerier, ticketId string) (ticket.Incident, error) {
	row := q.QueryRow(ctx, `
		SELECT ticket_id, type, source, source_domain_or_ip, source_sub_domain,
			target, proxy, reporter, metadata, evidence_snow, abuse_verified,
			phishstory_status, close_reason, closed_at
		FROM incidents WHERE ticket_id = $1
	`, ticketId)
	return scanIncidentRow(row)
}

type scannable interface {
	Scan(dest ...interface{}) error
}

func scanIncidentRow(r scannable) (ticket.Incident, error) {
	var inc ticket.Incident
	var metadata []byte
	var evidenceSnow bool
	var closeReason *string

	err := r.Scan(
		&inc.TicketId, &inc.Type, &inc.Source, &inc.SourceDomainOrIp, &inc.SourceSubDomain,
		&inc.Target, &inc.Proxy, &inc.Reporter, &metadata, &evidenceSnow, &inc.AbuseVerified,
		&inc.PhishstoryStatus, &closeReason, &inc.ClosedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return ticket.Incident{}, ErrNotFound
	}
	if err != nil {
		return ticket.Incident{}, fmt.Errorf("store: scan incident: %w", err)
	}

	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &inc.Metadata); err != nil {
			return ticket.Incident{}, fmt.Errorf("store: unmarshal metadata: %w", err)
		}
	}
	inc.Evidence = &ticket.Evidence{Snow: evidenceSnow}
	if closeReason != nil {
		inc.CloseReason = ticket.CloseReason(*closeReason)
	}
	return inc, nil
}

func nullableCloseReason(r ticket.CloseReason) interface{} {
	if r == "" {
		return nil
	}
	return string(r)
}
