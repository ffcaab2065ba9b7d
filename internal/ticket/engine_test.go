package ticket_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdsec-test/dcu-phishstory-service/internal/backend"
	"github.com/gdsec-test/dcu-phishstory-service/internal/config"
	"github.com/gdsec-test/dcu-phishstory-service/internal/ticket"
)

// ── hand-rolled mockBackend matching backend.API exactly ───────────────────

type mockBackend struct {
	getFn        func(ctx context.Context, path string) (*backend.Response, error)
	postFn       func(ctx context.Context, path string, body []byte) (*backend.Response, error)
	patchFn      func(ctx context.Context, path string, body []byte) (*backend.Response, error)
	resolveSysFn func(ctx context.Context, ticketId string) (string, error)
}

func (m *mockBackend) GetRequest(ctx context.Context, path string) (*backend.Response, error) {
	return m.getFn(ctx, path)
}
func (m *mockBackend) PostRequest(ctx context.Context, path string, body []byte) (*backend.Response, error) {
	return m.postFn(ctx, path, body)
}
func (m *mockBackend) PatchRequest(ctx context.Context, path string, body []byte) (*backend.Response, error) {
	return m.patchFn(ctx, path, body)
}
func (m *mockBackend) ResolveSysID(ctx context.Context, ticketId string) (string, error) {
	return m.resolveSysFn(ctx, ticketId)
}

var _ backend.API = (*mockBackend)(nil)

// ── hand-rolled mockStore matching store.Store exactly ─────────────────────

type mockStore struct {
	incidents      map[string]ticket.Incident
	emailAcks      []ticket.EmailAck
	userGenDomains []string
	countFn        func(ctx context.Context, t ticket.Type, subdomain, domain string, limit int) (int, error)
}

func newMockStore() *mockStore {
	return &mockStore{incidents: map[string]ticket.Incident{}}
}

func (m *mockStore) AddIncident(ctx context.Context, inc ticket.Incident) error {
	m.incidents[inc.TicketId] = inc
	return nil
}
func (m *mockStore) UpdateIncident(ctx context.Context, ticketId string, fn func(*ticket.Incident) error) error {
	inc := m.incidents[ticketId]
	if err := fn(&inc); err != nil {
		return err
	}
	m.incidents[ticketId] = inc
	return nil
}
func (m *mockStore) CloseIncident(ctx context.Context, ticketId string, reason ticket.CloseReason, closedAt time.Time) error {
	return nil
}
func (m *mockStore) GetIncident(ctx context.Context, ticketId string) (ticket.Incident, error) {
	return m.incidents[ticketId], nil
}
func (m *mockStore) CountOpenByTypeAndDomain(ctx context.Context, t ticket.Type, subdomain, domain string, limit int) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, t, subdomain, domain, limit)
	}
	return 0, nil
}
func (m *mockStore) AddEmailAck(ctx context.Context, ack ticket.EmailAck) error {
	m.emailAcks = append(m.emailAcks, ack)
	return nil
}
func (m *mockStore) UserGenDomains(ctx context.Context) ([]string, error) {
	return m.userGenDomains, nil
}

// ── hand-rolled mockPublisher matching queue.Publisher exactly ─────────────

type mockPublisher struct {
	middlewareCalls []map[string]interface{}
	hubstreamCalls  []map[string]interface{}
}

func (m *mockPublisher) PublishMiddleware(ctx context.Context, payload map[string]interface{}) {
	m.middlewareCalls = append(m.middlewareCalls, payload)
}
func (m *mockPublisher) PublishHubstreamSync(ctx context.Context, payload map[string]interface{}) {
	m.hubstreamCalls = append(m.hubstreamCalls, payload)
}

func baseConfig() config.Config {
	return config.Config{
		TrustedReporters: map[string]string{"TR1": "TR1"},
		ExemptReporters:  map[string]string{},
		UserGenDomains:   []string{},
	}
}

func noDuplicates() func(context.Context, string) (*backend.Response, error) {
	return func(ctx context.Context, path string) (*backend.Response, error) {
		return &backend.Response{StatusCode: http.StatusOK, Body: []byte(`{"result": []}`)}, nil
	}
}

// ── CreateTicket ─────────────────────────────────────────────────────────

func TestCreateTicket_Happy(t *testing.T) {
	be := &mockBackend{
		getFn: noDuplicates(),
		postFn: func(ctx context.Context, path string, body []byte) (*backend.Response, error) {
			assert.Equal(t, "/"+backend.TicketTable, path)
			return &backend.Response{StatusCode: http.StatusCreated, Body: []byte(`{"result": {"u_number": "DCU1"}}`)}, nil
		},
	}
	st := newMockStore()
	pub := &mockPublisher{}
	engine := ticket.NewEngine(be, st, pub, baseConfig())

	ticketId, err := engine.CreateTicket(context.Background(), ticket.CreateArgs{
		Type:             ticket.TypePhishing,
		Source:           "http://a.example/x",
		SourceDomainOrIp: "a.example",
		SourceSubDomain:  "a.example",
		Reporter:         "R",
		Metadata:         map[string]interface{}{"k": "v"},
	})

	require.NoError(t, err)
	assert.Equal(t, "DCU1", ticketId)
	assert.Contains(t, st.incidents, "DCU1")
	assert.Len(t, pub.middlewareCalls, 1)
	assert.Equal(t, "DCU1", pub.middlewareCalls[0]["ticketId"])
}

func TestCreateTicket_UnsupportedType(t *testing.T) {
	engine := ticket.NewEngine(&mockBackend{}, newMockStore(), &mockPublisher{}, baseConfig())

	_, err := engine.CreateTicket(context.Background(), ticket.CreateArgs{Type: "NOT_A_TYPE"})

	require.Error(t, err)
	assert.Equal(t, ticket.InvalidArgument, ticket.KindOf(err))
}

func TestCreateTicket_DuplicateByTrustedReporterFlagsAbuseVerified(t *testing.T) {
	st := newMockStore()
	st.incidents["DCU9"] = ticket.Incident{TicketId: "DCU9"}

	be := &mockBackend{
		getFn: func(ctx context.Context, path string) (*backend.Response, error) {
			return &backend.Response{StatusCode: http.StatusOK, Body: []byte(`{"result": [{"u_number": "DCU9"}]}`)}, nil
		},
	}
	pub := &mockPublisher{}
	engine := ticket.NewEngine(be, st, pub, baseConfig())

	_, err := engine.CreateTicket(context.Background(), ticket.CreateArgs{
		Type:     ticket.TypePhishing,
		Source:   "S",
		Reporter: "TR1",
	})

	require.Error(t, err)
	assert.Equal(t, ticket.AlreadyExists, ticket.KindOf(err))
	assert.True(t, st.incidents["DCU9"].AbuseVerified)
}

func TestCreateTicket_DuplicateWithReporterEmailAddsAck(t *testing.T) {
	st := newMockStore()
	be := &mockBackend{
		getFn: func(ctx context.Context, path string) (*backend.Response, error) {
			return &backend.Response{StatusCode: http.StatusOK, Body: []byte(`{"result": [{"u_number": "DCU9"}]}`)}, nil
		},
	}
	engine := ticket.NewEngine(be, st, &mockPublisher{}, baseConfig())

	_, err := engine.CreateTicket(context.Background(), ticket.CreateArgs{
		Type:          ticket.TypePhishing,
		Source:        "S",
		Reporter:      "TR1",
		ReporterEmail: "a@b",
	})

	require.Error(t, err)
	assert.Equal(t, ticket.AlreadyExists, ticket.KindOf(err))
	require.Len(t, st.emailAcks, 1)
	assert.Equal(t, "S", st.emailAcks[0].Source)
	assert.Equal(t, "a@b", st.emailAcks[0].Email)
	assert.False(t, st.incidents["DCU9"].AbuseVerified)
}

func TestCreateTicket_CapReached(t *testing.T) {
	st := newMockStore()
	st.countFn = func(ctx context.Context, ty ticket.Type, subdomain, domain string, limit int) (int, error) {
		return 5, nil
	}
	be := &mockBackend{getFn: noDuplicates()}
	engine := ticket.NewEngine(be, st, &mockPublisher{}, baseConfig())

	_, err := engine.CreateTicket(context.Background(), ticket.CreateArgs{
		Type:             ticket.TypePhishing,
		Source:           "http://www.abc.com/y",
		SourceSubDomain:  "www.abc.com",
		SourceDomainOrIp: "abc.com",
		Reporter:         "R",
	})

	require.Error(t, err)
	assert.Equal(t, ticket.ResourceExhausted, ticket.KindOf(err))
}

func TestCreateTicket_ReclassifiedFromExcludesSelfDuplicate(t *testing.T) {
	be := &mockBackend{
		getFn: func(ctx context.Context, path string) (*backend.Response, error) {
			return &backend.Response{StatusCode: http.StatusOK, Body: []byte(`{"result": [{"u_number": "X"}]}`)}, nil
		},
		postFn: func(ctx context.Context, path string, body []byte) (*backend.Response, error) {
			return &backend.Response{StatusCode: http.StatusCreated, Body: []byte(`{"result": {"u_number": "DCU2"}}`)}, nil
		},
	}
	engine := ticket.NewEngine(be, newMockStore(), &mockPublisher{}, baseConfig())

	ticketId, err := engine.CreateTicket(context.Background(), ticket.CreateArgs{
		Type:     ticket.TypePhishing,
		Source:   "S",
		Reporter: "R",
		Metadata: map[string]interface{}{"reclassified_from": "X"},
	})

	require.NoError(t, err)
	assert.Equal(t, "DCU2", ticketId)
}

// ── UpdateTicket ─────────────────────────────────────────────────────────

func TestUpdateTicket_CloseRequiresReason(t *testing.T) {
	engine := ticket.NewEngine(&mockBackend{}, newMockStore(), &mockPublisher{}, baseConfig())

	err := engine.UpdateTicket(context.Background(), ticket.UpdateArgs{TicketId: "DCU1", Closed: true})

	require.Error(t, err)
	assert.Equal(t, ticket.InvalidArgument, ticket.KindOf(err))
}

func TestUpdateTicket_BogusCloseReason(t *testing.T) {
	engine := ticket.NewEngine(&mockBackend{}, newMockStore(), &mockPublisher{}, baseConfig())

	err := engine.UpdateTicket(context.Background(), ticket.UpdateArgs{
		TicketId: "DCU1", Closed: true, CloseReason: "bogus",
	})

	require.Error(t, err)
	assert.Equal(t, ticket.InvalidArgument, ticket.KindOf(err))
}

func TestUpdateTicket_DegradedModeUnavailable(t *testing.T) {
	cfg := baseConfig()
	cfg.DatabaseImpacted = true
	engine := ticket.NewEngine(&mockBackend{}, newMockStore(), &mockPublisher{}, cfg)

	err := engine.UpdateTicket(context.Background(), ticket.UpdateArgs{TicketId: "DCU1"})

	require.Error(t, err)
	assert.Equal(t, ticket.Unavailable, ticket.KindOf(err))
}

func TestUpdateTicket_CloseWithSyncPublishesHubstream(t *testing.T) {
	be := &mockBackend{
		resolveSysFn: func(ctx context.Context, ticketId string) (string, error) {
			return "sys-1", nil
		},
		patchFn: func(ctx context.Context, path string, body []byte) (*backend.Response, error) {
			return &backend.Response{StatusCode: http.StatusOK}, nil
		},
	}
	pub := &mockPublisher{}
	engine := ticket.NewEngine(be, newMockStore(), pub, baseConfig())

	err := engine.UpdateTicket(context.Background(), ticket.UpdateArgs{
		TicketId: "DCU1", Closed: true, CloseReason: ticket.CloseResolved,
	})

	require.NoError(t, err)
	require.Len(t, pub.hubstreamCalls, 1)
	assert.Equal(t, "DCU1", pub.hubstreamCalls[0]["ticketId"])
}

// ── CheckDuplicate ───────────────────────────────────────────────────────

func TestCheckDuplicate_EmptySourceFails(t *testing.T) {
	engine := ticket.NewEngine(&mockBackend{}, newMockStore(), &mockPublisher{}, baseConfig())

	_, _, err := engine.CheckDuplicate(context.Background(), "", "")

	require.Error(t, err)
	assert.Equal(t, ticket.InvalidArgument, ticket.KindOf(err))
}
