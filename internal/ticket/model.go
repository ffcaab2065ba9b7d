// Package ticket implements the admission and lifecycle engine for abuse
// reports: it mediates between the remote ticketing backend, the local
// incident store and the broker queues, and presents one consistent
// contract to the transport layer.
package ticket

import "time"

// Type is a supported abuse report category.
type Type string

const (
	TypePhishing     Type = "PHISHING"
	TypeMalware      Type = "MALWARE"
	TypeSpam         Type = "SPAM"
	TypeNetworkAbuse Type = "NETWORK_ABUSE"
	TypeARecord      Type = "A_RECORD"
	TypeFraudWire    Type = "FRAUD_WIRE"
	TypeIPBlock      Type = "IP_BLOCK"
	TypeContent      Type = "CONTENT"
)

// SupportedTypes enumerates every abuse report type the engine accepts.
var SupportedTypes = []Type{
	TypePhishing, TypeMalware, TypeSpam, TypeNetworkAbuse,
	TypeARecord, TypeFraudWire, TypeIPBlock, TypeContent,
}

// CloseReason is a supported ticket closure reason.
type CloseReason string

const (
	CloseUnresolvable         CloseReason = "unresolvable"
	CloseUnworkable           CloseReason = "unworkable"
	CloseResolved             CloseReason = "resolved"
	CloseParked               CloseReason = "parked"
	CloseFalsePositive        CloseReason = "false_positive"
	CloseSuspended            CloseReason = "suspended"
	CloseIntentionalMalicious CloseReason = "intentionally_malicious"
	CloseSharedIP             CloseReason = "shared_ip"
	CloseNotHosted            CloseReason = "not_hosted"
	CloseContentRemoved       CloseReason = "content_removed"
	CloseRepeatOffender       CloseReason = "repeat_offender"
	CloseExtensiveCompromise  CloseReason = "extensive_compromise"
	CloseEmailSentToEMEA      CloseReason = "email_sent_to_emea"
	CloseTransferred          CloseReason = "transferred"
	CloseShopperCompromise    CloseReason = "shopper_compromise"
	CloseMalwareScannerNotice CloseReason = "malware_scanner_notice"
)

// SupportedClosures enumerates every accepted close reason.
var SupportedClosures = []CloseReason{
	CloseUnresolvable, CloseUnworkable, CloseResolved, CloseParked,
	CloseFalsePositive, CloseSuspended, CloseIntentionalMalicious,
	CloseSharedIP, CloseNotHosted, CloseContentRemoved, CloseRepeatOffender,
	CloseExtensiveCompromise, CloseEmailSentToEMEA, CloseTransferred,
	CloseShopperCompromise, CloseMalwareScannerNotice,
}

// Status is the lifecycle state of an Incident.
// OPEN -> PAUSED | PROCESSING | CLOSED; PAUSED <-> PROCESSING -> CLOSED.
// CLOSED is terminal. Only OPEN/PAUSED/PROCESSING count against the domain
// cap and against duplicate-open detection.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusPaused     Status = "PAUSED"
	StatusProcessing Status = "PROCESSING"
	StatusClosed     Status = "CLOSED"
)

// MiddlewareModel lists the fields projected into the incident document and
// published to the middleware queue on create.
var MiddlewareModel = []string{
	"ticketId", "type", "source", "sourceDomainOrIp",
	"sourceSubDomain", "target", "proxy", "reporter",
}

// CreateArgs carries every field a caller may supply to CreateTicket.
type CreateArgs struct {
	Type              Type
	Source            string
	SourceDomainOrIp  string
	SourceSubDomain   string
	Target            string
	Proxy             string
	Reporter          string
	ReporterEmail     string
	Info              string
	InfoUrl           string
	Intentional       bool
	Metadata          map[string]interface{}
}

// reclassifiedFrom extracts metadata.reclassified_from, if present.
func (a CreateArgs) reclassifiedFrom() string {
	if a.Metadata == nil {
		return ""
	}
	v, _ := a.Metadata["reclassified_from"].(string)
	return v
}

// UpdateArgs carries the fields a caller may supply to UpdateTicket.
type UpdateArgs struct {
	TicketId    string
	Closed      bool
	CloseReason CloseReason
	Target      string
	Type        Type
}

// GetTicketArgs carries the fields a caller may supply to GetTicket.
type GetTicketArgs struct {
	TicketId string
	Reporter string
}

// GetTicketsArgs carries the filter/pagination fields for GetTickets.
type GetTicketsArgs struct {
	Type         Type
	Reporter     string
	Closed       *bool
	Limit        int
	Offset       int
	CreatedStart string
	CreatedEnd   string
}

// Pagination mirrors the remote backend's pagination-link contract.
type Pagination struct {
	Limit          int  `json:"limit"`
	Total          int  `json:"total"`
	FirstOffset    int  `json:"firstOffset"`
	PreviousOffset *int `json:"previousOffset,omitempty"`
	NextOffset     *int `json:"nextOffset,omitempty"`
	LastOffset     *int `json:"lastOffset,omitempty"`
}

// GetTicketsResult is the response of GetTickets.
type GetTicketsResult struct {
	TicketIds  []string    `json:"ticketIds"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// ReporterTicket is the reporter-facing projection returned by GetTicket.
type ReporterTicket struct {
	TicketId         string    `json:"ticketId"`
	Reporter         string    `json:"reporter"`
	Source           string    `json:"source"`
	SourceDomainOrIp string    `json:"sourceDomainOrIp"`
	Closed           bool      `json:"closed"`
	CreatedAt        string    `json:"createdAt"`
	ClosedAt         string    `json:"closedAt"`
	Type             Type      `json:"type"`
	Target           string    `json:"target"`
	Proxy            string    `json:"proxy"`
}

// Evidence records whether the incoming report carried supporting info.
type Evidence struct {
	Snow bool `json:"snow"`
}

// Incident is the local projection of a ticket used for cap checks and
// downstream enrichment.
type Incident struct {
	TicketId         string                 `json:"ticketId"`
	Type             Type                   `json:"type"`
	Source           string                 `json:"source"`
	SourceDomainOrIp string                 `json:"sourceDomainOrIp"`
	SourceSubDomain  string                 `json:"sourceSubDomain"`
	Target           string                 `json:"target"`
	Proxy            string                 `json:"proxy"`
	Reporter         string                 `json:"reporter"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	Evidence         *Evidence              `json:"evidence,omitempty"`
	AbuseVerified    bool                   `json:"abuseVerified,omitempty"`
	PhishstoryStatus Status                 `json:"phishstory_status"`
	CloseReason      CloseReason            `json:"close_reason,omitempty"`
	ClosedAt         *time.Time             `json:"closed_at,omitempty"`
}

// EmailAck is an append-only acknowledgement-email audit record.
type EmailAck struct {
	ID      string    `json:"id"`
	Source  string    `json:"source"`
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
}

// IsSupportedType reports whether t is one of SupportedTypes.
func IsSupportedType(t Type) bool {
	for _, s := range SupportedTypes {
		if s == t {
			return true
		}
	}
	return false
}

// IsSupportedClosure reports whether r is one of SupportedClosures.
func IsSupportedClosure(r CloseReason) bool {
	for _, s := range SupportedClosures {
		if s == r {
			return true
		}
	}
	return false
}
