// Package handler exposes the Ticket Engine's five operations as Echo
// HTTP/JSON routes. RPC transport framing proper is out of scope; this is
// the realization of the unary-method contract over HTTP, the way the
// rest of the platform's services expose their domain logic.
package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/gdsec-test/dcu-phishstory-service/internal/ticket"
)

// RegisterRoutes mounts every ticket-engine endpoint onto the Echo instance.
func RegisterRoutes(e *echo.Echo, engine *ticket.Engine, logger *zap.Logger, poolSize int) {
	e.Use(BoundedWorkerPool(poolSize))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	tg := e.Group("/tickets")
	tg.Use(NullToEmptyArray())
	tg.POST("", createTicketHandler(engine, logger))
	tg.PATCH("/:ticketId", updateTicketHandler(engine, logger))
	tg.GET("/:ticketId", getTicketHandler(engine, logger))
	tg.GET("", getTicketsHandler(engine, logger))
	tg.POST("/check-duplicate", checkDuplicateHandler(engine, logger))
}

type createTicketRequest struct {
	Type             ticket.Type            `json:"type"`
	Source           string                 `json:"source"`
	SourceDomainOrIp string                 `json:"sourceDomainOrIp"`
	SourceSubDomain  string                 `json:"sourceSubDomain"`
	Target           string                 `json:"target"`
	Proxy            string                 `json:"proxy"`
	Reporter         string                 `json:"reporter"`
	ReporterEmail    string                 `json:"reporterEmail"`
	Info             string                 `json:"info"`
	InfoUrl          string                 `json:"infoUrl"`
	Intentional      bool                   `json:"intentional"`
	Metadata         map[string]interface{} `json:"metadata"`
}

func createTicketHandler(engine *ticket.Engine, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTicketRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		ticketId, err := engine.CreateTicket(c.Request().Context(), ticket.CreateArgs{
			Type:             req.Type,
			Source:           req.Source,
			SourceDomainOrIp: req.SourceDomainOrIp,
			SourceSubDomain:  req.SourceSubDomain,
			Target:           req.Target,
			Proxy:            req.Proxy,
			Reporter:         req.Reporter,
			ReporterEmail:    req.ReporterEmail,
			Info:             req.Info,
			InfoUrl:          req.InfoUrl,
			Intentional:      req.Intentional,
			Metadata:         req.Metadata,
		})
		if err != nil {
			logger.Error("CreateTicket failed", zap.Error(err))
			return errJSON(c, err)
		}
		return c.JSON(http.StatusCreated, map[string]string{"ticketId": ticketId})
	}
}

type updateTicketRequest struct {
	Closed      bool               `json:"closed"`
	CloseReason ticket.CloseReason `json:"close_reason"`
	Target      string             `json:"target"`
	Type        ticket.Type        `json:"type"`
}

func updateTicketHandler(engine *ticket.Engine, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req updateTicketRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		err := engine.UpdateTicket(c.Request().Context(), ticket.UpdateArgs{
			TicketId:    c.Param("ticketId"),
			Closed:      req.Closed,
			CloseReason: req.CloseReason,
			Target:      req.Target,
			Type:        req.Type,
		})
		if err != nil {
			logger.Error("UpdateTicket failed", zap.Error(err))
			return errJSON(c, err)
		}
		return c.NoContent(http.StatusOK)
	}
}

func getTicketHandler(engine *ticket.Engine, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := engine.GetTicket(c.Request().Context(), ticket.GetTicketArgs{
			TicketId: c.Param("ticketId"),
			Reporter: c.QueryParam("reporter"),
		})
		if err != nil {
			logger.Error("GetTicket failed", zap.Error(err))
			return errJSON(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func getTicketsHandler(engine *ticket.Engine, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		args := ticket.GetTicketsArgs{
			Type:         ticket.Type(c.QueryParam("type")),
			Reporter:     c.QueryParam("reporter"),
			CreatedStart: c.QueryParam("createdStart"),
			CreatedEnd:   c.QueryParam("createdEnd"),
		}
		if v := c.QueryParam("limit"); v != "" {
			args.Limit = parseIntOr(v, 10)
		}
		if v := c.QueryParam("offset"); v != "" {
			args.Offset = parseIntOr(v, 0)
		}
		if v := c.QueryParam("closed"); v != "" {
			b := v == "true"
			args.Closed = &b
		}

		result, err := engine.GetTickets(c.Request().Context(), args)
		if err != nil {
			logger.Error("GetTickets failed", zap.Error(err))
			return errJSON(c, err)
		}
		return c.JSON(http.StatusOK, result)
	}
}

type checkDuplicateRequest struct {
	Source string `json:"source"`
}

func checkDuplicateHandler(engine *ticket.Engine, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req checkDuplicateRequest
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		}

		isDup, dupIds, err := engine.CheckDuplicate(c.Request().Context(), req.Source, "")
		if err != nil {
			logger.Error("CheckDuplicate failed", zap.Error(err))
			return errJSON(c, err)
		}
		duplicate := ""
		if isDup {
			duplicate = dupIds[0]
		}
		return c.JSON(http.StatusOK, map[string]string{"duplicate": duplicate})
	}
}

// errJSON maps an engine error to the RPC surface's single transport
// status: every failure returns INTERNAL with a message detail, per the
// external-interfaces contract — no structured error payload exists beyond
// the message string, so the ErrorKind is folded into that message.
func errJSON(c echo.Context, err error) error {
	var kind string
	var te *ticket.Error
	if errors.As(err, &te) {
		kind = te.Kind.String()
	} else {
		kind = ticket.Internal.String()
	}
	return c.JSON(http.StatusInternalServerError, map[string]string{
		"error": err.Error(),
		"kind":  kind,
	})
}

func parseIntOr(s string, fallback int) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	if n == 0 && s != "0" {
		return fallback
	}
	return n
}
