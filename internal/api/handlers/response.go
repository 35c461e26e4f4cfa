package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/service-agreement/backend/internal/pipeline"
)

// Envelope is the body of every JSON response. Code is 0 on success and the
// HTTP status otherwise.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respData(c *fiber.Ctx, data any) error {
	return c.JSON(Envelope{Code: 0, Message: "ok", Data: data})
}

func respErr(c *fiber.Ctx, status int, kind, message string, data any) error {
	return c.Status(status).JSON(Envelope{Code: status, Message: message, Kind: kind, Data: data})
}

func badRequest(c *fiber.Ctx, message string) error {
	return respErr(c, fiber.StatusBadRequest, pipeline.KindInput, message, nil)
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind string) int {
	switch kind {
	case pipeline.KindInput:
		return fiber.StatusBadRequest
	case pipeline.KindClauseNotFound:
		return fiber.StatusNotFound
	case pipeline.KindPrecondition:
		return fiber.StatusConflict
	case pipeline.KindUpstreamTimeout:
		return fiber.StatusGatewayTimeout
	case pipeline.KindInternal:
		return fiber.StatusInternalServerError
	default:
		// upstream, malformed completion and every validation kind
		return fiber.StatusBadGateway
	}
}

type errorData struct {
	TraceID string                `json:"trace_id,omitempty"`
	Fields  []pipeline.FieldError `json:"fields,omitempty"`
}

// respFlowErr writes a pipeline error with its kind and trace id.
func respFlowErr(c *fiber.Ctx, err error) error {
	kind := pipeline.KindOf(err)
	data := errorData{TraceID: pipeline.TraceIDOf(err)}
	var in *pipeline.InputError
	if errors.As(err, &in) {
		data.Fields = in.Fields
	}
	return respErr(c, StatusFor(kind), kind, err.Error(), data)
}
