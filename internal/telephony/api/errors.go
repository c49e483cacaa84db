package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	types "github.com/sebas/ringbridge/api/types/v1"
	"github.com/sebas/ringbridge/internal/telephony/cause"
	"github.com/sebas/ringbridge/internal/telephony/loop"
	"github.com/sebas/ringbridge/internal/telephony/modem"
	"github.com/sebas/ringbridge/internal/telephony/protocol"
)

// errorResponse maps err to an HTTP status and body.
func errorResponse(err error) (int, types.ErrorResponse) {
	resp := types.ErrorResponse{
		Message: protocol.Message(err),
		Name:    cause.ErrorName(err),
	}

	var ce *cause.Error
	switch {
	case errors.Is(err, errNotFound):
		resp.Error = "not_found"
		resp.Message = "Channel not found"
		return http.StatusNotFound, resp
	case errors.Is(err, protocol.ErrInvalidArgument):
		resp.Error = "invalid_argument"
		return http.StatusBadRequest, resp
	case errors.Is(err, protocol.ErrPermissionDenied):
		resp.Error = "permission_denied"
		return http.StatusForbidden, resp
	case errors.Is(err, protocol.ErrNotImplemented):
		resp.Error = "not_implemented"
		return http.StatusNotImplemented, resp
	case errors.Is(err, protocol.ErrNotAvailable):
		resp.Error = "not_available"
		return http.StatusConflict, resp
	case errors.Is(err, protocol.ErrDisconnected):
		resp.Error = "disconnected"
		return http.StatusGone, resp
	case errors.As(err, &ce):
		resp.Error = "modem_error"
		return http.StatusBadGateway, resp
	case errors.Is(err, context.DeadlineExceeded):
		resp.Error = "timeout"
		return http.StatusGatewayTimeout, resp
	case errors.Is(err, loop.ErrStopped):
		resp.Error = "stopped"
		return http.StatusServiceUnavailable, resp
	default:
		resp.Error = "internal"
		return http.StatusInternalServerError, resp
	}
}

var reasons = map[string]protocol.Reason{
	"":                 protocol.ReasonNone,
	"none":             protocol.ReasonNone,
	"offline":          protocol.ReasonOffline,
	"kicked":           protocol.ReasonKicked,
	"busy":             protocol.ReasonBusy,
	"invited":          protocol.ReasonInvited,
	"banned":           protocol.ReasonBanned,
	"error":            protocol.ReasonError,
	"invalidcontact":   protocol.ReasonInvalidContact,
	"noanswer":         protocol.ReasonNoAnswer,
	"renamed":          protocol.ReasonRenamed,
	"permissiondenied": protocol.ReasonPermissionDenied,
	"separated":        protocol.ReasonSeparated,
}

// parseReason accepts reason names in any case, with or without
// underscores ("no_answer", "NoAnswer").
func parseReason(s string) (protocol.Reason, error) {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
	if r, ok := reasons[key]; ok {
		return r, nil
	}
	return 0, protocol.Errorf(protocol.ErrInvalidArgument, "Unknown reason %q", s)
}

func parseCLIR(s string) (modem.CLIR, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return modem.CLIRDefault, nil
	case "enabled", "hide":
		return modem.CLIREnabled, nil
	case "disabled", "show":
		return modem.CLIRDisabled, nil
	default:
		return modem.CLIRDefault, protocol.Errorf(protocol.ErrInvalidArgument, "Unknown CLIR setting %q", s)
	}
}
