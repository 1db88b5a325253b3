package errors

import (
	"context"
	"log/slog"

	"github.com/noteboard/realtime/internal/eventbus"
)

// Handler handles errors in a consistent way
type Handler interface {
	// Handle processes an error
	Handle(ctx context.Context, err error)

	// HandleWithLogger processes an error with a specific logger
	HandleWithLogger(ctx context.Context, err error, logger *slog.Logger)
}

// DefaultHandler is the default error handler. Every error it handles also
// goes out on the event bus as EventError, so a subscriber can observe
// failures without threading a Handler reference through every caller.
type DefaultHandler struct {
	logger *slog.Logger
	events eventbus.Bus
}

// NewDefaultHandler creates a new default error handler. events may be nil,
// in which case errors are only logged.
func NewDefaultHandler(logger *slog.Logger, events eventbus.Bus) *DefaultHandler {
	return &DefaultHandler{
		logger: logger,
		events: events,
	}
}

// Handle implements the Handler interface
func (h *DefaultHandler) Handle(ctx context.Context, err error) {
	h.HandleWithLogger(ctx, err, h.logger)
}

// HandleWithLogger implements the Handler interface
func (h *DefaultHandler) HandleWithLogger(ctx context.Context, err error, logger *slog.Logger) {
	if err == nil {
		return
	}

	// Type assert to our custom error type
	if e, ok := err.(*Error); ok {
		attrs := []any{
			slog.String("error_code", e.Code),
			slog.String("error_type", errorTypeToString(e.Type)),
			slog.Time("timestamp", e.Timestamp),
		}

		if e.Details != "" {
			attrs = append(attrs, slog.String("details", e.Details))
		}

		if e.Cause != nil {
			attrs = append(attrs, slog.String("cause", e.Cause.Error()))
		}

		switch e.Type {
		case ErrorTypeInternal, ErrorTypeHandlerFault, ErrorTypeAdmissionDenied:
			logger.ErrorContext(ctx, e.Message, attrs...)
		case ErrorTypeTimeout, ErrorTypeNotFound, ErrorTypeMalformedFrame:
			logger.WarnContext(ctx, e.Message, attrs...)
		default:
			logger.InfoContext(ctx, e.Message, attrs...)
		}

		if h.events != nil {
			h.events.Publish(eventbus.NewEvent(eventbus.EventError, "errors", map[string]string{
				"code":       e.Code,
				"error_type": errorTypeToString(e.Type),
			}))
		}
	} else {
		// Handle standard errors
		logger.ErrorContext(ctx, "unhandled error", slog.String("error", err.Error()))
		if h.events != nil {
			h.events.Publish(eventbus.NewEvent(eventbus.EventError, "errors", map[string]string{
				"error": err.Error(),
			}))
		}
	}
}

// errorTypeToString converts ErrorType to string
func errorTypeToString(t ErrorType) string {
	switch t {
	case ErrorTypeTransport:
		return "transport"
	case ErrorTypeMalformedFrame:
		return "malformed_frame"
	case ErrorTypeAdmissionDenied:
		return "admission_denied"
	case ErrorTypeNotFound:
		return "not_found"
	case ErrorTypeUnauthorized:
		return "unauthorized"
	case ErrorTypeInternal:
		return "internal"
	case ErrorTypeTimeout:
		return "timeout"
	case ErrorTypeValidation:
		return "validation"
	case ErrorTypeHandlerFault:
		return "handler_fault"
	default:
		return "unknown"
	}
}
