package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	WebhookErrorBadPayload    = "WEBHOOK_BAD_PAYLOAD"
	WebhookErrorUnauthorized  = "WEBHOOK_UNAUTHORIZED"
	WebhookErrorUnknownEvent  = "WEBHOOK_UNKNOWN_EVENT"
	WebhookErrorHandlerFailed = "WEBHOOK_HANDLER_FAILED"
	WebhookErrorConflict      = "WEBHOOK_CONFLICT"
	WebhookErrorNotFound      = "WEBHOOK_NOT_FOUND"
	WebhookErrorInternal      = "WEBHOOK_INTERNAL_ERROR"
)

// MapWebhookError normalizes any error into this module's error envelope:
// a category, an HTTP status, and a stable text code.
func MapWebhookError(err error) *goerrors.Error {
	return webhookErrorMapper(err)
}

func webhookErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureWebhookErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "signature"), strings.Contains(msg, "unauthenticated"):
		return newWebhookError(err.Error(), goerrors.CategoryAuth, WebhookErrorUnauthorized)
	case strings.Contains(msg, "decode"), strings.Contains(msg, "discriminator"),
		strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return newWebhookError(err.Error(), goerrors.CategoryBadInput, WebhookErrorBadPayload)
	case strings.Contains(msg, "handler"):
		return newWebhookError(err.Error(), goerrors.CategoryOperation, WebhookErrorHandlerFailed)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureWebhookErrorEnvelope(mapped)
}

func newWebhookError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureWebhookErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureWebhookErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = webhookHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultWebhookTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultWebhookTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return WebhookErrorBadPayload
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return WebhookErrorUnauthorized
	case goerrors.CategoryNotFound:
		return WebhookErrorNotFound
	case goerrors.CategoryConflict:
		return WebhookErrorConflict
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return WebhookErrorHandlerFailed
	default:
		return WebhookErrorInternal
	}
}

func webhookHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return http.StatusUnauthorized
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryOperation, goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func badEnvelopeError(message string, source error) error {
	if source == nil {
		return goerrors.New(message, goerrors.CategoryBadInput).
			WithCode(http.StatusBadRequest).
			WithTextCode(WebhookErrorBadPayload)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, message).
		WithCode(http.StatusBadRequest).
		WithTextCode(WebhookErrorBadPayload)
}
