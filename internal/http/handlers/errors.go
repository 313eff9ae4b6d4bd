// Package handlers – error codes
//
// Every error response carries one of these stable, snake_case codes next to
// the HTTP status. Clients branch on the code; the message is for humans.
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "validation_failed",
//	  "message": "rating: must be between 1 and 5"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeValidation       = "validation_failed"
	ErrCodeTooLarge         = "payload_too_large"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Operation-specific 5xx codes.
	ErrCodeCreateFailed    = "create_failed"
	ErrCodeLookupFailed    = "lookup_failed"
	ErrCodeListFailed      = "list_failed"
	ErrCodeAnalyticsFailed = "analytics_failed"
	ErrCodeLoginFailed     = "login_failed"
)
