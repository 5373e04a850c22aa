// Package handlers implements the ops HTTP API: health, the presence board,
// and the tracked-user listing.
//
// Every error response carries one of the codes below so clients can branch
// on a stable value instead of the message text:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "not_found",
//	  "message": "route not found"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeUnavailable      = "unavailable"

	// Board-specific:
	ErrCodeBoardFailed = "board_failed"
	ErrCodeListFailed  = "list_failed"
)
