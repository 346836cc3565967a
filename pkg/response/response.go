package response

import "installpro/pkg/apperror"

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Code       string      `json:"code,omitempty"`
	Reason     string      `json:"reason,omitempty"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// FromError builds an error response from any error, using the AppError code
// and message when present. Internal details are never exposed.
func FromError(err error) (int, Response) {
	ae := apperror.From(err)
	statusCode := apperror.HTTPStatus(ae.Code)
	msg := ae.Message
	if ae.Code == apperror.CodeInternal {
		msg = "Error interno del servidor"
	}
	return statusCode, Response{
		Status:     "error",
		StatusCode: statusCode,
		Code:       string(ae.Code),
		Reason:     string(ae.Reason),
		Error:      msg,
	}
}
