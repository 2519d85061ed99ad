package dto

// APIResponse is the standard envelope for API responses
type APIResponse struct {
	Data  interface{}  `json:"data,omitempty"`
	Error *ErrorDetail `json:"error,omitempty"`
}

// NewSuccessResponse wraps data in the standard success envelope
func NewSuccessResponse(data interface{}) APIResponse {
	return APIResponse{Data: data}
}

// MessageResponse represents a simple message-only success response
type MessageResponse struct {
	Message string `json:"message" example:"Query accepted successfully"`
}
