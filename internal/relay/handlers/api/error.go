package api

import "fmt"

// RelayAPIError is the error envelope every relay endpoint answers with.
type RelayAPIError struct {
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *RelayAPIError) Error() string {
	return fmt.Sprintf("relay api error: code=%s, message=%s", e.Code, e.Message)
}
