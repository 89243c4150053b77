package model

import "encoding/json"

// ServiceError is returned to API consumers.
type ServiceError struct {
	Message   string `json:"message,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	BatchID   string `json:"batch_id,omitempty"`

	Code int `json:"-"`
}

func (err ServiceError) Error() string {
	data, _ := json.Marshal(&err)

	return string(data)
}

type Error string

func (err Error) Error() string {
	return string(err)
}

const (
	ErrNotFound           Error = "not found"
	ErrMissingParameter   Error = "missing parameter"
	ErrClientNotPrepared  Error = "client is not prepared"
	ErrUnauthorized       Error = "unauthorized"
	ErrForbidden          Error = "forbidden"
	ErrWrongStatusCode    Error = "wrong status code"
	ErrPreconditionFailed Error = "precondition failed"
	ErrThrottled          Error = "throttled"

	ErrEmptyDeviceClass   Error = "device class is empty"
	ErrInvalidDeviceClass Error = "device class contains forbidden characters"
	ErrBadConnString      Error = "malformed connection string"
)
