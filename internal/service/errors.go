package service

// ServiceError wraps an error with a code for API response mapping.
type ServiceError struct {
	Code    string // INVALID_ARGUMENT, NOT_FOUND, CONFLICT, ENGINE_LOAD, INTERNAL
	Message string
	Err     error
}

func (e *ServiceError) Error() string { return e.Message }
func (e *ServiceError) Unwrap() error { return e.Err }

func invalidArg(msg string, err error) *ServiceError {
	return &ServiceError{Code: "INVALID_ARGUMENT", Message: msg, Err: err}
}

func notFound(msg string, err error) *ServiceError {
	return &ServiceError{Code: "NOT_FOUND", Message: msg, Err: err}
}

func conflict(msg string, err error) *ServiceError {
	return &ServiceError{Code: "CONFLICT", Message: msg, Err: err}
}

func engineLoad(msg string, err error) *ServiceError {
	return &ServiceError{Code: "ENGINE_LOAD", Message: msg, Err: err}
}

func internal(msg string, err error) *ServiceError {
	return &ServiceError{Code: "INTERNAL", Message: msg, Err: err}
}
