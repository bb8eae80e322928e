package domain

// Notification reports a validation or business-rule failure back to the caller.
type Notification struct {
	Key     string `json:"key"`
	Message string `json:"message"`
}

// ValidationError is a single failed field of a command.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return v.Field + ": " + v.Message
}
