package validator

// Validator validates structs based on their validate tags.
type Validator interface {
	Validate(data any) error
}
