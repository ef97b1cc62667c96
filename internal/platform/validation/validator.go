package validation

// Validator checks a decoded payload and returns the failing fields keyed by
// their JSON name, or nil when the payload is valid.
type Validator interface {
	ValidateStruct(s any) map[string]string
}
