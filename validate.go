package mcp

import "github.com/go-playground/validator/v10"

// sharedValidate is the single *validator.Validate instance used across
// the package for struct-shape validation of protocol DTOs (a Root's URI
// scheme, a Tool's non-empty name, a non-negative progress value). It is
// not a JSON-schema engine: tool `inputSchema` bodies stay opaque
// json.RawMessage, consistent with the Non-goal excluding validation of
// tool-call arguments.
var sharedValidate = validator.New()

// validateStruct runs struct-tag validation and translates any failure
// into an *ArgumentError, the error kind this package uses for invalid
// arguments.
func validateStruct(v any) error {
	if err := sharedValidate.Struct(v); err != nil {
		return NewArgumentError("validation failed", err)
	}
	return nil
}
