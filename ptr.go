package mcp

// Ptr returns a pointer to the given value. Useful for constructing
// optional pointer fields in a struct literal.
//
// Example:
//
//	tool := mcp.Tool{
//		Name:        "search",
//		Description: mcp.Ptr("search the index"),
//	}
func Ptr[T any](v T) *T {
	return &v
}
