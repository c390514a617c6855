// Package dialect renders SQL fragments the way a particular database
// expects them: identifier quoting, parameter placeholders, and literal
// values.
package dialect

type Dialect interface {
	QuoteIdentifier(name string) string
	Placeholder(n int) string
	RenderValue(v any) string
}
