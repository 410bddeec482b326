package util

// Ptr returns a pointer to v, mostly for filling optional filter and
// struct fields from literals.
func Ptr[T any](v T) *T {
	return &v
}
