package util

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Calculate normalizes page and limit and returns the row offset.
// A zero limit means the default, anything else is clamped to [1, MaxLimit].
func Calculate(page, limit int) (p, l, offset int) {
	if page < 1 {
		page = 1
	}
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	return page, limit, (page - 1) * limit
}
