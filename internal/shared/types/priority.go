package types

// Rank is the reclaim importance of the host process. Lower values are more
// important and reclaimed last.
type Rank int

const (
	RankForeground        Rank = 100
	RankForegroundService Rank = 125
	RankVisible           Rank = 200
	RankService           Rank = 300
	RankBackground        Rank = 400
	RankEmpty             Rank = 500
)

// String returns the string representation of the rank
func (r Rank) String() string {
	switch r {
	case RankForeground:
		return "foreground"
	case RankForegroundService:
		return "foreground_service"
	case RankVisible:
		return "visible"
	case RankService:
		return "service"
	case RankBackground:
		return "background"
	case RankEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// MoreImportant reports whether r outranks other
func (r Rank) MoreImportant(other Rank) bool {
	return r < other
}

// MarshalText implements encoding.TextMarshaler
func (r Rank) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}
