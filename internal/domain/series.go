package domain

import "strings"

type MetricKind string

const (
	MetricMembers  MetricKind = "members"
	MetricMessages MetricKind = "messages"
)

func ParseMetricKind(s string) (MetricKind, error) {
	switch MetricKind(strings.ToLower(s)) {
	case MetricMembers:
		return MetricMembers, nil
	case MetricMessages:
		return MetricMessages, nil
	}
	return "", ErrUnknownMetric
}

// TimeFrame is the named window a query is filtered by. Any string is accepted;
// how unknown values fall back depends on the metric kind.
type TimeFrame string

const (
	FrameDay   TimeFrame = "day"
	FrameWeek  TimeFrame = "week"
	FrameMonth TimeFrame = "month"
	FrameYear  TimeFrame = "year"
	FrameAll   TimeFrame = "all"

	DefaultFrame = FrameDay
)

// Point is one entry of a Series. Key is a unix timestamp rendered as a decimal
// string for member series and a YYYY-MM-DD date for message series; Unix carries
// the instant for both (midnight UTC for dates).
type Point struct {
	Key   string `json:"key"`
	Unix  int64  `json:"unix"`
	Value int64  `json:"value"`
}

type Series struct {
	GuildID string     `json:"guild_id"`
	Kind    MetricKind `json:"kind"`
	Frame   TimeFrame  `json:"timeframe"`
	Points  []Point    `json:"points"`
}

func (s Series) Len() int { return len(s.Points) }
