package timer

// Warning names a one-shot remaining-time threshold.
type Warning string

const (
	HalfTime    Warning = "halfTime"
	TenMinutes  Warning = "tenMinutes"
	FiveMinutes Warning = "fiveMinutes"
	OneMinute   Warning = "oneMinute"
)

// Priority order used when several thresholds are pending at once.
var warningOrder = [...]Warning{HalfTime, TenMinutes, FiveMinutes, OneMinute}

// Warnings records which thresholds already fired during the current run.
type Warnings struct {
	HalfTime    bool `json:"halfTime"`
	TenMinutes  bool `json:"tenMinutes"`
	FiveMinutes bool `json:"fiveMinutes"`
	OneMinute   bool `json:"oneMinute"`
}

// Shown reports whether w already fired.
func (ws Warnings) Shown(w Warning) bool {
	switch w {
	case HalfTime:
		return ws.HalfTime
	case TenMinutes:
		return ws.TenMinutes
	case FiveMinutes:
		return ws.FiveMinutes
	case OneMinute:
		return ws.OneMinute
	}
	return false
}

// With returns a copy with w marked as shown.
func (ws Warnings) With(w Warning) Warnings {
	switch w {
	case HalfTime:
		ws.HalfTime = true
	case TenMinutes:
		ws.TenMinutes = true
	case FiveMinutes:
		ws.FiveMinutes = true
	case OneMinute:
		ws.OneMinute = true
	}
	return ws
}

// Thresholds are remaining-time boundaries in seconds.
type Thresholds struct {
	HalfTime    int
	TenMinutes  int
	FiveMinutes int
	OneMinute   int
}

// ThresholdsFor computes the thresholds for a countdown of total seconds.
func ThresholdsFor(total int) Thresholds {
	return Thresholds{
		HalfTime:    total / 2,
		TenMinutes:  10 * 60,
		FiveMinutes: 5 * 60,
		OneMinute:   60,
	}
}

func (t Thresholds) of(w Warning) int {
	switch w {
	case HalfTime:
		return t.HalfTime
	case TenMinutes:
		return t.TenMinutes
	case FiveMinutes:
		return t.FiveMinutes
	case OneMinute:
		return t.OneMinute
	}
	return 0
}

// NextWarning returns the first pending threshold that remaining has reached.
// Thresholds above total never fire: a timer that starts below a boundary
// has not crossed it.
func NextWarning(remaining, total int, shown Warnings) (Warning, bool) {
	th := ThresholdsFor(total)
	for _, w := range warningOrder {
		limit := th.of(w)
		if limit <= 0 || limit > total {
			continue
		}
		if remaining <= limit && !shown.Shown(w) {
			return w, true
		}
	}
	return "", false
}

// MessageKey is the translation key announcing w.
func (w Warning) MessageKey() string {
	return "timer." + string(w)
}
