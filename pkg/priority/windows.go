// Package priority loads per-priority preferred start-time windows and
// computes the scheduling penalty for a start that falls outside one.
package priority

import (
	"math"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"
)

// Window is a resolved preferred start-time window, in minutes from
// midnight. End is nil for an open-ended window (LP).
type Window struct {
	Start int
	End   *int
	Grace int
	K     int
	Cap   int
}

// Windows holds the resolved window for each priority.
type Windows struct {
	EO Window
	HP Window
	LP Window
}

// FallbackNotice records that a priority window's settings fell back to the
// documented default because the configured value was absent or ambiguous.
type FallbackNotice struct {
	Priority domain.Priority
	Reason   string
}

// LoadWindows resolves the raw, possibly-partial configuration into
// concrete Windows, applying the documented defaults for any missing key
// and the eo_time/eo_end_time resolution rule below. A window left wholly
// unconfigured, or an EO window given only as eo_time, is returned as a
// FallbackNotice so the orchestrator can emit PHASE3_SETTINGS_FALLBACK_USED;
// a grace, k or cap key left at zero takes its default without a notice.
func LoadWindows(cfg config.PriorityWindowConfig) (Windows, []FallbackNotice) {
	var notices []FallbackNotice

	eo, eoNotice := resolveEO(cfg.EO)
	if eoNotice != "" {
		notices = append(notices, FallbackNotice{Priority: domain.PriorityEO, Reason: eoNotice})
	}
	if cfg.HP.Start == 0 && cfg.HP.End == nil {
		notices = append(notices, FallbackNotice{Priority: domain.PriorityHP, Reason: "no HP window configured; used documented default [660, 930]"})
	}
	if cfg.LP.Start == 0 && cfg.LP.End == nil {
		notices = append(notices, FallbackNotice{Priority: domain.PriorityLP, Reason: "no LP window configured; used documented default [660, open-ended)"})
	}

	hp := resolveGeneric(cfg.HP, 660, intPtr(930), 0, 1, 90)
	lp := resolveGeneric(cfg.LP, 660, nil, 0, 1, 60)

	return Windows{EO: eo, HP: hp, LP: lp}, notices
}

func intPtr(v int) *int { return &v }

// resolveEO resolves the eo_time/eo_end_time ambiguity: eo_end_time is
// authoritative; if only eo_time is present, treat it as the window end
// and default the start via the grace rule (start = end - default window
// width). Without either of those keys, plain start/end settings are used,
// each defaulted when unset; with no EO key at all, the documented default
// applies and is reported.
func resolveEO(raw config.WindowSetting) (Window, string) {
	defaultStart, defaultEnd, grace, k, cap := 600, 659, 0, 2, 120
	if raw.Grace != 0 {
		grace = raw.Grace
	}
	if raw.K != 0 {
		k = raw.K
	}
	if raw.Cap != 0 {
		cap = raw.Cap
	}

	switch {
	case raw.EOEndTime != nil:
		start := defaultStart
		if raw.Start != 0 {
			start = raw.Start
		}
		return Window{Start: start, End: raw.EOEndTime, Grace: grace, K: k, Cap: cap}, ""
	case raw.EOTime != nil:
		end := *raw.EOTime
		start := end - (defaultEnd - defaultStart)
		return Window{Start: start, End: &end, Grace: grace, K: k, Cap: cap},
			"eo_time present without eo_end_time; treated eo_time as window end and defaulted start via the grace rule"
	case raw.Start != 0 || raw.End != nil:
		start, end := defaultStart, defaultEnd
		if raw.Start != 0 {
			start = raw.Start
		}
		if raw.End != nil {
			end = *raw.End
		}
		return Window{Start: start, End: &end, Grace: grace, K: k, Cap: cap}, ""
	default:
		return Window{Start: defaultStart, End: intPtr(defaultEnd), Grace: grace, K: k, Cap: cap},
			"no EO window configured; used documented default [600, 659]"
	}
}

func resolveGeneric(raw config.WindowSetting, defaultStart int, defaultEnd *int, defaultGrace, defaultK, defaultCap int) Window {
	w := Window{Start: defaultStart, End: defaultEnd, Grace: defaultGrace, K: defaultK, Cap: defaultCap}
	if raw.Start != 0 {
		w.Start = raw.Start
	}
	if raw.End != nil {
		w.End = raw.End
	}
	if raw.Grace != 0 {
		w.Grace = raw.Grace
	}
	if raw.K != 0 {
		w.K = raw.K
	}
	if raw.Cap != 0 {
		w.Cap = raw.Cap
	}
	return w
}

// Result is the outcome of a penalty computation.
type Result struct {
	PenaltyValue float64
	ReasonCode   string
	// Violation is a human-readable description of the distance past the
	// window, empty when the penalty is 0.
	Violation string
}

var reasonCodes = map[domain.Priority]string{
	domain.PriorityEO: "EO_OUT_OF_PREFERRED_START_WINDOW",
	domain.PriorityHP: "HP_OUT_OF_PREFERRED_START_WINDOW",
	domain.PriorityLP: "LP_BEFORE_MIN_START",
}

// Penalty computes the priority-window penalty for a task scheduled to
// start at startMinute (minutes from midnight). Returns a zero Result for
// PriorityNone.
func Penalty(windows Windows, pr domain.Priority, startMinute int) Result {
	var w Window
	switch pr {
	case domain.PriorityEO:
		w = windows.EO
	case domain.PriorityHP:
		w = windows.HP
	case domain.PriorityLP:
		w = windows.LP
	default:
		return Result{}
	}

	lower := w.Start - w.Grace
	if w.End == nil {
		if startMinute >= lower {
			return Result{}
		}
		distance := lower - startMinute
		return Result{
			PenaltyValue: math.Min(float64(w.Cap), float64(w.K*distance)),
			ReasonCode:   reasonCodes[pr],
			Violation:    "start precedes window lower bound",
		}
	}

	upper := *w.End + w.Grace
	if startMinute >= lower && startMinute <= upper {
		return Result{}
	}

	var distance int
	if startMinute < lower {
		distance = lower - startMinute
	} else {
		distance = startMinute - upper
	}

	return Result{
		PenaltyValue: math.Min(float64(w.Cap), float64(w.K*distance)),
		ReasonCode:   reasonCodes[pr],
		Violation:    "start outside preferred window",
	}
}
