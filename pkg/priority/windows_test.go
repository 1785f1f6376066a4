package priority

import (
	"testing"

	"cleanopt/internal/config"
	"cleanopt/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultWindowsForTest(t *testing.T) Windows {
	t.Helper()
	cfg := config.DefaultConfig()
	windows, _ := LoadWindows(cfg.Windows)
	return windows
}

func TestPenalty_EOInsideWindow(t *testing.T) {
	windows := defaultWindowsForTest(t)
	result := Penalty(windows, domain.PriorityEO, 615)
	assert.Equal(t, 0.0, result.PenaltyValue)
}

func TestPenalty_EOBeforeWindow(t *testing.T) {
	windows := defaultWindowsForTest(t)
	// Window [600,659], k=2: start 590 -> distance 10 -> penalty 20.
	result := Penalty(windows, domain.PriorityEO, 590)
	assert.Equal(t, 20.0, result.PenaltyValue)
	assert.Equal(t, "EO_OUT_OF_PREFERRED_START_WINDOW", result.ReasonCode)
}

func TestPenalty_CapApplied(t *testing.T) {
	windows := defaultWindowsForTest(t)
	result := Penalty(windows, domain.PriorityEO, 0)
	assert.Equal(t, 120.0, result.PenaltyValue)
}

func TestPenalty_LPOpenEnded(t *testing.T) {
	windows := defaultWindowsForTest(t)
	result := Penalty(windows, domain.PriorityLP, 2000)
	assert.Equal(t, 0.0, result.PenaltyValue)
}

func TestPenalty_LPBeforeMinStart(t *testing.T) {
	windows := defaultWindowsForTest(t)
	result := Penalty(windows, domain.PriorityLP, 500)
	assert.Equal(t, "LP_BEFORE_MIN_START", result.ReasonCode)
	assert.Greater(t, result.PenaltyValue, 0.0)
}

func TestPenalty_NoPriority(t *testing.T) {
	windows := defaultWindowsForTest(t)
	result := Penalty(windows, domain.PriorityNone, 0)
	assert.Equal(t, 0.0, result.PenaltyValue)
	assert.Empty(t, result.ReasonCode)
}

func TestLoadWindows_EOTimeOnlyFallsBackToEnd(t *testing.T) {
	eoTime := 700
	cfg := config.PriorityWindowConfig{
		EO: config.WindowSetting{EOTime: &eoTime},
		HP: config.WindowSetting{Start: 660, End: intPtrTest(930)},
		LP: config.WindowSetting{Start: 660},
	}
	windows, notices := LoadWindows(cfg)

	require.NotNil(t, windows.EO.End)
	assert.Equal(t, 700, *windows.EO.End)
	assert.NotEmpty(t, notices)
}

func intPtrTest(v int) *int { return &v }
