package runner

import (
	"time"
)

// TestSuite is one scripted conversation, or a sequence of other case
// files when Cases is set. Every suite gets a fresh player.
type TestSuite struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name,omitempty"`
	Steps       []TestStep `json:"steps,omitempty"`
	Cases       []string   `json:"cases,omitempty"`
}

// IsSequence returns true if this is a suite that sequences other cases
func (ts *TestSuite) IsSequence() bool {
	return len(ts.Cases) > 0
}

// TestStep sends one message or button press. Async steps go through the
// queue and wait for the worker's SSE event instead of /v1/turns.
type TestStep struct {
	Name         string       `json:"name,omitempty"`
	Message      string       `json:"message,omitempty"`
	Postback     string       `json:"postback,omitempty"`
	Async        bool         `json:"async,omitempty"`
	Expectations Expectations `json:"expect"`
}

// Expectations defines what to check after a test step executes
type Expectations struct {
	Intent        *string `json:"intent,omitempty"`
	Sender        *string `json:"sender,omitempty"`
	ErrorCode     *string `json:"error_code,omitempty"`
	MinXPGained   *int    `json:"min_xp_gained,omitempty"`
	LevelUp       *bool   `json:"level_up,omitempty"`
	MinQuickReply *int    `json:"min_quick_replies,omitempty"`

	// Player snapshot after the step
	Level       *int    `json:"level,omitempty"`
	MinGold     *int    `json:"min_gold,omitempty"`
	HPStatus    *string `json:"hp_status,omitempty"`
	QuestsToday *int    `json:"quests_today,omitempty"`

	// Response Analysis
	ResponseContains    []string `json:"response_contains,omitempty"`
	ResponseNotContains []string `json:"response_not_contains,omitempty"`
	ResponseRegex       string   `json:"response_regex,omitempty"`
	ResponseMinLength   *int     `json:"response_min_length,omitempty"`
	ResponseMaxLength   *int     `json:"response_max_length,omitempty"`
}

// NeedsPlayer reports whether the step checks the player snapshot.
func (e Expectations) NeedsPlayer() bool {
	return e.Level != nil || e.MinGold != nil || e.HPStatus != nil || e.QuestsToday != nil
}

// TestResult contains the outcome of running a test step
type TestResult struct {
	TestName     string
	StepName     string
	Success      bool
	Error        error
	Duration     time.Duration
	ResponseText string
}

// TestJob represents a test suite to be executed
type TestJob struct {
	Name     string
	Suite    TestSuite
	CaseFile string
}

// TestRunResult contains the results of running an entire test suite
type TestRunResult struct {
	Job      TestJob
	Results  []TestResult
	Error    error
	Duration time.Duration
	PlayerID string
}
