package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/lifequest/internal/handlers"
	"github.com/jwebster45206/lifequest/pkg/chat"
	"github.com/jwebster45206/lifequest/pkg/game"
)

type ErrorHandlingMode string

const ErrorHandlingExit ErrorHandlingMode = "exit"
const ErrorHandlingContinue ErrorHandlingMode = "continue"

// Runner executes integration tests against a running LifeQuest API
type Runner struct {
	BaseURL           string
	Client            *http.Client
	Timeout           time.Duration
	Logger            func(format string, args ...interface{})
	ErrorHandlingMode ErrorHandlingMode
}

// NewRunner creates a new test runner
func NewRunner(baseURL string) *Runner {
	return &Runner{
		BaseURL:           strings.TrimSuffix(baseURL, "/"),
		Client:            &http.Client{Timeout: 60 * time.Second},
		Timeout:           30 * time.Second,
		Logger:            func(string, ...interface{}) {},
		ErrorHandlingMode: ErrorHandlingContinue,
	}
}

// LoadTestSuite loads a test suite from a JSON file
func LoadTestSuite(filename string) (TestSuite, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return TestSuite{}, fmt.Errorf("failed to read test file %s: %w", filename, err)
	}

	var suite TestSuite
	if err := json.Unmarshal(content, &suite); err != nil {
		return TestSuite{}, fmt.Errorf("failed to parse JSON in %s: %w", filename, err)
	}
	return suite, nil
}

// LoadTestSuiteWithExpansion loads a test suite and expands it if it's a sequence
func LoadTestSuiteWithExpansion(filename string, casesDir string) ([]TestJob, error) {
	suite, err := LoadTestSuite(filename)
	if err != nil {
		return nil, err
	}

	if !suite.IsSequence() {
		return []TestJob{{
			Name:     suite.Name,
			Suite:    suite,
			CaseFile: filename,
		}}, nil
	}

	var jobs []TestJob
	for _, caseFile := range suite.Cases {
		subJobs, err := LoadTestSuiteWithExpansion(filepath.Join(casesDir, caseFile), casesDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load case '%s' referenced by sequence '%s': %w", caseFile, suite.Name, err)
		}
		jobs = append(jobs, subJobs...)
	}
	return jobs, nil
}

// RunSuite executes a complete test suite as a brand new player.
func (r *Runner) RunSuite(ctx context.Context, suite TestSuite) (TestRunResult, error) {
	start := time.Now()
	result := TestRunResult{
		Job:      TestJob{Name: suite.Name, Suite: suite},
		Results:  make([]TestResult, 0, len(suite.Steps)),
		PlayerID: "it-" + uuid.New().String()[:8],
	}
	displayName := suite.DisplayName
	if displayName == "" {
		displayName = "Integration"
	}

	for i, step := range suite.Steps {
		r.Logger("    [%d/%d] Running step: %s", i+1, len(suite.Steps), step.Name)
		stepResult := r.runStep(ctx, result.PlayerID, displayName, step)
		stepResult.TestName = suite.Name
		result.Results = append(result.Results, stepResult)

		if stepResult.Error != nil {
			r.Logger("    [%d/%d] ✗ %s: %v", i+1, len(suite.Steps), step.Name, stepResult.Error)
			if result.Error == nil {
				result.Error = fmt.Errorf("step %d (%s) failed: %w", i, step.Name, stepResult.Error)
			}
			if r.ErrorHandlingMode == ErrorHandlingExit {
				break
			}
			continue
		}
		r.Logger("    [%d/%d] ✓ %s (%v)", i+1, len(suite.Steps), step.Name, stepResult.Duration)
	}

	result.Duration = time.Since(start)
	return result, result.Error
}

func (r *Runner) runStep(ctx context.Context, playerID, displayName string, step TestStep) TestResult {
	start := time.Now()
	out := TestResult{StepName: step.Name}

	req := chat.TurnRequest{
		PlayerID:    playerID,
		DisplayName: displayName,
		Message:     step.Message,
		Postback:    step.Postback,
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	var (
		res game.Result
		err error
	)
	if step.Async {
		res, err = r.runAsync(ctx, req)
	} else {
		res, err = r.postTurn(ctx, req)
	}
	out.Duration = time.Since(start)
	if err != nil {
		out.Error = err
		return out
	}
	out.ResponseText = res.Text

	var snap *handlers.PlayerSnapshot
	if step.Expectations.NeedsPlayer() {
		snap, err = r.getPlayer(ctx, playerID)
		if err != nil {
			out.Error = err
			return out
		}
	}

	if err := Check(step.Expectations, res, snap); err != nil {
		out.Error = err
		return out
	}
	out.Success = true
	return out
}

func (r *Runner) postTurn(ctx context.Context, turn chat.TurnRequest) (game.Result, error) {
	body, err := json.Marshal(turn)
	if err != nil {
		return game.Result{}, fmt.Errorf("failed to marshal turn: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/v1/turns", bytes.NewReader(body))
	if err != nil {
		return game.Result{}, fmt.Errorf("failed to create turn request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return game.Result{}, fmt.Errorf("failed to send turn: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return game.Result{}, fmt.Errorf("failed to read turn response: %w", err)
	}
	// Refusals carry a rendered Result whatever the status code.
	var tr chat.TurnResponse
	if err := json.Unmarshal(data, &tr); err == nil && tr.Result.Intent != "" {
		return tr.Result, nil
	}
	return game.Result{}, fmt.Errorf("turn endpoint returned %d: %s", resp.StatusCode, string(data))
}

func (r *Runner) getPlayer(ctx context.Context, playerID string) (*handlers.PlayerSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/players/%s", r.BaseURL, playerID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create player request: %w", err)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("player endpoint returned %d: %s", resp.StatusCode, string(data))
	}
	var snap handlers.PlayerSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to parse player: %w", err)
	}
	return &snap, nil
}

// Check compares a step's Result and player snapshot with its
// expectations and returns every mismatch at once.
func Check(e Expectations, res game.Result, snap *handlers.PlayerSnapshot) error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if e.Intent != nil && res.Intent != *e.Intent {
		add("intent: expected %q, got %q", *e.Intent, res.Intent)
	}
	if e.Sender != nil && string(res.Metadata.Sender) != *e.Sender {
		add("sender: expected %q, got %q", *e.Sender, res.Metadata.Sender)
	}
	if e.ErrorCode != nil && res.Metadata.ErrorCode != *e.ErrorCode {
		add("error_code: expected %q, got %q", *e.ErrorCode, res.Metadata.ErrorCode)
	}
	if e.MinXPGained != nil && res.Metadata.XPGained < *e.MinXPGained {
		add("xp_gained: expected at least %d, got %d", *e.MinXPGained, res.Metadata.XPGained)
	}
	if e.LevelUp != nil && res.Metadata.LevelUp != *e.LevelUp {
		add("level_up: expected %v, got %v", *e.LevelUp, res.Metadata.LevelUp)
	}
	if e.MinQuickReply != nil && len(res.QuickReplies) < *e.MinQuickReply {
		add("quick_replies: expected at least %d, got %d", *e.MinQuickReply, len(res.QuickReplies))
	}

	text := strings.ToLower(res.Text)
	for _, want := range e.ResponseContains {
		if !strings.Contains(text, strings.ToLower(want)) {
			add("response should contain %q", want)
		}
	}
	for _, bad := range e.ResponseNotContains {
		if strings.Contains(text, strings.ToLower(bad)) {
			add("response should not contain %q", bad)
		}
	}
	if e.ResponseRegex != "" {
		re, err := regexp.Compile(e.ResponseRegex)
		if err != nil {
			add("bad response_regex %q: %v", e.ResponseRegex, err)
		} else if !re.MatchString(res.Text) {
			add("response does not match %q", e.ResponseRegex)
		}
	}
	n := len([]rune(res.Text))
	if e.ResponseMinLength != nil && n < *e.ResponseMinLength {
		add("response length %d below %d", n, *e.ResponseMinLength)
	}
	if e.ResponseMaxLength != nil && n > *e.ResponseMaxLength {
		add("response length %d above %d", n, *e.ResponseMaxLength)
	}

	if snap != nil && snap.Player != nil {
		p := snap.Player
		if e.Level != nil && p.Level != *e.Level {
			add("level: expected %d, got %d", *e.Level, p.Level)
		}
		if e.MinGold != nil && p.Gold < *e.MinGold {
			add("gold: expected at least %d, got %d", *e.MinGold, p.Gold)
		}
		if e.HPStatus != nil && string(p.Vitals.Status) != *e.HPStatus {
			add("hp_status: expected %q, got %q", *e.HPStatus, p.Vitals.Status)
		}
		if e.QuestsToday != nil && len(snap.Quests) != *e.QuestsToday {
			add("quests today: expected %d, got %d", *e.QuestsToday, len(snap.Quests))
		}
	} else if e.NeedsPlayer() {
		add("player snapshot missing")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}
