//go:build integration

package integration

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/jwebster45206/lifequest/integration/runner"
)

var caseFlag = flag.String("case", "", "Name of test case to run (from integration/cases/)")
var errFlag = flag.String("err", "continue", "Error handling mode: 'continue' (run all steps) or 'exit' (stop on first failure)")
var runsFlag = flag.Int("runs", 1, "Number of times to run each test suite (useful for testing non-deterministic behavior)")

func apiBaseURL() string {
	if v := os.Getenv("API_BASE_URL"); v != "" {
		return v
	}
	return "http://localhost:8080"
}

func newRunner(mode runner.ErrorHandlingMode) *runner.Runner {
	r := runner.NewRunner(apiBaseURL())
	r.Timeout = time.Duration(getIntEnv("TEST_TIMEOUT_SECONDS", 30)) * time.Second
	r.ErrorHandlingMode = mode
	r.Logger = func(format string, args ...interface{}) {
		fmt.Printf(format+"\n", args...)
	}
	return r
}

func TestMain(m *testing.M) {
	fmt.Printf("Running LifeQuest Integration Tests\n")
	fmt.Printf("   API Base URL: %s\n", apiBaseURL())
	os.Exit(m.Run())
}

func TestIntegrationSuites(t *testing.T) {
	testRunner := newRunner(runner.ErrorHandlingContinue)

	testFiles, err := discoverTestFiles("cases")
	if err != nil {
		t.Fatalf("Failed to discover test files: %v", err)
	}
	if len(testFiles) == 0 {
		t.Fatal("No test files found in cases directory")
	}

	var jobs []runner.TestJob
	for _, file := range testFiles {
		expandedJobs, err := runner.LoadTestSuiteWithExpansion(file, "cases")
		if err != nil {
			t.Errorf("Failed to load test suite %s: %v", file, err)
			continue
		}
		jobs = append(jobs, expandedJobs...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var failed []string
	for i, job := range jobs {
		t.Logf("[%d/%d] Starting test suite: %s (%d steps)", i+1, len(jobs), job.Name, len(job.Suite.Steps))
		result, _ := testRunner.RunSuite(ctx, job.Suite)
		t.Logf("Player ID: %s", result.PlayerID)

		for _, stepResult := range result.Results {
			if stepResult.Success {
				t.Logf("   ✓ %s (%v)", stepResult.StepName, stepResult.Duration)
			} else {
				t.Errorf("   ✗ %s: %v", stepResult.StepName, stepResult.Error)
			}
		}
		if result.Error != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", job.Name, result.Error))
		}
	}

	t.Logf("Integration Test Summary: %d passed, %d failed", len(jobs)-len(failed), len(failed))
	if len(failed) > 0 {
		for _, failure := range failed {
			t.Logf("   - %s", failure)
		}
		t.Fatalf("Integration tests failed")
	}
}

// TestSingleSuite runs the suites named by -case, comma separated,
// -runs times each.
func TestSingleSuite(t *testing.T) {
	flag.Parse()
	if *caseFlag == "" {
		t.Skip("Skipping single suite test (use -case flag to run)")
	}
	if *errFlag != "exit" && *errFlag != "continue" {
		t.Fatalf("Invalid -err flag value: %s (must be 'exit' or 'continue')", *errFlag)
	}
	runs := *runsFlag
	if runs < 1 {
		t.Fatalf("Number of runs must be >= 1, got: %d", runs)
	}

	mode := runner.ErrorHandlingMode(*errFlag)
	if runs > 1 {
		mode = runner.ErrorHandlingContinue
	}
	testRunner := newRunner(mode)

	var allFailures []failureDetail
	total, passes := 0, 0
	for run := 1; run <= runs; run++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		for _, caseName := range strings.Split(*caseFlag, ",") {
			caseName = strings.TrimSpace(caseName)
			if caseName == "" {
				continue
			}
			file := filepath.Join("cases", strings.TrimSuffix(caseName, ".json")+".json")
			jobs, err := runner.LoadTestSuiteWithExpansion(file, "cases")
			if err != nil {
				cancel()
				t.Fatalf("Failed to load test suite %s: %v", file, err)
			}
			for _, job := range jobs {
				total++
				result, _ := testRunner.RunSuite(ctx, job.Suite)
				if result.Error == nil {
					passes++
					continue
				}
				for _, sr := range result.Results {
					if !sr.Success {
						allFailures = append(allFailures, failureDetail{
							caseName: job.Name,
							stepName: sr.StepName,
							error:    sr.Error.Error(),
							run:      run,
						})
					}
				}
				if mode == runner.ErrorHandlingExit {
					cancel()
					t.Fatalf("Test suite %s failed: %v", job.Name, result.Error)
				}
			}
		}
		cancel()
	}

	if len(allFailures) > 0 {
		t.Log(buildFailureReport(allFailures, total, passes))
		t.Fatalf("Test suite(s) had errors")
	}
	t.Logf("%d/%d suite runs passed", passes, total)
}

type failureDetail struct {
	caseName string
	stepName string
	error    string
	run      int
}

func buildFailureReport(allFailures []failureDetail, total, passes int) string {
	var sb strings.Builder
	sb.WriteString("\n========================================\n")
	sb.WriteString("Detailed Failure Report\n")
	sb.WriteString("========================================\n")
	if total > 0 {
		sb.WriteString(fmt.Sprintf("\nOverall: %d/%d passed (%.1f%%)\n", passes, total, float64(passes)/float64(total)*100))
	}

	byCase := make(map[string][]failureDetail)
	for _, f := range allFailures {
		byCase[f.caseName] = append(byCase[f.caseName], f)
	}
	names := make([]string, 0, len(byCase))
	for name := range byCase {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		sb.WriteString(fmt.Sprintf("\n%s (%d step failure(s)):\n", name, len(byCase[name])))
		for _, f := range byCase[name] {
			sb.WriteString(fmt.Sprintf("  ✗ %s (run %d): %s\n", f.stepName, f.run, f.error))
		}
	}
	return sb.String()
}

func discoverTestFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(path, ".json") {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func getIntEnv(name string, defaultValue int) int {
	val, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return defaultValue
	}
	return val
}
