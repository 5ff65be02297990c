package preflight

import (
	"context"
	"os"
	"testing"

	"argus/internal/database"
)

// connectTestMongo dials MONGODB_TEST_URI, skipping the test when it isn't
// set or unreachable — preflight's connectivity checks need a real server,
// unlike the rest of the suite.
func connectTestMongo(t *testing.T) *database.MongoDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping MongoDB-backed preflight test in short mode")
	}
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}
	mdb, err := database.NewMongoDB(uri)
	if err != nil {
		t.Skipf("could not reach test MongoDB: %v", err)
	}
	return mdb
}

func TestNewChecker(t *testing.T) {
	checker := NewChecker(nil, nil)
	if checker == nil {
		t.Fatal("expected non-nil checker")
	}
	if len(checker.requiredEnvars) == 0 {
		t.Error("expected at least one required envar")
	}
}

func TestCheckMongoConnection_Success(t *testing.T) {
	mdb := connectTestMongo(t)
	defer mdb.Close(context.Background())

	checker := NewChecker(mdb, nil)
	result := checker.checkMongoConnection()

	if result.Status != "pass" {
		t.Errorf("expected status 'pass', got %q: %s", result.Status, result.Message)
	}
	if result.Name != "MongoDB Connection" {
		t.Errorf("expected name 'MongoDB Connection', got %q", result.Name)
	}
}

func TestCheckMongoCollections(t *testing.T) {
	mdb := connectTestMongo(t)
	defer mdb.Close(context.Background())

	checker := NewChecker(mdb, nil)
	result := checker.checkMongoCollections()

	if result.Status == "fail" {
		t.Errorf("expected 'pass' or 'warning', got 'fail': %s", result.Message)
	}
}

func TestCheckEnvironmentVariables_MissingRequired(t *testing.T) {
	old := os.Getenv("MONGODB_URI")
	os.Unsetenv("MONGODB_URI")
	defer os.Setenv("MONGODB_URI", old)

	checker := NewChecker(nil, nil)
	result := checker.checkEnvironmentVariables()

	if result.Status != "fail" {
		t.Errorf("expected status 'fail' when MONGODB_URI is unset, got %q", result.Status)
	}
}

func TestCheckEnvironmentVariables_MissingLLMKeyIsWarning(t *testing.T) {
	os.Setenv("MONGODB_URI", "mongodb://localhost:27017/argus")
	old := os.Getenv("LLM_API_KEY")
	os.Unsetenv("LLM_API_KEY")
	defer os.Setenv("LLM_API_KEY", old)

	checker := NewChecker(nil, nil)
	result := checker.checkEnvironmentVariables()

	if result.Status != "warning" {
		t.Errorf("expected status 'warning' when LLM_API_KEY is unset, got %q: %s", result.Status, result.Message)
	}
}

func TestCheckLLMConnectivity_NilClientIsWarning(t *testing.T) {
	checker := NewChecker(nil, nil)
	result := checker.checkLLMConnectivity()

	if result.Status != "warning" {
		t.Errorf("expected status 'warning' for a nil LLM client, got %q", result.Status)
	}
}

func TestHasFailures(t *testing.T) {
	results := []CheckResult{
		{Status: "pass"},
		{Status: "pass"},
		{Status: "warning"},
	}
	if HasFailures(results) {
		t.Error("expected no failures")
	}

	results = append(results, CheckResult{Status: "fail"})
	if !HasFailures(results) {
		t.Error("expected failures to be detected")
	}
}

func TestQuickCheck(t *testing.T) {
	mdb := connectTestMongo(t)
	defer mdb.Close(context.Background())

	checker := NewChecker(mdb, nil)
	results := checker.QuickCheck()

	if len(results) == 0 {
		t.Error("expected results from quick check")
	}

	fullResults := checker.RunAll()
	if len(results) >= len(fullResults) {
		t.Error("expected quick check to run fewer checks than full check")
	}
}
