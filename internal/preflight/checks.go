package preflight

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"argus/internal/database"
	"argus/internal/tier"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	mongo          *database.MongoDB
	llm            *tier.Client
	requiredEnvars []string
}

// NewChecker creates a new preflight checker. llm may be nil when AI_TIER_MODE
// forces the heuristic tier and no LLM credentials are configured.
func NewChecker(mongo *database.MongoDB, llm *tier.Client) *Checker {
	return &Checker{
		mongo: mongo,
		llm:   llm,
		requiredEnvars: []string{
			"MONGODB_URI",
		},
	}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkMongoConnection(),
		c.checkMongoCollections(),
		c.checkEnvironmentVariables(),
		c.checkLLMConnectivity(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("\n📊 Pre-flight summary: %d passed, %d failed, %d warnings\n", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

// checkMongoConnection verifies the document store is reachable.
func (c *Checker) checkMongoConnection() CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.mongo.Ping(ctx); err != nil {
		return CheckResult{
			Name:    "MongoDB Connection",
			Status:  "fail",
			Message: "Cannot connect to MongoDB",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "MongoDB Connection",
		Status:  "pass",
		Message: "MongoDB connection successful",
	}
}

// checkMongoCollections verifies the six logical collections exist. It only
// reports; Initialize is responsible for actually creating them.
func (c *Checker) checkMongoCollections() CheckResult {
	required := []string{
		database.CollectionEvents,
		database.CollectionMessages,
		database.CollectionTriggers,
		database.CollectionContacts,
		database.CollectionContextDismissals,
		database.CollectionPushSubscriptions,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	names, err := c.mongo.Database().ListCollectionNames(ctx, map[string]interface{}{})
	if err != nil {
		return CheckResult{
			Name:    "MongoDB Collections",
			Status:  "warning",
			Message: "Could not list collections; they will be created on first write",
		}
	}

	existing := make(map[string]bool, len(names))
	for _, n := range names {
		existing[n] = true
	}

	missing := []string{}
	for _, name := range required {
		if !existing[name] {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:    "MongoDB Collections",
			Status:  "warning",
			Message: fmt.Sprintf("Collections not yet created (will be on first write): %v", missing),
		}
	}

	return CheckResult{
		Name:    "MongoDB Collections",
		Status:  "pass",
		Message: fmt.Sprintf("All %d collections exist", len(required)),
	}
}

// checkEnvironmentVariables verifies required environment variables are set
func (c *Checker) checkEnvironmentVariables() CheckResult {
	missing := []string{}

	for _, envar := range c.requiredEnvars {
		if os.Getenv(envar) == "" {
			missing = append(missing, envar)
		}
	}

	if len(missing) > 0 {
		return CheckResult{
			Name:    "Environment Variables",
			Status:  "fail",
			Message: fmt.Sprintf("Missing environment variables: %v", missing),
		}
	}

	llmKey := os.Getenv("LLM_API_KEY")
	if llmKey == "" {
		return CheckResult{
			Name:    "Environment Variables",
			Status:  "warning",
			Message: "LLM_API_KEY not set; tier orchestrator will run heuristic-only",
		}
	}

	return CheckResult{
		Name:    "Environment Variables",
		Status:  "pass",
		Message: "All environment variables configured",
	}
}

// checkLLMConnectivity pings the configured T1 LLM endpoint. Skipped (not
// failed) when no LLM client was configured, since the tier orchestrator
// degrades to heuristic/cache tiers on its own (spec §4.2).
func (c *Checker) checkLLMConnectivity() CheckResult {
	if c.llm == nil {
		return CheckResult{
			Name:    "LLM Connectivity",
			Status:  "warning",
			Message: "No LLM client configured; running heuristic-only",
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.llm.Ping(ctx); err != nil {
		return CheckResult{
			Name:    "LLM Connectivity",
			Status:  "warning",
			Message: "Cannot reach LLM endpoint; orchestrator will fall back to heuristic/cache tiers",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "LLM Connectivity",
		Status:  "pass",
		Message: "LLM endpoint reachable",
	}
}

// QuickCheck runs minimal checks for fast startup
func (c *Checker) QuickCheck() []CheckResult {
	log.Println("⚡ Running quick pre-flight checks...")

	results := []CheckResult{
		c.checkMongoConnection(),
	}

	passed := 0
	failed := 0

	for _, result := range results {
		if result.Status == "pass" {
			log.Printf("   ✅ %s", result.Name)
			passed++
		} else if result.Status == "fail" {
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			failed++
		}
	}

	return results
}
