package discovery

// Strategy names one of the probe families Engine can run. An operator
// disables a strategy to exclude it from both the probe pipeline and the
// discovery cache entry it would otherwise contribute to.
type Strategy string

const (
	StrategyBuildErrors   Strategy = "build-errors"
	StrategyFailingTests  Strategy = "failing-tests"
	StrategyTypeErrors    Strategy = "type-errors"
	StrategyLintIssues    Strategy = "lint-issues"
	StrategyTestCoverage  Strategy = "test-coverage"
	StrategyCodeQuality   Strategy = "code-quality"
	StrategyRefactoring   Strategy = "refactoring"
	StrategyDocumentation Strategy = "documentation"
	StrategySecurity      Strategy = "security"
	StrategyWorkingDir    Strategy = "working-dir"
)

// AllStrategies lists every recognized strategy, in the order probes run.
func AllStrategies() []Strategy {
	return []Strategy{
		StrategyBuildErrors, StrategyFailingTests, StrategyTypeErrors,
		StrategyLintIssues, StrategyTestCoverage, StrategyCodeQuality,
		StrategyRefactoring, StrategyDocumentation, StrategySecurity,
		StrategyWorkingDir,
	}
}

// Valid reports whether s is one of the closed set of recognized strategies.
func (s Strategy) Valid() bool {
	for _, candidate := range AllStrategies() {
		if candidate == s {
			return true
		}
	}
	return false
}

// strategySet is a lookup table built once per Engine from its configured
// strategy list.
type strategySet map[Strategy]bool

func newStrategySet(enabled []Strategy) strategySet {
	if len(enabled) == 0 {
		enabled = AllStrategies()
	}
	set := make(strategySet, len(enabled))
	for _, s := range enabled {
		set[s] = true
	}
	return set
}

func (s strategySet) has(strategy Strategy) bool { return s[strategy] }
