package discovery

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/polka-dev/polka/internal/core"
)

var sourceExtensions = map[string]bool{
	".ts": true, ".js": true, ".tsx": true, ".jsx": true,
}

var skippedDirs = map[string]bool{
	"node_modules": true, ".git": true, "dist": true, "build": true, ".polka": true,
}

type sourceFile struct {
	path    string
	content string
	lines   int
}

func walkSourceFiles(root string) []sourceFile {
	var files []sourceFile
	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExtensions[filepath.Ext(path)] {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		content := string(data)
		files = append(files, sourceFile{path: rel, content: content, lines: strings.Count(content, "\n") + 1})
		return nil
	})
	return files
}

var secretRe = regexp.MustCompile(`(?i)(api[_-]?key|secret|password|token)\s*[:=]\s*['"][^'"]{8,}['"]`)
var evalRe = regexp.MustCompile(`\beval\s*\(`)
var xssRe = regexp.MustCompile(`dangerouslySetInnerHTML|\.innerHTML\s*=`)

// probeSecurity scans for hardcoded secrets, eval usage, and XSS-prone
// patterns, each a distinct severity.
func probeSecurity(files []sourceFile) []*core.Task {
	var tasks []*core.Task
	var secretFiles, evalFiles, xssFiles []string
	for _, f := range files {
		if secretRe.MatchString(f.content) {
			secretFiles = append(secretFiles, f.path)
		}
		if evalRe.MatchString(f.content) {
			evalFiles = append(evalFiles, f.path)
		}
		if xssRe.MatchString(f.content) {
			xssFiles = append(xssFiles, f.path)
		}
	}
	if len(secretFiles) > 0 {
		tasks = append(tasks, core.NewTask("remove hardcoded secrets", core.TaskTypeSecurity).
			WithDescription("possible hardcoded credentials in "+strings.Join(secretFiles, ", ")).
			WithPriority(core.PriorityCritical).
			WithFiles(secretFiles...))
	}
	if len(evalFiles) > 0 {
		tasks = append(tasks, core.NewTask("remove eval() usage", core.TaskTypeSecurity).
			WithDescription("eval() found in "+strings.Join(evalFiles, ", ")).
			WithPriority(core.PriorityHigh).
			WithFiles(evalFiles...))
	}
	if len(xssFiles) > 0 {
		tasks = append(tasks, core.NewTask("audit for XSS-prone DOM writes", core.TaskTypeSecurity).
			WithDescription("unescaped HTML injection in "+strings.Join(xssFiles, ", ")).
			WithPriority(core.PriorityHigh).
			WithFiles(xssFiles...))
	}
	return tasks
}

const coverageMinLines = 50

func hasSiblingTest(f sourceFile, allPaths map[string]bool) bool {
	ext := filepath.Ext(f.path)
	base := strings.TrimSuffix(f.path, ext)
	for _, suffix := range []string{".test" + ext, ".spec" + ext} {
		if allPaths[base+suffix] {
			return true
		}
	}
	return false
}

// probeTestCoverage flags source files over coverageMinLines with no
// sibling *.test/*.spec file.
func probeTestCoverage(files []sourceFile) *core.Task {
	paths := make(map[string]bool, len(files))
	for _, f := range files {
		paths[f.path] = true
	}

	var untested []string
	for _, f := range files {
		if strings.Contains(f.path, ".test.") || strings.Contains(f.path, ".spec.") {
			continue
		}
		if f.lines > coverageMinLines && !hasSiblingTest(f, paths) {
			untested = append(untested, f.path)
		}
	}
	if len(untested) == 0 {
		return nil
	}
	return core.NewTask("add missing test coverage", core.TaskTypeTest).
		WithDescription("no sibling test file for "+strings.Join(untested, ", ")).
		WithPriority(core.PriorityLow).
		WithFiles(untested...)
}

var functionStartRe = regexp.MustCompile(`function\s+\w+\s*\(|=>\s*\{`)

const maxFunctionLines = 60
const maxNestingDepth = 5

// probeRefactoring flags files whose longest function body or nesting
// depth crosses a threshold, using brace/indentation heuristics rather
// than a real parser.
func probeRefactoring(files []sourceFile) *core.Task {
	var flagged []string
	for _, f := range files {
		if longestFunctionLines(f.content) > maxFunctionLines || maxIndentDepth(f.content) > maxNestingDepth {
			flagged = append(flagged, f.path)
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	return core.NewTask("simplify overgrown functions", core.TaskTypeRefactor).
		WithDescription("long or deeply nested functions in "+strings.Join(flagged, ", ")).
		WithPriority(core.PriorityLow).
		WithFiles(flagged...)
}

func longestFunctionLines(content string) int {
	longest := 0
	depth := 0
	current := 0
	inFunction := false
	for _, line := range strings.Split(content, "\n") {
		if functionStartRe.MatchString(line) {
			inFunction = true
			current = 0
		}
		if inFunction {
			current++
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth <= 0 {
				if current > longest {
					longest = current
				}
				inFunction = false
				depth = 0
			}
		}
	}
	return longest
}

func maxIndentDepth(content string) int {
	maxDepth := 0
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimLeft(line, " \t")
		indent := len(line) - len(trimmed)
		depth := indent / 2
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

var exportedFuncRe = regexp.MustCompile(`^export\s+(async\s+)?function\s+\w+`)

// probeDocumentation flags exported functions with no comment on the
// preceding line.
func probeDocumentation(files []sourceFile) *core.Task {
	var undocumented []string
	for _, f := range files {
		lines := strings.Split(f.content, "\n")
		for i, line := range lines {
			if !exportedFuncRe.MatchString(strings.TrimSpace(line)) {
				continue
			}
			prev := ""
			if i > 0 {
				prev = strings.TrimSpace(lines[i-1])
			}
			if !strings.HasPrefix(prev, "//") && !strings.HasPrefix(prev, "*") && !strings.HasSuffix(prev, "*/") {
				undocumented = append(undocumented, f.path)
				break
			}
		}
	}
	if len(undocumented) == 0 {
		return nil
	}
	return core.NewTask("document exported functions", core.TaskTypeDocs).
		WithDescription("exported functions missing doc comments in "+strings.Join(undocumented, ", ")).
		WithPriority(core.PriorityTrivial).
		WithFiles(undocumented...)
}

var loopStartRe = regexp.MustCompile(`\b(for|while)\s*\(`)
var remoteCallRe = regexp.MustCompile(`await\s+fetch\s*\(|\.query\s*\(`)

// probePerformance flags files with a remote call inside a loop body — a
// classic N+1 pattern.
func probePerformance(files []sourceFile) *core.Task {
	var flagged []string
	for _, f := range files {
		lines := strings.Split(f.content, "\n")
		depth := 0
		loopDepths := map[int]bool{}
		for _, line := range lines {
			if loopStartRe.MatchString(line) {
				loopDepths[depth] = true
			}
			if remoteCallRe.MatchString(line) && len(loopDepths) > 0 {
				flagged = append(flagged, f.path)
				break
			}
			depth += strings.Count(line, "{") - strings.Count(line, "}")
			if depth < 0 {
				depth = 0
				loopDepths = map[int]bool{}
			}
		}
	}
	if len(flagged) == 0 {
		return nil
	}
	return core.NewTask("batch queries/fetches inside loops", core.TaskTypeOptimization).
		WithDescription("remote calls issued per loop iteration in "+strings.Join(flagged, ", ")).
		WithPriority(core.PriorityLow).
		WithFiles(flagged...)
}
