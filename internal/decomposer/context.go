package decomposer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/polka-dev/polka/internal/gitutil"
)

// projectContext is the lightweight codebase snapshot handed to the
// Workflow Invoker alongside the goal, so decomposition can be grounded
// in what the project actually looks like.
type projectContext struct {
	TopLevelFiles      []string `json:"topLevelFiles"`
	ManifestName       string   `json:"manifestName,omitempty"`
	ManifestVersion    string   `json:"manifestVersion,omitempty"`
	ManifestDescription string  `json:"manifestDescription,omitempty"`
	Branch             string   `json:"branch,omitempty"`
}

type packageManifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
}

func gatherContext(ctx context.Context, workDir string) projectContext {
	pc := projectContext{TopLevelFiles: topLevelFiles(workDir)}

	if data, err := os.ReadFile(filepath.Join(workDir, "package.json")); err == nil {
		var manifest packageManifest
		if json.Unmarshal(data, &manifest) == nil {
			pc.ManifestName = manifest.Name
			pc.ManifestVersion = manifest.Version
			pc.ManifestDescription = manifest.Description
		}
	}

	if git, err := gitutil.New(workDir); err == nil {
		if branch, err := git.CurrentBranch(ctx); err == nil {
			pc.Branch = branch
		}
	}

	return pc
}

func topLevelFiles(workDir string) []string {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}
