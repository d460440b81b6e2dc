package history

import (
	"bytes"
	"os/exec"
	"strings"
)

// ResolveGitMetadata returns the short commit hash and branch name for the
// repository containing projectRoot. Both come back empty when the directory
// is not under git or the git binary is missing.
func ResolveGitMetadata(projectRoot string) (commit, branch string) {
	commit = runGit(projectRoot, "rev-parse", "--short=12", "HEAD")
	if commit == "" {
		return "", ""
	}
	branch = runGit(projectRoot, "rev-parse", "--abbrev-ref", "HEAD")
	return commit, branch
}

func runGit(projectRoot string, args ...string) string {
	cmd := exec.Command("git", append([]string{"-C", projectRoot}, args...)...)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return ""
	}
	return strings.TrimSpace(stdout.String())
}
