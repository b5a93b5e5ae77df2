package version

import "strings"

var (
	Version = "v0.1.0"
	Meta    = "dev"
)

// Format joins the version, the short commit, the commit date and the build
// metadata with dashes. Empty parts are left out.
func Format(version, gitCommit, gitDate, meta string) string {
	if len(gitCommit) > 8 {
		gitCommit = gitCommit[:8]
	}
	parts := []string{version}
	for _, p := range []string{gitCommit, gitDate, meta} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "-")
}
