package tool

import (
	"strings"

	"github.com/gobwas/glob"
)

// ShellGuard intercepts shell-execution requests matching known-dangerous
// patterns and refuses them before any process is started. Patterns use glob
// syntax matched against the whitespace-normalized command line.
type ShellGuard struct {
	patterns []glob.Glob
	sources  []string
}

// defaultDenyPatterns refuse recursive deletion of root paths, raw block
// device writes, filesystem re-creation and fork bombs.
var defaultDenyPatterns = []string{
	"*rm -rf /",
	"*rm -rf / *",
	"*rm -rf /\\**",
	"*rm -fr /",
	"*rm -fr / *",
	"*rm -fr /\\**",
	"*rm -rf --no-preserve-root*",
	"*rm -fr --no-preserve-root*",
	"*mkfs*",
	"*dd if=* of=/dev/*",
	"*> /dev/sd*",
	"*:()\\{*",
	"*chmod -R 777 /",
	"*chmod -R 777 / *",
}

// NewShellGuard compiles the default deny patterns plus any extras.
// Invalid extra patterns are skipped.
func NewShellGuard(extra ...string) *ShellGuard {
	g := &ShellGuard{}
	for _, p := range append(append([]string{}, defaultDenyPatterns...), extra...) {
		compiled, err := glob.Compile(p)
		if err != nil {
			continue
		}
		g.patterns = append(g.patterns, compiled)
		g.sources = append(g.sources, p)
	}
	return g
}

// Check returns the matching deny pattern and true when the command is
// refused. The command is whitespace-normalized first so spacing tricks do
// not slip past the patterns.
func (g *ShellGuard) Check(command string) (string, bool) {
	normalized := strings.Join(strings.Fields(command), " ")
	for i, p := range g.patterns {
		if p.Match(normalized) {
			return g.sources[i], true
		}
	}
	return "", false
}
