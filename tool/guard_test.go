package tool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShellGuardDeniesDangerousCommands(t *testing.T) {
	g := NewShellGuard()

	tests := []struct {
		name    string
		command string
	}{
		{"rm root", "rm -rf /"},
		{"rm root with trailing args", "rm -rf / --no-preserve-root"},
		{"rm root glob", "rm -rf /*"},
		{"rm fr variant", "rm -fr /"},
		{"no preserve root", "rm -rf --no-preserve-root /home"},
		{"chained after other command", "echo hi && rm -rf /"},
		{"extra whitespace", "rm   -rf    /"},
		{"mkfs", "mkfs.ext4 /dev/sda1"},
		{"dd to device", "dd if=/dev/zero of=/dev/sda"},
		{"redirect to device", "cat data > /dev/sda"},
		{"fork bomb", ":(){ :|:& };:"},
		{"chmod root", "chmod -R 777 /"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern, denied := g.Check(tt.command)
			assert.True(t, denied, "expected %q to be refused", tt.command)
			assert.NotEmpty(t, pattern)
		})
	}
}

func TestShellGuardAllowsOrdinaryCommands(t *testing.T) {
	g := NewShellGuard()

	tests := []struct {
		name    string
		command string
	}{
		{"ls", "ls -la"},
		{"scoped rm", "rm -rf ./build"},
		{"rm in tmp", "rm -rf /tmp/scratch"},
		{"grep", "grep -r pattern ."},
		{"git", "git status"},
		{"dd to file", "dd if=backup.img of=restore.img"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, denied := g.Check(tt.command)
			assert.False(t, denied, "expected %q to be allowed", tt.command)
		})
	}
}

func TestShellGuardExtraPatterns(t *testing.T) {
	g := NewShellGuard("*curl*")
	_, denied := g.Check("curl https://example.com")
	assert.True(t, denied)
}
