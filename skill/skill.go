package skill

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Skill is one loaded capability document.
type Skill struct {
	// Name identifies the skill; defaults to the filename stem.
	Name string `yaml:"name"`
	// Description tells the model what the skill covers.
	Description string `yaml:"description"`
	// Always marks the skill for unconditional prompt injection.
	Always bool `yaml:"always"`
	// Requires lists environment variables that must be set for the skill
	// to be eligible.
	Requires []string `yaml:"requires"`

	// Body is the markdown content after the frontmatter.
	Body string `yaml:"-"`
	// Path is the source file the skill was loaded from.
	Path string `yaml:"-"`
}

// Eligible reports whether all required environment variables are present.
func (s *Skill) Eligible() bool {
	for _, name := range s.Requires {
		if os.Getenv(name) == "" {
			return false
		}
	}
	return true
}

// frontmatterDelim separates the YAML header from the markdown body.
const frontmatterDelim = "---"

// Parse decodes a skill document. Files without a frontmatter block are valid
// skills consisting only of a body.
func Parse(path string, data []byte) (*Skill, error) {
	skill := &Skill{Path: path}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if strings.HasPrefix(content, frontmatterDelim+"\n") {
		rest := content[len(frontmatterDelim)+1:]
		end := strings.Index(rest, "\n"+frontmatterDelim)
		if end < 0 {
			return nil, fmt.Errorf("parse %s: unterminated frontmatter", path)
		}
		header := rest[:end]
		body := rest[end+len(frontmatterDelim)+1:]
		if err := yaml.Unmarshal([]byte(header), skill); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		skill.Body = strings.TrimLeft(body, "\n")
	} else {
		skill.Body = content
	}

	skill.Body = strings.TrimSpace(skill.Body)
	if skill.Name == "" {
		skill.Name = stemOf(path)
	}
	return skill, nil
}

func stemOf(path string) string {
	base := path
	if i := strings.LastIndexAny(base, "/\\"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}
