// Package skill loads operator-authored capability documents. A skill is a
// markdown file with a YAML frontmatter block describing when its body should
// be injected into the agent's system prompt. The library watches the skills
// directory and hot-reloads edits without a restart.
package skill
