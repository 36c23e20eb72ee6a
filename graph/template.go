package graph

import (
	"fmt"
	"regexp"
)

var templateKeyPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// renderTemplate performs the `{name}` substitution §4.4 specifies for
// system prompts, against the node's input view. A referenced name absent
// from view is a missing-input failure caught before the LLM is called.
func renderTemplate(tmpl string, view map[string]any) (string, error) {
	var missing string
	rendered := templateKeyPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := templateKeyPattern.FindStringSubmatch(match)[1]
		v, ok := view[name]
		if !ok {
			missing = name
			return match
		}
		return fmt.Sprint(v)
	})
	if missing != "" {
		return "", fmt.Errorf("template references undefined key %q", missing)
	}
	return rendered, nil
}
