package skills

import (
	"fmt"
	"strings"

	"tether/frontmatter"
	"tether/model"
)

// Marshal renders a skill in its markdown form: a front matter block with
// name and description followed by the content verbatim.
func Marshal(s model.Skill) (string, error) {
	return frontmatter.Render(s, s.Content)
}

// Parse reads a skill from its markdown form. Marshal followed by Parse
// yields the original skill.
func Parse(src string) (model.Skill, error) {
	var s model.Skill
	body, err := frontmatter.Parse(src, &s)
	if err != nil {
		return model.Skill{}, fmt.Errorf("failed to parse skill: %w", err)
	}
	s.Content = body
	return s, nil
}

// Validate reports the first missing required field.
func Validate(s model.Skill) error {
	var missing []string
	if strings.TrimSpace(s.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(s.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(s.Content) == "" {
		missing = append(missing, "content")
	}
	if len(missing) > 0 {
		return fmt.Errorf("skill %q is missing %s", s.Name, strings.Join(missing, ", "))
	}
	return nil
}

// FileName is the file store path a skill is persisted under.
func FileName(dir, name string) string {
	return strings.TrimSuffix(dir, "/") + "/" + name + ".md"
}
