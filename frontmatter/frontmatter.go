// Package frontmatter reads and writes markdown documents that start with a
// YAML block fenced by "---" lines, the format used for skills and prompt
// templates kept in the file store.
package frontmatter

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// ErrMissing is returned when a document has no front matter block.
var ErrMissing = errors.New("missing front matter")

// Split separates the YAML block from the body. The body is returned
// verbatim, starting right after the closing fence line.
func Split(src string) (string, string, error) {
	if !strings.HasPrefix(src, fence+"\n") {
		return "", "", ErrMissing
	}
	rest := src[len(fence)+1:]

	// Empty block: the closing fence follows immediately.
	if strings.HasPrefix(rest, fence+"\n") {
		return "", rest[len(fence)+1:], nil
	}
	if rest == fence {
		return "", "", nil
	}

	if idx := strings.Index(rest, "\n"+fence+"\n"); idx >= 0 {
		return rest[:idx+1], rest[idx+len(fence)+2:], nil
	}
	if strings.HasSuffix(rest, "\n"+fence) {
		return rest[:len(rest)-len(fence)], "", nil
	}
	return "", "", fmt.Errorf("unterminated front matter: %w", ErrMissing)
}

// Parse decodes the front matter into meta and returns the body.
func Parse(src string, meta any) (string, error) {
	head, body, err := Split(src)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(head) != "" {
		if err := yaml.Unmarshal([]byte(head), meta); err != nil {
			return "", fmt.Errorf("failed to parse front matter: %w", err)
		}
	}
	return body, nil
}

// Render encodes meta as a front matter block followed by body.
func Render(meta any, body string) (string, error) {
	head, err := yaml.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode front matter: %w", err)
	}

	var b strings.Builder
	b.WriteString(fence)
	b.WriteByte('\n')
	b.Write(head)
	b.WriteString(fence)
	b.WriteByte('\n')
	b.WriteString(body)
	return b.String(), nil
}
