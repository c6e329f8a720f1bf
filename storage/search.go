package storage

import (
	"context"
	"slices"
	"strings"

	"tether/model"
)

// snippetRadius is how many runes of context a Match keeps on each side.
const snippetRadius = 40

// Match is one message containing a search query.
type Match struct {
	ThreadID   string
	ThreadName string
	// Index is the message's position in the thread history.
	Index   int
	Role    string
	Snippet string
}

// Search returns the stored messages containing query, ignoring case, from
// the most recently updated thread down. Tool results are searched along
// with message text; system messages are not. limit <= 0 means no limit.
func (p *Persistence) Search(ctx context.Context, query string, limit int) ([]Match, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	threads := p.LoadThreads()
	slices.SortStableFunc(threads, func(a, b model.ThreadMeta) int {
		return b.UpdatedAt.Compare(a.UpdatedAt)
	})

	var matches []Match
	for _, t := range threads {
		if err := ctx.Err(); err != nil {
			return matches, err
		}
		msgs, ok, err := p.LoadMessages(ctx, t.ID)
		if err != nil {
			p.logger.Warn("skipping thread in search", "thread", t.ID, "err", err)
			continue
		}
		if !ok {
			continue
		}

		for i, msg := range msgs {
			if msg.Role == model.RoleSystem {
				continue
			}
			snippet, found := findSnippet(searchText(msg), query)
			if !found {
				continue
			}
			matches = append(matches, Match{
				ThreadID:   t.ID,
				ThreadName: t.Name,
				Index:      i,
				Role:       msg.Role,
				Snippet:    snippet,
			})
			if limit > 0 && len(matches) >= limit {
				return matches, nil
			}
		}
	}
	return matches, nil
}

func searchText(msg model.Message) string {
	if len(msg.ToolCalls) == 0 {
		return msg.Content
	}
	parts := []string{msg.Content}
	for _, call := range msg.ToolCalls {
		if call.Result != nil {
			parts = append(parts, call.Result.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// findSnippet locates query (already lower-case) in text and returns the
// surrounding runes with whitespace collapsed. Cut ends are marked "...".
func findSnippet(text, query string) (string, bool) {
	// ToLower maps rune for rune, so indexes line up.
	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	q := []rune(query)

	at := -1
	for i := 0; i+len(q) <= len(lower); i++ {
		if slices.Equal(lower[i:i+len(q)], q) {
			at = i
			break
		}
	}
	if at < 0 {
		return "", false
	}

	start := max(0, at-snippetRadius)
	end := min(len(runes), at+len(q)+snippetRadius)
	snippet := strings.Join(strings.Fields(string(runes[start:end])), " ")
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet += "..."
	}
	return snippet, true
}
