// Package matcher resolves player mentions in free text against a frozen
// snapshot of the alias table.
package matcher

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"fansapprove/internal/textnorm"
)

type Alias struct {
	PlayerID        uuid.UUID
	AliasText       string
	NormalizedAlias string
}

type Mention struct {
	PlayerID uuid.UUID `json:"player_id"`
	Text     string    `json:"text"`
}

// Matcher is immutable after New and safe for concurrent use.
type Matcher struct {
	owners map[string][]uuid.UUID
	re     *regexp.Regexp
}

// New groups aliases by normalized key and drops keys on the denylist.
// Denylist entries are normalized before comparison. The denylist is
// global: a denylisted key is dropped for every player that owns it.
func New(aliases []Alias, denylist []string) *Matcher {
	deny := make(map[string]struct{}, len(denylist))
	for _, d := range denylist {
		if n := textnorm.Normalize(d); n != "" {
			deny[n] = struct{}{}
		}
	}

	owners := make(map[string][]uuid.UUID)
	for _, a := range aliases {
		key := a.NormalizedAlias
		if key == "" {
			key = textnorm.Normalize(a.AliasText)
		}
		if key == "" {
			continue
		}
		if _, blocked := deny[key]; blocked {
			continue
		}
		if containsID(owners[key], a.PlayerID) {
			continue
		}
		owners[key] = append(owners[key], a.PlayerID)
	}

	m := &Matcher{owners: owners}
	if len(owners) == 0 {
		return m
	}

	keys := make([]string, 0, len(owners))
	for k := range owners {
		keys = append(keys, k)
	}
	// Longest first so the alternation prefers "jalen green" over "green".
	sort.Slice(keys, func(i, j int) bool {
		li, lj := utf8.RuneCountInString(keys[i]), utf8.RuneCountInString(keys[j])
		if li != lj {
			return li > lj
		}
		return keys[i] < keys[j]
	})
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = regexp.QuoteMeta(k)
	}
	// Anchored at a token start; the trailing group enforces the right-hand
	// word boundary. Normalized text only separates tokens by single spaces.
	m.re = regexp.MustCompile(`^(` + strings.Join(quoted, "|") + `)(?: |$)`)
	return m
}

// Size reports how many distinct alias keys survived the denylist.
func (m *Matcher) Size() int {
	if m == nil {
		return 0
	}
	return len(m.owners)
}

// FindMentions returns non-overlapping whole-word matches in text order,
// one entry per (player, matched text).
func (m *Matcher) FindMentions(text string) []Mention {
	if m == nil || m.re == nil {
		return nil
	}
	norm := textnorm.Normalize(text)
	if norm == "" {
		return nil
	}

	var out []Mention
	seen := make(map[Mention]struct{})
	pos := 0
	for pos < len(norm) {
		loc := m.re.FindStringSubmatchIndex(norm[pos:])
		if loc != nil {
			match := norm[pos+loc[2] : pos+loc[3]]
			for _, id := range m.owners[match] {
				key := Mention{PlayerID: id, Text: match}
				if _, dup := seen[key]; dup {
					continue
				}
				seen[key] = struct{}{}
				out = append(out, key)
			}
			pos += loc[3]
		} else {
			next := strings.IndexByte(norm[pos:], ' ')
			if next < 0 {
				break
			}
			pos += next
		}
		// skip the separator to land on the next token start
		for pos < len(norm) && norm[pos] == ' ' {
			pos++
		}
	}
	return out
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
