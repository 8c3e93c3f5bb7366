// Package roster holds the player list exchanged between the knowledge-base
// fetch, the snapshot file and the database reconciler.
package roster

import (
	"bufio"
	"errors"
	"os"
	"strings"
	"unicode/utf8"

	"fansapprove/internal/textnorm"
)

// Entry is one player as fetched or hand-written in a seed file. Only
// FullName is required.
type Entry struct {
	WikidataQID    string       `json:"wikidata_qid,omitempty"`
	FullName       string       `json:"full_name"`
	NormalizedName string       `json:"normalized_name,omitempty"`
	Aliases        []string     `json:"aliases,omitempty"`
	Positions      []string     `json:"positions,omitempty"`
	BirthDate      string       `json:"birth_date,omitempty"`
	DebutYear      *int         `json:"nba_debut_year,omitempty"`
	Team           *string      `json:"team,omitempty"`
	Teams          []Membership `json:"teams,omitempty"`
	Retired        *bool        `json:"retired,omitempty"`
	Active         *bool        `json:"active,omitempty"`
}

// Membership is one team stint; dates are YYYY-MM-DD or empty.
type Membership struct {
	Team  string `json:"team"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// IsActive resolves the active flag: an explicit retired flag wins, then an
// explicit active flag, then the current value, then true.
func (e Entry) IsActive(current *bool) bool {
	if e.Retired != nil {
		return !*e.Retired
	}
	if e.Active != nil {
		return *e.Active
	}
	if current != nil {
		return *current
	}
	return true
}

// BuildAliases returns the alias texts to register for a player: the given
// aliases followed by the full name, trimmed, with normalized forms of two
// runes or fewer, denylisted forms and duplicates dropped. denylist holds
// normalized values.
func BuildAliases(fullName string, aliases []string, denylist map[string]struct{}) []string {
	candidates := make([]string, 0, len(aliases)+1)
	candidates = append(candidates, aliases...)
	candidates = append(candidates, fullName)

	seen := map[string]struct{}{}
	var out []string
	for _, raw := range candidates {
		text := strings.TrimSpace(raw)
		if text == "" {
			continue
		}
		norm := textnorm.Normalize(text)
		if len([]rune(norm)) <= 2 {
			continue
		}
		if _, ok := denylist[norm]; ok {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, text)
	}
	return out
}

// LoadDenylist reads one alias per line; blank lines and # comments are
// ignored. A missing file is an empty denylist.
func LoadDenylist(path string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if strings.TrimSpace(path) == "" {
		return out, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if norm := textnorm.Normalize(line); norm != "" {
			out[norm] = struct{}{}
		}
	}
	return out, sc.Err()
}

// DenylistSet normalizes a configured list into the form BuildAliases takes.
func DenylistSet(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		if norm := textnorm.Normalize(v); norm != "" {
			out[norm] = struct{}{}
		}
	}
	return out
}

// TeamEntries turns a plain list of names into entries for one team. The
// last name becomes an alias when it has at least four runes.
func TeamEntries(names []string, team string) []Entry {
	team = strings.TrimSpace(team)
	out := make([]Entry, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		norm := textnorm.Normalize(name)
		if norm == "" {
			continue
		}
		e := Entry{FullName: name, NormalizedName: norm}
		parts := strings.Split(norm, " ")
		if last := parts[len(parts)-1]; len(parts) > 1 && utf8.RuneCountInString(last) >= 4 {
			e.Aliases = []string{last}
		}
		if team != "" {
			t := team
			e.Team = &t
		}
		out = append(out, e)
	}
	return out
}
