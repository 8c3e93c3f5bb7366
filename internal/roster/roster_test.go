package roster

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestBuildAliases(t *testing.T) {
	deny := DenylistSet([]string{"The King", "KD"})
	got := BuildAliases("LeBron James", []string{" King James ", "the king", "LeBron", "lebron!", "LJ", ""}, deny)
	want := []string{"King James", "LeBron", "LeBron James"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("aliases=%v want=%v", got, want)
	}
}

func TestBuildAliasesFullNameFiltered(t *testing.T) {
	got := BuildAliases("Yao", []string{"Yao Ming"}, DenylistSet([]string{"yao"}))
	if !reflect.DeepEqual(got, []string{"Yao Ming"}) {
		t.Fatalf("aliases=%v", got)
	}
}

func TestLoadDenylist(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deny.txt")
	if err := os.WriteFile(path, []byte("# nicknames\nKing\n\n  The Beard \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadDenylist(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := got["king"]; !ok || len(got) != 2 {
		t.Fatalf("denylist=%v", got)
	}
	if _, ok := got["the beard"]; !ok {
		t.Fatalf("denylist=%v", got)
	}

	missing, err := LoadDenylist(filepath.Join(dir, "nope.txt"))
	if err != nil || len(missing) != 0 {
		t.Fatalf("missing=%v err=%v", missing, err)
	}
}

func TestIsActive(t *testing.T) {
	yes, no := true, false
	cases := []struct {
		entry   Entry
		current *bool
		want    bool
	}{
		{Entry{Retired: &yes, Active: &yes}, &yes, false},
		{Entry{Retired: &no}, &no, true},
		{Entry{Active: &no}, &yes, false},
		{Entry{}, &no, false},
		{Entry{}, nil, true},
	}
	for i, tc := range cases {
		if got := tc.entry.IsActive(tc.current); got != tc.want {
			t.Fatalf("case %d active=%v want=%v", i, got, tc.want)
		}
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "players.json")
	team := "Houston Rockets"
	snap := Snapshot{
		GeneratedAt: time.Date(2025, 3, 1, 6, 0, 0, 0, time.UTC),
		Source:      "wikidata",
		Players: []Entry{
			{WikidataQID: "Q1", FullName: "Jalen Green", Aliases: []string{"Jalen Green"}, Team: &team},
			{WikidataQID: "Q2", FullName: "Alperen Sengun", Aliases: []string{"Sengun", "Alperen Sengun"}},
		},
	}
	if err := WriteSnapshot(path, snap); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadSnapshot(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !got.GeneratedAt.Equal(snap.GeneratedAt) || len(got.Players) != 2 || *got.Players[0].Team != team {
		t.Fatalf("snapshot=%+v", got)
	}

	status, err := Status(path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Exists || status.PlayerCount != 2 || status.AliasCount != 3 {
		t.Fatalf("status=%+v", status)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestParseSnapshotBareList(t *testing.T) {
	snap, err := ParseSnapshot([]byte(`[{"full_name":"Fred VanVleet","aliases":["FVV"]},{"full_name":"Dillon Brooks","retired":false}]`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(snap.Players) != 2 || snap.Players[0].FullName != "Fred VanVleet" || snap.Players[1].Retired == nil {
		t.Fatalf("snapshot=%+v", snap)
	}
	if !snap.GeneratedAt.IsZero() {
		t.Fatalf("generated_at=%v", snap.GeneratedAt)
	}
}

func TestStatusMissing(t *testing.T) {
	status, err := Status(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil || status.Exists {
		t.Fatalf("status=%+v err=%v", status, err)
	}
	if _, err := ReadSnapshot(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected ErrSnapshotMissing")
	}
}

func TestTeamEntries(t *testing.T) {
	got := TeamEntries([]string{"Alperen Sengun", "Jeremy Lin", "Dillon Brooks", "  ", "Nene"}, "Houston Rockets")
	if len(got) != 4 {
		t.Fatalf("entries=%d want=4", len(got))
	}
	if got[0].NormalizedName != "alperen sengun" || !reflect.DeepEqual(got[0].Aliases, []string{"sengun"}) {
		t.Fatalf("entry[0]=%+v", got[0])
	}
	if got[1].Aliases != nil {
		t.Fatalf("short last name should not alias: %+v", got[1])
	}
	if got[3].Aliases != nil {
		t.Fatalf("single name should not alias: %+v", got[3])
	}
	if got[2].Team == nil || *got[2].Team != "Houston Rockets" {
		t.Fatalf("team=%v", got[2].Team)
	}
}
