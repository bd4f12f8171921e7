package segment

import (
	"encoding/json"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		a, b Segment
		want bool
	}{
		{"equal static", New("blog"), New("blog"), true},
		{"different static", New("blog"), New("docs"), false},
		{"dynamic same value", NewDynamic("slug", "a", Dynamic), NewDynamic("slug", "a", Dynamic), true},
		{"dynamic different value", NewDynamic("slug", "a", Dynamic), NewDynamic("slug", "b", Dynamic), false},
		{"dynamic ignores param name", NewDynamic("slug", "a", Dynamic), NewDynamic("id", "a", Dynamic), true},
		{"dynamic ignores kind", NewDynamic("slug", "a/b", CatchAll), NewDynamic("slug", "a/b", OptionalCatchAll), true},
		{"static vs dynamic", New("a"), NewDynamic("slug", "a", Dynamic), false},
		{"dynamic vs static", NewDynamic("slug", "a", Dynamic), New("a"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.a, tt.b); got != tt.want {
				t.Errorf("Match(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestParseParam(t *testing.T) {
	tests := []struct {
		dir       string
		wantParam string
		wantKind  Kind
		wantOK    bool
	}{
		{"[slug]", "slug", Dynamic, true},
		{"[...parts]", "parts", CatchAll, true},
		{"[[...parts]]", "parts", OptionalCatchAll, true},
		{"blog", "", Static, false},
		{"[]", "", Static, false},
		{"[a/b]", "", Static, false},
	}

	for _, tt := range tests {
		param, kind, ok := ParseParam(tt.dir)
		if param != tt.wantParam || kind != tt.wantKind || ok != tt.wantOK {
			t.Errorf("ParseParam(%q) = (%q, %v, %v), want (%q, %v, %v)",
				tt.dir, param, kind, ok, tt.wantParam, tt.wantKind, tt.wantOK)
		}
	}
}

func TestSegmentJSON(t *testing.T) {
	raw, err := json.Marshal([]Segment{New("blog"), NewDynamic("slug", "post-1", Dynamic)})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if got, want := string(raw), `["blog",["slug","post-1","d"]]`; got != want {
		t.Fatalf("Marshal = %s, want %s", got, want)
	}

	var decoded []Segment
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded[0] != New("blog") {
		t.Fatalf("decoded[0] = %#v, want static blog", decoded[0])
	}
	if decoded[1] != NewDynamic("slug", "post-1", Dynamic) {
		t.Fatalf("decoded[1] = %#v, want dynamic slug", decoded[1])
	}
}

func TestSegmentJSON_RejectsBadTriple(t *testing.T) {
	var s Segment
	if err := json.Unmarshal([]byte(`["slug","a"]`), &s); err == nil {
		t.Fatalf("Unmarshal of two-element triple returned nil error")
	}
	if err := json.Unmarshal([]byte(`["slug","a","x"]`), &s); err == nil {
		t.Fatalf("Unmarshal of unknown kind returned nil error")
	}
}

func TestKeyCollapsesDynamicToValue(t *testing.T) {
	if got := NewDynamic("slug", "post-1", Dynamic).Key(); got != "post-1" {
		t.Fatalf("Key() = %q, want post-1", got)
	}
}
