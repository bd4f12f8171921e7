package flight

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/five82/wayfinder/internal/routerstate"
	"github.com/five82/wayfinder/internal/segment"
)

func samplePath() DataPath {
	return DataPath{
		Path: routerstate.SegmentPath{
			{Segment: segment.New(""), ParallelRouteKey: routerstate.Children},
			{Segment: segment.New("blog"), ParallelRouteKey: routerstate.Children},
		},
		Segment:     segment.NewDynamic("slug", "post-1", segment.Dynamic),
		TreePatch:   routerstate.New(segment.NewDynamic("slug", "post-1", segment.Dynamic), nil),
		SubTreeData: Payload(`{"page":"post"}`),
	}
}

func TestDataPathJSON_WireShape(t *testing.T) {
	raw, err := json.Marshal(samplePath())
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	want := `["","children","blog","children",["slug","post-1","d"],[["slug","post-1","d"],{}],{"page":"post"}]`
	if string(raw) != want {
		t.Fatalf("Marshal = %s, want %s", raw, want)
	}
}

func TestDataPathJSON_RoundTrip(t *testing.T) {
	in := samplePath()
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var out DataPath
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !out.Path.Equal(in.Path) || out.Segment != in.Segment {
		t.Fatalf("path/segment mismatch: %#v", out)
	}
	if !routerstate.Equal(out.TreePatch, in.TreePatch) {
		t.Fatalf("tree patch mismatch: %#v", out.TreePatch)
	}
	if !bytes.Equal(out.SubTreeData, in.SubTreeData) {
		t.Fatalf("payload = %s, want %s", out.SubTreeData, in.SubTreeData)
	}
}

func TestDataPathJSON_NullPayload(t *testing.T) {
	var out DataPath
	if err := json.Unmarshal([]byte(`["",["",{}],null]`), &out); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if !out.IsRoot() || out.SubTreeData != nil {
		t.Fatalf("decoded = %#v, want root path with nil payload", out)
	}
}

func TestDataPathJSON_RejectsBadLength(t *testing.T) {
	var out DataPath
	if err := json.Unmarshal([]byte(`["","children","blog",["",{}]]`), &out); err == nil {
		t.Fatalf("Unmarshal of 4-element path returned nil error")
	}
}

func TestDecode_RejectsNullParallelRoute(t *testing.T) {
	body := `[["", "children", "blog", ["blog", {"children": null}], "\"blog2\""]]`
	if _, err := Decode(strings.NewReader(body)); err == nil {
		t.Fatalf("Decode accepted a tree patch with a null slot")
	}
}

func TestEncodeDecode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, Data{Paths: []DataPath{samplePath()}}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	data, err := Decode(&buf)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if len(data.Paths) != 1 || data.IsMPA() {
		t.Fatalf("decoded = %#v, want one path", data)
	}

	buf.Reset()
	if err := Encode(&buf, Data{MPA: "/legacy"}); err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	data, err = Decode(&buf)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if data.MPA != "/legacy" {
		t.Fatalf("MPA = %q, want /legacy", data.MPA)
	}
}

func TestTreeHeaderRoundTrip(t *testing.T) {
	tree := routerstate.New(segment.New(""), map[string]*routerstate.Tree{
		routerstate.Children: routerstate.New(segment.New("blog"), nil),
	})
	header, err := EncodeTreeHeader(tree)
	if err != nil {
		t.Fatalf("EncodeTreeHeader returned error: %v", err)
	}
	got, err := DecodeTreeHeader(header)
	if err != nil {
		t.Fatalf("DecodeTreeHeader returned error: %v", err)
	}
	if !routerstate.Equal(got, tree) {
		t.Fatalf("header round trip = %#v, want %#v", got, tree)
	}
	if empty, err := DecodeTreeHeader(""); err != nil || empty != nil {
		t.Fatalf("DecodeTreeHeader(\"\") = (%v, %v), want (nil, nil)", empty, err)
	}
}
