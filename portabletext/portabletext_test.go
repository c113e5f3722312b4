package portabletext

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

const sampleBody = `[
 {"_type":"block","_key":"a","style":"h1","children":[{"_type":"span","text":"Title"}],"markDefs":[]},
 {"_type":"block","_key":"b","style":"normal","children":[
   {"_type":"span","text":"Read "},
   {"_type":"span","text":"this","marks":["lnk"]},
   {"_type":"span","text":" now","marks":["strong"]}
 ],"markDefs":[{"_key":"lnk","_type":"link","href":"https://example.com"}]},
 {"_type":"block","_key":"c","listItem":"bullet","level":1,"children":[{"_type":"span","text":"one"}]},
 {"_type":"block","_key":"d","listItem":"bullet","level":1,"children":[{"_type":"span","text":"two"}]},
 {"_type":"youtube","_key":"e","url":"https://youtu.be/x"},
 {"_type":"image","_key":"f","asset":{"_ref":"image-abc-10x20-png"},"alt":"pic"}
]`

func decode(t *testing.T, s string) Blocks {
	t.Helper()
	var bs Blocks
	if err := json.Unmarshal([]byte(s), &bs); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return bs
}

func render(r Renderer, bs Blocks) string {
	var buf bytes.Buffer
	r.Render(&buf, bs)
	return buf.String()
}

func TestUnmarshalBlockTypes(t *testing.T) {
	bs := decode(t, sampleBody)
	if len(bs) != 6 {
		t.Fatalf("len = %d, want 6", len(bs))
	}
	wantTypes := []string{"block", "block", "block", "block", "youtube", "image"}
	for i, want := range wantTypes {
		if got := bs[i].BlockType(); got != want {
			t.Errorf("block %d type = %q, want %q", i, got, want)
		}
	}
	if _, ok := bs[4].(*UnknownBlock); !ok {
		t.Errorf("block 4 = %T, want *UnknownBlock", bs[4])
	}
}

func TestUnmarshalNull(t *testing.T) {
	bs := decode(t, "null")
	if bs != nil {
		t.Errorf("expected nil blocks, got %v", bs)
	}
}

func TestMarshalRoundTripKeepsUnknown(t *testing.T) {
	bs := decode(t, sampleBody)
	raw, err := json.Marshal(bs)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"_type":"youtube"`) {
		t.Errorf("unknown block lost: %s", raw)
	}
	again := decode(t, string(raw))
	if render(Renderer{}, again) != render(Renderer{}, bs) {
		t.Errorf("render differs after round trip")
	}
}

func TestRenderHeadingAndLink(t *testing.T) {
	got := render(Renderer{}, decode(t, sampleBody))
	if !strings.Contains(got, `<h1 class="my-5 text-2xl font-bold">Title</h1>`) {
		t.Errorf("missing h1: %s", got)
	}
	if !strings.Contains(got, `<a href="https://example.com" class="text-blue-500 hover:underline">this</a>`) {
		t.Errorf("missing link: %s", got)
	}
	if !strings.Contains(got, "<strong> now</strong>") {
		t.Errorf("missing strong: %s", got)
	}
}

func TestRenderGroupsListItems(t *testing.T) {
	got := render(Renderer{}, decode(t, sampleBody))
	want := `<ul><li class="ml-4 list-disc">one</li><li class="ml-4 list-disc">two</li></ul>`
	if !strings.Contains(got, want) {
		t.Errorf("list not grouped:\n got %s\nwant %s", got, want)
	}
}

func TestRenderNestedList(t *testing.T) {
	bs := Blocks{
		&TextBlock{ListItem: "bullet", Level: 1, Children: []Span{{Type: "span", Text: "a"}}},
		&TextBlock{ListItem: "number", Level: 2, Children: []Span{{Type: "span", Text: "b"}}},
		&TextBlock{ListItem: "bullet", Level: 1, Children: []Span{{Type: "span", Text: "c"}}},
	}
	got := render(Renderer{}, bs)
	want := `<ul><li class="ml-4 list-disc">a<ol><li class="ml-4 list-disc">b</li></ol></li><li class="ml-4 list-disc">c</li></ul>`
	if got != want {
		t.Errorf("nested list:\n got %s\nwant %s", got, want)
	}
}

func TestRenderSkipsUnknownBlocks(t *testing.T) {
	bs := Blocks{
		&UnknownBlock{Type: "codepen"},
		&TextBlock{Style: "mystery", Children: []Span{{Type: "span", Text: "fallback"}}},
	}
	got := render(Renderer{}, bs)
	if got != `<p class="my-3">fallback</p>` {
		t.Errorf("got %q", got)
	}
}

func TestRenderImageUsesResolver(t *testing.T) {
	r := Renderer{
		ImageURL: func(ref string, width int) string {
			if ref != "image-abc-10x20-png" || width != 640 {
				t.Errorf("resolver called with %q %d", ref, width)
			}
			return "https://cdn.example/abc.png?w=640"
		},
		ImageWidth: 640,
	}
	got := render(r, decode(t, sampleBody))
	if !strings.Contains(got, `src="https://cdn.example/abc.png?w=640"`) {
		t.Errorf("missing image: %s", got)
	}
	if !strings.Contains(got, `alt="pic"`) {
		t.Errorf("missing alt: %s", got)
	}
}

func TestRenderEscapesText(t *testing.T) {
	bs := Blocks{&TextBlock{Children: []Span{{Type: "span", Text: "<script>x</script>\nline"}}}}
	got := render(Renderer{}, bs)
	if strings.Contains(got, "<script>") {
		t.Errorf("unescaped text: %s", got)
	}
	if !strings.Contains(got, "<br/>line") {
		t.Errorf("newline not converted: %s", got)
	}
}

func TestRenderDropsUnsafeLinks(t *testing.T) {
	bs := Blocks{&TextBlock{
		Children: []Span{{Type: "span", Text: "click", Marks: []string{"k"}}},
		MarkDefs: []MarkDef{{Key: "k", Type: "link", Href: "javascript:alert(1)"}},
	}}
	got := render(Renderer{}, bs)
	if strings.Contains(got, "<a") {
		t.Errorf("unsafe link rendered: %s", got)
	}
}

func TestSafeURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://example.com", "https://example.com"},
		{"/relative/path", "/relative/path"},
		{"#anchor", "#anchor"},
		{"mailto:a@b.c", "mailto:a@b.c"},
		{"javascript:alert(1)", ""},
		{"data:text/html,x", ""},
		{"", ""},
		{"no-scheme", ""},
	}
	for _, tt := range tests {
		if got := SafeURL(tt.in); got != tt.want {
			t.Errorf("SafeURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPlainText(t *testing.T) {
	got := decode(t, sampleBody).PlainText()
	if !strings.HasPrefix(got, "Title\nRead this now") {
		t.Errorf("PlainText = %q", got)
	}
}
