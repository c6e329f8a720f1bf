package skills

import (
	"context"
	"strings"
	"testing"

	"tether/filestore"
	"tether/model"
)

func TestMarshalParseRoundTrip(t *testing.T) {
	tests := []model.Skill{
		{Name: "deploy", Description: "Ship to prod", Content: "Run make deploy.\n"},
		{Name: "review", Description: "colons: are fine", Content: "# Review\n\n- check tests"},
		{Name: "multi", Description: "line one\nline two", Content: "---\nnot front matter\n---\n"},
		{Name: "  padded ", Description: " spaced ", Content: "  leading whitespace kept"},
		{Name: "quote's", Description: `"double"`, Content: "x"},
		{Name: "---", Description: "fence as name", Content: "\n\nblank lines first"},
	}

	for _, in := range tests {
		t.Run(in.Name, func(t *testing.T) {
			src, err := Marshal(in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			out, err := Parse(src)
			if err != nil {
				t.Fatalf("Parse: %v\n%s", err, src)
			}
			if out != in {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", out, in)
			}
		})
	}
}

func TestParseRejectsMissingFrontMatter(t *testing.T) {
	if _, err := Parse("just text"); err == nil {
		t.Fatal("expected an error for a document without front matter")
	}
}

func TestRegistryAdd(t *testing.T) {
	r := NewRegistry(nil)

	if !r.Add(model.Skill{Name: "a", Description: "first", Content: "one"}) {
		t.Fatal("first registration rejected")
	}
	if r.Add(model.Skill{Name: "a", Description: "second", Content: "two"}) {
		t.Error("duplicate registration accepted")
	}
	if s, _ := r.Get("a"); s.Content != "one" {
		t.Errorf("duplicate replaced the first skill: %+v", s)
	}

	missing := []model.Skill{
		{Description: "d", Content: "c"},
		{Name: "n", Content: "c"},
		{Name: "n", Description: "d"},
	}
	for _, s := range missing {
		if r.Add(s) {
			t.Errorf("skill with missing field registered: %+v", s)
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len = %d, want 1", r.Len())
	}
}

func TestFragment(t *testing.T) {
	r := NewRegistry(nil)
	if r.Fragment() != "" {
		t.Error("empty registry should render no fragment")
	}

	r.Add(model.Skill{Name: "deploy", Description: "Ship it", Content: "secret steps"})
	frag := r.Fragment()
	for _, want := range []string{"<available_skills>", "<name>deploy</name>", "<description>Ship it</description>", LoaderToolName} {
		if !strings.Contains(frag, want) {
			t.Errorf("fragment missing %q:\n%s", want, frag)
		}
	}
	if strings.Contains(frag, "secret steps") {
		t.Error("fragment must not include skill content")
	}
}

func TestFragmentEscapesMarkup(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(model.Skill{Name: "review", Description: "Use when a < b </skill> & more", Content: "c"})

	frag := r.Fragment()
	if !strings.Contains(frag, "<description>Use when a &lt; b &lt;/skill&gt; &amp; more</description>") {
		t.Errorf("description not escaped:\n%s", frag)
	}
	if strings.Count(frag, "</skill>") != 1 {
		t.Errorf("fragment structure broken:\n%s", frag)
	}
}

func TestLoaderTool(t *testing.T) {
	r := NewRegistry(nil)
	r.Add(model.Skill{Name: "zeta", Description: "z", Content: "zeta content"})
	r.Add(model.Skill{Name: "alpha", Description: "a", Content: "alpha content"})
	tool := r.LoaderTool()

	res, err := tool.Execute(context.Background(), map[string]any{"name": "alpha"})
	if err != nil || res.IsError || res.Content != "alpha content" {
		t.Fatalf("load alpha: %+v, %v", res, err)
	}

	res, err = tool.Execute(context.Background(), map[string]any{"name": "nope"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Fatal("expected an error result for an unknown skill")
	}
	if !strings.Contains(res.Content, "alpha, zeta") {
		t.Errorf("error should list known skills, got %q", res.Content)
	}
}

func TestSaveAndLoadFromStore(t *testing.T) {
	fs := filestore.New()
	if err := Save(fs, model.Skill{Name: "deploy", Description: "d", Content: "c"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	fs.Write(Dir+"/broken.md", "no front matter")
	fs.Write(Dir+"/notes.txt", "ignored")

	r := NewRegistry(nil)
	if n := r.LoadFromStore(fs); n != 1 {
		t.Fatalf("LoadFromStore added %d skills, want 1", n)
	}
	if _, ok := r.Get("deploy"); !ok {
		t.Error("persisted skill not loaded")
	}

	if err := Save(fs, model.Skill{Name: "empty"}); err == nil {
		t.Error("Save accepted an invalid skill")
	}
}
