package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Annotation-Span-Index/internal/ingestion"
)

func writeDoc(t *testing.T) string {
	t.Helper()
	doc := ingestion.AnnotatedDocument{
		DocumentID: "cli",
		Text:       "the cat sat on the mat",
		Annotations: []ingestion.Annotation{
			{ID: "t1", Begin: 0, End: 3, Type: "token"},
			{ID: "t2", Begin: 4, End: 7, Type: "token"},
			{ID: "t3", Begin: 8, End: 11, Type: "token"},
			{ID: "t4", Begin: 12, End: 14, Type: "token"},
			{ID: "t5", Begin: 15, End: 18, Type: "token"},
			{ID: "t6", Begin: 19, End: 22, Type: "token"},
			{ID: "e1", Begin: 0, End: 7, Type: "entity"},
		},
	}
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "doc.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func capture(t *testing.T, run func() error) []byte {
	t.Helper()
	var buf bytes.Buffer
	stdout = &buf
	t.Cleanup(func() { stdout = os.Stdout })
	if err := run(); err != nil {
		t.Fatalf("run: %v", err)
	}
	return buf.Bytes()
}

func ids(t *testing.T, data []byte) []string {
	t.Helper()
	var ms []match
	if err := json.Unmarshal(data, &ms); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	var out []string
	for _, m := range ms {
		out = append(out, m.ID)
	}
	return out
}

func TestCoverAndOverlapCommands(t *testing.T) {
	path := writeDoc(t)

	cover := &CoverCmd{DocFlags: DocFlags{Doc: path, Type: []string{"token"}}, RangeFlags: RangeFlags{Begin: 0, End: 7}}
	if got := ids(t, capture(t, cover.Run)); len(got) != 2 || got[0] != "t1" || got[1] != "t2" {
		t.Errorf("cover = %v", got)
	}

	overlap := &OverlapCmd{DocFlags: DocFlags{Doc: path}, RangeFlags: RangeFlags{Begin: 5, End: 9}}
	got := ids(t, capture(t, overlap.Run))
	if len(got) != 3 {
		t.Errorf("overlap = %v, want t2, t3 and e1", got)
	}

	fuzzy := &FuzzyCmd{DocFlags: DocFlags{Doc: path, Type: []string{"token"}}, RangeFlags: RangeFlags{Begin: 11, End: 12}}
	if got := ids(t, capture(t, fuzzy.Run)); len(got) != 2 || got[0] != "t3" || got[1] != "t4" {
		t.Errorf("fuzzy gap = %v, want the neighbours t3 and t4", got)
	}
}

func TestTermsCommand(t *testing.T) {
	path := writeDoc(t)
	for _, gen := range []string{"ngrams", "edge-ngrams", "prefix", "suffix", "exact-prefix", "exact-suffix", "text", "offsets"} {
		cmd := &TermsCmd{DocFlags: DocFlags{Doc: path, Type: []string{"entity"}}, Gen: gen, N: 2}
		var out []struct {
			ID    string   `json:"id"`
			Terms []string `json:"terms"`
		}
		if err := json.Unmarshal(capture(t, cmd.Run), &out); err != nil {
			t.Fatalf("%s: %v", gen, err)
		}
		if len(out) != 1 || out[0].ID != "e1" || len(out[0].Terms) == 0 {
			t.Errorf("%s = %+v", gen, out)
		}
	}
}

func TestCondenseCommand(t *testing.T) {
	path := writeDoc(t)
	cmd := &CondenseCmd{DocFlags: DocFlags{Doc: path, Type: []string{"entity"}}, At: []int{0, 1}}
	var out struct {
		Text     string `json:"text"`
		Mappings []struct {
			Begin int `json:"original_begin"`
		} `json:"mappings"`
	}
	if err := json.Unmarshal(capture(t, cmd.Run), &out); err != nil {
		t.Fatal(err)
	}
	if out.Text != " sat on the mat" || out.Mappings[1].Begin != 8 {
		t.Errorf("condense = %+v", out)
	}
}

func TestProcessCommand(t *testing.T) {
	path := writeDoc(t)
	cmd := &ProcessCmd{Doc: path, Rules: "contain,align"}
	var res struct {
		Contains []struct {
			From string   `json:"from"`
			To   []string `json:"to"`
		} `json:"contains"`
	}
	if err := json.Unmarshal(capture(t, cmd.Run), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.Contains) != 1 || len(res.Contains[0].To) != 2 {
		t.Errorf("contains = %+v", res.Contains)
	}

	if err := (&ProcessCmd{Doc: path, Rules: "bogus"}).Run(); err == nil {
		t.Error("unknown rule must fail")
	}
}

func TestFromDocument_SharesIDRules(t *testing.T) {
	raw := &ingestion.AnnotatedDocument{
		DocumentID: "cli",
		Text:       "alpha beta",
		Annotations: []ingestion.Annotation{
			{Begin: 6, End: 10, Type: "token"},
			{ID: "a0", Begin: 0, End: 5, Type: "token"},
			{Begin: 0, End: 10, Type: "entity"},
		},
	}
	l, err := fromDocument(raw, []string{"token"})
	if err != nil {
		t.Fatalf("fromDocument: %v", err)
	}
	got := l.matches(l.spans)
	if len(got) != 2 || got[0].ID != "a0.1" || got[0].Text != "beta" || got[1].ID != "a0" {
		t.Errorf("matches = %+v", got)
	}

	raw.Annotations[0].ID = "a0"
	if _, err := fromDocument(raw, nil); err == nil {
		t.Error("repeated ids must be rejected")
	}
}
