package config

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLoadPhrasesLines(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "phrases.txt", "sit\n\n  turn left  \nwag tail\n")

	got, err := LoadPhrases(path, 0)
	if err != nil {
		t.Fatalf("LoadPhrases error: %v", err)
	}
	want := []Phrase{
		{Value: "sit", Boost: DefaultBoost},
		{Value: "turn left", Boost: DefaultBoost},
		{Value: "wag tail", Boost: DefaultBoost},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("phrases mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPhrasesYAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "phrases.yaml", `
phrases:
  - sit
  - value: look up
    boost: 15
`)

	got, err := LoadPhrases(path, 5)
	if err != nil {
		t.Fatalf("LoadPhrases error: %v", err)
	}
	want := []Phrase{
		{Value: "sit", Boost: 5},
		{Value: "look up", Boost: 15},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("phrases mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPhrasesMissingFileUsesDefaults(t *testing.T) {
	got, err := LoadPhrases(filepath.Join(t.TempDir(), "absent.txt"), 0)
	if err != nil {
		t.Fatalf("LoadPhrases error: %v", err)
	}
	if diff := cmp.Diff(DefaultPhrases, PhraseValues(got)); diff != "" {
		t.Fatalf("phrases mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPhrasesEmptyFileUsesDefaults(t *testing.T) {
	path := writeFile(t, t.TempDir(), "phrases.txt", "\n  \n")

	got, err := LoadPhrases(path, 0)
	if err != nil {
		t.Fatalf("LoadPhrases error: %v", err)
	}
	if len(got) != len(DefaultPhrases) {
		t.Fatalf("len=%d, want %d", len(got), len(DefaultPhrases))
	}
}
