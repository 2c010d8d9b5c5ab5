package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultBoost is applied to phrases that do not carry their own boost.
const DefaultBoost float32 = 10

// Phrase is a recognition hint with an optional boost weight.
type Phrase struct {
	Value string  `yaml:"value" json:"value"`
	Boost float32 `yaml:"boost" json:"boost"`
}

// DefaultPhrases are used when no phrase file is present or it holds nothing.
var DefaultPhrases = []string{
	"sit", "stand", "lie down", "shake", "bark", "howl", "pant",
	"forward", "backward", "turn left", "turn right", "wag tail",
	"look left", "look right", "look up", "look down", "sleep",
	"pushup", "surprise", "alert", "attack", "reset", "yes", "no",
	"think", "lick", "five", "twist",
}

type phraseFilePayload struct {
	Phrases []yaml.Node `yaml:"phrases"`
}

// LoadPhrases reads path and returns its phrases, falling back to DefaultPhrases
// when the file is missing or empty. Plain files hold one phrase per line;
// .yaml and .yml files hold a list of strings or {value, boost} entries, either
// at the top level or under a "phrases" key.
func LoadPhrases(path string, boost float32) ([]Phrase, error) {
	if boost <= 0 {
		boost = DefaultBoost
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return BoostedDefaults(boost), nil
		}
		return nil, err
	}

	var phrases []Phrase
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		phrases, err = parseYAMLPhrases(data, boost)
		if err != nil {
			return nil, fmt.Errorf("parse phrases %s: %w", path, err)
		}
	default:
		phrases = parseLinePhrases(data, boost)
	}

	if len(phrases) == 0 {
		return BoostedDefaults(boost), nil
	}
	return phrases, nil
}

// PhraseValues returns the text of each phrase.
func PhraseValues(phrases []Phrase) []string {
	values := make([]string, 0, len(phrases))
	for _, p := range phrases {
		values = append(values, p.Value)
	}
	return values
}

// BoostedDefaults returns DefaultPhrases weighted with boost.
func BoostedDefaults(boost float32) []Phrase {
	out := make([]Phrase, 0, len(DefaultPhrases))
	for _, value := range DefaultPhrases {
		out = append(out, Phrase{Value: value, Boost: boost})
	}
	return out
}

func parseLinePhrases(data []byte, boost float32) []Phrase {
	var out []Phrase
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		out = append(out, Phrase{Value: line, Boost: boost})
	}
	return out
}

func parseYAMLPhrases(data []byte, boost float32) ([]Phrase, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	var nodes []yaml.Node
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		if err := doc.Decode(&nodes); err != nil {
			return nil, err
		}
	case yaml.MappingNode:
		var payload phraseFilePayload
		if err := doc.Decode(&payload); err != nil {
			return nil, err
		}
		nodes = payload.Phrases
	default:
		return nil, errors.New("phrases must be a list")
	}

	out := make([]Phrase, 0, len(nodes))
	for _, node := range nodes {
		var p Phrase
		if node.Kind == yaml.ScalarNode {
			p.Value = node.Value
		} else if err := node.Decode(&p); err != nil {
			return nil, err
		}
		p.Value = strings.TrimSpace(p.Value)
		if p.Value == "" {
			continue
		}
		if p.Boost <= 0 {
			p.Boost = boost
		}
		out = append(out, p)
	}
	return out, nil
}
