package toc

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/tocbuilder/internal/foundation/normalization"
)

// IncludeMode controls how an included toc relates to the including one.
type IncludeMode string

const (
	// ModeRootMerge copies the included toc's directory into the directory
	// the chain's top-level toc is served from.
	ModeRootMerge IncludeMode = "root_merge"
	// ModeMerge copies the included toc's directory into the including toc's directory.
	ModeMerge IncludeMode = "merge"
	// ModeLink leaves files in place and rewrites hrefs instead.
	ModeLink IncludeMode = "link"
)

// IsMerge reports whether the mode copies files.
func (m IncludeMode) IsMerge() bool {
	return m == ModeRootMerge || m == ModeMerge
}

var includeModes = normalization.NewNormalizer("include mode", map[string]IncludeMode{
	"root_merge": ModeRootMerge,
	"merge":      ModeMerge,
	"link":       ModeLink,
}, "")

// ParseIncludeMode parses a mode name. The empty string yields the empty mode,
// which means "inherit".
func ParseIncludeMode(raw string) (IncludeMode, error) {
	return includeModes.NormalizeWithError(raw)
}

// TextItem is one alternative of a conditional text field.
type TextItem struct {
	Text string `yaml:"text"`
	When any    `yaml:"when,omitempty"`
}

// TextItems holds the alternatives of a title or label. A plain string
// decodes to a single unconditional alternative.
type TextItems []TextItem

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *TextItems) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		*t = TextItems{{Text: s}}
		return nil
	case yaml.SequenceNode:
		var items []TextItem
		if err := node.Decode(&items); err != nil {
			return err
		}
		*t = items
		return nil
	default:
		return fmt.Errorf("line %d: text must be a string or a list of {text, when}", node.Line)
	}
}

// StringList decodes from a single string or a list of strings.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s == "" {
			*l = nil
		} else {
			*l = StringList{s}
		}
		return nil
	}
	var items []string
	if err := node.Decode(&items); err != nil {
		return err
	}
	*l = items
	return nil
}

// IncluderSpec names a registered includer and carries its options.
type IncluderSpec struct {
	Name    string         `yaml:"name"`
	Options map[string]any `yaml:",inline"`
}

// Include is the include descriptor of an item.
//
// Includers is kept undecoded until the include is processed so a
// malformed list can be reported with the toc path attached. Programmatic
// callers may set it to []IncluderSpec directly.
type Include struct {
	Path      string `yaml:"path"`
	Mode      string `yaml:"mode,omitempty"`
	Includers any    `yaml:"includers,omitempty"`
}

// Item is a navigation node.
type Item struct {
	Name             string         `yaml:"name,omitempty"`
	Href             string         `yaml:"href,omitempty"`
	ID               string         `yaml:"id,omitempty"`
	Hidden           bool           `yaml:"hidden,omitempty"`
	When             any            `yaml:"when,omitempty"`
	RestrictedAccess StringList     `yaml:"restricted-access,omitempty"`
	Include          *Include       `yaml:"include,omitempty"`
	Items            []*Item        `yaml:"items,omitempty"`
	Extra            map[string]any `yaml:",inline"`
}

// RawToc is a toc as read from disk, before field resolution.
type RawToc struct {
	Title      TextItems      `yaml:"title,omitempty"`
	Label      TextItems      `yaml:"label,omitempty"`
	Stage      string         `yaml:"stage,omitempty"`
	Href       string         `yaml:"href,omitempty"`
	Navigation any            `yaml:"navigation,omitempty"`
	Items      []*Item        `yaml:"items,omitempty"`
	Extra      map[string]any `yaml:",inline"`
}

// Toc is a resolved toc. Path is the project-relative file it was resolved
// for and is not serialized.
type Toc struct {
	Title      string         `yaml:"title,omitempty"`
	Label      string         `yaml:"label,omitempty"`
	Stage      string         `yaml:"stage,omitempty"`
	Href       string         `yaml:"href,omitempty"`
	Navigation any            `yaml:"navigation,omitempty"`
	Items      []*Item        `yaml:"items,omitempty"`
	Extra      map[string]any `yaml:",inline"`
	Path       string         `yaml:"-"`
}

// parseIncluders validates the raw includers value of an include.
// declared reports whether the key was present at all.
func parseIncluders(raw any) (specs []IncluderSpec, declared bool, err error) {
	switch v := raw.(type) {
	case nil:
		return nil, false, nil
	case []IncluderSpec:
		specs = v
	case []any:
		for i, entry := range v {
			m, ok := entry.(map[string]any)
			if !ok {
				return nil, true, fmt.Errorf("includer #%d must be a mapping", i+1)
			}
			name, _ := m["name"].(string)
			if name == "" {
				return nil, true, fmt.Errorf("includer #%d has no name", i+1)
			}
			opts := make(map[string]any, len(m))
			for k, val := range m {
				if k != "name" {
					opts[k] = val
				}
			}
			specs = append(specs, IncluderSpec{Name: name, Options: opts})
		}
	default:
		return nil, true, fmt.Errorf("includers must be a list, got %T", raw)
	}
	if len(specs) == 0 {
		return nil, true, fmt.Errorf("includers list is empty")
	}
	return specs, true, nil
}
