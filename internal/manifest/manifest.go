package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/five82/wayfinder/internal/segment"
)

var (
	// ErrInvalidManifest wraps parse and validation failures.
	ErrInvalidManifest = errors.New("invalid manifest")
	// ErrNoRoute is returned when no branch of the manifest matches a path.
	ErrNoRoute = errors.New("no route")
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("segdir", validateSegmentDir)
	_ = validate.RegisterValidation("slotkey", validateSlotKey)
}

// validateSegmentDir accepts a static directory name or a [param] form.
func validateSegmentDir(fl validator.FieldLevel) bool {
	dir := fl.Field().String()
	if strings.Contains(dir, "/") {
		return false
	}
	if strings.HasPrefix(dir, "[") || strings.HasSuffix(dir, "]") {
		_, _, ok := segment.ParseParam(dir)
		return ok
	}
	return true
}

func validateSlotKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	return key != "" && !strings.ContainsAny(key, "/[]")
}

// Components names the modules that apply to a segment.
type Components struct {
	Layout   string `yaml:"layout,omitempty"`
	Template string `yaml:"template,omitempty"`
	Page     string `yaml:"page,omitempty"`
	Loading  string `yaml:"loading,omitempty"`
	Error    string `yaml:"error,omitempty"`
}

// Node is one directory of the route tree. Slots hold the alternative
// branches for each parallel route key.
type Node struct {
	Segment    string             `yaml:"segment" validate:"segdir"`
	Components Components         `yaml:"components,omitempty"`
	Data       string             `yaml:"data,omitempty"`
	Slots      map[string][]*Node `yaml:"slots,omitempty" validate:"omitempty,dive,keys,slotkey,endkeys,min=1,dive,required"`
}

// Param returns the parameter name and kind for a dynamic directory.
func (n *Node) Param() (string, segment.Kind, bool) {
	return segment.ParseParam(n.Segment)
}

// HasLoading reports whether the segment defines a loading boundary.
func (n *Node) HasLoading() bool {
	return n.Components.Loading != ""
}

// SlotKeys returns the node's slot keys with children first.
func (n *Node) SlotKeys() []string {
	keys := make([]string, 0, len(n.Slots))
	if _, ok := n.Slots[Children]; ok {
		keys = append(keys, Children)
	}
	rest := make([]string, 0, len(n.Slots))
	for k := range n.Slots {
		if k != Children {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	return append(keys, rest...)
}

// Child returns the single branch kept in slot after matching, or nil.
func (n *Node) Child(slot string) *Node {
	if alts := n.Slots[slot]; len(alts) > 0 {
		return alts[0]
	}
	return nil
}

// Manifest is the route description served by wayfinderd.
type Manifest struct {
	// Pages are paths served outside the app router.
	Pages []string `yaml:"pages,omitempty" validate:"dive,startswith=/"`
	Root  *Node    `yaml:"root" validate:"required"`
}

// Children is the primary slot key.
const Children = "children"

// Parse decodes and validates a manifest.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if m.Root.Segment != "" {
		return nil, fmt.Errorf("%w: root segment must be empty, got %q", ErrInvalidManifest, m.Root.Segment)
	}
	return &m, nil
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// IsPage reports whether pathname is served outside the app router.
func (m *Manifest) IsPage(pathname string) bool {
	for _, p := range m.Pages {
		if p == pathname {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, "/*"); ok && (pathname == prefix || strings.HasPrefix(pathname, prefix+"/")) {
			return true
		}
	}
	return false
}
