package segment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind distinguishes static segments from the dynamic parameter forms.
type Kind int

const (
	Static Kind = iota
	Dynamic
	CatchAll
	OptionalCatchAll
)

// String returns the long name used in route descriptions.
func (k Kind) String() string {
	switch k {
	case Static:
		return "static"
	case Dynamic:
		return "dynamic"
	case CatchAll:
		return "catchall"
	case OptionalCatchAll:
		return "optional-catchall"
	default:
		return "unknown"
	}
}

// ShortKind returns the compact tag carried on the wire.
func (k Kind) ShortKind() string {
	switch k {
	case Dynamic:
		return "d"
	case CatchAll:
		return "c"
	case OptionalCatchAll:
		return "oc"
	default:
		return ""
	}
}

// ParseShortKind maps a wire tag back to a Kind.
func ParseShortKind(tag string) (Kind, error) {
	switch tag {
	case "d":
		return Dynamic, nil
	case "c":
		return CatchAll, nil
	case "oc":
		return OptionalCatchAll, nil
	default:
		return Static, fmt.Errorf("unknown dynamic param type %q", tag)
	}
}

// Segment is one route path component. Static segments only carry Value.
// Catch-all values are joined with "/".
type Segment struct {
	Param string
	Value string
	Kind  Kind
}

// New returns a static segment.
func New(value string) Segment {
	return Segment{Value: value}
}

// NewDynamic returns a parameterised segment.
func NewDynamic(param, value string, kind Kind) Segment {
	return Segment{Param: param, Value: value, Kind: kind}
}

// IsDynamic reports whether the segment is a parameter triple.
func (s Segment) IsDynamic() bool {
	return s.Kind != Static
}

// Key is the cache key for the segment. Dynamic segments collapse to their value.
func (s Segment) Key() string {
	return s.Value
}

// String renders the segment for logs and outlines.
func (s Segment) String() string {
	if !s.IsDynamic() {
		return s.Value
	}
	return fmt.Sprintf("[%s=%s:%s]", s.Param, s.Value, s.Kind.ShortKind())
}

// Match reports whether two segments address the same node. Static segments
// compare by string; dynamic segments compare by value only, the param name
// and kind are not consulted.
func Match(a, b Segment) bool {
	if a.IsDynamic() != b.IsDynamic() {
		return false
	}
	return a.Value == b.Value
}

// ParseParam recognises [slug], [...slug] and [[...slug]] directory names.
func ParseParam(dir string) (param string, kind Kind, ok bool) {
	if !strings.HasPrefix(dir, "[") || !strings.HasSuffix(dir, "]") {
		return "", Static, false
	}
	if strings.HasPrefix(dir, "[[...") && strings.HasSuffix(dir, "]]") {
		param = dir[len("[[...") : len(dir)-2]
		kind = OptionalCatchAll
	} else if strings.HasPrefix(dir, "[...") {
		param = dir[len("[...") : len(dir)-1]
		kind = CatchAll
	} else {
		param = dir[1 : len(dir)-1]
		kind = Dynamic
	}
	if param == "" || strings.ContainsAny(param, "[]/") {
		return "", Static, false
	}
	return param, kind, true
}

// MarshalJSON encodes static segments as strings and dynamic ones as
// [param, value, type].
func (s Segment) MarshalJSON() ([]byte, error) {
	if !s.IsDynamic() {
		return json.Marshal(s.Value)
	}
	return json.Marshal([3]string{s.Param, s.Value, s.Kind.ShortKind()})
}

// UnmarshalJSON accepts both wire forms.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err == nil {
		*s = New(value)
		return nil
	}
	var triple []string
	if err := json.Unmarshal(data, &triple); err != nil {
		return fmt.Errorf("decode segment: %w", err)
	}
	if len(triple) != 3 {
		return fmt.Errorf("decode segment: want 3 elements, got %d", len(triple))
	}
	kind, err := ParseShortKind(triple[2])
	if err != nil {
		return fmt.Errorf("decode segment: %w", err)
	}
	*s = NewDynamic(triple[0], triple[1], kind)
	return nil
}
