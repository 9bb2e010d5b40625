package enhance

import (
	"fmt"
	"strings"
)

// Method is one of the named enhancement transforms.
type Method int

const (
	Color Method = iota + 1
	Denoise
	Sharpen
	Face
	SuperRes
	HDR
)

var methodNames = map[Method]string{
	Color:    "color",
	Denoise:  "denoise",
	Sharpen:  "sharpen",
	Face:     "face",
	SuperRes: "super_res",
	HDR:      "hdr",
}

func (m Method) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("method(%d)", int(m))
}

func (m Method) MarshalText() ([]byte, error) {
	if _, ok := methodNames[m]; !ok {
		return nil, fmt.Errorf("unknown enhancement method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, ok := ParseMethod(string(text))
	if !ok {
		return fmt.Errorf("unknown enhancement method %q", string(text))
	}
	*m = parsed
	return nil
}

func ParseMethod(name string) (Method, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == name {
			return m, true
		}
	}
	return 0, false
}

// ParseMethods maps names to methods in order. Unrecognized names are
// dropped and returned separately so the caller can log them.
func ParseMethods(names []string) ([]Method, []string) {
	methods := make([]Method, 0, len(names))
	var unknown []string
	for _, name := range names {
		m, ok := ParseMethod(name)
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		methods = append(methods, m)
	}
	return methods, unknown
}

// DefaultMethods is used when no method list is configured.
func DefaultMethods() []Method {
	return []Method{Color, Denoise, Sharpen}
}

func Names(methods []Method) []string {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.String()
	}
	return names
}
