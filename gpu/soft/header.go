package soft

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// uniformType is the declared GLSL type of a scalar uniform.
type uniformType string

const (
	typeFloat uniformType = "float"
	typeInt   uniformType = "int"
	typeUint  uniformType = "uint"
	typeBool  uniformType = "bool"
	typeVec3  uniformType = "vec3"
)

// header is the interface of a kernel as declared in its GLSL source.
type header struct {
	version  int
	local    [3]int
	uniforms map[string]uniformType
	images   map[int]string // binding -> name
	buffers  map[int]string // binding -> block name
}

var (
	reLineComment  = regexp.MustCompile(`//[^\n]*`)
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reVersion      = regexp.MustCompile(`(?m)^\s*#version\s+(\d+)`)
	reMain         = regexp.MustCompile(`\bvoid\s+main\s*\(\s*\)`)
	reLocalSize    = regexp.MustCompile(`layout\s*\(([^)]*local_size[^)]*)\)\s*in\s*;`)
	reUniform      = regexp.MustCompile(`(?m)^\s*uniform\s+(float|int|uint|bool|vec3)\s+(\w+)\s*;`)
	reImage        = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*(?:\w+\s+)*uniform\s+image2D\s+(\w+)\s*;`)
	reBuffer       = regexp.MustCompile(`layout\s*\(([^)]*)\)\s*(?:readonly\s+|writeonly\s+|restrict\s+|coherent\s+)*buffer\s+(\w+)`)
	reQualifier    = regexp.MustCompile(`(\w+)\s*=\s*(\d+)`)
)

// parseHeader extracts version, local size, uniforms and bindings from a
// compute shader. It rejects sources a GLSL compiler would reject for
// structural reasons; it does not type-check bodies.
func parseHeader(text string) (*header, error) {
	src := reBlockComment.ReplaceAllString(text, "")
	src = reLineComment.ReplaceAllString(src, "")

	h := &header{
		local:    [3]int{1, 1, 1},
		uniforms: make(map[string]uniformType),
		images:   make(map[int]string),
		buffers:  make(map[int]string),
	}

	m := reVersion.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("0:1: missing #version directive")
	}
	h.version, _ = strconv.Atoi(m[1])
	if h.version < 430 {
		return nil, fmt.Errorf("0:1: compute shaders require #version 430 or later, got %d", h.version)
	}

	if !reMain.MatchString(src) {
		return nil, fmt.Errorf("missing entry point void main()")
	}
	if strings.Count(src, "{") != strings.Count(src, "}") {
		return nil, fmt.Errorf("unbalanced braces")
	}

	m = reLocalSize.FindStringSubmatch(src)
	if m == nil {
		return nil, fmt.Errorf("missing local_size layout declaration")
	}
	for _, q := range reQualifier.FindAllStringSubmatch(m[1], -1) {
		n, _ := strconv.Atoi(q[2])
		if n <= 0 {
			return nil, fmt.Errorf("%s must be positive", q[1])
		}
		switch q[1] {
		case "local_size_x":
			h.local[0] = n
		case "local_size_y":
			h.local[1] = n
		case "local_size_z":
			h.local[2] = n
		}
	}

	for _, u := range reUniform.FindAllStringSubmatch(src, -1) {
		h.uniforms[u[2]] = uniformType(u[1])
	}

	for _, im := range reImage.FindAllStringSubmatch(src, -1) {
		binding, ok := bindingOf(im[1])
		if !ok {
			return nil, fmt.Errorf("image %q has no binding qualifier", im[2])
		}
		h.images[binding] = im[2]
	}
	for _, b := range reBuffer.FindAllStringSubmatch(src, -1) {
		binding, ok := bindingOf(b[1])
		if !ok {
			return nil, fmt.Errorf("buffer block %q has no binding qualifier", b[2])
		}
		h.buffers[binding] = b[2]
	}

	return h, nil
}

func bindingOf(qualifiers string) (int, bool) {
	for _, q := range reQualifier.FindAllStringSubmatch(qualifiers, -1) {
		if q[1] == "binding" {
			n, err := strconv.Atoi(q[2])
			return n, err == nil
		}
	}
	return 0, false
}
