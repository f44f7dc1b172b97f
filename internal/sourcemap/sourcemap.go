// © 2026 The ckanext-datagovau Authors. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

// Package sourcemap generates version 3 source maps.
//
// See https://sourcemaps.info/spec.html for the format.
package sourcemap

import (
	"encoding/json"
	"sort"
	"strings"
)

// Map is a version 3 source map document.
type Map struct {
	Version        int      `json:"version"`
	File           string   `json:"file,omitempty"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent,omitempty"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Encode returns the JSON encoding of m.
func (m *Map) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Mapping maps a position in the generated file to a position in a source.
// Lines and columns are zero-based.
type Mapping struct {
	GenLine, GenColumn int
	Source             int
	Line, Column       int
}

// Generator accumulates sources and mappings.
type Generator struct {
	file     string
	sources  []string
	contents []string
	index    map[string]int
	mappings []Mapping
}

// New returns a Generator for the generated file named file.
func New(file string) *Generator {
	return &Generator{
		file:  file,
		index: make(map[string]int),
	}
}

// AddSource registers a source and returns its index. Adding the same name
// twice returns the first index.
func (g *Generator) AddSource(name string, content []byte) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.sources)
	g.index[name] = i
	g.sources = append(g.sources, name)
	g.contents = append(g.contents, string(content))
	return i
}

// Add records a mapping.
func (g *Generator) Add(m Mapping) {
	g.mappings = append(g.mappings, m)
}

// Map builds the source map document.
func (g *Generator) Map() *Map {
	return &Map{
		Version:        3,
		File:           g.file,
		Sources:        append([]string{}, g.sources...),
		SourcesContent: append([]string{}, g.contents...),
		Names:          []string{},
		Mappings:       g.encodeMappings(),
	}
}

func (g *Generator) encodeMappings() string {
	ms := append([]Mapping{}, g.mappings...)
	sort.SliceStable(ms, func(i, j int) bool {
		if ms[i].GenLine != ms[j].GenLine {
			return ms[i].GenLine < ms[j].GenLine
		}
		return ms[i].GenColumn < ms[j].GenColumn
	})

	var (
		sb         strings.Builder
		line       int
		prevGenCol int
		prevSource int
		prevLine   int
		prevCol    int
		first      = true
	)
	for _, m := range ms {
		for line < m.GenLine {
			sb.WriteByte(';')
			line++
			prevGenCol = 0
			first = true
		}
		if !first {
			sb.WriteByte(',')
		}
		first = false
		writeVLQ(&sb, m.GenColumn-prevGenCol)
		writeVLQ(&sb, m.Source-prevSource)
		writeVLQ(&sb, m.Line-prevLine)
		writeVLQ(&sb, m.Column-prevCol)
		prevGenCol, prevSource, prevLine, prevCol = m.GenColumn, m.Source, m.Line, m.Column
	}
	return sb.String()
}

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// writeVLQ writes n in Base64 VLQ: the sign is stored in the lowest bit and
// each digit carries five bits with a continuation bit on top.
func writeVLQ(sb *strings.Builder, n int) {
	v := n << 1
	if n < 0 {
		v = (-n << 1) | 1
	}
	for {
		digit := v & 31
		v >>= 5
		if v > 0 {
			digit |= 32
		}
		sb.WriteByte(base64Chars[digit])
		if v == 0 {
			return
		}
	}
}
