// internal/model/template.go
package model

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
)

var placeholderRe = regexp.MustCompile(`\{\{(\d+)\}\}`)

// Template is an approved message template as listed by the Graph API.
type Template struct {
	Name       string              `json:"name"`
	Status     string              `json:"status"`
	Language   string              `json:"language"`
	Category   string              `json:"category"`
	Components []TemplateComponent `json:"components,omitempty"`
}

type TemplateComponent struct {
	Type    string          `json:"type"`
	Format  string          `json:"format,omitempty"`
	Text    string          `json:"text,omitempty"`
	Example json.RawMessage `json:"example,omitempty"`
}

// VariableIndexes returns the distinct {{n}} placeholders used by the template, ascending.
func (t *Template) VariableIndexes() []int {
	seen := map[int]bool{}
	var out []int
	for _, c := range t.Components {
		for _, m := range placeholderRe.FindAllStringSubmatch(c.Text, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil || seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
