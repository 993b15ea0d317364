// internal/service/template_service.go
package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	appErrors "github.com/unclebandit/wsp-bulk-sender/internal/errors"
	"github.com/unclebandit/wsp-bulk-sender/internal/model"
)

var placeholderRe = regexp.MustCompile(`\{\{(\d+)\}\}`)

// TemplatePreview is a template with its {{n}} placeholders filled in.
type TemplatePreview struct {
	Name      string   `json:"name"`
	Language  string   `json:"language"`
	Category  string   `json:"category"`
	Header    string   `json:"header,omitempty"`
	Body      string   `json:"body"`
	Footer    string   `json:"footer,omitempty"`
	Variables []int    `json:"variables"`
	Values    []string `json:"values"`
}

// RenderTemplate replaces {{n}} with values[n-1]. Placeholders without a
// non-empty value are left as they are.
func RenderTemplate(text string, values []string) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		n, err := strconv.Atoi(m[2 : len(m)-2])
		if err != nil || n < 1 || n > len(values) || values[n-1] == "" {
			return m
		}
		return values[n-1]
	})
}

// RenderPreview fills the header, body and footer of tpl. Only TEXT headers are rendered.
func RenderPreview(tpl model.Template, values []string) TemplatePreview {
	p := TemplatePreview{
		Name:      tpl.Name,
		Language:  tpl.Language,
		Category:  tpl.Category,
		Variables: tpl.VariableIndexes(),
		Values:    append([]string{}, values...),
	}
	if p.Variables == nil {
		p.Variables = []int{}
	}
	for _, c := range tpl.Components {
		switch strings.ToUpper(c.Type) {
		case "HEADER":
			if strings.EqualFold(c.Format, "TEXT") {
				p.Header = RenderTemplate(c.Text, values)
			}
		case "BODY":
			p.Body = RenderTemplate(c.Text, values)
		case "FOOTER":
			p.Footer = RenderTemplate(c.Text, values)
		}
	}
	return p
}

// PreviewTemplate renders an approved template of the channel. When row is set
// the values come from that staged recipient instead of variables.
func (s *CampaignService) PreviewTemplate(ctx context.Context, channelID, name string, variables []string, row *int) (*TemplatePreview, error) {
	if name == "" {
		return nil, appErrors.NewValidation("template_name", "is required")
	}
	if row != nil {
		values, err := s.stagedVariables(*row)
		if err != nil {
			return nil, err
		}
		variables = values
	}

	templates, err := s.ListTemplates(ctx, channelID)
	if err != nil {
		return nil, err
	}
	for _, tpl := range templates {
		if tpl.Name == name {
			p := RenderPreview(tpl, variables)
			return &p, nil
		}
	}
	return nil, appErrors.NewTemplateNotFound(name)
}

func (s *CampaignService) stagedVariables(row int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.staged == nil {
		return nil, appErrors.NewValidation("row", "no recipients file is staged")
	}
	if row < 0 || row >= len(s.staged.Recipients) {
		return nil, appErrors.NewValidation("row", fmt.Sprintf("must be between 0 and %d", len(s.staged.Recipients)-1))
	}
	return append([]string(nil), s.staged.Recipients[row].Variables...), nil
}
