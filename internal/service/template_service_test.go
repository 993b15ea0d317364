package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unclebandit/wsp-bulk-sender/internal/model"
	"github.com/unclebandit/wsp-bulk-sender/internal/service"
)

func TestRenderTemplate(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		values []string
		want   string
	}{
		{"all values", "Hola {{1}}, debe {{2}}", []string{"Juan", "25.00"}, "Hola Juan, debe 25.00"},
		{"missing value keeps placeholder", "Hola {{1}}, debe {{2}}", []string{"Juan"}, "Hola Juan, debe {{2}}"},
		{"empty value keeps placeholder", "Hola {{1}}", []string{""}, "Hola {{1}}"},
		{"repeated placeholder", "{{1}} y {{1}}", []string{"a"}, "a y a"},
		{"zero index untouched", "{{0}}", []string{"a"}, "{{0}}"},
		{"no placeholders", "Gracias", nil, "Gracias"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.RenderTemplate(tt.text, tt.values))
		})
	}
}

func TestRenderPreview(t *testing.T) {
	tpl := model.Template{
		Name:     "promo",
		Language: "es",
		Category: "MARKETING",
		Components: []model.TemplateComponent{
			{Type: "HEADER", Format: "IMAGE", Text: "{{1}}"},
			{Type: "BODY", Text: "Hola {{1}}, oferta {{3}}"},
			{Type: "FOOTER", Text: "Baja con {{2}}"},
			{Type: "BUTTONS"},
		},
	}

	p := service.RenderPreview(tpl, []string{"Ana", "STOP"})
	assert.Equal(t, "promo", p.Name)
	assert.Equal(t, "MARKETING", p.Category)
	assert.Empty(t, p.Header)
	assert.Equal(t, "Hola Ana, oferta {{3}}", p.Body)
	assert.Equal(t, "Baja con STOP", p.Footer)
	assert.Equal(t, []int{1, 2, 3}, p.Variables)

	tpl.Components[0].Format = "TEXT"
	p = service.RenderPreview(tpl, nil)
	assert.Equal(t, "{{1}}", p.Header)
	assert.Equal(t, []string{}, p.Values)
}
