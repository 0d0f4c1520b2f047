package enrich

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

// Tool names.
const (
	ToolAppraisal   = "appraisal"
	ToolListingCopy = "listing_copy"
)

const appraisalSystem = `You are an experienced secondhand clothing reseller. Answer in plain text, no markdown.`

const appraisalTmpl = `Give a short resale appraisal for this item.

Item: {{.Input}}

In at most three sentences, say what the item likely is, which details drive its value (brand, era, material, condition), and where it usually sells best.`

const listingCopySystem = `You write marketplace listings for secondhand clothing. Answer in plain text, no markdown.`

const listingCopyTmpl = `Write a marketplace listing for this item.

Item: {{.Input}}

Return a title of at most 80 characters on the first line, then a blank line, then a description of at most 120 words.`

// PromptData is passed to every tool template.
type PromptData struct {
	Input string
}

// Tool is one kind of generated text.
type Tool struct {
	Name        string
	System      string
	Model       string
	MaxTokens   int
	Temperature float64
	tmpl        *template.Template
}

// Render fills the tool's template with input.
func (t Tool) Render(input string) (string, error) {
	var buf bytes.Buffer
	if err := t.tmpl.Execute(&buf, PromptData{Input: strings.TrimSpace(input)}); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name, err)
	}
	return buf.String(), nil
}

// ToolOverride changes per-tool generation settings. Zero values keep the
// default.
type ToolOverride struct {
	Model       string
	MaxTokens   int
	Temperature *float64
}

func (t Tool) with(o ToolOverride) Tool {
	if o.Model != "" {
		t.Model = o.Model
	}
	if o.MaxTokens > 0 {
		t.MaxTokens = o.MaxTokens
	}
	if o.Temperature != nil {
		t.Temperature = *o.Temperature
	}
	return t
}

// DefaultTools returns the built-in tools keyed by name.
func DefaultTools() map[string]Tool {
	return map[string]Tool{
		ToolAppraisal: {
			Name:        ToolAppraisal,
			System:      appraisalSystem,
			MaxTokens:   300,
			Temperature: 0.3,
			tmpl:        template.Must(template.New(ToolAppraisal).Parse(appraisalTmpl)),
		},
		ToolListingCopy: {
			Name:        ToolListingCopy,
			System:      listingCopySystem,
			MaxTokens:   400,
			Temperature: 0.7,
			tmpl:        template.Must(template.New(ToolListingCopy).Parse(listingCopyTmpl)),
		},
	}
}

// ToolNames lists the built-in tool names in sorted order.
func ToolNames() []string {
	return []string{ToolAppraisal, ToolListingCopy}
}
