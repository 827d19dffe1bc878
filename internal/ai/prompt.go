package ai

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

const defaultSystemPrompt = `You are a document editor. You receive a JSON document with a "cover" and an ordered "sections" array and an instruction.
Return ONLY the complete rewritten document as JSON with the same schema. Every section has a "type" of
content, highlights, signature, chart, table, image or custom and the fields that type requires:
content{title,content}, highlights{title,items[{icon,title,text}]}, signature{left,right},
chart{title,chartType,data}, table{title,headers,rows}, image{src}, custom{content}.
Do not wrap the JSON in prose.`

// hintPattern finds structural requests such as "add a highlights section"
// or "include two charts".
var hintPattern = regexp.MustCompile(`(?i)\b(add|adds|adding|include|includes|including|insert|create|append|with)\b[^.;:\n]{0,40}?\b(highlights?|charts?|tables?|images?|signatures?)\b`)

var hintNouns = map[string]docmodel.SectionType{
	"highlight": docmodel.TypeHighlights,
	"chart":     docmodel.TypeChart,
	"table":     docmodel.TypeTable,
	"image":     docmodel.TypeImage,
	"signature": docmodel.TypeSignature,
}

// RequiredTypes lists the section types a successful enhancement must contain:
// explicit SectionTypes, the Include* flags and hints found in the prompt text.
func (p Prompt) RequiredTypes() []docmodel.SectionType {
	set := map[docmodel.SectionType]bool{}
	for _, t := range p.SectionTypes {
		set[t] = true
	}
	if p.IncludeHighlights {
		set[docmodel.TypeHighlights] = true
	}
	if p.IncludeCharts {
		set[docmodel.TypeChart] = true
	}
	if p.IncludeTables {
		set[docmodel.TypeTable] = true
	}
	for _, m := range hintPattern.FindAllStringSubmatch(p.Text, -1) {
		noun := strings.TrimSuffix(strings.ToLower(m[2]), "s")
		if t, ok := hintNouns[noun]; ok {
			set[t] = true
		}
	}
	out := make([]docmodel.SectionType, 0, len(set))
	for _, t := range docmodel.SectionTypes {
		if set[t] {
			out = append(out, t)
		}
	}
	return out
}

// buildRequest renders the user prompt and picks the system prompt.
func buildRequest(doc *docmodel.Document, p Prompt, system string) (Request, error) {
	body, err := doc.Canonical()
	if err != nil {
		return Request{}, err
	}
	var b strings.Builder
	b.WriteString("Instruction: ")
	b.WriteString(strings.TrimSpace(p.Text))
	b.WriteString("\n")
	if p.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", p.Tone)
	}
	if p.Length != "" {
		fmt.Fprintf(&b, "Length: %s\n", p.Length)
	}
	if p.Language != "" {
		fmt.Fprintf(&b, "Language: %s\n", p.Language)
	}
	if p.Sections > 0 {
		fmt.Fprintf(&b, "The result must contain at least %d sections.\n", p.Sections)
	}
	required := p.RequiredTypes()
	if req := required; len(req) > 0 {
		names := make([]string, len(req))
		for i, t := range req {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "The result must contain at least one section of each type: %s.\n", strings.Join(names, ", "))
	}
	b.WriteString("Document:\n")
	b.Write(body)

	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}
	return Request{System: system, Prompt: b.String(), Context: doc, Required: required}, nil
}

// checkShape enforces the structural constraints of p on an enhanced document.
func checkShape(doc *docmodel.Document, p Prompt) error {
	if err := doc.Validate(); err != nil {
		return err
	}
	if p.Sections > 0 && len(doc.Sections) < p.Sections {
		return fmt.Errorf("expected at least %d sections, got %d", p.Sections, len(doc.Sections))
	}
	var missing []string
	for _, t := range p.RequiredTypes() {
		if !doc.HasType(t) {
			missing = append(missing, string(t))
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("missing requested section types: %s", strings.Join(missing, ", "))
	}
	return nil
}
