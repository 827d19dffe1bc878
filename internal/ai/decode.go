package ai

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"git.home.luguber.info/inful/docstream/internal/docmodel"
)

// decodeDocument extracts a document from model output. It strips markdown
// fences and surrounding prose and repairs slightly malformed JSON.
func decodeDocument(text string) (*docmodel.Document, error) {
	body := extractJSON(text)
	if body == "" {
		return nil, errors.New("response contains no JSON object")
	}
	var doc docmodel.Document
	err := json.Unmarshal([]byte(body), &doc)
	if err != nil {
		var syntaxErr *json.SyntaxError
		if !errors.As(err, &syntaxErr) {
			return nil, err
		}
		fixed, rerr := jsonrepair.JSONRepair(body)
		if rerr != nil {
			return nil, err
		}
		doc = docmodel.Document{}
		if err := json.Unmarshal([]byte(fixed), &doc); err != nil {
			return nil, err
		}
	}
	return &doc, nil
}

func extractJSON(text string) string {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		s = strings.TrimSpace(rest)
	}
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	if end := strings.LastIndexByte(s, '}'); end > start {
		return s[start : end+1]
	}
	// truncated output; let the repair pass close it
	return s[start:]
}
