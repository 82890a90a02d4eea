// Package codec implements the Context Codec (spec.md §4.2, C2):
// compressing a StructuredContext to a deflated canonical-JSON blob and
// reversing it, plus the keyword tokenizer shared by indexing and
// search-query normalization.
//
// The keyword tokenizer resolves spec.md §9's open question: split on
// Unicode letter/digit runs, lowercase, drop short/stopword tokens,
// dedupe preserving first occurrence. Grounded in shape (not content) on
// the teacher's internal/extractor/regex.go tokenize-then-normalize flow.
package codec

import (
	"bytes"
	"compress/flate"
	"encoding/json"
	"io"
	"strings"
	"unicode"

	"github.com/rekall-kb/rekall/internal/rerr"
	"github.com/rekall-kb/rekall/internal/types"
)

// MaxKeywords is the per-entry keyword cap (spec.md §4.2 step 3).
const MaxKeywords = 64

// MinKeywordLen drops tokens shorter than this many runes.
const MinKeywordLen = 3

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "all": {}, "can": {}, "had": {}, "her": {}, "was": {},
	"one": {}, "our": {}, "out": {}, "day": {}, "get": {}, "has": {},
	"him": {}, "his": {}, "how": {}, "man": {}, "new": {}, "now": {},
	"old": {}, "see": {}, "two": {}, "way": {}, "who": {}, "boy": {},
	"did": {}, "its": {}, "let": {}, "put": {}, "say": {}, "she": {},
	"too": {}, "use": {}, "this": {}, "that": {}, "with": {}, "from": {},
	"have": {}, "they": {}, "will": {}, "would": {}, "there": {},
	"their": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"while": {}, "into": {}, "then": {}, "than": {}, "been": {},
	"were": {}, "some": {}, "such": {}, "only": {}, "also": {},
	"just": {}, "about": {}, "after": {}, "before": {}, "because": {},
}

// canonicalContext is the JSON wire shape of the compressed blob. The
// archive JSONL codec does not use it; it encodes *types.StructuredContext
// directly.
type canonicalContext struct {
	Situation       string   `json:"situation,omitempty"`
	Solution        string   `json:"solution,omitempty"`
	WhatFailed      string   `json:"what_failed,omitempty"`
	TriggerKeywords []string `json:"trigger_keywords,omitempty"`
	ErrorMessages   []string `json:"error_messages,omitempty"`
	FilesModified   []string `json:"files_modified,omitempty"`
}

func toCanonical(c *types.StructuredContext) canonicalContext {
	return canonicalContext{
		Situation:       c.Situation,
		Solution:        c.Solution,
		WhatFailed:      c.WhatFailed,
		TriggerKeywords: c.TriggerKeywords,
		ErrorMessages:   c.ErrorMessages,
		FilesModified:   c.FilesModified,
	}
}

func fromCanonical(c canonicalContext) *types.StructuredContext {
	return &types.StructuredContext{
		Situation:       c.Situation,
		Solution:        c.Solution,
		WhatFailed:      c.WhatFailed,
		TriggerKeywords: c.TriggerKeywords,
		ErrorMessages:   c.ErrorMessages,
		FilesModified:   c.FilesModified,
	}
}

// Encode converts a StructuredContext into a compressed blob and its
// extracted keyword set (spec.md §4.2). Callers must have already
// checked c.Persistable(); Encode does not re-validate.
func Encode(c *types.StructuredContext) (blob []byte, keywords []string, err error) {
	canon := toCanonical(c)
	raw, err := json.Marshal(canon)
	if err != nil {
		return nil, nil, rerr.Wrap(rerr.InvalidInput, err, "marshal context")
	}

	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		return nil, nil, rerr.Wrap(rerr.CorruptContext, err, "create deflate writer")
	}
	if _, err := w.Write(raw); err != nil {
		return nil, nil, rerr.Wrap(rerr.CorruptContext, err, "deflate context")
	}
	if err := w.Close(); err != nil {
		return nil, nil, rerr.Wrap(rerr.CorruptContext, err, "close deflate writer")
	}

	keywords = ExtractKeywords(c)
	return buf.Bytes(), keywords, nil
}

// Decode reverses Encode. Fails with CorruptContext if decompression or
// JSON validation fails; callers should treat that as "entry usable with
// empty context" per spec.md §4.2.
func Decode(blob []byte) (*types.StructuredContext, error) {
	r := flate.NewReader(bytes.NewReader(blob))
	defer r.Close()

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, rerr.Wrap(rerr.CorruptContext, err, "inflate context blob")
	}

	var canon canonicalContext
	if err := json.Unmarshal(raw, &canon); err != nil {
		return nil, rerr.Wrap(rerr.CorruptContext, err, "unmarshal context blob")
	}
	return fromCanonical(canon), nil
}

// ExtractKeywords implements spec.md §4.2 step 1-3: union explicit
// trigger_keywords with tokens from situation+solution, normalize,
// dedupe preserving first occurrence, cap at MaxKeywords.
func ExtractKeywords(c *types.StructuredContext) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(tok string) {
		if len(out) >= MaxKeywords {
			return
		}
		if _, ok := seen[tok]; ok {
			return
		}
		seen[tok] = struct{}{}
		out = append(out, tok)
	}

	for _, k := range c.TriggerKeywords {
		for _, tok := range Tokenize(k) {
			add(tok)
		}
	}
	for _, tok := range Tokenize(c.Situation + " " + c.Solution) {
		add(tok)
	}

	return out
}

// Tokenize splits text into normalized keyword candidates: lowercase,
// Unicode letter/digit runs only, length >= MinKeywordLen, stopwords
// dropped. Used identically for indexing (ExtractKeywords) and for
// normalizing a search query's keyword channel, so index and query terms
// always agree (spec.md §4.4 step 2).
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r))
	})

	var out []string
	for _, f := range fields {
		tok := strings.ToLower(f)
		if len([]rune(tok)) < MinKeywordLen {
			continue
		}
		if _, stop := stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}
