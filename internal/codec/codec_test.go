package codec

import (
	"reflect"
	"testing"

	"github.com/rekall-kb/rekall/internal/types"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []*types.StructuredContext{
		{Situation: "CORS fails on Safari", Solution: "set credentials: include"},
		{Solution: "use context.WithTimeout", TriggerKeywords: []string{"timeout", "deploy"}},
		{
			Situation:       "prod timeout after deploy",
			Solution:        "drained connection pool slowly",
			WhatFailed:      "naive restart",
			TriggerKeywords: []string{"connection pool", "deploy"},
			ErrorMessages:   []string{"context deadline exceeded"},
			FilesModified:   []string{"main.go"},
		},
	}

	for _, c := range cases {
		blob, _, err := Encode(c)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		got, err := Decode(blob)
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if !reflect.DeepEqual(got, c) {
			t.Errorf("round trip mismatch: got %+v, want %+v", got, c)
		}
	}
}

func TestDecodeCorrupt(t *testing.T) {
	_, err := Decode([]byte("not a deflate stream"))
	if err == nil {
		t.Fatal("expected error decoding corrupt blob")
	}
}

func TestExtractKeywordsDedupeAndOrder(t *testing.T) {
	c := &types.StructuredContext{
		Situation:       "Timeout Timeout timeout in production deploy",
		TriggerKeywords: []string{"Deploy", "Retry"},
	}
	kws := ExtractKeywords(c)

	seen := map[string]bool{}
	for _, k := range kws {
		if seen[k] {
			t.Errorf("keyword %q duplicated", k)
		}
		seen[k] = true
	}
	if !seen["deploy"] || !seen["retry"] || !seen["timeout"] {
		t.Errorf("expected deploy/retry/timeout in keywords, got %v", kws)
	}
	if kws[0] != "deploy" {
		t.Errorf("expected explicit trigger_keywords to come first, got %v", kws)
	}
}

func TestTokenizeDropsShortAndStopwords(t *testing.T) {
	toks := Tokenize("the a ab browser blocking API calls")
	want := []string{"browser", "blocking", "api", "calls"}
	if !reflect.DeepEqual(toks, want) {
		t.Errorf("Tokenize = %v, want %v", toks, want)
	}
}
