// Copyright 2024-2026 Aiku AI

// Package larkfmt renders outbound text as platform interactive-card
// payloads. The mapping is deliberately minimal: one block per input line,
// order preserved, no line merging, and no failure path for malformed
// markdown.
package larkfmt

import "strings"

// Card is the interactive message payload.
type Card struct {
	Config   CardConfig `json:"config"`
	Elements []Element  `json:"elements"`
}

// CardConfig holds card-level display options.
type CardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

// Element is a single visual block.
type Element struct {
	Tag  string    `json:"tag"`
	Text TextBlock `json:"text"`
}

// TextBlock is the text content of a div element. Tag is lark_md or
// plain_text.
type TextBlock struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

// NeedsCard reports whether text should be card-rendered in auto mode: a
// fenced code marker or a pipe character is taken as "has a code block or
// table". The heuristic is intentionally this simple and must stay
// byte-compatible with existing deployments.
func NeedsCard(text string) bool {
	return strings.Contains(text, "```") || strings.Contains(text, "|")
}

// Render converts text to a card, one div block per line in input order.
func Render(text string) *Card {
	lines := strings.Split(text, "\n")
	elements := make([]Element, 0, len(lines))
	for _, line := range lines {
		elements = append(elements, blockFor(line))
	}
	return &Card{
		Config:   CardConfig{WideScreenMode: true},
		Elements: elements,
	}
}

// blockFor maps one line to a card element. Headings and list markers are
// recognized but currently styled the same as plain lines; the line is
// reproduced verbatim in every branch.
func blockFor(line string) Element {
	switch {
	case strings.HasPrefix(line, "#"):
		return markdownDiv(line)
	case strings.HasPrefix(line, "- "), strings.HasPrefix(line, "* "):
		return markdownDiv(line)
	case hasOrderedListMarker(line):
		return markdownDiv(line)
	default:
		return markdownDiv(line)
	}
}

func markdownDiv(content string) Element {
	return Element{
		Tag:  "div",
		Text: TextBlock{Tag: "lark_md", Content: content},
	}
}

// hasOrderedListMarker reports whether the line starts with "<digits>. ".
func hasOrderedListMarker(line string) bool {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && strings.HasPrefix(line[i:], ". ")
}
