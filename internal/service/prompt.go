package service

import (
	"fmt"
	"strings"
)

// CompressionDirective selects the target length wording of a summary prompt
type CompressionDirective string

const (
	DirectiveDefault      CompressionDirective = "default"
	DirectiveQuarter      CompressionDirective = "quarter"
	DirectiveHalf         CompressionDirective = "half"
	DirectiveThreeQuarter CompressionDirective = "threeQuarter"
)

// ParseDirective maps a user-facing compression label to a directive.
// Unrecognized labels, including "Regular" and "", map to DirectiveDefault.
func ParseDirective(label string) CompressionDirective {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "25%", "25", "quarter":
		return DirectiveQuarter
	case "50%", "50", "half":
		return DirectiveHalf
	case "75%", "75", "threequarter", "three-quarter", "three_quarter":
		return DirectiveThreeQuarter
	default:
		return DirectiveDefault
	}
}

// Label returns the percentage label used by the user interfaces
func (d CompressionDirective) Label() string {
	switch d {
	case DirectiveQuarter:
		return "25%"
	case DirectiveHalf:
		return "50%"
	case DirectiveThreeQuarter:
		return "75%"
	default:
		return "regular"
	}
}

// BuildPrompt creates the summarization instruction for sourceText.
// sourceText is embedded verbatim; callers are expected to trim it beforehand.
func BuildPrompt(sourceText string, directive CompressionDirective) (string, error) {
	if strings.TrimSpace(sourceText) == "" {
		return "", ErrInvalidInput
	}

	var instruction string
	switch directive {
	case DirectiveQuarter:
		instruction = "Summarize the following text to 25% of its original length. Keep only the most essential information"
	case DirectiveHalf:
		instruction = "Summarize the following text to 50% of its original length. Maintain key points and important details"
	case DirectiveThreeQuarter:
		instruction = "Summarize the following text to 75% of its original length. Preserve most details while making it more concise"
	default:
		instruction = "Create a clear and concise summary of the following text, maintaining all important information"
	}

	return fmt.Sprintf("%s:\n\n%s", instruction, sourceText), nil
}

// BuildThreadPrompt creates the fixed prompt used for one conversation thread
func BuildThreadPrompt(combinedText string) string {
	return fmt.Sprintf("Summarize this email thread in 60 words or less. Focus on key decisions, actions, and important details. Remove formatting characters and line breaks:\n\n%s", combinedText)
}
