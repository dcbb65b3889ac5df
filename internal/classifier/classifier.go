// Package classifier defines the contract with the external
// language-model capability that inspects an HTML fragment and proposes
// an extraction directive. The model's reasoning is opaque; the contract
// is the JSON it must return, and every deviation from that contract
// degrades to the none directive rather than failing the page.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Action is the directive kind chosen by the classifier.
type Action string

const (
	ActionDownload Action = "download"
	ActionExtract  Action = "extract"
	ActionNone     Action = "none"
)

// Directive is the resolved decision for a single page visit. Exactly
// one variant is populated: Selector for download, Holdings for
// extract, neither for none.
type Directive struct {
	Action   Action       `json:"action"`
	Selector string       `json:"selector,omitempty"`
	Holdings []RawHolding `json:"holdings,omitempty"`
}

// RawHolding is a holdings row as returned by the classifier, before
// validation. Weight is kept raw because models return it as a number
// or a formatted string interchangeably.
type RawHolding struct {
	Name         string    `json:"name"`
	ISIN         string    `json:"isin"`
	Sector       string    `json:"sector"`
	SecurityType string    `json:"securityType"`
	Weight       RawNumber `json:"weight"`
	Currency     string    `json:"currency"`
	Country      string    `json:"country"`
}

// RawNumber accepts a JSON number or a JSON string and preserves the
// original text for later coercion.
type RawNumber string

func (n *RawNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*n = RawNumber(s)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("weight is neither number nor string: %s", string(data))
	}
	*n = RawNumber(num.String())
	return nil
}

func (n RawNumber) String() string { return string(n) }

// Classifier is the external decision oracle. Implementations must be
// substitutable by fakes returning canned directives.
type Classifier interface {
	Classify(ctx context.Context, htmlFragment string) (Directive, error)
}

// ParseResponse parses the raw model response into a directive. The
// response is expected to be strict JSON, possibly wrapped in code
// fence markers, with exactly one of the three action shapes. Anything
// else is an error; callers treat that as the none directive.
func ParseResponse(raw string) (Directive, error) {
	text := stripFences(raw)

	var d Directive
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return Directive{Action: ActionNone}, fmt.Errorf("failed to parse classifier response: %w", err)
	}

	switch d.Action {
	case ActionDownload, ActionExtract, ActionNone:
		return d, nil
	default:
		return Directive{Action: ActionNone}, fmt.Errorf("unrecognized classifier action %q", d.Action)
	}
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}
