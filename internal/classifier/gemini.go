package classifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// prompt is the fixed instruction template sent with every fragment.
// It ranks the three priorities the resolver depends on: holdings
// download link first, embedded holdings table second, none last.
const prompt = `You are an expert web scraping AI assistant. Analyze the provided HTML from an ETF product page to find the portfolio holdings.
Your response MUST be in a strict JSON format with no additional text, code fences, or markdown.
And make sure the css selector is correct to avoid ambiguity.

**Priority 1: Find Holdings Download Link (CSV/XLS/XLSX)**
- Look for an <a> tag to download the complete holdings list.
- Search for specific keywords like "Download Holdings", "Alle Positionen herunterladen", "Komplette Wertpapierliste", "Portfolio herunterladen", "Komplette Wertpapierliste herunterladen", "CSV", "XLS", "Fondspositionen und Kennzahlen", "KOMPONENTEN DES ETFS HERUNTERLADEN".
- The link should be specifically for holdings, often with class 'icon-xls-export' or href containing '/excel/' or 'download' or with class 'm-download-button' or 'download-link'. Prefer download as it's the full list.
- **STRICTLY AVOID** any links related to "Prospectus", "KIID", "Report", "View prospectus and reports", "Berichte", "Factsheet", or anything not explicitly for holdings/portfolio composition.
- If a valid download link is found, provide the CSS selector for the <a> tag.
- Respond with: {"action": "download", "selector": "<css-selector>"}

**Priority 2: Extract from an HTML Table**
- If no download link exists, find the HTML table displaying holdings (e.g., 'Top-Positionen', 'All Holdings', 'Wertpapiere des Wertpapierkorbs').
- Extract as many holdings as possible. For each, get: name (required), weight (required, as float), isin, sector, securityType, country, currency. Use 'N/A' for missing.
- Respond with: {"action": "extract", "holdings": [<list of dicts>]}

**Priority 3: No Data Found**
- If neither, respond with: {"action": "none"}

HTML content:
%s`

const geminiBaseURL = "https://generativelanguage.googleapis.com"

// Gemini calls the Google generative language REST API to classify
// fragments. It implements Classifier.
type Gemini struct {
	client *resty.Client
	model  string
	apiKey string
}

// NewGemini builds a Gemini classifier for the given model and API key.
func NewGemini(model, apiKey string, timeout time.Duration) *Gemini {
	client := resty.New().
		SetBaseURL(geminiBaseURL).
		SetTimeout(timeout)

	return &Gemini{client: client, model: model, apiKey: apiKey}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Classify sends the fragment with the fixed prompt and parses the
// model's JSON reply into a directive.
func (g *Gemini) Classify(ctx context.Context, htmlFragment string) (Directive, error) {
	body := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: fmt.Sprintf(prompt, htmlFragment)}}}},
	}

	var out geminiResponse
	resp, err := g.client.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetBody(body).
		SetResult(&out).
		Post(fmt.Sprintf("/v1beta/models/%s:generateContent", g.model))
	if err != nil {
		return Directive{Action: ActionNone}, fmt.Errorf("failed to call classifier: %w", err)
	}
	if resp.IsError() {
		return Directive{Action: ActionNone}, fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return Directive{Action: ActionNone}, fmt.Errorf("classifier returned no candidates")
	}

	return ParseResponse(out.Candidates[0].Content.Parts[0].Text)
}
