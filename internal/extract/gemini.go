package extract

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the Gemini model used for statement extraction.
const DefaultModelName = "gemini-2.5-flash"

// extractionPrompt is the fixed instruction sent alongside every file.
// The response schema pins the output shape; the prompt pins the
// normalization rules the schema cannot express.
const extractionPrompt = `Parse this bank statement file and extract all transaction data.

Rules:
- Convert all dates to YYYY-MM-DD format
- Amount must be a positive number (absolute value)
- Direction must be "credit" for money coming in, "debit" for money going out
- Clean up descriptions (remove extra spaces, normalize text)
- Skip header rows and any non-transaction data
- If an amount is negative in the statement, it is usually a debit
- If an amount is positive in the statement, it is usually a credit
- Handle PDF, CSV, Excel, and image formats
- Extract data from tables, structured text, or scanned documents`

// recordListSchema constrains the model output to
// {"transactions": [{date, description, amount, direction}, ...]}.
var recordListSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"transactions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"date": {
						Type:        genai.TypeString,
						Description: "Date in YYYY-MM-DD format",
					},
					"description": {
						Type:        genai.TypeString,
						Description: "Clean transaction description",
					},
					"amount": {
						Type:        genai.TypeNumber,
						Description: "Positive amount value",
					},
					"direction": {
						Type:        genai.TypeString,
						Enum:        []string{"credit", "debit"},
						Description: "credit for money in, debit for money out",
					},
				},
				Required: []string{"date", "description", "amount", "direction"},
			},
		},
	},
	Required: []string{"transactions"},
}

// GeminiExtractor sends statement bytes to Gemini with a response schema
// and decodes the structured result.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor creates a Gemini-backed extractor. An empty apiKey
// lets the genai client fall back to its environment-based credentials.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("extract: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

// Extract implements Extractor. Failures come back verbatim; the caller
// decides what an error or an empty record list means for the statement.
func (e *GeminiExtractor) Extract(ctx context.Context, data []byte, mimeType string) ([]Record, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractionPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: mimeType,
						Data:     data,
					},
				},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   recordListSchema,
	}

	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("extract: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, ErrEmptyResponse
	}

	return decodeRecords([]byte(cleanModelJSON(rawText)))
}

// cleanModelJSON strips Markdown fences and surrounding junk if the model
// ignored the JSON response instruction.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		// Drop the first line (``` or ```json).
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if anything still surrounds it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = strings.TrimSpace(s[start : end+1])
		}
	}
	return s
}
