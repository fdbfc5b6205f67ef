package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const defaultGeminiModel = "gemini-2.0-flash"

const imageAnalysisPrompt = "Analyze this food image. Estimate the protein content in grams. " +
	"Provide a short food name and the protein amount. " +
	"Do NOT include calories or any other nutritional information. " +
	"Respond in JSON format."

const chatPromptTemplate = `The user wants to record or correct a protein entry.
Current history of today's logs: %s.
User message: "%s".

If the user is correcting a previous entry (e.g., "Change the chicken protein to 30g"), find the relevant item.
If the user is adding a new one (e.g., "I ate two eggs"), estimate the protein.
Estimate based on standard portions. Do NOT mention calories.

Return a JSON object with:
1. action: "ADD" or "UPDATE" or "DELETE"
2. targetId: (if update/delete)
3. foodName: (updated or new name)
4. proteinAmount: (updated or new value)
5. responseMessage: (A friendly confirmation message in Korean)`

const (
	ActionAdd    = "ADD"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
)

// FoodAnalysis is the result of analyzing a food photo.
type FoodAnalysis struct {
	FoodName      string  `json:"foodName"`
	ProteinAmount float64 `json:"proteinAmount"` // grams
}

// ChatDecision is the structured mutation the model derived from a free-form
// chat message. TargetID is only meaningful for UPDATE/DELETE.
type ChatDecision struct {
	Action          string  `json:"action"`
	TargetID        string  `json:"targetId,omitempty"`
	FoodName        string  `json:"foodName"`
	ProteinAmount   float64 `json:"proteinAmount"`
	ResponseMessage string  `json:"responseMessage"`
}

// InferenceGateway is the boundary to the generative model. Callers only ever
// see the typed results and the error taxonomy in errors.go.
type InferenceGateway interface {
	AnalyzeFoodImage(ctx context.Context, image []byte) (*FoodAnalysis, error)
	ProcessChatMessage(ctx context.Context, message, historySummary string) (*ChatDecision, error)
}

type GeminiService struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// NewGeminiService initializes the gateway with credentials and HTTP client.
// Key presence is validated at startup by config.Load, not here.
func NewGeminiService() *GeminiService {
	model := os.Getenv("GEMINI_MODEL")
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiService{
		apiKey:  os.Getenv("GEMINI_API_KEY"),
		model:   model,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  &http.Client{Timeout: 60 * time.Second},
	}
}

// ---------- wire types for generateContent ----------

type geminiRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiGenerationConfig struct {
	ResponseMimeType string         `json:"responseMimeType,omitempty"`
	ResponseSchema   map[string]any `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiService) AnalyzeFoodImage(ctx context.Context, image []byte) (*FoodAnalysis, error) {
	if len(image) == 0 {
		return nil, &ValidationError{Field: "image", Reason: "empty image payload"}
	}

	req := &geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MimeType: "image/jpeg",
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: imageAnalysisPrompt},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"foodName":      map[string]any{"type": "STRING"},
					"proteinAmount": map[string]any{"type": "NUMBER", "description": "Protein in grams"},
				},
				"required": []string{"foodName", "proteinAmount"},
			},
		},
	}

	raw, err := s.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	var analysis FoodAnalysis
	if err := decodeModelJSON(raw, &analysis); err != nil {
		return nil, err
	}
	if strings.TrimSpace(analysis.FoodName) == "" {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("missing foodName")}
	}
	if analysis.ProteinAmount < 0 {
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("negative proteinAmount")}
	}
	return &analysis, nil
}

func (s *GeminiService) ProcessChatMessage(ctx context.Context, message, historySummary string) (*ChatDecision, error) {
	if strings.TrimSpace(message) == "" {
		return nil, &ValidationError{Field: "message", Reason: "empty message"}
	}

	req := &geminiRequest{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{Text: fmt.Sprintf(chatPromptTemplate, historySummary, message)},
			},
		}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema: map[string]any{
				"type": "OBJECT",
				"properties": map[string]any{
					"action":          map[string]any{"type": "STRING"},
					"targetId":        map[string]any{"type": "STRING"},
					"foodName":        map[string]any{"type": "STRING"},
					"proteinAmount":   map[string]any{"type": "NUMBER"},
					"responseMessage": map[string]any{"type": "STRING"},
				},
				"required": []string{"action", "foodName", "proteinAmount", "responseMessage"},
			},
		},
	}

	raw, err := s.generate(ctx, req)
	if err != nil {
		return nil, err
	}

	var decision ChatDecision
	if err := decodeModelJSON(raw, &decision); err != nil {
		return nil, err
	}
	decision.Action = strings.ToUpper(strings.TrimSpace(decision.Action))
	switch decision.Action {
	case ActionAdd, ActionUpdate, ActionDelete:
	default:
		return nil, &MalformedResponseError{Raw: raw, Err: fmt.Errorf("unknown action %q", decision.Action)}
	}
	return &decision, nil
}

// generate performs one generateContent call and returns the text of the
// first candidate part.
func (s *GeminiService) generate(ctx context.Context, payload *geminiRequest) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal gemini payload: %w", err)
	}

	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return "", fmt.Errorf("failed to create gemini request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Err: fmt.Errorf("failed to read gemini response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &TransportError{Status: resp.StatusCode, Body: string(body)}
	}

	var gr geminiResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return "", &MalformedResponseError{Raw: string(body), Err: err}
	}
	if len(gr.Candidates) == 0 || len(gr.Candidates[0].Content.Parts) == 0 {
		return "", &MalformedResponseError{Raw: string(body), Err: fmt.Errorf("no candidates in response")}
	}
	return gr.Candidates[0].Content.Parts[0].Text, nil
}

// decodeModelJSON parses model output into target. Strict parse first; if the
// model wrapped the JSON in prose despite the response mime type, fall back to
// the first balanced {...} span. Anything beyond that is malformed.
func decodeModelJSON(raw string, target any) error {
	trimmed := strings.TrimSpace(raw)
	if err := json.Unmarshal([]byte(trimmed), target); err == nil {
		return nil
	}

	span, ok := extractJSONObject(trimmed)
	if !ok {
		return &MalformedResponseError{Raw: raw, Err: fmt.Errorf("no JSON object in response text")}
	}
	if err := json.Unmarshal([]byte(span), target); err != nil {
		return &MalformedResponseError{Raw: raw, Err: err}
	}
	return nil
}

// extractJSONObject returns the first balanced top-level {...} span in s,
// honoring string literals and escapes.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
