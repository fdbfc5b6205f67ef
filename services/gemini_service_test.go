package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidateResponse(text string) string {
	b, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	})
	return string(b)
}

func newTestGemini(serverURL string) *GeminiService {
	return &GeminiService{
		apiKey:  "test-key",
		model:   defaultGeminiModel,
		baseURL: serverURL,
		client:  http.DefaultClient,
	}
}

func TestAnalyzeFoodImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, ":generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))

		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Contents, 1)
		require.Len(t, req.Contents[0].Parts, 2)
		assert.NotNil(t, req.Contents[0].Parts[0].InlineData)
		assert.Equal(t, "image/jpeg", req.Contents[0].Parts[0].InlineData.MimeType)
		assert.Contains(t, req.Contents[0].Parts[1].Text, "protein")
		require.NotNil(t, req.GenerationConfig)
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		w.Write([]byte(candidateResponse(`{"foodName":"Grilled chicken","proteinAmount":35}`)))
	}))
	defer srv.Close()

	svc := newTestGemini(srv.URL)
	got, err := svc.AnalyzeFoodImage(context.Background(), []byte("jpeg-bytes"))
	require.NoError(t, err)
	assert.Equal(t, "Grilled chicken", got.FoodName)
	assert.Equal(t, 35.0, got.ProteinAmount)
}

func TestAnalyzeFoodImageEmptyPayload(t *testing.T) {
	svc := newTestGemini("http://unused")
	_, err := svc.AnalyzeFoodImage(context.Background(), nil)
	var ve *ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestProcessChatMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req geminiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		text := req.Contents[0].Parts[0].Text
		assert.Contains(t, text, "[abc] Chicken breast: 30g")
		assert.Contains(t, text, `"change chicken to 40g"`)

		w.Write([]byte(candidateResponse(
			`{"action":"UPDATE","targetId":"abc","foodName":"Chicken breast","proteinAmount":40,"responseMessage":"40g로 수정했어요!"}`)))
	}))
	defer srv.Close()

	svc := newTestGemini(srv.URL)
	got, err := svc.ProcessChatMessage(context.Background(), "change chicken to 40g", "[abc] Chicken breast: 30g")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, got.Action)
	assert.Equal(t, "abc", got.TargetID)
	assert.Equal(t, 40.0, got.ProteinAmount)
	assert.Equal(t, "40g로 수정했어요!", got.ResponseMessage)
}

func TestProcessChatMessageProseWrappedJSON(t *testing.T) {
	// provider ignored the JSON response mode and wrapped the object in prose
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(candidateResponse(
			"Sure! Here is the result:\n```json\n" +
				`{"action":"ADD","foodName":"Eggs (2)","proteinAmount":12,"responseMessage":"기록했어요!"}` +
				"\n```\nLet me know if you need anything else.")))
	}))
	defer srv.Close()

	svc := newTestGemini(srv.URL)
	got, err := svc.ProcessChatMessage(context.Background(), "I ate two eggs", "")
	require.NoError(t, err)
	assert.Equal(t, ActionAdd, got.Action)
	assert.Equal(t, "Eggs (2)", got.FoodName)
	assert.Equal(t, 12.0, got.ProteinAmount)
}

func TestProcessChatMessageTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	svc := newTestGemini(srv.URL)
	_, err := svc.ProcessChatMessage(context.Background(), "I ate two eggs", "")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusTooManyRequests, te.Status)
}

func TestProcessChatMessageMalformed(t *testing.T) {
	cases := map[string]string{
		"no json at all":  candidateResponse("I could not figure that out, sorry."),
		"unknown action":  candidateResponse(`{"action":"NOPE","foodName":"x","proteinAmount":1,"responseMessage":"y"}`),
		"empty candidate": `{"candidates":[]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			svc := newTestGemini(srv.URL)
			_, err := svc.ProcessChatMessage(context.Background(), "hello", "")
			var me *MalformedResponseError
			assert.ErrorAs(t, err, &me)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare object", `{"a":1}`, `{"a":1}`, true},
		{"prose wrapped", `here you go {"a":1} thanks`, `{"a":1}`, true},
		{"nested braces", `x {"a":{"b":2}} y`, `{"a":{"b":2}}`, true},
		{"braces in strings", `{"a":"}{"} tail`, `{"a":"}{"}`, true},
		{"escaped quote", `{"a":"\"}{"}`, `{"a":"\"}{"}`, true},
		{"unbalanced", `{"a":1`, "", false},
		{"no object", `plain text`, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractJSONObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
