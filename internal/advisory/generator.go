package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Generator turns a prompt into raw model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorError is returned when the generation endpoint answers with a
// non-200 status.
type GeneratorError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *GeneratorError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("advisory generator: HTTP %d: %s: %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("advisory generator: HTTP %d: %s", e.StatusCode, e.Message)
}

// GeminiGenerator calls a generateContent endpoint.
type GeminiGenerator struct {
	httpClient *http.Client
	endpoint   string
	model      string
	apiKey     string
}

// NewGeminiGenerator builds a generator. The caller bounds latency through
// the context and the client's timeout.
func NewGeminiGenerator(httpClient *http.Client, endpoint, model, apiKey string) *GeminiGenerator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &GeminiGenerator{
		httpClient: httpClient,
		endpoint:   strings.TrimRight(endpoint, "/"),
		model:      model,
		apiKey:     apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseMimeType string  `json:"responseMimeType,omitempty"`
		Temperature      float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
}

// Generate sends prompt and returns the concatenated text of the first candidate.
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var wire geminiRequest
	wire.Contents = []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}}
	wire.GenerationConfig.ResponseMimeType = "application/json"
	wire.GenerationConfig.Temperature = 0.2

	body, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("advisory generator: marshaling request: %w", err)
	}

	// The key travels in a header so transport errors, which quote the URL,
	// never carry it.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", g.endpoint, url.PathEscape(g.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("advisory generator: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("advisory generator: sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readGeneratorError(resp)
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("advisory generator: decoding response: %w", err)
	}
	if len(decoded.Candidates) == 0 {
		return "", errors.New("advisory generator: response has no candidates")
	}

	var text strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", errors.New("advisory generator: empty candidate text")
	}
	return text.String(), nil
}

func readGeneratorError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var wireError struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error.Message != "" {
		return &GeneratorError{
			StatusCode: resp.StatusCode,
			Status:     wireError.Error.Status,
			Message:    wireError.Error.Message,
		}
	}
	return &GeneratorError{StatusCode: resp.StatusCode, Message: string(body)}
}
