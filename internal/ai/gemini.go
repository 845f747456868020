package ai

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

const geminiModel = "gemini-2.5-flash"

// GeminiModel judges photos with Gemini.
type GeminiModel struct {
	client *genai.Client
	usage  Usage
}

func NewGeminiModel(ctx context.Context, apiKey string) (*GeminiModel, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiModel{client: client}, nil
}

func (m *GeminiModel) Name() string {
	return geminiModel
}

func (m *GeminiModel) Usage() *Usage {
	return &m.usage
}

func (m *GeminiModel) JudgeImage(ctx context.Context, jpegData []byte) (*QualityVerdict, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: faceQualityPrompt},
				{InlineData: &genai.Blob{Data: jpegData, MIMEType: "image/jpeg"}},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var lastError error
	var lastResponse string

	for range maxParseRetries {
		result, err := m.client.Models.GenerateContent(ctx, geminiModel, contents, config)
		if err != nil {
			return nil, fmt.Errorf("gemini API error: %w", err)
		}

		if result.UsageMetadata != nil {
			m.usage.add(int(result.UsageMetadata.PromptTokenCount), int(result.UsageMetadata.CandidatesTokenCount))
		}

		content := result.Text()
		if content == "" {
			return nil, errors.New("no response from Gemini")
		}
		lastResponse = content

		verdict, err := parseVerdict(content)
		if err != nil {
			lastError = err

			// Add model response and error feedback to contents for retry
			contents = append(contents,
				&genai.Content{
					Role:  "model",
					Parts: []*genai.Part{{Text: content}},
				},
				&genai.Content{
					Role:  "user",
					Parts: []*genai.Part{{Text: fmt.Sprintf("Invalid answer: %v. Reply with the JSON object only.", err)}},
				},
			)
			continue
		}

		return verdict, nil
	}

	return nil, fmt.Errorf("failed to parse verdict after %d attempts: %w (last response: %s)", maxParseRetries, lastError, lastResponse)
}

var _ VisionModel = (*GeminiModel)(nil)
