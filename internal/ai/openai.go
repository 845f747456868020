package ai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const chatModel = openai.ChatModelGPT4_1Mini

// OpenAIModel judges photos with an OpenAI vision model.
type OpenAIModel struct {
	client *openai.Client
	usage  Usage
}

// NewOpenAIModel creates an OpenAI-backed model. Extra options (e.g. a base URL) are passed to the client.
func NewOpenAIModel(apiKey string, opts ...option.RequestOption) *OpenAIModel {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	client := openai.NewClient(opts...)
	return &OpenAIModel{client: &client}
}

func (m *OpenAIModel) Name() string {
	return chatModel
}

func (m *OpenAIModel) Usage() *Usage {
	return &m.usage
}

func (m *OpenAIModel) JudgeImage(ctx context.Context, jpegData []byte) (*QualityVerdict, error) {
	imageURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)

	messages := []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: openai.String(faceQualityPrompt),
				},
			},
		},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfArrayOfContentParts: []openai.ChatCompletionContentPartUnionParam{
						openai.TextContentPart("Rate this reference photo."),
						openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
							URL:    imageURL,
							Detail: "low",
						}),
					},
				},
			},
		},
	}

	var lastError error
	var lastResponse string

	for range maxParseRetries {
		resp, err := m.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    chatModel,
			Messages: messages,
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
			},
			MaxTokens: openai.Int(200),
		})
		if err != nil {
			return nil, fmt.Errorf("OpenAI API error: %w", err)
		}

		m.usage.add(int(resp.Usage.PromptTokens), int(resp.Usage.CompletionTokens))

		if len(resp.Choices) == 0 {
			return nil, errors.New("no response from OpenAI")
		}

		content := resp.Choices[0].Message.Content
		lastResponse = content

		verdict, err := parseVerdict(content)
		if err != nil {
			lastError = err
			messages = append(messages,
				openai.AssistantMessage(content),
				openai.UserMessage(fmt.Sprintf("Invalid answer: %v. Reply with the JSON object only.", err)),
			)
			continue
		}

		return verdict, nil
	}

	return nil, fmt.Errorf("failed to parse verdict after %d attempts: %w (last response: %s)", maxParseRetries, lastError, lastResponse)
}

var _ VisionModel = (*OpenAIModel)(nil)
