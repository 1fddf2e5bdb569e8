package vision

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"

	"google.golang.org/genai"

	"jarvis/internal/capture"
	"jarvis/internal/fault"
)

const instructions = `You are the vision analysis AI that provides semantic meaning from images to provide context ` +
	`to send to another AI that will create a response to the user. Do not respond as the AI assistant ` +
	`to the user. Instead, take the user prompt input and try to extract all meaning from the photo ` +
	`relevant to the user prompt. Then generate as much objective data about the image for the AI ` +
	`assistant who will respond to the user. `

func BuildPrompt(utterance string) string {
	return instructions + "\nUSER PROMPT: " + utterance
}

type Options struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	HTTPClient      *http.Client
}

type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Describer turns a captured image into text for the conversation model,
// using Gemini with every safety filter disabled.
type Describer struct {
	models generator
	model  string
	config *genai.GenerateContentConfig
}

func NewDescriber(ctx context.Context, opt Options) (*Describer, error) {
	if opt.APIKey == "" {
		return nil, fmt.Errorf("%w: google api key", fault.ErrMissingCredentials)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     opt.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opt.HTTPClient,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	return newDescriber(client.Models, opt), nil
}

func newDescriber(models generator, opt Options) *Describer {
	return &Describer{
		models: models,
		model:  opt.Model,
		config: generationConfig(opt),
	}
}

func generationConfig(opt Options) *genai.GenerateContentConfig {
	temp := opt.Temperature
	topP := opt.TopP
	topK := opt.TopK

	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}

	safety := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		safety = append(safety, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}

	return &genai.GenerateContentConfig{
		Temperature:     &temp,
		TopP:            &topP,
		TopK:            &topK,
		MaxOutputTokens: opt.MaxOutputTokens,
		SafetySettings:  safety,
	}
}

func (d *Describer) Describe(ctx context.Context, utterance string, img capture.Image) (string, error) {
	if len(img.Data) == 0 {
		return "", errors.New("describe: empty image")
	}

	mime := img.MIMEType
	if mime == "" {
		mime = "image/jpeg"
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(BuildPrompt(utterance)),
			genai.NewPartFromBytes(img.Data, mime),
		}, genai.RoleUser),
	}

	res, err := d.models.GenerateContent(ctx, d.model, contents, d.config)
	if err != nil {
		return "", fault.Unreachable(fmt.Errorf("gemini generate content: %w", err))
	}

	text := res.Text()
	if text == "" {
		return "", fault.Unreachable(errors.New("gemini returned empty text"))
	}

	log.Debug("Described image", "source", img.Source, "bytes", len(img.Data), "chars", len(text))

	return text, nil
}
