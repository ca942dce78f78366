// Package generator produces a complete slide from a generative content
// service: a Vedic verse with translation and source, and a matching image.
package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aouyang1/quoteframe/imageprep"
	"github.com/aouyang1/quoteframe/slides"
	"golang.org/x/sync/errgroup"
)

var (
	ErrDisabled      = errors.New("content generation is not configured")
	ErrQuotaExceeded = errors.New("you've exceeded the API quota, please check your plan and billing details, or try again later")
)

const (
	quotePrompt = "Generate a motivational quote from the Vedas. Provide the original Sanskrit shloka in Devanagari script, " +
		"its Hindi translation, and the specific source (e.g., Rigveda 1.1.1). " +
		"The quote should be relevant for someone striving to achieve their goals."
	imagePrompt = "A visually stunning and serene image that embodies Vedic spirituality and motivation. " +
		"Think mandalas, lotus flowers, meditative landscapes, soft golden light, ancient symbols like Om. " +
		"The style should be ethereal and inspiring."
)

type Config struct {
	APIKey     string
	BaseURL    string
	TextModel  string
	ImageModel string
	Image      imageprep.Options
	HTTPClient *http.Client
}

type Client struct {
	cfg    Config
	client *http.Client
}

func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, client: hc}
}

func (c *Client) Enabled() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Verse is the structured text response.
type Verse struct {
	Shloka      string `json:"sanskrit_shloka"`
	Translation string `json:"hindi_translation"`
	Source      string `json:"source"`
}

// Generate requests the verse and the image concurrently and returns them as
// a slide ready for the store.
func (c *Client) Generate(ctx context.Context) (slides.Slide, error) {
	if !c.Enabled() {
		return slides.Slide{}, ErrDisabled
	}

	var verse Verse
	var imageURL string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := c.generateVerse(gctx)
		verse = v
		return err
	})
	g.Go(func() error {
		img, err := c.generateImage(gctx)
		imageURL = img
		return err
	})
	if err := g.Wait(); err != nil {
		slog.Error("error generating slide", "error", err)
		return slides.Slide{}, err
	}

	slide := slides.Slide{
		ImageURL: imageURL,
		Quote:    verse.Shloka + "\n\n" + verse.Translation,
		Author:   verse.Source,
	}
	if err := slide.Validate(); err != nil {
		return slides.Slide{}, fmt.Errorf("generated content was incomplete: %w", err)
	}
	return slide, nil
}

type textRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	ResponseMimeType string         `json:"responseMimeType"`
	ResponseSchema   map[string]any `json:"responseSchema"`
}

type textResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

var verseSchema = map[string]any{
	"type": "OBJECT",
	"properties": map[string]any{
		"sanskrit_shloka":   map[string]any{"type": "STRING", "description": "The original verse in Sanskrit (Devanagari script)."},
		"hindi_translation": map[string]any{"type": "STRING", "description": "The translation of the verse in Hindi."},
		"source":            map[string]any{"type": "STRING", "description": "The source of the verse from the Vedas, e.g., 'Rigveda 1.1.1'."},
	},
	"required": []string{"sanskrit_shloka", "hindi_translation", "source"},
}

func (c *Client) generateVerse(ctx context.Context) (Verse, error) {
	req := textRequest{
		Contents: []content{{Parts: []part{{Text: quotePrompt}}}},
		GenerationConfig: generationConfig{
			ResponseMimeType: "application/json",
			ResponseSchema:   verseSchema,
		},
	}

	var resp textResponse
	if err := c.post(ctx, c.cfg.TextModel+":generateContent", req, &resp); err != nil {
		return Verse{}, fmt.Errorf("failed to generate quote: %w", err)
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return Verse{}, errors.New("failed to generate quote: empty response")
	}

	var v Verse
	if err := json.Unmarshal([]byte(resp.Candidates[0].Content.Parts[0].Text), &v); err != nil {
		return Verse{}, fmt.Errorf("failed to parse generated quote: %w", err)
	}
	return v, nil
}

type imageRequest struct {
	Instances  []imageInstance `json:"instances"`
	Parameters imageParameters `json:"parameters"`
}

type imageInstance struct {
	Prompt string `json:"prompt"`
}

type imageParameters struct {
	SampleCount    int    `json:"sampleCount"`
	AspectRatio    string `json:"aspectRatio"`
	OutputMimeType string `json:"outputMimeType"`
}

type imageResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

func (c *Client) generateImage(ctx context.Context) (string, error) {
	req := imageRequest{
		Instances: []imageInstance{{Prompt: imagePrompt}},
		Parameters: imageParameters{
			SampleCount:    1,
			AspectRatio:    "16:9",
			OutputMimeType: "image/jpeg",
		},
	}

	var resp imageResponse
	if err := c.post(ctx, c.cfg.ImageModel+":predict", req, &resp); err != nil {
		return "", fmt.Errorf("failed to generate image: %w", err)
	}
	if len(resp.Predictions) == 0 || resp.Predictions[0].BytesBase64Encoded == "" {
		return "", errors.New("failed to generate image: empty response")
	}

	data, err := base64.StdEncoding.DecodeString(resp.Predictions[0].BytesBase64Encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode generated image: %w", err)
	}
	uri, err := imageprep.Prepare(bytes.NewReader(data), c.cfg.Image)
	if err != nil {
		return "", fmt.Errorf("failed to resize generated image: %w", err)
	}
	return uri, nil
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, method string, body, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s", c.cfg.BaseURL, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp apiError
		_ = json.Unmarshal(respBody, &errResp)
		if resp.StatusCode == http.StatusTooManyRequests || errResp.Error.Status == "RESOURCE_EXHAUSTED" {
			return ErrQuotaExceeded
		}
		if errResp.Error.Message != "" {
			return fmt.Errorf("server error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
