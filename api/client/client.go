package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aouyang1/quoteframe/api/models"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aouyang1/quoteframe/slideshow"
)

type SlideClient struct {
	baseURL string
	client  *http.Client
}

func NewSlideClient(baseURL string) *SlideClient {
	return &SlideClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

// do sends the request and decodes a JSON response into out when out is not
// nil. Non-200 responses are turned into errors using the server's message.
func (sc *SlideClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, sc.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := sc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp models.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return nil, fmt.Errorf("server error: %s", errResp.Error)
		}
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}
	}
	return respBody, nil
}

func (sc *SlideClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
		contentType = "application/json"
	}
	_, err := sc.do(ctx, method, path, contentType, body, out)
	return err
}

func (sc *SlideClient) State(ctx context.Context) (slideshow.State, error) {
	var state slideshow.State
	err := sc.doJSON(ctx, http.MethodGet, "/state", nil, &state)
	return state, err
}

func (sc *SlideClient) Slides(ctx context.Context) ([]slides.Slide, error) {
	var listResp models.SlideListResponse
	if err := sc.doJSON(ctx, http.MethodGet, "/slides", nil, &listResp); err != nil {
		return nil, err
	}
	return listResp.Slides, nil
}

func (sc *SlideClient) AddSlide(ctx context.Context, slide slides.Slide) (models.AddSlideResponse, error) {
	var addResp models.AddSlideResponse
	err := sc.doJSON(ctx, http.MethodPost, "/slides", slide, &addResp)
	return addResp, err
}

// UploadSlide sends a local image file with its quote and author. The server
// resizes the image.
func (sc *SlideClient) UploadSlide(ctx context.Context, imagePath, quote, author string) (models.AddSlideResponse, error) {
	var addResp models.AddSlideResponse

	f, err := os.Open(imagePath)
	if err != nil {
		return addResp, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return addResp, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return addResp, fmt.Errorf("failed to read image: %w", err)
	}
	if err := mw.WriteField("quote", quote); err != nil {
		return addResp, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := mw.WriteField("author", author); err != nil {
		return addResp, fmt.Errorf("failed to write form field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return addResp, fmt.Errorf("failed to close form: %w", err)
	}

	_, err = sc.do(ctx, http.MethodPost, "/slides/upload", mw.FormDataContentType(), &body, &addResp)
	return addResp, err
}

func (sc *SlideClient) GenerateSlide(ctx context.Context) (models.AddSlideResponse, error) {
	var addResp models.AddSlideResponse
	err := sc.doJSON(ctx, http.MethodPost, "/slides/generate", nil, &addResp)
	return addResp, err
}

func (sc *SlideClient) RemoveSlide(ctx context.Context, index int) (slideshow.State, error) {
	var removeResp models.RemoveSlideResponse
	err := sc.doJSON(ctx, http.MethodDelete, fmt.Sprintf("/slides/%d", index), nil, &removeResp)
	return removeResp.State, err
}

func (sc *SlideClient) Next(ctx context.Context) (slideshow.State, error) {
	var state slideshow.State
	err := sc.doJSON(ctx, http.MethodPost, "/slideshow/next", nil, &state)
	return state, err
}

func (sc *SlideClient) Previous(ctx context.Context) (slideshow.State, error) {
	var state slideshow.State
	err := sc.doJSON(ctx, http.MethodPost, "/slideshow/previous", nil, &state)
	return state, err
}

func (sc *SlideClient) GoTo(ctx context.Context, index int) (slideshow.State, error) {
	var state slideshow.State
	err := sc.doJSON(ctx, http.MethodPost, fmt.Sprintf("/slideshow/goto/%d", index), nil, &state)
	return state, err
}

func (sc *SlideClient) Preferences(ctx context.Context) (slides.Preferences, error) {
	var prefs slides.Preferences
	err := sc.doJSON(ctx, http.MethodGet, "/settings", nil, &prefs)
	return prefs, err
}

func (sc *SlideClient) SetPreference(ctx context.Context, key, value string) (slides.Preferences, error) {
	var prefs slides.Preferences
	path := "/settings/" + url.PathEscape(key)
	err := sc.doJSON(ctx, http.MethodPut, path, models.UpdatePreferenceRequest{Value: value}, &prefs)
	return prefs, err
}

// Export returns the interchange file exactly as the server wrote it.
func (sc *SlideClient) Export(ctx context.Context) ([]byte, error) {
	return sc.do(ctx, http.MethodGet, "/backup/export", "", nil, nil)
}

func (sc *SlideClient) Import(ctx context.Context, data []byte) (slideshow.State, error) {
	var state slideshow.State
	_, err := sc.do(ctx, http.MethodPost, "/backup/import", "application/json", bytes.NewReader(data), &state)
	return state, err
}

func (sc *SlideClient) Reset(ctx context.Context) (slideshow.State, error) {
	var state slideshow.State
	err := sc.doJSON(ctx, http.MethodPost, "/reset", nil, &state)
	return state, err
}

func (sc *SlideClient) BackupPush(ctx context.Context) error {
	return sc.doJSON(ctx, http.MethodPost, "/backup/push", nil, nil)
}

func (sc *SlideClient) BackupRestore(ctx context.Context) (slideshow.State, error) {
	var state slideshow.State
	err := sc.doJSON(ctx, http.MethodPost, "/backup/restore", nil, &state)
	return state, err
}
