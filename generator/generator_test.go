package generator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aouyang1/quoteframe/imageprep"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBase64(t *testing.T, w, h int) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newFakeService(t *testing.T, textStatus, imageStatus int) *httptest.Server {
	t.Helper()
	img := pngBase64(t, 64, 36)

	mux := http.NewServeMux()
	mux.HandleFunc("/models/gemini-test:generateContent", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))

		var req textRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "application/json", req.GenerationConfig.ResponseMimeType)

		if textStatus != http.StatusOK {
			w.WriteHeader(textStatus)
			w.Write([]byte(`{"error": {"code": 429, "message": "quota", "status": "RESOURCE_EXHAUSTED"}}`))
			return
		}
		verse, _ := json.Marshal(Verse{Shloka: "उद्यमेन हि सिध्यन्ति", Translation: "परिश्रम से ही कार्य सिद्ध होते हैं", Source: "Hitopadesha"})
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{
				map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": string(verse)}}}},
			},
		})
	})
	mux.HandleFunc("/models/imagen-test:predict", func(w http.ResponseWriter, r *http.Request) {
		var req imageRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "16:9", req.Parameters.AspectRatio)

		if imageStatus != http.StatusOK {
			w.WriteHeader(imageStatus)
			w.Write([]byte(`{"error": {"code": 500, "message": "model overloaded", "status": "INTERNAL"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"predictions": []any{map[string]any{"bytesBase64Encoded": img, "mimeType": "image/png"}},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *Client {
	return New(Config{
		APIKey:     "secret",
		BaseURL:    srv.URL + "/",
		TextModel:  "gemini-test",
		ImageModel: "imagen-test",
		Image:      imageprep.DefaultOptions(),
	})
}

func TestGenerate(t *testing.T) {
	srv := newFakeService(t, http.StatusOK, http.StatusOK)

	slide, err := newTestClient(srv).Generate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "उद्यमेन हि सिध्यन्ति\n\nपरिश्रम से ही कार्य सिद्ध होते हैं", slide.Quote)
	assert.Equal(t, "Hitopadesha", slide.Author)
	assert.True(t, strings.HasPrefix(slide.ImageURL, "data:image/jpeg;base64,"))
}

func TestGenerateQuotaExceeded(t *testing.T) {
	srv := newFakeService(t, http.StatusTooManyRequests, http.StatusOK)

	_, err := newTestClient(srv).Generate(context.Background())
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestGenerateImageFailure(t *testing.T) {
	srv := newFakeService(t, http.StatusOK, http.StatusInternalServerError)

	_, err := newTestClient(srv).Generate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model overloaded")
	assert.NotErrorIs(t, err, ErrQuotaExceeded)
}

func TestGenerateDisabled(t *testing.T) {
	_, err := New(Config{}).Generate(context.Background())
	assert.ErrorIs(t, err, ErrDisabled)

	var nilClient *Client
	assert.False(t, nilClient.Enabled())
}
