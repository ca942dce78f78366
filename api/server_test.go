package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aouyang1/quoteframe/api/models"
	"github.com/aouyang1/quoteframe/generator"
	"github.com/aouyang1/quoteframe/imageprep"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aouyang1/quoteframe/slideshow"
	"github.com/aouyang1/quoteframe/store"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	ws         *WebServer
	store      *slides.Store
	controller *slideshow.Controller
}

func newTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	st := slides.NewStore(store.NewMemory(), slides.DefaultConfig())
	// keep rotation off so assertions on the index are stable
	st.SetSlideDuration(0)
	ctrl := slideshow.NewController(st)
	t.Cleanup(ctrl.Close)

	if opts.Image == (imageprep.Options{}) {
		opts.Image = imageprep.DefaultOptions()
	}
	return &testServer{
		ws:         NewWebServer(st, ctrl, opts),
		store:      st,
		controller: ctrl,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestStateAndSlides(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(t, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[slideshow.State](t, w)
	assert.Equal(t, 0, state.Index)
	assert.Equal(t, 3, state.Length)
	assert.False(t, state.Empty)

	w = ts.do(t, http.MethodGet, "/slides", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[models.SlideListResponse](t, w)
	assert.Equal(t, 3, list.Total)
	assert.Equal(t, slides.DefaultSlides, list.Slides)
}

func TestAddSlide(t *testing.T) {
	ts := newTestServer(t, Options{})

	slide := slides.Slide{ImageURL: "https://example.com/a.jpg", Quote: "Arise, awake", Author: "Katha Upanishad"}
	w := ts.do(t, http.MethodPost, "/slides", slide)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.AddSlideResponse](t, w)
	assert.Equal(t, 3, resp.Index)
	assert.Equal(t, 3, resp.State.Index)
	assert.Equal(t, 4, resp.State.Length)
	assert.Equal(t, 4, ts.store.Len())

	w = ts.do(t, http.MethodPost, "/slides", slides.Slide{ImageURL: "x", Quote: " "})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode[models.ErrorResponse](t, w).Error, "required")

	w = ts.do(t, http.MethodPost, "/slides", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 4, ts.store.Len())

	// the reported index addresses the new slide
	w = ts.do(t, http.MethodDelete, fmt.Sprintf("/slides/%d", resp.Index), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, slides.DefaultSlides, ts.store.Slides())
}

func TestRemoveSlide(t *testing.T) {
	ts := newTestServer(t, Options{})

	tests := []struct {
		name   string
		path   string
		status int
		length int
	}{
		{name: "not a number", path: "/slides/abc", status: http.StatusBadRequest, length: 3},
		{name: "out of range", path: "/slides/3", status: http.StatusBadRequest, length: 3},
		{name: "negative", path: "/slides/-1", status: http.StatusBadRequest, length: 3},
		{name: "first", path: "/slides/0", status: http.StatusOK, length: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodDelete, tt.path, nil)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.length, ts.store.Len())
		})
	}
}

func TestNavigation(t *testing.T) {
	ts := newTestServer(t, Options{})

	steps := []struct {
		method string
		path   string
		status int
		index  int
	}{
		{http.MethodPost, "/slideshow/next", http.StatusOK, 1},
		{http.MethodPost, "/slideshow/next", http.StatusOK, 2},
		{http.MethodPost, "/slideshow/next", http.StatusOK, 0},
		{http.MethodPost, "/slideshow/previous", http.StatusOK, 2},
		{http.MethodPost, "/slideshow/goto/1", http.StatusOK, 1},
		{http.MethodPost, "/slideshow/goto/7", http.StatusBadRequest, 1},
		{http.MethodPost, "/slideshow/goto/x", http.StatusBadRequest, 1},
	}
	for _, s := range steps {
		w := ts.do(t, s.method, s.path, nil)
		assert.Equal(t, s.status, w.Code, s.path)
		assert.Equal(t, s.index, ts.controller.State().Index, s.path)
	}
}

func TestSwipe(t *testing.T) {
	ts := newTestServer(t, Options{})

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/slideshow/swipe/start", models.SwipeRequest{X: 200}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/slideshow/swipe/move", models.SwipeRequest{X: 100}).Code)
	w := ts.do(t, http.MethodPost, "/slideshow/swipe/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[slideshow.State](t, w).Index)

	// short drag is ignored
	ts.do(t, http.MethodPost, "/slideshow/swipe/start", models.SwipeRequest{X: 100})
	ts.do(t, http.MethodPost, "/slideshow/swipe/move", models.SwipeRequest{X: 130})
	w = ts.do(t, http.MethodPost, "/slideshow/swipe/end", nil)
	assert.Equal(t, 1, decode[slideshow.State](t, w).Index)

	w = ts.do(t, http.MethodPost, "/slideshow/swipe/start", "{")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettings(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := ts.do(t, http.MethodPut, "/settings/glowColor", models.UpdatePreferenceRequest{Value: "#22d3ee"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "#22d3ee", decode[slides.Preferences](t, w).GlowColor)

	w = ts.do(t, http.MethodPut, "/settings/slideDuration", models.UpdatePreferenceRequest{Value: "abc"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/settings/volume", models.UpdatePreferenceRequest{Value: "1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/settings", nil)
	prefs := decode[slides.Preferences](t, w)
	assert.Equal(t, "#22d3ee", prefs.GlowColor)
	assert.Equal(t, 0, prefs.SlideDuration)
	assert.Equal(t, "#22d3ee", ts.controller.State().Preferences.GlowColor)
}

func TestExportImport(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.store.SetGlowColor("#f59e0b")

	w := ts.do(t, http.MethodGet, "/backup/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "dream-achiever-backup.json")
	exported := w.Body.Bytes()
	assert.Contains(t, string(exported), "\n  \"slides\": [")

	w = ts.do(t, http.MethodPost, "/backup/import", `{"foo": 1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 3, ts.store.Len())

	ts.do(t, http.MethodPost, "/slideshow/next", nil)
	w = ts.do(t, http.MethodPost, "/backup/import", `{"slides": [{"imageUrl": "u", "quote": "q", "author": "a"}], "glowColor": "#000000"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	state := decode[slideshow.State](t, w)
	assert.Equal(t, 0, state.Index)
	assert.Equal(t, 1, state.Length)
	assert.Equal(t, "#000000", ts.store.Preferences().GlowColor)

	// multipart upload of the earlier export restores it
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "dream-achiever-backup.json")
	require.NoError(t, err)
	_, err = fw.Write(exported)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/backup/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, slides.DefaultSlides, ts.store.Slides())
	assert.Equal(t, "#f59e0b", ts.store.Preferences().GlowColor)
}

func TestReset(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.store.SetGlowColor("#000000")
	ts.do(t, http.MethodDelete, "/slides/0", nil)

	w := ts.do(t, http.MethodPost, "/reset", nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode[slideshow.State](t, w)
	assert.Equal(t, 3, state.Length)
	assert.Equal(t, slides.DefaultGlowColor, state.Preferences.GlowColor)
}

func pngUpload(t *testing.T, filename, quote, author string) *http.Request {
	t.Helper()
	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 20))))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(img.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("quote", quote))
	require.NoError(t, mw.WriteField("author", author))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/slides/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t, Options{})

	w := httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(w, pngUpload(t, "lotus.png", "Be steadfast", "Gita"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[models.AddSlideResponse](t, w)
	assert.Equal(t, 3, resp.Index)
	assert.True(t, strings.HasPrefix(resp.Slide.ImageURL, "data:image/jpeg;base64,"))

	w = httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(w, pngUpload(t, "lotus.gif", "Be steadfast", "Gita"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(w, pngUpload(t, "lotus.png", "", "Gita"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 4, ts.store.Len())
}

func TestOversizedImages(t *testing.T) {
	ts := newTestServer(t, Options{Image: imageprep.Options{MaxSourceBytes: 1024, MaxSourcePixels: 100}})

	// 40x20 source is over the pixel limit and is rejected before decoding
	w := httptest.NewRecorder()
	ts.ws.Handler().ServeHTTP(w, pngUpload(t, "lotus.png", "Be steadfast", "Gita"))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	var img bytes.Buffer
	require.NoError(t, png.Encode(&img, image.NewRGBA(image.Rect(0, 0, 40, 20))))
	slide := slides.Slide{
		ImageURL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(img.Bytes()),
		Quote:    "Be steadfast",
		Author:   "Gita",
	}
	w = ts.do(t, http.MethodPost, "/slides", slide)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())

	// bodies past the cap are cut off while reading
	slide.ImageURL = "data:image/png;base64," + strings.Repeat("A", 2<<20)
	w = ts.do(t, http.MethodPost, "/slides", slide)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	assert.Equal(t, 3, ts.store.Len())
}

func TestGenerate(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, Options{})
		w := ts.do(t, http.MethodPost, "/slides/generate", nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("quota", func(t *testing.T) {
		upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"error": {"code": 429, "status": "RESOURCE_EXHAUSTED"}}`))
		}))
		defer upstream.Close()

		ts := newTestServer(t, Options{Generator: generator.New(generator.Config{
			APIKey: "k", BaseURL: upstream.URL, TextModel: "t", ImageModel: "i",
		})})
		w := ts.do(t, http.MethodPost, "/slides/generate", nil)
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, 3, ts.store.Len())
	})
}

func TestBackupDisabled(t *testing.T) {
	ts := newTestServer(t, Options{})
	for _, path := range []string{"/backup/push", "/backup/restore"} {
		w := ts.do(t, http.MethodPost, path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code, path)
	}
}

func TestViewer(t *testing.T) {
	ts := newTestServer(t, Options{})
	ts.store.AddSlide(slides.Slide{ImageURL: "u", Quote: "<b>bold</b>", Author: "Rigveda 1.1.1"})

	w := ts.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, page, "&lt;b&gt;bold&lt;/b&gt;")
	assert.NotContains(t, page, "<b>bold</b>")
	assert.Contains(t, page, "Rigveda 1.1.1")
	assert.Contains(t, page, `id="initial-state"`)
	assert.Equal(t, 4, strings.Count(page, `data-goto=`))

	for path, want := range map[string]string{
		"/static/viewer.js":  `new EventSource("/events")`,
		"/static/viewer.css": "--glow-color",
	} {
		w = ts.do(t, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code, path)
		assert.Contains(t, w.Body.String(), want, path)
	}
}

func TestEventsStream(t *testing.T) {
	ts := newTestServer(t, Options{})
	srv := httptest.NewServer(ts.ws.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	events := make(chan string, 16)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 1<<20), 1<<20)
		event := ""
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event:"):
				event = strings.TrimPrefix(line, "event:")
			case strings.HasPrefix(line, "data:"):
				events <- event + " " + strings.TrimPrefix(line, "data:")
			}
		}
		close(events)
	}()

	next := func() string {
		select {
		case e := <-events:
			return e
		case <-ctx.Done():
			t.Fatal("timed out waiting for event")
			return ""
		}
	}

	assert.True(t, strings.HasPrefix(next(), "slides "))
	first := next()
	require.True(t, strings.HasPrefix(first, "state "))
	assert.Contains(t, first, `"index":0`)

	ts.controller.Next()
	assert.Contains(t, next(), `"index":1`)
}
