// Package api is the main api web server
package api

import (
	"context"
	"embed"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aouyang1/quoteframe/api/models"
	"github.com/aouyang1/quoteframe/api/web/templates"
	"github.com/aouyang1/quoteframe/generator"
	"github.com/aouyang1/quoteframe/imageprep"
	"github.com/aouyang1/quoteframe/slides"
	"github.com/aouyang1/quoteframe/slideshow"
	"github.com/aouyang1/quoteframe/util"
	"github.com/gin-gonic/gin"
)

const (
	pageTitle              = "Dream Achiever"
	defaultGenerateTimeout = 2 * time.Minute
	maxImportBytes         = 64 << 20
	maxMultipartMemory     = 8 << 20
	// form fields and multipart framing around an uploaded image
	uploadOverhead = 1 << 20
)

//go:embed web/static/*
var webFiles embed.FS

type Options struct {
	Generator       *generator.Client
	Backup          *BackupManager
	Image           imageprep.Options
	GenerateTimeout time.Duration
}

type WebServer struct {
	router     *gin.Engine
	store      *slides.Store
	controller *slideshow.Controller

	generator       *generator.Client
	backup          *BackupManager
	imageOpts       imageprep.Options
	maxImageBody    int64
	generateTimeout time.Duration
}

func NewWebServer(st *slides.Store, ctrl *slideshow.Controller, opts Options) *WebServer {
	router := gin.Default()
	router.MaxMultipartMemory = maxMultipartMemory

	imageOpts := opts.Image.WithDefaults()
	ws := &WebServer{
		router:          router,
		store:           st,
		controller:      ctrl,
		generator:       opts.Generator,
		backup:          opts.Backup,
		imageOpts:       imageOpts,
		maxImageBody:    int64(base64.StdEncoding.EncodedLen(int(imageOpts.MaxSourceBytes))) + uploadOverhead,
		generateTimeout: opts.GenerateTimeout,
	}
	if ws.generateTimeout <= 0 {
		ws.generateTimeout = defaultGenerateTimeout
	}

	// Setup routes
	ws.setupRoutes()

	return ws
}

func (ws *WebServer) setupRoutes() {
	// Serve the viewer stylesheet and script from the embedded filesystem
	staticFS, err := fs.Sub(webFiles, "web/static")
	if err != nil {
		panic(fmt.Sprintf("failed to create static filesystem: %v", err))
	}
	ws.router.StaticFS("static", http.FS(staticFS))

	ws.router.GET("/", ws.handleViewer)
	ws.router.GET("/events", ws.handleEvents)
	ws.router.GET("/state", ws.handleGetState)

	ws.router.GET("/slides", ws.handleListSlides)
	ws.router.POST("/slides", ws.handleAddSlide)
	ws.router.POST("/slides/upload", ws.handleUpload)
	ws.router.POST("/slides/generate", ws.handleGenerate)
	ws.router.DELETE("/slides/:index", ws.handleRemoveSlide)

	ws.router.POST("/slideshow/next", ws.handleNext)
	ws.router.POST("/slideshow/previous", ws.handlePrevious)
	ws.router.POST("/slideshow/goto/:index", ws.handleGoTo)
	ws.router.POST("/slideshow/swipe/start", ws.handleSwipeStart)
	ws.router.POST("/slideshow/swipe/move", ws.handleSwipeMove)
	ws.router.POST("/slideshow/swipe/end", ws.handleSwipeEnd)

	ws.router.GET("/settings", ws.handleGetSettings)
	ws.router.PUT("/settings/:key", ws.handleUpdateSetting)

	ws.router.GET("/backup/export", ws.handleExport)
	ws.router.POST("/backup/import", ws.handleImport)
	ws.router.POST("/backup/push", ws.handleBackupPush)
	ws.router.POST("/backup/restore", ws.handleBackupRestore)
	ws.router.POST("/reset", ws.handleReset)
}

func (ws *WebServer) Handler() http.Handler {
	return ws.router
}

// Start serves until ctx is done. Request contexts derive from ctx so open
// event streams end on shutdown.
func (ws *WebServer) Start(ctx context.Context, addr string) error {
	if ws.backup != nil {
		go ws.backup.Run(ctx)
	}

	srv := &http.Server{
		Addr:        addr,
		Handler:     ws.router,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("error while shutting down web server", "error", err)
		}
	}()

	slog.Info("starting web server", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start web server: %w", err)
	}
	return nil
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, slides.ErrInvalidSlide),
		errors.Is(err, slides.ErrIndexOutOfRange),
		errors.Is(err, slides.ErrMalformedBackup),
		errors.Is(err, slides.ErrUnknownPreference),
		errors.Is(err, slides.ErrInvalidPreference),
		errors.Is(err, slideshow.ErrIndexOutOfRange),
		errors.Is(err, imageprep.ErrNotDataURI):
		return http.StatusBadRequest
	case errors.Is(err, imageprep.ErrImageTooLarge),
		isMaxBytesError(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, generator.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, generator.ErrDisabled),
		errors.Is(err, ErrBackupDisabled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isMaxBytesError(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// limitBody caps how much of the request body a handler may read.
func limitBody(c *gin.Context, n int64) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
}

// imageError reports a failed image preparation, oversized sources get 413.
func imageError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, imageprep.ErrImageTooLarge) {
		status = http.StatusRequestEntityTooLarge
	}
	c.JSON(status, models.ErrorResponse{Error: fmt.Sprintf("Invalid image: %v", err)})
}

func abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, models.ErrorResponse{Error: err.Error()})
}

func indexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid index parameter"})
		return 0, false
	}
	return index, true
}

func (ws *WebServer) handleViewer(c *gin.Context) {
	data := templates.ViewerData{
		Title:  pageTitle,
		Slides: ws.store.Slides(),
		State:  ws.controller.State(),
	}
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := templates.Viewer(data).Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render viewer", "error", err)
	}
}

// handleEvents streams controller state and collection updates. Listeners
// only signal; store reads happen on the request goroutine.
func (ws *WebServer) handleEvents(c *gin.Context) {
	states := make(chan slideshow.State, 1)
	collectionChanged := make(chan struct{}, 1)

	stopState := ws.controller.OnChange(func(s slideshow.State) {
		// keep only the latest state for slow clients
		select {
		case <-states:
		default:
		}
		select {
		case states <- s:
		default:
		}
	})
	defer stopState()

	stopStore := ws.store.OnChange(func(ch slides.Change) {
		if ch.Kind == slides.PreferencesChanged {
			return
		}
		select {
		case collectionChanged <- struct{}{}:
		default:
		}
	})
	defer stopStore()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.SSEvent("slides", ws.store.Slides())
	c.SSEvent("state", ws.controller.State())
	c.Writer.Flush()

	ctx := c.Request.Context()
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-collectionChanged:
			c.SSEvent("slides", ws.store.Slides())
			return true
		case s := <-states:
			c.SSEvent("state", s)
			return true
		}
	})
}

func (ws *WebServer) handleGetState(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.State())
}

func (ws *WebServer) handleListSlides(c *gin.Context) {
	all := ws.store.Slides()
	c.JSON(http.StatusOK, models.SlideListResponse{
		Slides: all,
		Total:  len(all),
	})
}

func (ws *WebServer) addSlide(c *gin.Context, slide slides.Slide) {
	length, err := ws.store.AddSlide(slide)
	if err != nil {
		abortWithError(c, err)
		return
	}
	// AddSlide reports the new length; the slide sits at the end.
	c.JSON(http.StatusOK, models.AddSlideResponse{
		Index:   length - 1,
		Slide:   slide,
		State:   ws.controller.State(),
		Message: "Slide added successfully",
	})
}

func (ws *WebServer) handleAddSlide(c *gin.Context) {
	limitBody(c, ws.maxImageBody)

	var req slides.Slide
	if err := c.ShouldBindJSON(&req); err != nil {
		if isMaxBytesError(err) {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if strings.HasPrefix(req.ImageURL, "data:") {
		prepared, err := imageprep.PrepareDataURI(req.ImageURL, ws.imageOpts)
		if err != nil {
			imageError(c, err)
			return
		}
		req.ImageURL = prepared
	}
	ws.addSlide(c, req)
}

func (ws *WebServer) handleUpload(c *gin.Context) {
	limitBody(c, ws.maxImageBody)

	// Get the file from the form
	file, err := c.FormFile("file")
	if err != nil {
		if isMaxBytesError(err) {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No file provided"})
		return
	}

	// Validate file extension
	if !util.IsSupportedImage(file.Filename) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: fmt.Sprintf("Unsupported file: %s. Supported: .jpeg, .jpg, .png, .webp", file.Filename),
		})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to read file: %v", err)})
		return
	}
	defer f.Close()

	imageURL, err := imageprep.Prepare(f, ws.imageOpts)
	if err != nil {
		imageError(c, err)
		return
	}

	ws.addSlide(c, slides.Slide{
		ImageURL: imageURL,
		Quote:    c.PostForm("quote"),
		Author:   c.PostForm("author"),
	})
}

func (ws *WebServer) handleGenerate(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), ws.generateTimeout)
	defer cancel()

	slide, err := ws.generator.Generate(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}
	ws.addSlide(c, slide)
}

func (ws *WebServer) handleRemoveSlide(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	if err := ws.store.RemoveSlide(index); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.RemoveSlideResponse{
		Index:   index,
		State:   ws.controller.State(),
		Message: fmt.Sprintf("Slide %d removed successfully", index),
	})
}

func (ws *WebServer) handleNext(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.Next())
}

func (ws *WebServer) handlePrevious(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.Previous())
}

func (ws *WebServer) handleGoTo(c *gin.Context) {
	index, ok := indexParam(c)
	if !ok {
		return
	}
	state, err := ws.controller.GoTo(index)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

func bindSwipe(c *gin.Context) (models.SwipeRequest, bool) {
	var req models.SwipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return req, false
	}
	return req, true
}

func (ws *WebServer) handleSwipeStart(c *gin.Context) {
	req, ok := bindSwipe(c)
	if !ok {
		return
	}
	ws.controller.TouchStart(req.X)
	c.JSON(http.StatusOK, ws.controller.State())
}

func (ws *WebServer) handleSwipeMove(c *gin.Context) {
	req, ok := bindSwipe(c)
	if !ok {
		return
	}
	ws.controller.TouchMove(req.X)
	c.JSON(http.StatusOK, ws.controller.State())
}

func (ws *WebServer) handleSwipeEnd(c *gin.Context) {
	c.JSON(http.StatusOK, ws.controller.TouchEnd())
}

func (ws *WebServer) handleGetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, ws.store.Preferences())
}

func (ws *WebServer) handleUpdateSetting(c *gin.Context) {
	var req models.UpdatePreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if err := ws.store.SetPreference(slides.PreferenceKey(c.Param("key")), req.Value); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.store.Preferences())
}

func (ws *WebServer) handleExport(c *gin.Context) {
	data, err := ws.store.Export().Marshal()
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", ws.store.Config().BackupFileName()))
	c.Data(http.StatusOK, "application/json", data)
}

// handleImport accepts the interchange file as a multipart "file" field or as
// the raw request body.
func (ws *WebServer) handleImport(c *gin.Context) {
	limitBody(c, maxImportBytes+uploadOverhead)

	var r io.Reader = c.Request.Body
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		file, err := c.FormFile("file")
		if err != nil {
			if isMaxBytesError(err) {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No file provided"})
			return
		}
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to read file: %v", err)})
			return
		}
		defer f.Close()
		r = f
	}

	data, err := io.ReadAll(io.LimitReader(r, maxImportBytes))
	if err != nil {
		if isMaxBytesError(err) {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Failed to read backup: %v", err)})
		return
	}

	backup, err := slides.ParseBackup(data)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := ws.store.Import(backup); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.controller.State())
}

func (ws *WebServer) handleReset(c *gin.Context) {
	ws.store.ResetAll()
	c.JSON(http.StatusOK, ws.controller.State())
}

func (ws *WebServer) handleBackupPush(c *gin.Context) {
	if ws.backup == nil {
		abortWithError(c, ErrBackupDisabled)
		return
	}
	if err := ws.backup.Push(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "Backup pushed"})
}

func (ws *WebServer) handleBackupRestore(c *gin.Context) {
	if ws.backup == nil {
		abortWithError(c, ErrBackupDisabled)
		return
	}
	if err := ws.backup.Restore(c.Request.Context()); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, ws.controller.State())
}
