// Package handler wires the domain flows onto HTTP routes: the client
// facing scan and meal-plan API plus the credential-rotating proxy routes
// the gateway client calls back into.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Jusabaoth/NutriScan/internal/gemini"
	"github.com/Jusabaoth/NutriScan/internal/proxy"
	"github.com/Jusabaoth/NutriScan/internal/service"
	"github.com/Jusabaoth/NutriScan/internal/store"
	"github.com/Jusabaoth/NutriScan/pkg/model"
)

type Handler struct {
	scanner    *service.Scanner
	controller *service.Controller
	assembler  *service.Assembler
	rotator    *proxy.Rotator
	store      store.Store
	logger     *zap.Logger
}

func New(scanner *service.Scanner, controller *service.Controller, assembler *service.Assembler, rotator *proxy.Rotator, st store.Store, logger *zap.Logger) *Handler {
	return &Handler{
		scanner:    scanner,
		controller: controller,
		assembler:  assembler,
		rotator:    rotator,
		store:      st,
		logger:     logger,
	}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.GET("/api/health", h.Health)

	// Proxy routes, called by the gateway client and external frontends.
	r.POST("/api/analyze", h.Proxy)
	r.POST("/api/analyze-meal-plan", h.Proxy)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/scan", h.Scan)
		v1.GET("/profile", h.GetProfile)
		v1.PUT("/profile", h.PutProfile)

		mealplan := v1.Group("/mealplan")
		{
			mealplan.POST("/generate", h.Generate)
			mealplan.GET("/status", h.Status)
			mealplan.POST("/cancel", h.Cancel)
			mealplan.POST("/continue", h.Continue)
			mealplan.GET("/current", h.Current)
		}
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "OK",
		"server": "NutriScan Backend Running",
		"keys":   h.rotator.KeyCount(),
	})
}

// Proxy forwards a Gemini request body upstream through the key rotator
// and relays whatever the upstream answered.
func (h *Handler) Proxy(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 50<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}

	var probe struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || len(probe.Contents) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Contents tidak ditemukan dalam request"})
		return
	}

	result, err := h.rotator.Do(c.Request.Context(), body)
	if err != nil {
		if errors.Is(err, proxy.ErrKeysExhausted) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("proxy forward failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server Error", "message": err.Error()})
		return
	}

	h.logger.Info("proxy forwarded", zap.Int("key", result.KeyIndex), zap.Int("status", result.StatusCode))
	c.Data(result.StatusCode, "application/json", result.Body)
}

type scanRequest struct {
	Images []gemini.InlineData `json:"images" binding:"required,min=1"`
}

// Scan runs one nutrition-label analysis over the submitted images.
func (h *Handler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one image is required"})
		return
	}

	profile := h.loadProfile(c)
	result, err := h.scanner.Analyze(c.Request.Context(), req.Images, profile)
	if err != nil {
		status := http.StatusBadGateway
		if service.IsOverload(err) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "analysis failed", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, result)
}

// Generate kicks off an asynchronous meal-plan generation.
func (h *Handler) Generate(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}

	var prefs model.Preferences
	if err := c.ShouldBindJSON(&prefs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid preferences payload"})
		return
	}
	if !prefs.Profile.Complete() {
		prefs.Profile = h.loadProfile(c)
	}

	if err := h.controller.Generate(userID, prefs); err != nil {
		if errors.Is(err, service.ErrGenerationInProgress) {
			// Duplicate requests are dropped, not queued. The caller
			// gets the in-flight session's status back.
			c.JSON(http.StatusOK, h.controller.Status())
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, h.controller.Status())
}

func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}

func (h *Handler) Cancel(c *gin.Context) {
	h.controller.Cancel()
	c.JSON(http.StatusOK, h.controller.Status())
}

func (h *Handler) Continue(c *gin.Context) {
	h.controller.Continue()
	c.JSON(http.StatusOK, h.controller.Status())
}

// Current returns the user's persisted plan.
func (h *Handler) Current(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}

	plan, found, err := h.assembler.Load(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no meal plan found"})
		return
	}
	c.JSON(http.StatusOK, plan)
}

func profileKey(userID string) string { return "profile:" + userID }

func (h *Handler) GetProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}

	var profile model.HealthProfile
	found, err := store.LoadJSON(c.Request.Context(), h.store, profileKey(userID), &profile)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no profile found"})
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) PutProfile(c *gin.Context) {
	userID := c.GetString("user_id")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-User-ID header is required"})
		return
	}

	var profile model.HealthProfile
	if err := c.ShouldBindJSON(&profile); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid profile payload"})
		return
	}

	if err := store.SaveJSON(c.Request.Context(), h.store, profileKey(userID), &profile); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, profile)
}

// loadProfile fetches the caller's stored profile; anonymous callers and
// corrupt blobs get an empty profile.
func (h *Handler) loadProfile(c *gin.Context) model.HealthProfile {
	userID := c.GetString("user_id")
	if userID == "" {
		return model.HealthProfile{}
	}

	var profile model.HealthProfile
	found, err := store.LoadJSON(c.Request.Context(), h.store, profileKey(userID), &profile)
	if err != nil || !found {
		return model.HealthProfile{}
	}
	return profile
}
