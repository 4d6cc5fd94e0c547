package main

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/postersnap/postersnap/internal/cache"
	"github.com/postersnap/postersnap/internal/generator"
	"github.com/postersnap/postersnap/internal/logging"
	"github.com/postersnap/postersnap/internal/metadata"
	"github.com/postersnap/postersnap/internal/middleware"
	"github.com/postersnap/postersnap/internal/quota"
	"github.com/postersnap/postersnap/internal/store"
	"github.com/postersnap/postersnap/pkg/models"
)

// API holds the handler dependencies.
type API struct {
	store     store.Store
	cache     *cache.Cache
	generator *generator.Generator
	quota     *quota.Checker
	extractor *metadata.Extractor
	logger    *logging.Logger
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	type healthChecker interface {
		Health(ctx context.Context) error
	}
	if hc, ok := api.store.(healthChecker); ok {
		if err := hc.Health(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type generateRequest struct {
	SessionID    string `json:"sessionId"`
	InputMode    string `json:"inputMode"`
	InputValue   string `json:"inputValue"`
	Style        string `json:"style"`
	ContentType  string `json:"contentType"`
	OutputFormat string `json:"outputFormat"`
	MinPages     int    `json:"minPages"`
	MaxPages     int    `json:"maxPages"`
}

// Submit a poster generation job. Responds as soon as the job is queued;
// clients poll the poster endpoint for the result.
func (api *API) generatePoster(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	identity := middleware.GetIdentity(c)

	poster, err := api.generator.Submit(c.Request.Context(), identity, generator.SubmitRequest{
		SessionID:    req.SessionID,
		InputMode:    models.InputMode(req.InputMode),
		InputValue:   req.InputValue,
		Style:        models.PosterStyle(req.Style),
		ContentType:  models.ContentType(req.ContentType),
		OutputFormat: models.OutputFormat(req.OutputFormat),
		MinPages:     req.MinPages,
		MaxPages:     req.MaxPages,
	})
	if err != nil {
		api.writeSubmitError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"posterId": poster.ID,
		"message":  "Poster generation started",
	})
}

// writeSubmitError maps submission failures onto client responses. Quota
// rejections each carry their remediation hint.
func (api *API) writeSubmitError(c *gin.Context, err error) {
	if errors.Is(err, generator.ErrValidation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var qerr *quota.Error
	if errors.As(err, &qerr) {
		switch qerr.Code {
		case quota.CodeInsufficientCredits:
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":            qerr.Message,
				"creditsRequired":  qerr.CreditsRequired,
				"creditsAvailable": qerr.CreditsAvailable,
				"suggestedAction":  "upgrade",
			})
		case quota.CodeDailyLimitReached:
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":            qerr.Message,
				"creditsRemaining": qerr.CreditsAvailable,
			})
		default:
			c.JSON(http.StatusTooManyRequests, gin.H{"error": qerr.Message})
		}
		return
	}

	api.logger.ErrorWithErr("Submit failed", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start poster generation"})
}

// Poll a poster job. Reads go through the cache when one is configured.
func (api *API) getPoster(c *gin.Context) {
	posterID := c.Param("id")
	ctx := c.Request.Context()

	if api.cache != nil {
		if poster, err := api.cache.GetPoster(ctx, posterID); err == nil && poster != nil {
			c.JSON(http.StatusOK, poster)
			return
		}
	}

	poster, err := api.store.GetPoster(ctx, posterID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Poster not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load poster"})
		return
	}

	if api.cache != nil {
		if err := api.cache.SetPoster(ctx, poster); err != nil {
			api.logger.WithPosterID(posterID).ErrorWithErr("Failed to cache poster", err)
		}
	}

	c.JSON(http.StatusOK, poster)
}

type extractMetadataRequest struct {
	URL string `json:"url"`
}

// Extract metadata for a URL ahead of submission, so the client can preview
// the source before spending quota on it.
func (api *API) extractMetadata(c *gin.Context) {
	var req extractMetadataRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required"})
		return
	}

	meta, err := api.extractor.Extract(c.Request.Context(), req.URL)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Failed to extract metadata"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "metadata": meta})
}

// Report the caller's authentication state. Never errors: a missing,
// malformed or invalid token all read as unauthenticated.
func (api *API) checkAuth(c *gin.Context) {
	var identity *models.Identity
	header := c.GetHeader("Authorization")
	if token := strings.TrimPrefix(header, "Bearer "); token != header && token != "" {
		if verified, err := middleware.VerifyToken(token); err == nil {
			identity = verified
		}
	}

	if identity == nil {
		c.JSON(http.StatusOK, gin.H{"authenticated": false})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"authenticated": true,
		"user":          identity,
		"privileged":    api.quota.Privileged(identity),
	})
}

// Usage for one user. Callers may read their own record; privileged
// identities may read anyone's.
func (api *API) getUserUsage(c *gin.Context) {
	userID := c.Param("userId")
	identity := middleware.GetIdentity(c)

	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	if identity.ID != userID && !api.quota.Privileged(identity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	usage, err := api.store.GetUserUsage(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load usage"})
		return
	}
	if usage == nil {
		// Not yet materialized; report the starting allotment
		usage = &models.UserUsage{
			UserID:  userID,
			Credits: models.DefaultCredits,
			Plan:    models.PlanFree,
		}
	}

	c.JSON(http.StatusOK, usage)
}

type addCreditsRequest struct {
	UserID  string `json:"userId"`
	Credits int    `json:"credits"`
}

// Grant credits to a user. Privileged identities only.
func (api *API) addCredits(c *gin.Context) {
	identity := middleware.GetIdentity(c)
	if !api.quota.Privileged(identity) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied"})
		return
	}

	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Credits <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "userId and a positive credits amount are required"})
		return
	}

	usage, err := api.store.AddCredits(c.Request.Context(), req.UserID, req.Credits)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "usage": usage})
}
