// Package handlers wires the webhook HTTP delivery components.
package handlers

import (
	"pr-build-watcher/config"
	"pr-build-watcher/internal/reconciler"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler routes inbound webhook deliveries to the reconciler.
type Handler struct {
	log           *zap.SugaredLogger
	repo          *reconciler.Repository
	secret        string
	triggerPhrase string
}

// NewHandler constructs the webhook handler.
func NewHandler(log *zap.SugaredLogger, repo *reconciler.Repository, cfg config.WebhookConfig, triggerPhrase string) *Handler {
	return &Handler{
		log:           log.Named("webhook"),
		repo:          repo,
		secret:        cfg.Secret,
		triggerPhrase: triggerPhrase,
	}
}

// Register attaches the webhook routes.
func (h *Handler) Register(app *fiber.App) {
	app.Post("/webhook", h.PostWebhook)
}
