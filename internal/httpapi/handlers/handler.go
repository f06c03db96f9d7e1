package handlers

import (
	"context"

	"gorm.io/gorm"

	"github.com/orionai/orion/internal/ai"
	"github.com/orionai/orion/internal/chat"
	"github.com/orionai/orion/internal/config"
	"github.com/orionai/orion/internal/email"
	"github.com/orionai/orion/internal/geo"
	"github.com/orionai/orion/internal/store/rabbitmq"
	"github.com/orionai/orion/internal/store/redisstore"
)

type Handler struct {
	DB          *gorm.DB
	Cfg         config.Config
	Redis       *redisstore.Store
	Rabbit      *rabbitmq.Publisher
	Locator     *geo.Locator
	ChatSvc     *chat.Service
	Media       *ai.GeminiProvider
	SMTPSetting email.SMTPConfig
}

// NewRegistry wires the three chat tiers to Gemini providers. Shared by
// the API server and the worker.
func NewRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	tiers := map[string]string{
		chat.TierFlashLite: ai.ModelFlashLite,
		chat.TierFlash:     ai.ModelFlash,
		chat.TierPro:       ai.ModelPro,
	}
	for tier, model := range tiers {
		m := model
		reg.Register(tier, func(ctx context.Context) (ai.Provider, error) {
			_ = ctx
			return ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, m), nil
		})
	}
	return reg
}

func NewHandler(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *Handler {
	repo := chat.NewRepo(db)
	chatSvc := chat.NewService(repo, NewRegistry(cfg), cfg.ChatContextWindowSize)

	return &Handler{
		DB:      db,
		Cfg:     cfg,
		Redis:   rds,
		Rabbit:  rabbit,
		Locator: geo.NewLocator(cfg.GeoBaseURL),
		ChatSvc: chatSvc,
		Media:   ai.NewGeminiProvider(cfg.GeminiBaseURL, cfg.GeminiAPIKey, ""),
		SMTPSetting: email.SMTPConfig{
			Host: cfg.SMTPHost,
			Port: cfg.SMTPPort,
			User: cfg.SMTPUser,
			Pass: cfg.SMTPPass,
			From: cfg.SMTPFrom,
		},
	}
}
