package handlers

import (
	"motodean/internal/config"
	"motodean/internal/repos"
	"motodean/internal/services"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

type Deps struct {
	Auth *services.AuthService

	AuthHandler      *AuthHandler
	OrderHandler     *OrderHandler
	AuditHandler     *AuditHandler
	InventoryHandler *InventoryHandler
}

func NewDeps(db *sqlx.DB, cfg config.Config, logger *zap.Logger) *Deps {
	if logger == nil {
		logger = zap.NewNop()
	}
	outboxRepo := repos.NewOutboxRepo(db)
	audit := services.NewAuditTrail(repos.NewAuditRepo(db), logger)
	auth := &services.AuthService{Users: repos.NewUserRepo(db), Audit: audit}

	engine := services.NewOrderStatusEngine(services.EngineDeps{
		DB:        db,
		Orders:    repos.NewOrderRepo(db),
		Inventory: repos.NewInventoryStore(db),
		Audit:     audit,
		Outbox:    outboxRepo,
		Logger:    logger,
		TxTimeout: cfg.TxTimeout,
		Retries:   cfg.TxRetries,
	})
	inv := services.NewInventoryService(db, audit, outboxRepo, logger)

	return &Deps{
		Auth:             auth,
		AuthHandler:      &AuthHandler{Auth: auth},
		OrderHandler:     &OrderHandler{Engine: engine},
		AuditHandler:     &AuditHandler{Audit: audit},
		InventoryHandler: &InventoryHandler{Inv: inv},
	}
}
