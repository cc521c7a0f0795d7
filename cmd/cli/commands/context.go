package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/jakechorley/shift-selector/internal/config"
	"github.com/jakechorley/shift-selector/pkg/clients/sheetsclient"
	"github.com/jakechorley/shift-selector/pkg/core/directory"
	"github.com/jakechorley/shift-selector/pkg/core/model"
	"github.com/jakechorley/shift-selector/pkg/core/recounter"
	"github.com/jakechorley/shift-selector/pkg/core/services"
	"github.com/jakechorley/shift-selector/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg          *config.Config
	SheetsClient *sheetsclient.Client
	Directory    *directory.Cache
	Engine       *services.ClaimEngine
	Recounts     *recounter.Queue
	Journal      db.ClaimJournal
	Logger       *zap.Logger
	Ctx          context.Context
}

// Recount recomputes one user's shift count synchronously
func (app *AppContext) Recount(ctx context.Context, target model.CountTarget) error {
	_, err := services.RecomputeShiftCount(ctx, app.SheetsClient, app.Cfg, app.Logger, target)
	return err
}
