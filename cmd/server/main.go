package main

import (
	"context"
	"errors"
	"os"

	"github.com/dmitrijs2005/casevault/internal/common"
	"github.com/dmitrijs2005/casevault/internal/logging"
	"github.com/dmitrijs2005/casevault/internal/server"
	"github.com/dmitrijs2005/casevault/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stdout, cfg.LogLevel)

	app, err := server.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "startup failed", "kind", common.Kind(err), "error", err)
		if errors.Is(err, common.ErrConfiguration) {
			os.Exit(2)
		}
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		os.Exit(1)
	}

}
