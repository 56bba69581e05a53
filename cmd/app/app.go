package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/drawroom/drawroom-api/internal/api"
	"github.com/drawroom/drawroom-api/internal/config"
	"github.com/drawroom/drawroom-api/internal/db"
	"github.com/drawroom/drawroom-api/internal/event"
	"github.com/drawroom/drawroom-api/internal/logger"
	"github.com/drawroom/drawroom-api/internal/repository"
	"github.com/drawroom/drawroom-api/internal/repository/dao"
	"github.com/drawroom/drawroom-api/internal/scheduler"
	"github.com/drawroom/drawroom-api/internal/service"
)

func Start() error {
	conf, err := config.Load("./cmd/app/config.yml")
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}

	var notifier event.Notifier = event.NoopNotifier{}
	if conf.NATS != nil && conf.NATS.URL != "" {
		natsNotifier, err := event.NewNATSNotifier(conf.NATS.URL)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS -> %w", err)
		}
		defer natsNotifier.Close()
		notifier = natsNotifier
	}

	ctx := context.Background()

	userRepo := repository.NewUserRepository(dao.NewUserDAO(postgresDB))
	walletRepo := repository.NewWalletRepository(dao.NewWalletDAO(postgresDB), dao.NewTransactionDAO(postgresDB))
	templateRepo := repository.NewTemplateRepository(dao.NewTemplateDAO(postgresDB))
	drawRepo := repository.NewDrawRepository(dao.NewDrawDAO(postgresDB))

	walletSvc := service.NewWalletService(walletRepo)
	userSvc := service.NewUserService(userRepo)
	templateSvc := service.NewTemplateService(templateRepo, drawRepo)

	house, err := userSvc.EnsureHouseUser(ctx, walletSvc)
	if err != nil {
		return fmt.Errorf("failed to ensure house user -> %w", err)
	}

	if err = templateSvc.EnsureOpenDraws(ctx); err != nil {
		zap.L().Warn("initial draw replenishment failed, sweeper will retry", zap.Error(err))
	}

	drawSvc := service.NewDrawService(drawRepo, templateSvc, notifier,
		time.Duration(conf.Draw.CountdownSeconds)*time.Second, house.ID)

	if conf.Sweeper.Enabled {
		sweeper := scheduler.NewSweeper(drawSvc, drawRepo, templateSvc, userRepo, walletSvc, scheduler.Config{
			Interval:       time.Duration(conf.Sweeper.IntervalSeconds) * time.Second,
			OpenTTL:        time.Duration(conf.Draw.OpenTTLMinutes) * time.Minute,
			BotCount:       conf.Sweeper.BotCount,
			BotTopUpBelow:  conf.Sweeper.BotTopUpBelow,
			BotTopUpAmount: conf.Sweeper.BotTopUpAmount,
		})
		if err = sweeper.Start(); err != nil {
			return fmt.Errorf("failed to start sweeper -> %w", err)
		}
		defer sweeper.Stop()
	}

	s := api.NewServer(conf, postgresDB, notifier, house.ID)

	addr := ":" + s.Config.API.Port
	zap.L().Info(fmt.Sprintf("starting server at %v", addr))
	if err = s.Router.Run(addr); err != nil {
		return fmt.Errorf("failed to start the server -> %w", err)
	}

	return nil
}
