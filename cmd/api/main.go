package main

import (
	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/server"
	"app/internal/tasks"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	//.envはあれば読む（本番は環境変数だけ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect failed")
	}

	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Invitado{},
		&model.TokenRecord{},
	); err != nil {
		log.Fatal().Err(err).Msg("migrate failed")
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserRepository(gormDB)
	invitadoRepo := infraRepo.NewInvitadoRepository(gormDB)
	tokenRepo := infraRepo.NewTokenRecordRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//Usecase生成
	authValidator := validator.NewAuthValidator(userRepo)
	authUC := usecase.NewAuthUsecase(cfg, userRepo, invitadoRepo, tokenRepo, txManager, authValidator)

	//Handler生成
	authH := handler.NewAuthHandler(authUC)
	adminH := handler.NewAdminUserHandler(authUC)

	//sweeper：起動直後に1回、以後は毎日
	sweeper := tasks.NewTokenSweeper(tokenRepo, cfg.TokenMaxRetention, cfg.TokenGracePeriod)
	taskManager := tasks.NewManager()
	taskManager.Register("token-sweep", cfg.SweepStartupDelay, cfg.SweepInterval, sweeper.Run)

	//Server起動
	e := server.New(cfg, tokenRepo, authH, adminH)

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	if err := e.Start(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
