package api

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	v1 "github.com/drawroom/drawroom-api/internal/api/handler/v1"
	"github.com/drawroom/drawroom-api/internal/api/middleware"
	"github.com/drawroom/drawroom-api/internal/config"
	"github.com/drawroom/drawroom-api/internal/event"
	"github.com/drawroom/drawroom-api/internal/repository"
	"github.com/drawroom/drawroom-api/internal/repository/dao"
	"github.com/drawroom/drawroom-api/internal/service"
)

type Server struct {
	Config *config.AppConfig
	Router *gin.Engine
}

func NewServer(conf *config.AppConfig, db *gorm.DB, notifier event.Notifier, houseUserID uint) *Server {
	gin.SetMode(conf.Gin.Mode)
	engine := gin.New()

	s := &Server{
		Config: conf,
		Router: engine,
	}

	s.MountMiddlewares()

	userRepo := repository.NewUserRepository(dao.NewUserDAO(db))
	walletRepo := repository.NewWalletRepository(dao.NewWalletDAO(db), dao.NewTransactionDAO(db))
	templateRepo := repository.NewTemplateRepository(dao.NewTemplateDAO(db))
	drawRepo := repository.NewDrawRepository(dao.NewDrawDAO(db))

	walletSvc := service.NewWalletService(walletRepo)
	userSvc := service.NewUserService(userRepo)
	authSvc := service.NewAuthService(userRepo, walletSvc, conf.Draw.StartingDemoCredits)
	templateSvc := service.NewTemplateService(templateRepo, drawRepo)
	drawSvc := service.NewDrawService(drawRepo, templateSvc, notifier,
		time.Duration(conf.Draw.CountdownSeconds)*time.Second, houseUserID)

	authHandler := v1.NewAuthHandler(conf.API, authSvc)
	userHandler := v1.NewUserHandler(userSvc)
	drawHandler := v1.NewDrawHandler(drawSvc, templateSvc, userSvc)
	walletHandler := v1.NewWalletHandler(walletSvc, userSvc)
	adminHandler := v1.NewAdminHandler(templateSvc, drawSvc, walletSvc, userSvc)

	s.MountHandlers(authHandler, userHandler, drawHandler, walletHandler, adminHandler)

	return s
}

func (s *Server) MountMiddlewares() {
	// Logger and Recovery are needed unless we use gin.Default().
	s.Router.Use(gin.Logger())
	s.Router.Use(gin.Recovery())
	s.Router.Use(requestid.New())
	s.Router.Use(middleware.ConfigCORS(s.Config.API.AllowedCORSDomains))
}

func (s *Server) MountHandlers(authHandler *v1.AuthHandler, userHandler *v1.UserHandler, drawHandler *v1.DrawHandler, walletHandler *v1.WalletHandler, adminHandler *v1.AdminHandler) {
	const basePath = "/api/v1"

	auth := s.Router.Group(basePath)
	{
		auth.POST("/auth/signup", authHandler.HandleSignup)
		auth.POST("/auth/login", authHandler.HandleLogin)
	}

	// Rooms and outcomes are public; anyone can browse the lobby and verify
	// a completed draw.
	public := s.Router.Group(basePath)
	{
		public.GET("/lobby", drawHandler.HandleGetLobby)
		public.GET("/draws", drawHandler.HandleListDraws)
		public.GET("/draws/:drawID", drawHandler.HandleGetDraw)
		public.GET("/draws/:drawID/verify", drawHandler.HandleVerifyDraw)
	}

	authenticated := s.Router.Group(basePath, middleware.NewAuthenticator(s.Config.API.JWTSigningKey).VerifyJWT())
	{
		authenticated.GET("/users/:userID", userHandler.HandleGetUser)
		authenticated.POST("/draws/:drawID/join", drawHandler.HandleJoinDraw)
		authenticated.GET("/wallets", walletHandler.HandleGetWallets)
		authenticated.GET("/wallets/:mode/transactions", walletHandler.HandleGetTransactions)

		admin := authenticated.Group("/admin")
		{
			admin.POST("/templates", adminHandler.HandleCreateTemplate)
			admin.GET("/templates", adminHandler.HandleListTemplates)
			admin.PUT("/templates/:templateID/flags", adminHandler.HandleUpdateTemplateFlags)
			admin.POST("/templates/ensure-draws", adminHandler.HandleEnsureOpenDraws)
			admin.POST("/draws/:drawID/force-finalize", adminHandler.HandleForceFinalize)
			admin.POST("/draws/:drawID/expire", adminHandler.HandleExpireDraw)
			admin.POST("/users/:userID/credit", adminHandler.HandleAdminCredit)
		}
	}

	s.Router.GET("/", v1.HandleHealthcheck)
}
