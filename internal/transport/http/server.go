package http

import (
	"github.com/gin-gonic/gin"

	"github.com/PavSher76/AI-NK-sub005/internal/bootstrap"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/handler"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	documentHandler := handler.NewDocumentHandler(app.Ingest, app.DocRepo, app.AuditRepo)
	checkHandler := handler.NewCheckHandler(app.Validation)
	reportHandler := handler.NewReportHandler(app.Report)
	corpusHandler := handler.NewCorpusHandler(app.Corpus)
	stampHandler := handler.NewStampHandler(app.Stamp, app.DocRepo, app.ElementRepo)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", middleware.AuthJWT(app.Config.Auth.JWTSecret), authHandler.Me)

	secured := v1.Group("")
	secured.Use(middleware.AuthJWT(app.Config.Auth.JWTSecret))

	documents := secured.Group("/documents")
	documents.POST("/upload", documentHandler.Upload)
	documents.GET("", documentHandler.List)
	documents.GET("/:id", documentHandler.Get)
	documents.DELETE("/:id", documentHandler.Delete)
	documents.POST("/:id/stamps", stampHandler.Classify)

	checks := secured.Group("/checks")
	checks.POST("/:id", checkHandler.Start)
	checks.POST("/:id/hierarchical", checkHandler.StartHierarchical)
	checks.GET("/:id/status", checkHandler.Status)

	reports := secured.Group("/reports")
	reports.GET("/:id", reportHandler.Current)
	reports.GET("/:id/history", reportHandler.History)
	reports.GET("/:id/download", reportHandler.Download)

	corpus := secured.Group("/corpus")
	corpus.GET("/documents/:id/clauses", corpusHandler.Clauses)
	corpus.POST("/documents/:id/reindex", corpusHandler.Reindex)
	corpus.POST("/relations", corpusHandler.AddRelation)
	corpus.GET("/clauses/:clause_id/relations", corpusHandler.Relations)

	return router
}
