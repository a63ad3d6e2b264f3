package http

import (
	"github.com/gin-gonic/gin"

	"docrag/internal/bootstrap"
	"docrag/internal/transport/http/handler"
	"docrag/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLog(), gin.Recovery())
	router.MaxMultipartMemory = 8 << 20

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	authHandler := handler.NewAuthHandler(app.Auth)
	sourcesHandler := handler.NewSourcesHandler(app.Ingest, int64(app.Config.Storage.MaxUploadMB)<<20)
	jobsHandler := handler.NewJobsHandler(app.Ingest)
	searchHandler := handler.NewSearchHandler(app.Search, app.Config.Search.TopK, app.Config.Search.Threshold)
	collectionsHandler := handler.NewCollectionsHandler(app.Collections)
	monitorHandler := handler.NewMonitorHandler(app.Monitor)
	requireOperator := middleware.RequireOperator(app.Config.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireOperator, authHandler.Me)

	v1.POST("/documents", sourcesHandler.CreateDocument)
	v1.POST("/documents/upload", sourcesHandler.UploadPDF)
	v1.GET("/documents", sourcesHandler.ListDocuments)
	v1.POST("/webpages", sourcesHandler.CrawlWebpage)
	v1.GET("/webpages", sourcesHandler.ListWebpages)
	v1.GET("/tags", sourcesHandler.ListTags)
	v1.POST("/collections", collectionsHandler.Create)
	v1.GET("/collections", collectionsHandler.List)
	v1.GET("/sources/:kind/:id/job", jobsHandler.BySource)

	v1.GET("/jobs", jobsHandler.List)
	v1.GET("/jobs/:id", jobsHandler.Get)

	v1.GET("/search", searchHandler.Search)
	v1.POST("/ask", searchHandler.Ask)
	v1.GET("/conversations/:id", searchHandler.Conversation)

	v1.GET("/metrics", monitorHandler.Metrics)
	v1.GET("/queue", monitorHandler.Queue)

	adminGroup := v1.Group("/admin")
	adminGroup.Use(requireOperator)
	adminGroup.POST("/jobs/:id/reprocess", jobsHandler.Reprocess)
	adminGroup.POST("/sources/:kind/:id/enqueue", sourcesHandler.Enqueue)
	adminGroup.DELETE("/sources/:kind/:id", sourcesHandler.DeleteSource)
	adminGroup.POST("/reembed", searchHandler.Reembed)

	return router
}
