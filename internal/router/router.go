package router

import (
	"net/http"

	"github.com/blues/launchpad/internal/handler"
	"github.com/blues/launchpad/internal/logic"
	"github.com/blues/launchpad/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusFunc 组件健康状态
type StatusFunc func() map[string]interface{}

func Setup(engine *logic.Engine, reporters map[string]StatusFunc) *gin.Engine {
	r := gin.New()

	// 中间件
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(metrics.PrometheusMiddleware())

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		components := gin.H{}
		for name, reporter := range reporters {
			components[name] = reporter()
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"service":    "launchpad-service",
			"block":      engine.Now(),
			"components": components,
		})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API版本组
	v1 := r.Group("/api/v1")
	{
		projectHandler := handler.NewProjectHandler(engine)
		participationHandler := handler.NewParticipationHandler(engine)
		settlementHandler := handler.NewSettlementHandler(engine)
		migrationHandler := handler.NewMigrationHandler(engine)

		// 项目相关路由
		projects := v1.Group("/projects")
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.GetProjects)
			projects.GET("/:id", projectHandler.GetProject)
			projects.PUT("/:id", projectHandler.EditProject)
			projects.DELETE("/:id", projectHandler.RemoveProject)
			projects.GET("/:id/pending-update", projectHandler.GetPendingUpdate)
			projects.POST("/:id/evaluation", projectHandler.StartEvaluation)
			projects.POST("/:id/english-auction", projectHandler.StartEnglishAuction)
			projects.POST("/:id/decision", projectHandler.DecideProjectOutcome)
			projects.POST("/:id/settlement", projectHandler.StartSettlement)
		}

		// 参与相关路由
		{
			projects.POST("/:id/evaluations", participationHandler.Evaluate)
			projects.GET("/:id/evaluations", participationHandler.GetEvaluations)
			projects.POST("/:id/bids", participationHandler.Bid)
			projects.GET("/:id/bids", participationHandler.GetBids)
			projects.POST("/:id/contributions", participationHandler.Contribute)
			projects.GET("/:id/contributions", participationHandler.GetContributions)
		}

		// 结算相关路由
		{
			projects.POST("/:id/evaluations/:rid/reward-or-slash", settlementHandler.EvaluationRewardOrSlash())
			projects.POST("/:id/evaluations/:rid/unbond", settlementHandler.EvaluationUnbond())
			projects.POST("/:id/bids/:rid/mint", settlementHandler.MintCtForBid())
			projects.POST("/:id/bids/:rid/payout", settlementHandler.PayoutBidFunds())
			projects.POST("/:id/bids/:rid/release", settlementHandler.ReleaseBidFunds())
			projects.POST("/:id/bids/:rid/unbond", settlementHandler.BidUnbond())
			projects.POST("/:id/contributions/:rid/mint", settlementHandler.MintCtForContribution())
			projects.POST("/:id/contributions/:rid/payout", settlementHandler.PayoutContributionFunds())
			projects.POST("/:id/contributions/:rid/release", settlementHandler.ReleaseContributionFunds())
			projects.POST("/:id/contributions/:rid/unbond", settlementHandler.ContributionUnbond())
		}

		// 迁移相关路由
		{
			projects.PUT("/:id/destination", migrationHandler.SetDestination)
			projects.POST("/:id/channels", migrationHandler.OpenChannel)
			projects.POST("/:id/readiness-check", migrationHandler.StartReadinessCheck)
			projects.POST("/:id/migration", migrationHandler.StartMigration)
			projects.POST("/:id/migrations/:account", migrationHandler.MigrateParticipant)
		}
		v1.POST("/xcm/responses", migrationHandler.HandleResponse)

		v1.GET("/balances/:asset/:account", projectHandler.GetBalance)
	}

	return r
}

// CORS中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-Account, X-Did, X-Investor-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
