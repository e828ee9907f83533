package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/agent"
	agentdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/agent/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier"
	carrierdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/carrier/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/clock"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/commission"
	commissiondomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/commission/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/config"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/deal"
	dealdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/deal/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/downline"
	downlinedomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/downline/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/observability"
	obsmiddleware "github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/logger"
	obsmetrics "github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/metrics"
	obstracing "github.com/landonhauser7-sys/Everguardio-sub000/internal/observability/tracing"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/payout"
	payoutdomain "github.com/landonhauser7-sys/Everguardio-sub000/internal/payout/domain"
	"github.com/landonhauser7-sys/Everguardio-sub000/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	agent.Module,
	carrier.Module,
	commission.Module,
	deal.Module,
	downline.Module,
	payout.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	genID         *snowflake.Node
	clock         clock.Clock
	plan          *config.PlanHolder
	agentSvc      agentdomain.Service
	carrierSvc    carrierdomain.Service
	commissionSvc commissiondomain.Service
	dealSvc       dealdomain.Service
	downlineSvc   downlinedomain.Service
	payoutSvc     payoutdomain.Service
	obsMetrics    *obsmetrics.Metrics
	dealLimiter   *ratelimit.DealIngestLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	Clock         clock.Clock
	Plan          *config.PlanHolder
	AgentSvc      agentdomain.Service
	CarrierSvc    carrierdomain.Service
	CommissionSvc commissiondomain.Service
	DealSvc       dealdomain.Service
	DownlineSvc   downlinedomain.Service
	PayoutSvc     payoutdomain.Service
	ObsMetrics    *obsmetrics.Metrics          `optional:"true"`
	DealLimiter   *ratelimit.DealIngestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		clock:         p.Clock,
		plan:          p.Plan,
		agentSvc:      p.AgentSvc,
		carrierSvc:    p.CarrierSvc,
		commissionSvc: p.CommissionSvc,
		dealSvc:       p.DealSvc,
		downlineSvc:   p.DownlineSvc,
		payoutSvc:     p.PayoutSvc,
		obsMetrics:    p.ObsMetrics,
		dealLimiter:   p.DealLimiter,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) planDepth() int {
	return s.plan.Get().MaxUplineDepth
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	// -------- Agents --------
	api.GET("/agents", s.ListAgents)
	api.POST("/agents", s.CreateAgent)
	api.GET("/agents/:id", s.GetAgentByID)
	api.PATCH("/agents/:id/level", s.SetAgentLevel)
	api.PATCH("/agents/:id/upline", s.AssignAgentUpline)
	api.PATCH("/agents/:id/status", s.SetAgentStatus)
	api.GET("/agents/:id/upline-chain", s.GetUplineChain)

	// -------- Downline --------
	api.GET("/agents/:id/downline", s.GetDownline)
	api.GET("/agents/:id/downline/stats", s.GetDownlineStats)
	api.GET("/agents/:id/downline/search", s.SearchDownline)

	// -------- Payouts --------
	api.GET("/agents/:id/payouts", s.GetPersonalPayouts)
	api.GET("/agents/:id/payouts/team", s.GetTeamPayouts)
	api.GET("/agents/:id/rank", s.GetProductionRank)
	api.GET("/payouts/company", s.GetCompanyRollup)

	// -------- Carriers --------
	api.GET("/carriers", s.ListCarriers)
	api.POST("/carriers", s.CreateCarrier)
	api.GET("/carriers/:id", s.GetCarrierByID)
	api.PUT("/carriers/:id/rates", s.UpsertCarrierRate)
	api.GET("/agents/:id/rates", s.ListAgentRates)

	// -------- Deals --------
	api.POST("/deals", s.DealIngestRateLimit(), s.CreateDeal)
	api.GET("/deals/:id", s.GetDealByID)
	api.PATCH("/deals/:id", s.AmendDeal)
	api.DELETE("/deals/:id", s.DeleteDeal)
	api.GET("/deals/:id/splits", s.ListDealSplits)
	api.GET("/deals/:id/audits", s.ListDealAudits)
	api.GET("/deals/:id/verify", s.VerifyDeal)
	api.POST("/deals/preview", s.PreviewSplits)
	api.POST("/deals/sweep", s.SweepDeals)
}
