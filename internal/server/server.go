package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/kadkita/kadkita/internal/affiliate"
	affiliatedomain "github.com/kadkita/kadkita/internal/affiliate/domain"
	"github.com/kadkita/kadkita/internal/billplz"
	"github.com/kadkita/kadkita/internal/config"
	"github.com/kadkita/kadkita/internal/coupon"
	coupondomain "github.com/kadkita/kadkita/internal/coupon/domain"
	"github.com/kadkita/kadkita/internal/invitation"
	invitationdomain "github.com/kadkita/kadkita/internal/invitation/domain"
	"github.com/kadkita/kadkita/internal/observability"
	obsmiddleware "github.com/kadkita/kadkita/internal/observability/logger"
	obsmetrics "github.com/kadkita/kadkita/internal/observability/metrics"
	obstracing "github.com/kadkita/kadkita/internal/observability/tracing"
	"github.com/kadkita/kadkita/internal/order"
	orderdomain "github.com/kadkita/kadkita/internal/order/domain"
	"github.com/kadkita/kadkita/internal/plan"
	plandomain "github.com/kadkita/kadkita/internal/plan/domain"
	"github.com/kadkita/kadkita/internal/pricing"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	plan.Module,
	coupon.Module,
	affiliate.Module,
	pricing.Module,
	billplz.Module,
	invitation.Module,
	order.Module,
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
	r.Use(obstracing.GinMiddleware(obsCfg.ServiceName))
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
	catalog       plandomain.Catalog
	couponSvc     coupondomain.Service
	affiliateSvc  affiliatedomain.Service
	affiliateRepo affiliatedomain.Repository
	invitationSvc invitationdomain.Service
	orderSvc      orderdomain.Service
	webhookLimit  *rateLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	GenID         *snowflake.Node
	Catalog       plandomain.Catalog
	CouponSvc     coupondomain.Service
	AffiliateSvc  affiliatedomain.Service
	AffiliateRepo affiliatedomain.Repository
	InvitationSvc invitationdomain.Service
	OrderSvc      orderdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		genID:         p.GenID,
		catalog:       p.Catalog,
		couponSvc:     p.CouponSvc,
		affiliateSvc:  p.AffiliateSvc,
		affiliateRepo: p.AffiliateRepo,
		invitationSvc: p.InvitationSvc,
		orderSvc:      p.OrderSvc,
		webhookLimit:  newRateLimiter(120, time.Minute),
	}

	svc.registerAPIRoutes()
	svc.registerAdminRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/plans", s.ListPlans)

	api.POST("/checkout", s.AuthRequired(), s.CreateCheckout)
	api.GET("/orders/:id", s.AuthRequired(), s.GetOrder)

	api.POST("/coupons/validate", s.AuthRequired(), s.ValidateCoupon)

	api.POST("/invitations", s.AuthRequired(), s.CreateInvitation)
	api.GET("/invitations/:id", s.AuthRequired(), s.GetInvitation)

	affiliates := api.Group("/affiliates", s.AuthRequired())
	{
		affiliates.POST("/apply", s.ApplyAffiliate)
		affiliates.GET("/me", s.GetAffiliateProfile)
		affiliates.GET("/me/earnings", s.ListAffiliateEarnings)
	}
}

func (s *Server) registerAdminRoutes() {
	admin := s.engine.Group("/admin", s.AdminRequired())

	admin.POST("/coupons", s.CreateCoupon)
	admin.POST("/affiliates/:id/approve", s.ApproveAffiliate)
	admin.POST("/affiliates/:id/reject", s.RejectAffiliate)
}

func (s *Server) registerPublicRoutes() {
	// Provider-initiated; authenticated by payload signature, not session.
	s.engine.POST("/api/payments/webhooks/billplz", s.WebhookRateLimit(), s.HandleBillplzWebhook)
}
