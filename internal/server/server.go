package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	authdomain "github.com/smallbiznis/tenantry/internal/auth/domain"
	"github.com/smallbiznis/tenantry/internal/auth/session"
	"github.com/smallbiznis/tenantry/internal/authorization"
	billingdomain "github.com/smallbiznis/tenantry/internal/billing/domain"
	"github.com/smallbiznis/tenantry/internal/config"
	dashboarddomain "github.com/smallbiznis/tenantry/internal/dashboard/domain"
	invitationdomain "github.com/smallbiznis/tenantry/internal/invitation/domain"
	memberdomain "github.com/smallbiznis/tenantry/internal/member/domain"
	"github.com/smallbiznis/tenantry/internal/observability"
	obslogger "github.com/smallbiznis/tenantry/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tenantry/internal/observability/metrics"
	obstracing "github.com/smallbiznis/tenantry/internal/observability/tracing"
	"github.com/smallbiznis/tenantry/internal/ratelimit"
	workspacedomain "github.com/smallbiznis/tenantry/internal/workspace/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
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
	authsvc       authdomain.Service
	sessions      *session.Manager
	genID         *snowflake.Node
	authzSvc      authorization.Service
	workspaceSvc  workspacedomain.Service
	memberSvc     memberdomain.Service
	invitationSvc invitationdomain.Service
	billingSvc    billingdomain.Service
	dashboardSvc  dashboarddomain.Service
	limiter       *ratelimit.LoginLimiter
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Authsvc       authdomain.Service
	Sessions      *session.Manager
	GenID         *snowflake.Node
	AuthzSvc      authorization.Service
	WorkspaceSvc  workspacedomain.Service
	MemberSvc     memberdomain.Service
	InvitationSvc invitationdomain.Service
	BillingSvc    billingdomain.Service
	DashboardSvc  dashboarddomain.Service
	Limiter       *ratelimit.LoginLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		authsvc:       p.Authsvc,
		sessions:      p.Sessions,
		genID:         p.GenID,
		authzSvc:      p.AuthzSvc,
		workspaceSvc:  p.WorkspaceSvc,
		memberSvc:     p.MemberSvc,
		invitationSvc: p.InvitationSvc,
		billingSvc:    p.BillingSvc,
		dashboardSvc:  p.DashboardSvc,
		limiter:       p.Limiter,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()
	svc.registerPublicRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/auth")

	auth.POST("/request-code", s.RequestCode)
	auth.POST("/verify-code", s.VerifyCode)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Workspaces --------
	api.GET("/workspaces", s.ListWorkspaces)
	api.POST("/workspaces", s.CreateWorkspace)
	api.GET("/workspaces/check-slug", s.CheckSlug)
	api.PATCH("/workspaces/:id", s.authorizeOrgAction(authorization.ObjectWorkspace, authorization.ActionUpdate), s.UpdateWorkspace)
	api.DELETE("/workspaces/:id", s.authorizeOrgAction(authorization.ObjectWorkspace, authorization.ActionDelete), s.DeleteWorkspace)
	api.POST("/workspaces/:id/switch", s.SwitchWorkspace)

	// -------- Members --------
	api.GET("/workspaces/:id/members", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionView), s.ListMembers)
	api.PATCH("/workspaces/:id/members/:memberId", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionManage), s.UpdateMemberRole)
	api.DELETE("/workspaces/:id/members/:memberId", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionManage), s.RemoveMember)
	api.POST("/workspaces/:id/leave", s.LeaveWorkspace)

	// -------- Invitations --------
	api.GET("/workspaces/:id/invitations", s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionView), s.ListInvitations)
	api.POST("/workspaces/:id/invitations", s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionManage), s.CreateInvitation)
	api.POST("/workspaces/:id/invitations/:invitationId/resend", s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionManage), s.ResendInvitation)
	api.DELETE("/workspaces/:id/invitations/:invitationId", s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionManage), s.CancelInvitation)

	api.POST("/accept-invitation/:invitationId", s.AcceptInvitation)

	// -------- Billing --------
	api.GET("/billing/entitlements", s.GetEntitlements)

	// -------- Dashboard --------
	api.GET("/dashboard", s.GetDashboard)
}

func (s *Server) registerPublicRoutes() {
	s.engine.GET("/accept-invitation/:invitationId", s.GetInvitation)
	s.engine.POST("/billing/webhooks/:provider", s.HandleBillingWebhook)
}
