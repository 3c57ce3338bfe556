package router

import (
	"github.com/agntsupport/hospitalsystem-sub004/internal/authz"
	"github.com/agntsupport/hospitalsystem-sub004/internal/config"
	"github.com/agntsupport/hospitalsystem-sub004/internal/handler"
	"github.com/agntsupport/hospitalsystem-sub004/internal/infra"
	"github.com/agntsupport/hospitalsystem-sub004/internal/middleware"
	"github.com/agntsupport/hospitalsystem-sub004/internal/repository"
	"github.com/agntsupport/hospitalsystem-sub004/internal/service"
	"github.com/agntsupport/hospitalsystem-sub004/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps are the shared infrastructure pieces also used by the worker pool.
// Nil fields get a default.
type Deps struct {
	Metrics      *infra.Metrics
	Mailer       *infra.Mailer
	Jobs         service.JobQueue
	Limiter      *middleware.IPRateLimiter
	LoginLimiter *middleware.IPRateLimiter
}

// New wires all dependencies and returns a configured Gin engine.
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Metrics == nil {
		deps.Metrics = infra.NewMetrics()
	}
	if deps.Mailer == nil {
		deps.Mailer = infra.NewMailer(cfg, infra.NewBreaker(infra.SMTPBreakerConfig(deps.Metrics)))
	}
	if deps.Jobs == nil {
		deps.Jobs = worker.NewDispatcher(rdb)
	}
	if deps.Limiter == nil {
		deps.Limiter = middleware.NewIPRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitPerMinute/10)
	}
	if deps.LoginLimiter == nil {
		deps.LoginLimiter = middleware.NewIPRateLimiter(10, 5)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(cfg.AllowedOrigins()))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.HTTPMetrics(deps.Metrics.HTTPRequests, deps.Metrics.HTTPLatency))
	r.Use(middleware.RateLimit(deps.Limiter, "Demasiadas solicitudes, intente más tarde"))

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	productoRepo := repository.NewProductoRepository(db)
	movimientoStockRepo := repository.NewMovimientoStockRepository(db)
	cajaRepo := repository.NewCajaRepository(db)
	cuentaRepo := repository.NewCuentaRepository(db)
	cpcRepo := repository.NewCPCRepository(db)
	devolucionRepo := repository.NewDevolucionRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)
	productoSvc := service.NewProductoService(productoRepo, movimientoStockRepo, rdb)
	inventarioSvc := service.NewInventarioService(productoRepo, movimientoStockRepo)
	cajaSvc := service.NewCajaService(cajaRepo, nil)
	cuentaSvc := service.NewCuentaService(cuentaRepo, productoRepo, inventarioSvc, cajaSvc, rdb, cfg.OcupacionCacheTTL(), nil)
	cierreSvc := service.NewCierreService(cuentaRepo, cpcRepo, deps.Jobs, deps.Metrics, nil)
	cpcSvc := service.NewCPCService(cpcRepo, cajaSvc, deps.Metrics, nil)
	devolucionSvc := service.NewDevolucionService(devolucionRepo, cuentaRepo, cajaSvc, inventarioSvc, deps.Jobs, deps.Metrics, cfg.CashierWindow(), nil)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	usuariosH := handler.NewUsuariosHandler(authSvc)
	productosH := handler.NewProductosHandler(productoSvc)
	cajaH := handler.NewCajaHandler(cajaSvc)
	cuentasH := handler.NewCuentasHandler(cuentaSvc, cierreSvc)
	cpcH := handler.NewCPCHandler(cpcSvc)
	devolucionesH := handler.NewDevolucionesHandler(devolucionSvc)
	jobsH := handler.NewJobsHandler(worker.NewDeadLetters(rdb))

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, deps.Mailer))
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics.Registry, promhttp.HandlerOpts{})))

	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.RateLimit(deps.LoginLimiter, "Demasiados intentos de inicio de sesión"), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Protected routes. Services repeat the capability check against the actor.
	can := middleware.RequireCapability
	v1 := r.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	{
		cuentas := v1.Group("/cuentas")
		{
			cuentas.POST("", can(authz.CapOpenAccount), cuentasH.Abrir)
			cuentas.GET("/:id", can(authz.CapViewDashboard), cuentasH.Obtener)
			cuentas.GET("/:id/saldo", can(authz.CapViewDashboard), cuentasH.Saldo)
			cuentas.POST("/:id/cargos", can(authz.CapAddCharge), cuentasH.AgregarCargo)
			cuentas.POST("/:id/pagos", can(authz.CapRegisterPayment), cuentasH.RegistrarPago)
			cuentas.POST("/:id/cerrar", can(authz.CapCloseAccount), cuentasH.Cerrar)
		}

		cpc := v1.Group("/cpc")
		{
			cpc.GET("", can(authz.CapRegisterCPCPayment), cpcH.Listar)
			cpc.GET("/estadisticas", can(authz.CapViewCPCStatistics), cpcH.Estadisticas)
			cpc.GET("/:id", can(authz.CapRegisterCPCPayment), cpcH.Obtener)
			cpc.POST("/:id/pagos", can(authz.CapRegisterCPCPayment), cpcH.RegistrarPago)
		}

		dev := v1.Group("/devoluciones")
		{
			dev.POST("", can(authz.CapRequestDevolucion), devolucionesH.Crear)
			dev.GET("", can(authz.CapRequestDevolucion), devolucionesH.Listar)
			dev.GET("/motivos", can(authz.CapRequestDevolucion), devolucionesH.Motivos)
			dev.GET("/:id", can(authz.CapRequestDevolucion), devolucionesH.Obtener)
			dev.POST("/:id/autorizar", can(authz.CapAuthorizeDevolucion), devolucionesH.Autorizar)
			dev.POST("/:id/rechazar", can(authz.CapRejectDevolucion), devolucionesH.Rechazar)
			dev.POST("/:id/cancelar", can(authz.CapRequestDevolucion), devolucionesH.Cancelar)
			dev.POST("/:id/procesar", can(authz.CapProcessDevolucion), devolucionesH.Procesar)
		}

		caja := v1.Group("/caja", can(authz.CapOperateCaja))
		{
			caja.POST("/abrir", cajaH.Abrir)
			caja.POST("/arqueo", cajaH.Arqueo)
			caja.GET("/:id/reporte", cajaH.ObtenerReporte)
			caja.POST("/movimiento", cajaH.RegistrarMovimiento)
			caja.GET("/activa", cajaH.GetActiva)
		}

		prods := v1.Group("/productos")
		{
			prods.POST("", can(authz.CapManageCatalog), productosH.Crear)
			prods.GET("/movimientos", can(authz.CapViewDashboard), productosH.Movimientos)
			prods.GET("/codigo/:codigo", can(authz.CapAddCharge), productosH.PorCodigo)
			prods.GET("/:id", can(authz.CapAddCharge), productosH.Obtener)
		}

		v1.GET("/dashboard/ocupacion", can(authz.CapViewDashboard), cuentasH.Ocupacion)
		v1.POST("/usuarios", can(authz.CapManageUsers), usuariosH.Crear)

		jobs := v1.Group("/jobs", can(authz.CapManageJobs))
		{
			jobs.GET("/dlq", jobsH.DeadLetters)
			jobs.POST("/dlq/:queue/reintentar", jobsH.Reintentar)
		}
	}

	// Swagger UI outside production only
	if !cfg.IsProduction() {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
