package router

import (
	"shop-service/internal/handler"
	mid "shop-service/internal/middleware"
	"shop-service/internal/service"
	"shop-service/pkg/config"
	"shop-service/pkg/jwtutil"
	"shop-service/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps holds what the HTTP layer needs. Redis may be nil.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Redis  *redis.Client
	Log    *zap.Logger
}

// New builds the echo instance with all routes registered
func New(deps Deps) *echo.Echo {
	cfg := deps.Config
	log := deps.Log
	if log == nil {
		log = logger.GetLogger()
	}

	jwt := jwtutil.NewJWTUtil(&cfg.JWT)
	authService := service.NewAuthService(deps.DB, jwt, log.Named("auth"))
	catalogService := service.NewCatalogService(deps.DB, log.Named("catalog"), cfg.Catalog.PageSize)
	orderService := service.NewOrderService(deps.DB, log.Named("orders"))

	authHandler := handler.NewAuthHandler(authService)
	productHandler := handler.NewProductHandler(catalogService)
	orderHandler := handler.NewOrderHandler(orderService)
	healthHandler := handler.NewHealthHandler(deps.DB)

	e := echo.New()
	e.HideBanner = true

	// Routes are registered without trailing slashes
	e.Pre(middleware.RemoveTrailingSlash())

	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(mid.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(mid.MetricsMiddleware)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/health", healthHandler.HealthCheck)

	api := e.Group("/api")

	loginLimiter := mid.RateLimiter(deps.Redis, "login", cfg.RateLimit.LoginLimit, cfg.RateLimit.LoginPeriod)
	api.POST("/login", authHandler.Login, loginLimiter)
	api.POST("/token/refresh", authHandler.RefreshToken, loginLimiter)

	principal := mid.PrincipalMiddleware(authService)

	// Product API routes - anyone may read, only superusers may write
	productAPI := api.Group("/products", principal, mid.SuperuserOrReadOnly)
	productAPI.GET("", productHandler.ListProducts)
	productAPI.GET("/:id", productHandler.GetProduct)
	productAPI.POST("", productHandler.CreateProduct)
	productAPI.PUT("/:id", productHandler.UpdateProduct)
	productAPI.PATCH("/:id", productHandler.UpdateProduct)
	productAPI.DELETE("/:id", productHandler.DeleteProduct)

	// Order API routes carry no access gate
	orderAPI := api.Group("/orders")
	orderAPI.GET("", orderHandler.ListOrders)
	orderAPI.GET("/:id", orderHandler.GetOrder)
	orderAPI.POST("", orderHandler.CreateOrder)
	orderAPI.PUT("/:id", orderHandler.UpdateOrder)
	orderAPI.PATCH("/:id", orderHandler.UpdateOrder)
	orderAPI.DELETE("/:id", orderHandler.DeleteOrder)

	return e
}
