package router

import (
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"

	"modelnormalizer/docs"
	"modelnormalizer/internal/auth"
	"modelnormalizer/internal/config"
	"modelnormalizer/internal/errors"
	"modelnormalizer/internal/handler"
	"modelnormalizer/internal/serializer"
	"modelnormalizer/internal/service"
)

// claimsKey is where the JWT middleware stores the validated *auth.Claims.
const claimsKey = "user"

// Handlers groups the HTTP handlers wired by Register.
type Handlers struct {
	Auth   *handler.AuthHandler
	Record *handler.RecordHandler
	Seed   *handler.SeedHandler
}

// Register wires routes and middleware.
func Register(
	e *echo.Echo,
	cfg *config.Config,
	logger *zap.Logger,
	gatherer prometheus.Gatherer,
	jwtService *auth.JWTService,
	authService service.AuthService,
	h Handlers,
) {
	e.JSONSerializer = JSONSerializer{}
	e.Use(requestLogger(logger))
	e.Use(middleware.Recover())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = strings.TrimPrefix(strings.TrimPrefix(cfg.SwaggerHost, "https://"), "http://")
	}

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/token", h.Auth.Token)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout)
	api.GET("/records/:resource", h.Record.ListRecords)
	api.GET("/records/:resource/:id", h.Record.GetRecord)

	// Secured routes (require a valid, unrevoked access token)
	secured := api.Group("",
		echojwt.WithConfig(echojwt.Config{
			TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
			ContextKey:  claimsKey,
			ParseTokenFunc: func(_ echo.Context, token string) (interface{}, error) {
				return jwtService.ValidateToken(token)
			},
			ErrorHandler: func(_ echo.Context, err error) error {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: errors.ErrInvalidToken.Error(),
					Code:  "INVALID_TOKEN",
				}).SetInternal(err)
			},
		}),
		RequireUnrevoked(authService),
	)

	secured.POST("/auth/revoke", h.Auth.Revoke)
	secured.POST("/records/:resource", h.Record.CreateRecord)
	secured.POST("/seed/:resource", h.Seed.SeedRecords)
}

// RequireUnrevoked rejects access tokens that were revoked before expiring.
func RequireUnrevoked(authService service.AuthService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, ok := c.Get(claimsKey).(*auth.Claims)
			if !ok || claims.ID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: errors.ErrInvalidToken.Error(),
					Code:  "INVALID_TOKEN",
				})
			}
			revoked, err := authService.IsRevoked(c.Request().Context(), claims.ID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, errors.ErrorResponse{
					Error: "internal server error",
					Code:  "INTERNAL_ERROR",
				}).SetInternal(err)
			}
			if revoked {
				return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
					Error: errors.ErrInvalidToken.Error(),
					Code:  "INVALID_TOKEN",
				})
			}
			return next(c)
		}
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				logger.Error("request", fields...)
			case strings.HasPrefix(v.URI, "/healthz"), strings.HasPrefix(v.URI, "/metrics"):
				logger.Debug("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// JSONSerializer implements echo.JSONSerializer with jsoniter. Ordered
// representations keep their key order on the way out.
type JSONSerializer struct{}

// Serialize implements echo.JSONSerializer.
func (JSONSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := serializer.JSON.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

// Deserialize implements echo.JSONSerializer.
func (JSONSerializer) Deserialize(c echo.Context, i interface{}) error {
	err := serializer.JSON.NewDecoder(c.Request().Body).Decode(i)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body").SetInternal(err)
	}
	return nil
}
