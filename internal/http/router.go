package api

import (
	stdhttp "net/http"

	"busbook/internal/config"
	"busbook/internal/domain"
	h "busbook/internal/http/handlers"
	"busbook/internal/http/middleware"
	"busbook/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(env config.Env, hd *h.Handler) *gin.Engine {
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Logger(),
		gin.Recovery(),
		middleware.CORS(env.AllowedOrigins()),
		middleware.RateLimit(env.RateLimit),
		middleware.Auth(hd.Auth.Secret),
	)

	if err := r.SetTrustedProxies(nil); err != nil {
		utils.Logger().Warn("failed to set trusted proxies", zap.Error(err))
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(stdhttp.StatusNotFound, gin.H{
			"error":  "route not found",
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	staff := middleware.RequireRoles(domain.RoleAdmin, domain.RoleStaff, domain.RoleScanner)
	admin := middleware.RequireRoles(domain.RoleAdmin)

	api := r.Group("/api")
	{
		api.GET("/health", hd.Health)

		api.POST("/auth/login", hd.Login)

		api.GET("/trips/:id/seats", hd.GetTripSeats)

		bookings := api.Group("/bookings")
		bookings.POST("", hd.CreateBooking)
		bookings.GET("/:ref", hd.GetBooking)
		bookings.POST("/:ref/payments", hd.InitializePayment)
		bookings.POST("/:ref/verify", hd.VerifyPayment)
		bookings.POST("/:ref/cancel", hd.CancelBooking)
		bookings.POST("/:ref/receipts", hd.UploadReceipt)
		bookings.GET("/:ref/ticket", hd.GetTicket)
		bookings.GET("/:ref/ticket.pdf", hd.GetTicketPDF)
		bookings.GET("/:ref/invoice.pdf", hd.GetInvoicePDF)

		api.POST("/webhooks/:provider", hd.Webhook)

		api.GET("/loyalty/:userId", hd.GetLoyaltyAccount)

		api.POST("/tickets/verify", staff, hd.VerifyTicket)

		validations := api.Group("/payment-validations", admin)
		validations.PUT("/:id/approve", hd.ApprovePaymentValidation)
		validations.PUT("/:id/reject", hd.RejectPaymentValidation)

		adm := api.Group("/admin", admin)
		adm.POST("/trips", hd.UpsertTrip)
		adm.POST("/bookings/:ref/cancel", hd.AdminCancelBooking)
		adm.POST("/bookings/:ref/complete", hd.AdminCompleteBooking)
		adm.POST("/bookings/:ref/review", hd.AdminResolveReview)
		adm.POST("/loyalty/:userId/bonus", hd.GrantLoyaltyBonus)
	}

	return r
}
