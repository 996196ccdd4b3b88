package handler

import (
	"agency/internal/app/middleware"
	"agency/internal/app/role"

	"github.com/gin-gonic/gin"
)

// RegisterAPIRoutes регистрирует все REST API маршруты с авторизацией
func (h *APIHandler) RegisterAPIRoutes(router *gin.Engine, authMiddleware *middleware.AuthMiddleware) {
	// REST API маршруты
	api := router.Group("/api")

	staff := []role.Role{role.Admin, role.Manager, role.Accountant, role.Developer, role.SupportDeveloper}

	// ============ Аутентификация ============
	auth := api.Group("/auth")
	{
		// Публичный эндпоинт
		auth.POST("/login", h.AuthHandler.LoginUser) // POST аутентификация JWT

		// Защищенные эндпоинты
		auth.GET("/profile", authMiddleware.WithAuthCheck(staff...), h.AuthHandler.GetUserProfile)
		auth.POST("/logout", authMiddleware.WithAuthCheck(staff...), h.AuthHandler.LogoutUser)
	}

	// ============ Заявки (Requests) ============
	requests := api.Group("/requests")
	{
		// Список и карточка - область видимости режется в репозитории по роли
		requests.GET("", authMiddleware.WithAuthCheck(staff...), h.GetRequests)
		requests.GET("/:id", authMiddleware.WithAuthCheck(staff...), h.GetRequest)

		// Создание - менеджер или админ
		requests.POST("", authMiddleware.WithAuthCheck(role.Manager, role.Admin), h.CreateRequest)

		// Частичное обновление - матрица прав по полям внутри репозитория
		requests.PATCH("/:id", authMiddleware.WithAuthCheck(staff...), h.UpdateRequest)

		// Удаление - только админ
		requests.DELETE("/:id", authMiddleware.WithAuthCheck(role.Admin), h.DeleteRequest)

		// Финансовые срезы заявки
		requests.GET("/:id/ledger", authMiddleware.WithAuthCheck(role.Admin, role.Accountant), h.GetRequestLedger)
		requests.GET("/:id/payments", authMiddleware.WithAuthCheck(role.Admin, role.Accountant), h.GetRequestPayments)
	}

	// ============ Начисления (Ledger) ============
	ledger := api.Group("/ledger")
	{
		ledger.PUT("/:id/confirm", authMiddleware.WithAuthCheck(role.Admin, role.Accountant), h.ConfirmPayout)
	}

	// ============ Платежи (Payments) ============
	payments := api.Group("/payments")
	{
		payments.PUT("/:id/verify", authMiddleware.WithAuthCheck(role.Admin, role.Accountant), h.VerifyPayment)
		payments.POST("/:id/proof", authMiddleware.WithAuthCheck(role.Admin, role.Accountant, role.Manager), h.UploadPaymentProof)
		payments.GET("/:id/proof", authMiddleware.WithAuthCheck(role.Admin, role.Accountant), h.GetPaymentProofURL)
	}

	// ============ Аудит (Audit) ============
	api.GET("/audit", authMiddleware.WithAuthCheck(role.Admin), h.GetAuditLog)

	// ============ Сотрудники (Users) ============
	users := api.Group("/users")
	{
		users.POST("", authMiddleware.WithAuthCheck(role.Admin), h.CreateUser)
		users.GET("/balance", authMiddleware.WithAuthCheck(staff...), h.GetBalance)
	}

	// Ping эндпоинт для проверки
	router.GET("/ping", h.Ping)
}

// Ping проверяет работоспособность API
// @Summary Проверка работоспособности
// @Description Возвращает простой ответ для проверки работы сервера
// @Tags Health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /ping [get]
func (h *APIHandler) Ping(ctx *gin.Context) {
	ctx.JSON(200, gin.H{"message": "pong"})
}
