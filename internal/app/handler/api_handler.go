package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"agency/internal/app/ds"
	"agency/internal/app/dto"
	"agency/internal/app/notify"
	"agency/internal/app/repository"
	"agency/internal/app/role"
	"agency/internal/app/storage"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// APIHandler содержит обработчики для REST API
type APIHandler struct {
	Repository  *repository.Repository
	MinIOClient *storage.MinIOClient
	Notifier    notify.Notifier
	AuthHandler *AuthHandler
}

func NewAPIHandler(r *repository.Repository, minioClient *storage.MinIOClient, notifier notify.Notifier, authHandler *AuthHandler) *APIHandler {
	return &APIHandler{
		Repository:  r,
		MinIOClient: minioClient,
		Notifier:    notifier,
		AuthHandler: authHandler,
	}
}

// Получение текущего пользователя из контекста
func (h *APIHandler) getUserFromContext(c *gin.Context) (uint, role.Role, error) {
	userID, exists := c.Get("userID")
	if !exists {
		logrus.Warn("userID not found in context")
		return 0, "", fmt.Errorf("user not authenticated")
	}

	userRole, _ := c.Get("userRole")
	r, _ := userRole.(role.Role)

	id, ok := userID.(uint)
	if !ok {
		logrus.Errorf("getUserFromContext: invalid userID type: %T", userID)
		return 0, r, fmt.Errorf("invalid user ID")
	}

	return id, r, nil
}

// ============ Вспомогательные функции ============

func (h *APIHandler) errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, dto.ErrorResponse{
		Status:  "fail",
		Message: message,
	})
}

func (h *APIHandler) successResponse(c *gin.Context, statusCode int, message string, data interface{}) {
	response := dto.SuccessResponse{
		Status:  "success",
		Message: message,
	}
	if data != nil {
		response.Data = data
	}
	c.JSON(statusCode, response)
}

// repositoryError отображает типизированные ошибки репозитория на HTTP статусы
func (h *APIHandler) repositoryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		h.errorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, repository.ErrForbidden):
		h.errorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, repository.ErrValidation):
		h.errorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrIllegalTransition):
		h.errorResponse(c, http.StatusUnprocessableEntity, err.Error())
	default:
		logrus.Error("repository error: ", err)
		h.errorResponse(c, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}

func parseID(c *gin.Context, param string) (uint, bool) {
	idStr := c.Param(param)
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// ============ ДОМЕН ЗАЯВКИ ============

// GetRequests получает список заявок
// @Summary Получение списка заявок
// @Description Возвращает заявки с фильтрацией по роли смотрящего, статусу и пагинацией
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param status query string false "Фильтр по статусу"
// @Param page query int false "Номер страницы"
// @Param limit query int false "Размер страницы"
// @Success 200 {object} dto.RequestListResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/requests [get]
func (h *APIHandler) GetRequests(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	status := c.Query("status")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 10
	}

	requests, total, err := h.Repository.ListRequests(userID, userRole, status, page, limit)
	if err != nil {
		logrus.Error("Error getting requests: ", err)
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка получения заявок")
		return
	}

	dtoRequests := make([]dto.RequestResponse, len(requests))
	for i := range requests {
		dtoRequests[i] = dto.RequestToResponse(&requests[i], userRole)
	}

	pages := (total + int64(limit) - 1) / int64(limit)
	c.JSON(http.StatusOK, dto.RequestListResponse{
		Requests: dtoRequests,
		Pagination: dto.Pagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: pages,
		},
	})
}

// GetRequest получает одну заявку
// @Summary Получение заявки по ID
// @Description Возвращает заявку со сметой, историей и начислениями; финансовые поля скрыты для разработчиков
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Success 200 {object} dto.RequestResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/requests/{id} [get]
func (h *APIHandler) GetRequest(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID заявки")
		return
	}

	request, err := h.Repository.GetRequest(userID, userRole, id)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	response := dto.RequestToResponse(request, userRole)

	services, err := h.Repository.GetRequestServices(request.ID)
	if err == nil {
		response.Services = dto.ServicesToResponse(services, userRole)
	}

	history, err := h.Repository.GetStatusHistory(request.ID, 10)
	if err == nil {
		response.StatusHistory = dto.HistoryToResponse(history)
	}

	// Начисления видят только админ и бухгалтер
	if userRole == role.Admin || userRole == role.Accountant {
		ledger, err := h.Repository.GetLedgerForRequest(userRole, request.ID)
		if err == nil {
			response.PayoutLedger = dto.LedgerToResponse(ledger)
		}
	}

	c.JSON(http.StatusOK, response)
}

// CreateRequest создает новую заявку
// @Summary Создание заявки
// @Description Создает заявку с клиентом, сметой и начислением менеджеру (менеджер или админ)
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateRequestRequest true "Данные заявки"
// @Success 201 {object} dto.RequestResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/requests [post]
func (h *APIHandler) CreateRequest(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	var req dto.CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверные данные: "+err.Error())
		return
	}

	input := repository.CreateRequestInput{
		ClientName:        req.ClientName,
		ClientEmail:       req.ClientEmail,
		ClientPhone:       req.ClientPhone,
		BusinessCategory:  req.BusinessCategory,
		SupportAgreed:     req.SupportAgreed,
		SupportMonthlyFee: req.SupportMonthlyFee,
		Description:       req.Description,
	}
	for _, svc := range req.Services {
		input.Services = append(input.Services, repository.ServiceInput{
			Type:          svc.Type,
			Description:   svc.Description,
			PlannedAmount: svc.PlannedAmount,
		})
	}

	request, err := h.Repository.CreateRequest(userID, userRole, input)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.RequestToResponse(request, userRole))
}

// UpdateRequest обновляет заявку
// @Summary Обновление заявки
// @Description Смена статуса, назначение разработчика, корректировка итоговой суммы, заметки
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Param request body dto.UpdateRequestRequest true "Частичное обновление"
// @Success 200 {object} dto.RequestResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Router /api/requests/{id} [patch]
func (h *APIHandler) UpdateRequest(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID заявки")
		return
	}

	var req dto.UpdateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверные данные: "+err.Error())
		return
	}

	input := repository.UpdateRequestInput{
		Status:           req.Status,
		StatusReason:     req.StatusReason,
		FinalTotalAmount: req.FinalTotalAmount,
		Notes:            req.Notes,
	}
	if req.DeveloperID != nil {
		input.SetDeveloper = true
		input.DeveloperID = req.DeveloperID
	} else if req.UnsetDeveloper {
		input.SetDeveloper = true
	}

	request, err := h.Repository.UpdateRequest(userID, userRole, id, input)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	// Клиент узнает о смене статуса в Telegram; сбой доставки не ломает запрос
	if req.Status != nil && h.Notifier != nil && request.Client.TelegramID != "" {
		text := fmt.Sprintf("Статус вашей заявки %s изменен: %s",
			request.RequestNumber, ds.StatusLabel(request.Status))
		if err := h.Notifier.SendMessage(c.Request.Context(), request.Client.TelegramID, text); err != nil {
			logrus.Warn("status notification failed: ", err)
		}
	}

	c.JSON(http.StatusOK, dto.RequestToResponse(request, userRole))
}

// DeleteRequest удаляет заявку
// @Summary Удаление заявки
// @Description Удаляет заявку со всеми зависимыми строками (только админ)
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/requests/{id} [delete]
func (h *APIHandler) DeleteRequest(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID заявки")
		return
	}

	if err := h.Repository.DeleteRequest(userID, userRole, id); err != nil {
		h.repositoryError(c, err)
		return
	}

	h.successResponse(c, http.StatusOK, "Заявка успешно удалена", nil)
}

// ============ ДОМЕН НАЧИСЛЕНИЯ ============

// GetRequestLedger начисления по заявке
// @Summary Начисления по заявке
// @Description Возвращает записи начислений по заявке (админ и бухгалтер)
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Success 200 {array} dto.LedgerEntryResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/requests/{id}/ledger [get]
func (h *APIHandler) GetRequestLedger(c *gin.Context) {
	_, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID заявки")
		return
	}

	entries, err := h.Repository.GetLedgerForRequest(userRole, id)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.LedgerToResponse(entries))
}

// ConfirmPayout подтверждает начисление
// @Summary Подтверждение начисления
// @Description Переводит начисление в CONFIRMED и переносит сумму из ожидающего баланса в подтвержденный
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID начисления"
// @Success 200 {object} dto.SuccessResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/ledger/{id}/confirm [put]
func (h *APIHandler) ConfirmPayout(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID начисления")
		return
	}

	entry, err := h.Repository.ConfirmPayout(userID, userRole, id)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	h.successResponse(c, http.StatusOK, "Начисление подтверждено", gin.H{
		"entry_id": entry.ID,
		"status":   entry.Status,
	})
}

// GetBalance балансы текущего сотрудника
// @Summary Баланс сотрудника
// @Description Возвращает ожидающий, подтвержденный и суммарный заработанный балансы
// @Tags Ledger
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.BalanceResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/users/balance [get]
func (h *APIHandler) GetBalance(c *gin.Context) {
	userID, _, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	pending, confirmed, totalEarned, err := h.Repository.GetBalance(userID)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		PendingBalance:   pending,
		ConfirmedBalance: confirmed,
		TotalEarned:      totalEarned,
	})
}

// ============ ДОМЕН ПЛАТЕЖИ ============

// VerifyPayment отмечает платеж проверенным
// @Summary Проверка платежа
// @Description Бухгалтер подтверждает платеж по квитанции
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID платежа"
// @Success 200 {object} dto.PaymentResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/payments/{id}/verify [put]
func (h *APIHandler) VerifyPayment(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID платежа")
		return
	}

	payment, err := h.Repository.VerifyPayment(userID, userRole, id)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaymentResponse{
		ID:          payment.ID,
		RequestID:   payment.RequestID,
		Amount:      payment.Amount,
		PaymentType: payment.PaymentType,
		ProofURL:    payment.ProofURL,
		Verified:    payment.Verified,
		VerifiedAt:  payment.VerifiedAt,
		CreatedAt:   payment.CreatedAt,
	})
}

// GetRequestPayments платежи по заявке
// @Summary Платежи по заявке
// @Description Возвращает платежи заявки (админ и бухгалтер)
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID заявки"
// @Success 200 {array} dto.PaymentResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/requests/{id}/payments [get]
func (h *APIHandler) GetRequestPayments(c *gin.Context) {
	_, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	if userRole != role.Admin && userRole != role.Accountant {
		h.errorResponse(c, http.StatusForbidden, "недостаточно прав")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID заявки")
		return
	}

	payments, err := h.Repository.GetRequestPayments(id)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaymentsToResponse(payments))
}

// UploadPaymentProof загружает квитанцию к платежу
// @Summary Загрузка квитанции
// @Description Загружает файл квитанции в хранилище и привязывает его к платежу
// @Tags Payments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID платежа"
// @Param proof formData file true "Файл квитанции (jpg, png, webp, pdf)"
// @Success 200 {object} dto.PaymentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/payments/{id}/proof [post]
func (h *APIHandler) UploadPaymentProof(c *gin.Context) {
	_, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID платежа")
		return
	}

	file, err := c.FormFile("proof")
	if err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Файл не найден в запросе")
		return
	}

	openedFile, err := file.Open()
	if err != nil {
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка чтения файла")
		return
	}
	defer openedFile.Close()

	fileData, err := io.ReadAll(openedFile)
	if err != nil {
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка чтения файла")
		return
	}

	if h.MinIOClient == nil {
		h.errorResponse(c, http.StatusServiceUnavailable, "Хранилище файлов недоступно")
		return
	}

	proofURL, err := h.MinIOClient.UploadProof(fileData, file.Filename)
	if err != nil {
		logrus.Error("Error uploading proof to MinIO: ", err)
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка загрузки файла")
		return
	}

	payment, err := h.Repository.AttachPaymentProof(userRole, id, proofURL)
	if err != nil {
		// Платеж не нашелся - подчищаем загруженный файл
		_ = h.MinIOClient.DeleteProof(proofURL)
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaymentResponse{
		ID:          payment.ID,
		RequestID:   payment.RequestID,
		Amount:      payment.Amount,
		PaymentType: payment.PaymentType,
		ProofURL:    payment.ProofURL,
		Verified:    payment.Verified,
		VerifiedAt:  payment.VerifiedAt,
		CreatedAt:   payment.CreatedAt,
	})
}

// GetPaymentProofURL выдает временную ссылку на квитанцию
// @Summary Ссылка на квитанцию
// @Description Возвращает временную ссылку на файл квитанции (админ и бухгалтер)
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Param id path int true "ID платежа"
// @Success 200 {object} map[string]string
// @Failure 404 {object} dto.ErrorResponse
// @Router /api/payments/{id}/proof [get]
func (h *APIHandler) GetPaymentProofURL(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		h.errorResponse(c, http.StatusBadRequest, "Неверный ID платежа")
		return
	}

	payment, err := h.Repository.GetPayment(id)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	if payment.ProofURL == "" {
		h.errorResponse(c, http.StatusNotFound, "Квитанция не загружена")
		return
	}

	if h.MinIOClient == nil {
		h.errorResponse(c, http.StatusServiceUnavailable, "Хранилище файлов недоступно")
		return
	}

	proofURL, err := h.MinIOClient.GetProofURL(payment.ProofURL)
	if err != nil {
		logrus.Error("Error generating proof URL: ", err)
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка формирования ссылки")
		return
	}

	c.JSON(http.StatusOK, gin.H{"proof_url": proofURL})
}

// ============ ДОМЕН ПОЛЬЗОВАТЕЛИ ============

// CreateUser создает сотрудника
// @Summary Создание сотрудника
// @Description Создает сотрудника с ролью и процентом выплаты (только админ)
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateUserRequest true "Данные сотрудника"
// @Success 201 {object} dto.UserResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/users [post]
func (h *APIHandler) CreateUser(c *gin.Context) {
	userID, userRole, err := h.getUserFromContext(c)
	if err != nil {
		h.errorResponse(c, http.StatusUnauthorized, "Ошибка авторизации")
		return
	}

	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errorResponse(c, http.StatusBadRequest, "Неверные данные: "+err.Error())
		return
	}

	exists, _ := h.Repository.UserExistsByEmail(req.Email)
	if exists {
		h.errorResponse(c, http.StatusBadRequest, "пользователь с таким email уже существует")
		return
	}

	user, err := h.Repository.CreateUser(userID, userRole, req.Email,
		generateHashString(req.Password), req.Name, role.Role(req.Role), req.PayoutPercentage)
	if err != nil {
		h.repositoryError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.UserResponse{
		ID:    user.ID,
		Email: user.Email,
		Name:  user.Name,
		Role:  string(user.Role),
	})
}

// ============ ДОМЕН АУДИТ ============

// GetAuditLog журнал аудита
// @Summary Журнал аудита
// @Description Возвращает последние записи журнала привилегированных действий (только админ)
// @Tags Audit
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Количество записей (по умолчанию 50)"
// @Success 200 {array} dto.AuditLogResponse
// @Failure 403 {object} dto.ErrorResponse
// @Router /api/audit [get]
func (h *APIHandler) GetAuditLog(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	entries, err := h.Repository.GetAuditLog(limit)
	if err != nil {
		logrus.Error("Error getting audit log: ", err)
		h.errorResponse(c, http.StatusInternalServerError, "Ошибка получения журнала аудита")
		return
	}

	resp := make([]dto.AuditLogResponse, len(entries))
	for i, entry := range entries {
		resp[i] = dto.AuditLogResponse{
			ID:        entry.ID,
			UserID:    entry.UserID,
			Action:    entry.Action,
			Details:   entry.Details,
			CreatedAt: entry.CreatedAt,
		}
	}
	c.JSON(http.StatusOK, resp)
}
