package handler

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"time"

	"agency/internal/app/config"
	"agency/internal/app/ds"
	"agency/internal/app/dto"
	"agency/internal/app/redis"
	"agency/internal/app/repository"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/sirupsen/logrus"
)

type AuthHandler struct {
	Repository  *repository.Repository
	RedisClient *redis.Client
	Config      *config.Config
}

func NewAuthHandler(r *repository.Repository, redisClient *redis.Client, config *config.Config) *AuthHandler {
	return &AuthHandler{
		Repository:  r,
		RedisClient: redisClient,
		Config:      config,
	}
}

// generateHashString генерирует SHA-1 хеш из строки
func generateHashString(s string) string {
	h := sha1.New()
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))
}

// LoginUser аутентификация сотрудника
// @Summary Вход в систему
// @Description Аутентификация сотрудника с возвратом JWT токена
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.LoginRequest true "Данные для входа"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (h *AuthHandler) LoginUser(ctx *gin.Context) {
	var request dto.LoginRequest
	if err := ctx.ShouldBindJSON(&request); err != nil {
		h.errorHandler(ctx, http.StatusBadRequest, err)
		return
	}

	// Хешируем входной пароль
	hashedPassword := generateHashString(request.Password)

	// Проверяем пользователя в базе данных
	user, err := h.Repository.GetUserByEmail(request.Email)
	if err != nil || user.Password != hashedPassword || !user.IsActive {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("неверный email или пароль"))
		return
	}

	// Создание JWT токена
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, ds.JWTClaims{
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: now.Add(h.Config.JWT.ExpiresIn).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    "agency-backend",
		},
		UserID: user.ID,
		Role:   user.Role,
	})

	// Подписываем токен
	accessToken, err := token.SignedString([]byte(h.Config.JWT.Token))
	if err != nil {
		h.errorHandler(ctx, http.StatusInternalServerError, err)
		return
	}

	if err := h.Repository.AppendAudit(user.ID, ds.ActionLogin, map[string]interface{}{
		"email": user.Email,
	}); err != nil {
		logrus.Warn("login audit write failed: ", err)
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"message":    "пользователь успешно авторизован",
		"user_id":    user.ID,
		"role":       string(user.Role),
		"token":      accessToken,
		"expires_in": int(h.Config.JWT.ExpiresIn.Seconds()),
		"token_type": "Bearer",
	})
}

// LogoutUser выход сотрудника из системы
// @Summary Выход из системы
// @Description Завершение сеанса с добавлением токена в blacklist
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 500 {object} map[string]interface{}
// @Router /api/auth/logout [post]
func (h *AuthHandler) LogoutUser(ctx *gin.Context) {
	// Получение токена из заголовка
	tokenString := ctx.GetHeader("Authorization")
	if tokenString == "" {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("authorization header missing"))
		return
	}

	// Удаление префикса "Bearer "
	if len(tokenString) > 7 && tokenString[:7] == "Bearer " {
		tokenString = tokenString[7:]
	}

	// Парсинг токена для получения TTL
	token, err := jwt.ParseWithClaims(tokenString, &ds.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(h.Config.JWT.Token), nil
	})

	if err != nil {
		h.errorHandler(ctx, http.StatusUnauthorized, err)
		return
	}

	claims, ok := token.Claims.(*ds.JWTClaims)
	if !ok {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("invalid token claims"))
		return
	}

	if err := h.Repository.AppendAudit(claims.UserID, ds.ActionLogout, nil); err != nil {
		logrus.Warn("logout audit write failed: ", err)
	}

	// Вычисление TTL до истечения токена
	ttl := time.Until(time.Unix(claims.ExpiresAt, 0))
	if ttl <= 0 {
		// Токен уже истек
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "success",
			"message": "пользователь успешно вышел из системы",
		})
		return
	}

	// Добавление токена в blacklist
	if h.RedisClient != nil {
		err = h.RedisClient.WriteJWTToBlacklist(ctx.Request.Context(), tokenString, ttl)
		if err != nil {
			h.errorHandler(ctx, http.StatusInternalServerError, err)
			return
		}
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "пользователь успешно вышел из системы",
	})
}

// GetUserProfile получение профиля сотрудника
// @Summary Получение профиля
// @Description Возвращает информацию о текущем сотруднике
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /api/auth/profile [get]
func (h *AuthHandler) GetUserProfile(ctx *gin.Context) {
	// Получаем ID пользователя из контекста (установлен middleware)
	userID, exists := ctx.Get("userID")
	if !exists {
		h.errorHandler(ctx, http.StatusUnauthorized, errors.New("пользователь не авторизован"))
		return
	}

	user, err := h.Repository.GetUserByID(userID.(uint))
	if err != nil {
		h.errorHandler(ctx, http.StatusNotFound, errors.New("пользователь не найден"))
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"status": "success",
		"user": dto.UserResponse{
			ID:    user.ID,
			Email: user.Email,
			Name:  user.Name,
			Role:  string(user.Role),
		},
	})
}

// errorHandler централизованная обработка ошибок
func (h *AuthHandler) errorHandler(ctx *gin.Context, errorStatusCode int, err error) {
	logrus.Error(err.Error())
	ctx.JSON(errorStatusCode, gin.H{
		"status":      "error",
		"description": err.Error(),
	})
}
