package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"propodocs/internal/httputil"
)

// UserIDKey задаёт ключ gin.Context, под которым лежит идентификатор пользователя из токена
const UserIDKey = "userID"

// Claims описывает утверждения токена доступа; sub содержит идентификатор пользователя
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email,omitempty"`
}

// JWTValidator проверяет HS256-токены, выпущенные сервисом авторизации
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

// Validate разбирает токен и проверяет подпись и срок действия
func (v *JWTValidator) Validate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token subject is required")
	}
	return claims, nil
}

// Issue подписывает токен для пользователя; используется в тестах и служебных скриптах
func (v *JWTValidator) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// AuthRequired пропускает только запросы с действительным Bearer-токеном
// и кладёт идентификатор пользователя в контекст
func AuthRequired(v *JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			httputil.RespondError(c, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if v == nil {
			httputil.RespondError(c, http.StatusUnauthorized, "authentication not configured")
			return
		}
		claims, err := v.Validate(strings.TrimSpace(token))
		if err != nil {
			httputil.RespondError(c, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		c.Set(UserIDKey, claims.Subject)
		c.Next()
	}
}

// UserID возвращает пользователя, установленного AuthRequired
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
