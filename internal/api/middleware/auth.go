package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const userContextKey = "auth_user"

// Claims 访问令牌载荷
type Claims struct {
	UserID   int64  `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID int64  `json:"tenantId"`
	jwt.RegisteredClaims
}

// IssueToken 签发一小时有效的访问令牌
func IssueToken(secret string, userID int64, email, role string, tenantID int64) (string, error) {
	claims := Claims{
		UserID:   userID,
		Email:    email,
		Role:     role,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// AuthRequired 校验 Bearer 令牌并把用户信息放进请求上下文
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Null token"})
			return
		}

		claims := &Claims{}
		parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Token invalid"})
			return
		}

		c.Set(userContextKey, claims)
		c.Next()
	}
}

// RequireAdmin 要求管理员角色
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || (user.Role != "admin" && user.Role != "superadmin") {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Require Admin Role"})
			return
		}
		c.Next()
	}
}

// CurrentUser 取出当前请求的用户信息；未认证返回 nil
func CurrentUser(c *gin.Context) *Claims {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil
	}
	claims, ok := v.(*Claims)
	if !ok {
		return nil
	}
	return claims
}
