package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	contextKeyPartyID = "party_id"
	contextKeyRole    = "party_role"

	roleInstaller = "installer"
	roleCustomer  = "customer"
)

// authRequired validates a Bearer HS256 token and injects the caller's
// identity and role into the request context. Installer and customer
// identity is always taken from the verified token, never from request
// bodies or ambient state.
func authRequired(signingKey string, issuer string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing bearer token"))
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")
		token, err := jwt.Parse(raw, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(signingKey), nil
		}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
		if err != nil || !token.Valid {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid token"))
			return
		}
		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "invalid claims"))
			return
		}
		subject, _ := claims.GetSubject()
		role, _ := claims["role"].(string)
		if subject == "" || (role != roleInstaller && role != roleCustomer) {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("unauthorized", "missing subject or role"))
			return
		}
		ctx.Set(contextKeyPartyID, subject)
		ctx.Set(contextKeyRole, role)
		ctx.Next()
	}
}

// requireRole rejects callers whose token carries a different role.
func requireRole(role string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetString(contextKeyRole) != role {
			ctx.AbortWithStatusJSON(http.StatusForbidden, errorResponse("forbidden", "wrong role for this operation"))
			return
		}
		ctx.Next()
	}
}

func partyID(ctx *gin.Context) string {
	return ctx.GetString(contextKeyPartyID)
}

func partyRole(ctx *gin.Context) string {
	return ctx.GetString(contextKeyRole)
}
