package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"

	"github.com/winwai/raffled/internal/raffle/domain"
	"github.com/winwai/raffled/internal/usercontext"
)

// AuthRequired authenticates requests with a user bearer token. Tokens are
// opaque random strings stored only as SHA-256 digests; identity is the users
// row holding the presented token's digest.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			AbortWithError(c, ErrUnauthenticated)
			return
		}

		parts := strings.Fields(header)
		if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
			AbortWithError(c, ErrUnauthenticated)
			return
		}

		hash := domain.HashAPIToken(parts[1])

		var record struct {
			ID      snowflake.ID `gorm:"column:id"`
			IsAdmin bool         `gorm:"column:is_admin"`
		}
		if err := s.db.WithContext(c.Request.Context()).Raw(
			`SELECT id, is_admin
			 FROM users
			 WHERE api_token_hash = ?
			 LIMIT 1`,
			hash,
		).Scan(&record).Error; err != nil {
			AbortWithError(c, err)
			return
		}

		if record.ID == 0 {
			AbortWithError(c, ErrUnauthenticated)
			return
		}

		ctx := usercontext.WithUser(c.Request.Context(), int64(record.ID), record.IsAdmin)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AdminRequired rejects callers without administrator privilege. Must run
// after AuthRequired.
func (s *Server) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !usercontext.IsAdminFromContext(c.Request.Context()) {
			AbortWithError(c, ErrPermissionDenied)
			return
		}
		c.Next()
	}
}
