package identity

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ctxSubmitter is the Gin context key under which the resolved submitter is
// injected.
const ctxSubmitter = "ledger_submitter"

// RequireSubmitter returns a Gin middleware that resolves the submitting
// identity on mutating routes. It accepts a Bearer token; when allowHeader is
// set it also accepts a bare X-Submitter header, which is meant for local and
// development deployments only.
func RequireSubmitter(issuer *Issuer, allowHeader bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			submitter, err := issuer.Verify(strings.TrimPrefix(authHeader, "Bearer "))
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
					"error": "invalid submitter token: " + err.Error(),
				})
				return
			}
			c.Set(ctxSubmitter, submitter)
			c.Next()
			return
		}

		if allowHeader {
			if submitter := c.GetHeader("X-Submitter"); submitter != "" {
				c.Set(ctxSubmitter, submitter)
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "submitter identity required",
		})
	}
}

// SubmitterFromCtx retrieves the submitter injected by RequireSubmitter.
func SubmitterFromCtx(c *gin.Context) string {
	v, _ := c.Get(ctxSubmitter)
	s, _ := v.(string)
	return s
}
