package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
)

// NewRelicIdentity tags the nrgin transaction with the caller's identity so
// traces can be filtered by driver or customer. Must run after RequireAuth.
func NewRelicIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if txn := nrgin.Transaction(c); txn != nil {
			if identity, ok := IdentityFrom(c); ok {
				txn.AddAttribute("user.id", identity.UserID)
				txn.AddAttribute("user.role", string(identity.Role))
			}
		}
		c.Next()

		if txn := nrgin.Transaction(c); txn != nil {
			for _, e := range c.Errors {
				txn.NoticeError(e.Err)
			}
		}
	}
}
