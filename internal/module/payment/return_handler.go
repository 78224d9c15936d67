package payment

import (
	"fmt"
	"html"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/printforge/server/internal/module/twocheckout"
	"go.uber.org/zap"
)

// HandleReturn serves the browser redirect after hosted checkout. The page is
// purely informational: the return checksum is the weak legacy scheme, so the
// outcome shown here is an optimistic hint and no order state is touched.
// The signed server-to-server notification is the only writer.
func (h *WebhookHandler) HandleReturn(c *gin.Context) {
	param := func(keys ...string) string {
		for _, k := range keys {
			if v := c.Query(k); v != "" {
				return v
			}
			if v := c.PostForm(k); v != "" {
				return v
			}
		}
		return ""
	}

	orderNumber := param("order_number")
	merchantRef := param("merchant_order_id", "x_receipt_link_url_order")
	total := param("total")
	key := param("key")

	verified := twocheckout.VerifyReturnChecksum(
		h.cfg.SecretWord, h.cfg.MerchantCode, orderNumber, total, key, h.cfg.Demo)
	if !verified {
		h.logger.Warn("return redirect checksum mismatch",
			zap.String("order_number", orderNumber),
			zap.String("merchant_ref", merchantRef))
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(returnPage(merchantRef, verified)))
}

func returnPage(merchantRef string, verified bool) string {
	heading := "Thank you!"
	body := "Your payment is being confirmed. You will receive an email as soon as your order is ready."
	if !verified {
		heading = "Almost there"
		body = "We are waiting for your payment provider to confirm the transaction. This can take a few minutes."
	}

	ref := ""
	if merchantRef != "" {
		ref = fmt.Sprintf("<p>Order <strong>%s</strong></p>", html.EscapeString(merchantRef))
	}

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Printforge</title></head>
<body style="font-family: sans-serif; max-width: 40em; margin: 4em auto;">
<h1>%s</h1>
%s<p>%s</p>
</body>
</html>`, heading, ref, body)
}
