// Package donations runs Stripe Checkout for donations and records
// completed payments in the CMS.
package donations

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"schoolsite/internal/forms"
	"schoolsite/internal/web"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	Service       *Service
	WebhookSecret string
	Limit         gin.HandlerFunc
}

func NewHandler(svc *Service, webhookSecret string, limit gin.HandlerFunc) *Handler {
	return &Handler{Service: svc, WebhookSecret: webhookSecret, Limit: limit}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	if h.Limit != nil {
		rg.POST("/checkout", h.Limit, h.checkout)
	} else {
		rg.POST("/checkout", h.checkout)
	}
	rg.POST("/webhook", h.webhook)
	rg.GET("/confirm", h.confirm) // ?session_id=cs_...
}

type checkoutReq struct {
	Amount      decimal.Decimal `json:"amount"`
	Frequency   string          `json:"frequency"`
	Designation string          `json:"designation"`
	DonorInfo   struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		Email     string `json:"email"`
		Phone     string `json:"phone"`
		Address   string `json:"address"`
		City      string `json:"city"`
	} `json:"donorInfo"`
	TributeInfo struct {
		Type string `json:"type"`
		Name string `json:"name"`
	} `json:"tributeInfo"`
}

func (r checkoutReq) form() forms.Donation {
	return forms.Donation{
		Amount:      r.Amount,
		Frequency:   r.Frequency,
		Designation: r.Designation,
		FirstName:   r.DonorInfo.FirstName,
		LastName:    r.DonorInfo.LastName,
		Email:       r.DonorInfo.Email,
		Phone:       r.DonorInfo.Phone,
		Address:     r.DonorInfo.Address,
		City:        r.DonorInfo.City,
		TributeType: r.TributeInfo.Type,
		TributeName: r.TributeInfo.Name,
	}
}

func (h *Handler) checkout(c *gin.Context) {
	var req checkoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	d := req.form()
	if err := d.Validate(); err != nil {
		web.Invalid(c, err)
		return
	}

	cs, err := h.Service.Checkout(c.Request.Context(), d)
	if err != nil {
		h.stripeFail(c, err, "checkout failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": cs.ID, "url": cs.URL})
}

func (h *Handler) stripeFail(c *gin.Context, err error, msg string) {
	web.Logger(c).Error(msg, "err", err)
	var se *StripeError
	switch {
	case errors.Is(err, ErrStripeDisabled):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "donations are not configured"})
	case errors.As(err, &se) && se.Status < 500:
		c.JSON(http.StatusBadRequest, gin.H{"error": se.Message})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": msg})
	}
}

func (h *Handler) webhook(c *gin.Context) {
	if h.WebhookSecret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook not configured"})
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body"})
		return
	}
	if err := VerifySignature(c.GetHeader(HeaderSignature), body, []byte(h.WebhookSecret), h.Service.now(), DefaultSkew); err != nil {
		web.Logger(c).Warn("webhook rejected", "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event := gjson.ParseBytes(body)
	if event.Get("type").String() == "checkout.session.completed" {
		cs := ParseSession(event.Get("data.object"))
		if _, _, err := h.Service.Record(c.Request.Context(), cs); err != nil {
			web.Logger(c).Error("record donation", "session", cs.ID, "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) confirm(c *gin.Context) {
	id := c.Query("session_id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
		return
	}
	ctx := c.Request.Context()
	cs, err := h.Service.Stripe.Session(ctx, id)
	if err != nil {
		h.stripeFail(c, err, "session lookup failed")
		return
	}
	if !cs.Paid() {
		c.JSON(http.StatusOK, gin.H{"paid": false, "status": cs.Status, "paymentStatus": cs.PaymentStatus})
		return
	}
	rec, recorded, err := h.Service.Record(ctx, cs)
	if err != nil {
		web.Fail(c, err, "record donation failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"paid":     true,
		"recorded": recorded,
		"donation": rec,
		"amount":   Units(cs.AmountTotal).StringFixed(2),
		"currency": cs.Currency,
	})
}
