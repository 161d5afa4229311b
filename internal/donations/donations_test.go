package donations

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schoolsite/internal/cmsclient"
	"schoolsite/internal/cmsclient/cmstest"
	"schoolsite/pkg/database"
	"schoolsite/pkg/logger"
)

const whsec = "whsec_test"

var fixedNow = time.Date(2025, 10, 3, 12, 0, 0, 0, time.UTC)

type fakeStripe struct {
	srv *httptest.Server

	mu    sync.Mutex
	forms []url.Values
}

func newFakeStripe(t *testing.T) *fakeStripe {
	f := &fakeStripe{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("Authorization") != "Bearer sk_test" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":{"message":"Invalid API Key"}}`)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/checkout/sessions":
			_ = r.ParseForm()
			f.mu.Lock()
			f.forms = append(f.forms, r.PostForm)
			f.mu.Unlock()
			if r.PostForm.Get("line_items[0][price_data][unit_amount]") == "999999999" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = io.WriteString(w, `{"error":{"message":"Amount too large"}}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":"cs_new","url":"https://checkout.stripe.test/cs_new","status":"open"}`)
		case r.URL.Path == "/v1/checkout/sessions/cs_paid":
			_, _ = io.WriteString(w, paidSession)
		case r.URL.Path == "/v1/checkout/sessions/cs_open":
			_, _ = io.WriteString(w, `{"id":"cs_open","status":"open","payment_status":"unpaid"}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":{"message":"No such checkout.session"}}`)
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeStripe) lastForm() url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.forms) == 0 {
		return nil
	}
	return f.forms[len(f.forms)-1]
}

const paidSession = `{
	"id": "cs_paid",
	"mode": "payment",
	"status": "complete",
	"payment_status": "paid",
	"amount_total": 2550,
	"currency": "usd",
	"customer_details": {"email": "Donor@Example.com"},
	"metadata": {
		"designation": "Library",
		"frequency": "once",
		"firstName": "Ana",
		"lastName": "Ruiz",
		"tributeType": "In memory of",
		"tributeName": "Abuela"
	}
}`

type published struct {
	mu    sync.Mutex
	kinds []string
}

func (p *published) Publish(kind string, _ any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
}

type harness struct {
	router *gin.Engine
	svc    *Service
	cms    *cmstest.Server
	stripe *fakeStripe
	events *published
}

func newHarness(t *testing.T, secretKey string) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.OpenMigrated(context.Background(), database.Config{Path: database.MemoryPath(t.Name())})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cms := cmstest.New(t)
	cms.JSON("GET /api/donators", http.StatusOK, `{"data":[]}`)
	cms.JSON("POST /api/donators", http.StatusOK, `{"data":{"id":7,"documentId":"don7"}}`)
	cms.JSON("POST /api/donations", http.StatusOK, `{"data":{"id":31,"documentId":"dn31"}}`)

	fs := newFakeStripe(t)
	ev := &published{}
	svc := &Service{
		Stripe:     NewStripe(StripeConfig{SecretKey: secretKey, APIBase: fs.srv.URL}),
		CMS:        cms.Client(),
		Ledger:     NewLedger(db),
		Announcer:  ev,
		School:     "Valley School",
		Currency:   "USD",
		PublicURL:  "https://school.test/",
		SuccessURL: "/donate/thanks?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  "/donate",
		Now:        func() time.Time { return fixedNow },
	}
	r := gin.New()
	NewHandler(svc, whsec, nil).RegisterRoutes(r.Group("/api/donations"))
	return &harness{router: r, svc: svc, cms: cms, stripe: fs, events: ev}
}

func (h *harness) do(method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) webhook(t *testing.T, payload string, at time.Time) *httptest.ResponseRecorder {
	t.Helper()
	hdr := http.Header{}
	hdr.Set(HeaderSignature, Sign([]byte(payload), []byte(whsec), at))
	return h.do(http.MethodPost, "/api/donations/webhook", []byte(payload), hdr)
}

func TestCheckoutForm(t *testing.T) {
	p := CheckoutParams{
		Item:       LineItem{Name: "Monthly Donation - Arts", Description: "Monthly support for Arts", Currency: "usd", UnitAmount: 1000, Monthly: true},
		Email:      "a@b.c",
		Metadata:   map[string]string{"designation": "Arts"},
		SuccessURL: "https://s/ok",
		CancelURL:  "https://s/cancel",
	}
	v := p.Form()
	assert.Equal(t, "subscription", v.Get("mode"))
	assert.Equal(t, "month", v.Get("line_items[0][price_data][recurring][interval]"))
	assert.Equal(t, "1000", v.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "card", v.Get("payment_method_types[0]"))
	assert.Equal(t, "Arts", v.Get("metadata[designation]"))
	assert.Equal(t, "a@b.c", v.Get("customer_email"))

	p.Item.Monthly = false
	p.Email = ""
	v = p.Form()
	assert.Equal(t, "payment", v.Get("mode"))
	assert.Empty(t, v.Get("line_items[0][price_data][recurring][interval]"))
	_, ok := v["customer_email"]
	assert.False(t, ok)
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(2550), Cents(decimal.RequireFromString("25.50")))
	assert.Equal(t, int64(1), Cents(decimal.RequireFromString("0.005")))
	assert.Equal(t, int64(1999), Cents(decimal.RequireFromString("19.99")))
	assert.Equal(t, "25.50", Units(2550).StringFixed(2))
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"type":"ping"}`)
	secret := []byte("s3cret")
	at := time.Unix(1700000000, 0)

	header := Sign(body, secret, at)
	require.NoError(t, VerifySignature(header, body, secret, at.Add(time.Minute), DefaultSkew))

	assert.ErrorIs(t, VerifySignature(header, []byte(`{"type":"pong"}`), secret, at, DefaultSkew), ErrSignature)
	assert.ErrorIs(t, VerifySignature(header, body, []byte("other"), at, DefaultSkew), ErrSignature)
	assert.Error(t, VerifySignature(header, body, secret, at.Add(time.Hour), DefaultSkew))
	assert.Error(t, VerifySignature("", body, secret, at, DefaultSkew))
	assert.Error(t, VerifySignature("t=abc,v1=00", body, secret, at, DefaultSkew))
}

func TestCheckoutCreatesSession(t *testing.T) {
	h := newHarness(t, "sk_test")
	body := `{
		"amount": "25.50",
		"frequency": "Monthly",
		"designation": "Arts",
		"donorInfo": {"firstName": "Ana", "lastName": "Ruiz", "email": "Ana@Example.com"},
		"tributeInfo": {"type": "In honor of", "name": "Ms. Park"}
	}`
	w := h.do(http.MethodPost, "/api/donations/checkout", []byte(body), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.Equal(t, "cs_new", out["sessionId"])
	assert.Equal(t, "https://checkout.stripe.test/cs_new", out["url"])

	form := h.stripe.lastForm()
	require.NotNil(t, form)
	assert.Equal(t, "subscription", form.Get("mode"))
	assert.Equal(t, "2550", form.Get("line_items[0][price_data][unit_amount]"))
	assert.Equal(t, "usd", form.Get("line_items[0][price_data][currency]"))
	assert.Equal(t, "Monthly Donation - Arts", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "ana@example.com", form.Get("customer_email"))
	assert.Equal(t, "Ms. Park", form.Get("metadata[tributeName]"))
	assert.Equal(t, "https://school.test/donate/thanks?session_id={CHECKOUT_SESSION_ID}", form.Get("success_url"))
	assert.Equal(t, "https://school.test/donate", form.Get("cancel_url"))
}

func TestCheckoutOnceName(t *testing.T) {
	h := newHarness(t, "sk_test")
	w := h.do(http.MethodPost, "/api/donations/checkout", []byte(`{"amount": 10, "designation": "Library"}`), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	form := h.stripe.lastForm()
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "Donation to Valley School - Library", form.Get("line_items[0][price_data][product_data][name]"))
	assert.Equal(t, "Support Library", form.Get("line_items[0][price_data][product_data][description]"))
}

func TestCheckoutErrors(t *testing.T) {
	h := newHarness(t, "sk_test")

	w := h.do(http.MethodPost, "/api/donations/checkout", []byte(`{"amount": 0, "designation": "Arts"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "amount")

	w = h.do(http.MethodPost, "/api/donations/checkout", []byte(`{`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/donations/checkout", []byte(`{"amount": 9999999.99, "designation": "Arts"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Amount too large")

	off := newHarness(t, "")
	w = off.do(http.MethodPost, "/api/donations/checkout", []byte(`{"amount": 5, "designation": "Arts"}`), nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	bad := newHarness(t, "sk_wrong")
	w = bad.do(http.MethodPost, "/api/donations/checkout", []byte(`{"amount": 5, "designation": "Arts"}`), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func completedEvent() string {
	return `{"id":"evt_1","type":"checkout.session.completed","data":{"object":` + paidSession + `}}`
}

func TestWebhookRecordsOnce(t *testing.T) {
	h := newHarness(t, "sk_test")

	w := h.webhook(t, completedEvent(), fixedNow)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"received":true}`, w.Body.String())

	donator, ok := h.cms.Last("/api/donators")
	require.True(t, ok)
	assert.Equal(t, http.MethodPost, donator.Method)
	assert.Equal(t, "donor@example.com", donator.Data()["email"])
	assert.Equal(t, "Ana", donator.Data()["firstName"])

	dn, ok := h.cms.Last("/api/donations")
	require.True(t, ok)
	data := dn.Data()
	assert.Equal(t, "7", data["donator"])
	assert.InDelta(t, 25.5, data["amount"], 0.001)
	assert.Equal(t, "Library", data["donationDestiny"])
	assert.Equal(t, true, data["succesfull"])
	assert.Equal(t, "once", data["frecuency"])
	assert.Equal(t, "In memory of: Abuela", data["comments"])
	assert.Equal(t, "2025-10-03T12:00:00Z", data["donationDate"])

	// Stripe retries deliveries; the second one must not duplicate.
	w = h.webhook(t, completedEvent(), fixedNow)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.cms.Requests("/api/donations"), 1)
	assert.Equal(t, []string{"donation.recorded"}, h.events.kinds)

	rec, err := h.svc.Ledger.Get(context.Background(), "cs_paid")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "31", rec.CMSDonationID)
	assert.Equal(t, int64(2550), rec.AmountCents)
}

func TestWebhookExistingDonator(t *testing.T) {
	h := newHarness(t, "sk_test")
	h.cms.JSON("GET /api/donators", http.StatusOK, `{"data":[{"id":3,"email":"donor@example.com"}]}`)

	w := h.webhook(t, completedEvent(), fixedNow)
	require.Equal(t, http.StatusOK, w.Code)

	for _, r := range h.cms.Requests("/api/donators") {
		assert.Equal(t, http.MethodGet, r.Method)
	}
	dn, ok := h.cms.Last("/api/donations")
	require.True(t, ok)
	assert.Equal(t, "3", dn.Data()["donator"])
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	h := newHarness(t, "sk_test")

	hdr := http.Header{}
	hdr.Set(HeaderSignature, Sign([]byte(completedEvent()), []byte("whsec_other"), fixedNow))
	w := h.do(http.MethodPost, "/api/donations/webhook", []byte(completedEvent()), hdr)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/donations/webhook", []byte(completedEvent()), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, h.cms.Requests("/api/donations"))
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	h := newHarness(t, "sk_test")
	w := h.webhook(t, `{"type":"payment_intent.created","data":{"object":{"id":"pi_1"}}}`, fixedNow)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, h.cms.Requests("/api/donations"))
}

func TestWebhookAcknowledgesCMSFailure(t *testing.T) {
	h := newHarness(t, "sk_test")
	h.cms.JSON("POST /api/donations", http.StatusInternalServerError, `{"error":{"message":"boom"}}`)

	w := h.webhook(t, completedEvent(), fixedNow)
	assert.Equal(t, http.StatusOK, w.Code)

	rec, err := h.svc.Ledger.Get(context.Background(), "cs_paid")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestConfirm(t *testing.T) {
	h := newHarness(t, "sk_test")

	w := h.do(http.MethodGet, "/api/donations/confirm", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodGet, "/api/donations/confirm?session_id=cs_open", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paid":false`)
	assert.Empty(t, h.cms.Requests("/api/donations"))

	w = h.do(http.MethodGet, "/api/donations/confirm?session_id=cs_paid", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out struct {
		Paid     bool   `json:"paid"`
		Recorded bool   `json:"recorded"`
		Amount   string `json:"amount"`
		Donation struct {
			SessionID string `json:"session_id"`
		} `json:"donation"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	assert.True(t, out.Paid)
	assert.True(t, out.Recorded)
	assert.Equal(t, "25.50", out.Amount)
	assert.Equal(t, "cs_paid", out.Donation.SessionID)

	// The webhook arriving after the redirect finds it recorded.
	w = h.webhook(t, completedEvent(), fixedNow)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, h.cms.Requests("/api/donations"), 1)

	w = h.do(http.MethodGet, "/api/donations/confirm?session_id=cs_missing", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "No such"))
}

func TestRecordConcurrentCallsRecordOnce(t *testing.T) {
	h := newHarness(t, "sk_test")
	cs, err := h.svc.Stripe.Session(context.Background(), "cs_paid")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = h.svc.Record(context.Background(), cs)
		}()
	}
	wg.Wait()
	assert.Len(t, h.cms.Requests("/api/donations"), 1)
}

func TestRecordReusesDonatorWithCachingClient(t *testing.T) {
	h := newHarness(t, "sk_test")
	var created atomic.Bool
	h.cms.Handle("GET /api/donators", func(w http.ResponseWriter, _ *http.Request) {
		if created.Load() {
			_, _ = io.WriteString(w, `{"data":[{"id":7,"email":"donor@example.com"}]}`)
			return
		}
		_, _ = io.WriteString(w, `{"data":[]}`)
	})
	h.cms.Handle("POST /api/donators", func(w http.ResponseWriter, _ *http.Request) {
		created.Store(true)
		_, _ = io.WriteString(w, `{"data":{"id":7,"documentId":"don7"}}`)
	})
	h.svc.CMS = cmsclient.New(cmsclient.Config{BaseURL: h.cms.URL(), CacheTTL: time.Minute, CacheSize: 100},
		cmsclient.WithLogger(logger.Nop()), cmsclient.WithBackoff(time.Millisecond))

	ctx := context.Background()
	for _, id := range []string{"cs_1", "cs_2"} {
		_, recorded, err := h.svc.Record(ctx, &CheckoutSession{
			ID: id, Status: "complete", PaymentStatus: "paid", AmountTotal: 1000,
			Currency: "usd", Email: "Donor@Example.com", Metadata: map[string]string{"frequency": "once"},
		})
		require.NoError(t, err)
		assert.True(t, recorded)
	}

	var posts int
	for _, r := range h.cms.Requests("/api/donators") {
		if r.Method == http.MethodPost {
			posts++
		}
	}
	assert.Equal(t, 1, posts)
	donations := h.cms.Requests("/api/donations")
	require.Len(t, donations, 2)
	assert.Equal(t, "7", donations[1].Data()["donator"])
}
