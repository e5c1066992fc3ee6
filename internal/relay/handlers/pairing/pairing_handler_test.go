package pairing

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ledgersync/ledgersync/internal/relay/email"
	"github.com/ledgersync/ledgersync/internal/relay/pairing"
)

const testAccount = "alice@example.com"

type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(ctx context.Context, info *email.EmailInfo) error {
	args := m.Called(ctx, info)
	return args.Error(0)
}

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRouter(t *testing.T, mailer email.Sender) http.Handler {
	t.Helper()
	registry := pairing.NewRegistry(&pairing.Config{SessionTTL: time.Minute, CodeLength: 6, ClaimRate: "100-M"})
	h := New(registry, mailer)

	r := gin.New()
	r.Use(func(ctx *gin.Context) {
		ctx.Set("user", testAccount)
	})
	r.POST("/pairing/session", h.Create)
	r.POST("/pairing/:id/claim", h.Claim)
	r.POST("/pairing/:id/complete", h.Complete)
	r.GET("/pairing/:id/bundle", h.Bundle)
	return r
}

func call(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCompleteMailsPairedNotice(t *testing.T) {
	mailer := &MockMailer{}
	sent := make(chan *email.EmailInfo, 1)
	mailer.On("Send", mock.Anything, mock.AnythingOfType("*email.EmailInfo")).
		Run(func(args mock.Arguments) { sent <- args.Get(1).(*email.EmailInfo) }).
		Return(nil).Once()

	r := setupRouter(t, mailer)

	w := call(t, r, http.MethodPost, "/pairing/session", &CreateRequest{
		IssuerPublicKey: "ipk", IssuerDeviceID: "laptop-id", IssuerDeviceName: "Laptop",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = call(t, r, http.MethodPost, "/pairing/"+created.PairingID+"/claim", &ClaimRequest{
		Code: created.Code, ClaimerPublicKey: "cpk", ClaimerDeviceID: "phone-id", ClaimerDeviceName: "Phone",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = call(t, r, http.MethodPost, "/pairing/"+created.PairingID+"/complete", &CompleteRequest{EncryptedKeyBundle: "sealed"})
	require.Equal(t, http.StatusOK, w.Code)

	select {
	case info := <-sent:
		assert.Equal(t, testAccount, info.ToEmail)
		assert.Contains(t, info.TextBody, "Phone")
		assert.Contains(t, info.TextBody, "Laptop")
	case <-time.After(5 * time.Second):
		t.Fatal("paired notice not sent")
	}
	mailer.AssertExpectations(t)
}

func TestClaimWithWrongCode(t *testing.T) {
	mailer := &MockMailer{}
	r := setupRouter(t, mailer)

	w := call(t, r, http.MethodPost, "/pairing/session", &CreateRequest{IssuerPublicKey: "ipk", IssuerDeviceID: "laptop-id"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created CreateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	wrong := "000000"
	if created.Code == wrong {
		wrong = "111111"
	}
	w = call(t, r, http.MethodPost, "/pairing/"+created.PairingID+"/claim", &ClaimRequest{
		Code: wrong, ClaimerPublicKey: "cpk", ClaimerDeviceID: "phone-id",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "E_PAIRING_NOT_FOUND")

	w = call(t, r, http.MethodGet, "/pairing/unknown/bundle", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	mailer.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
