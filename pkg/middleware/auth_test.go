package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pagforte/payment-gateway/pkg/response"
)

const testSecret = "test-signing-secret"

func setupAuthRouter(secret string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", MerchantAuth(&AuthConfig{Secret: secret, Issuer: "pagforte"}), func(c *gin.Context) {
		id, _ := GetMerchantID(c)
		c.JSON(http.StatusOK, gin.H{"merchant_id": id})
	})
	return r
}

func decodeErrorBody(t *testing.T, body []byte) response.Response {
	t.Helper()
	var resp response.Response
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

func TestMerchantAuthValidToken(t *testing.T) {
	r := setupAuthRouter(testSecret)

	token, err := GenerateMerchantToken("mer_1", testSecret, "pagforte", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["merchant_id"] != "mer_1" {
		t.Errorf("expected merchant_id mer_1, got %q", body["merchant_id"])
	}
}

func TestMerchantAuthMissingHeader(t *testing.T) {
	r := setupAuthRouter(testSecret)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	resp := decodeErrorBody(t, w.Body.Bytes())
	if resp.Success {
		t.Error("expected success=false in error envelope")
	}
	if resp.Error == nil || resp.Error.Code != "UNAUTHORIZED" {
		t.Errorf("expected UNAUTHORIZED error code, got %+v", resp.Error)
	}
}

func TestMerchantAuthInvalidToken(t *testing.T) {
	r := setupAuthRouter(testSecret)

	// Signed with a different secret
	token, err := GenerateMerchantToken("mer_1", "other-secret", "pagforte", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	resp := decodeErrorBody(t, w.Body.Bytes())
	if resp.Error == nil || resp.Error.Code != "INVALID_TOKEN" {
		t.Errorf("expected INVALID_TOKEN error code, got %+v", resp.Error)
	}
}

func TestMerchantAuthExpiredToken(t *testing.T) {
	r := setupAuthRouter(testSecret)

	token, err := GenerateMerchantToken("mer_1", testSecret, "pagforte", -time.Minute)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
	resp := decodeErrorBody(t, w.Body.Bytes())
	if resp.Error == nil || resp.Error.Code != "TOKEN_EXPIRED" {
		t.Errorf("expected TOKEN_EXPIRED error code, got %+v", resp.Error)
	}
}

func TestValidateMerchantTokenRoundTrip(t *testing.T) {
	token, err := GenerateMerchantToken("mer_42", testSecret, "pagforte", time.Hour)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	id, err := ValidateMerchantToken(token, testSecret)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if id != "mer_42" {
		t.Errorf("expected mer_42, got %q", id)
	}
}
