package podauth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

func newTestHandler(t *testing.T, users *fakeUserStore) (*Handler, string) {
	t.Helper()
	svc, siaToken := newTestService(t, users)
	return NewHandler(svc, "/gateway"), siaToken
}

func TestHandleLoginSucceeds(t *testing.T) {
	h, siaToken := newTestHandler(t, newFakeUserStore())
	r := chi.NewRouter()
	h.Routes(r)

	body := `{"sia":"` + siaToken + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rr.Code, rr.Body.String())
	}
	var resp tokenResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" || resp.WSTicket == "" {
		t.Fatalf("expected full token triple, got %+v", resp)
	}
	if resp.WSURL != "/gateway" {
		t.Fatalf("ws_url = %q, want /gateway", resp.WSURL)
	}
	if resp.User == nil || resp.User.Username != "alice" {
		t.Fatalf("unexpected user view: %+v", resp.User)
	}
}

func TestHandleLoginRejectsMissingSIA(t *testing.T) {
	h, _ := newTestHandler(t, newFakeUserStore())
	r := chi.NewRouter()
	h.Routes(r)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleLoginRejectsBannedUser(t *testing.T) {
	users := newFakeUserStore()
	users.banned["usr_1"] = true
	h, siaToken := newTestHandler(t, users)
	r := chi.NewRouter()
	h.Routes(r)

	body := `{"sia":"` + siaToken + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403, body=%s", rr.Code, rr.Body.String())
	}
}

func TestHandleRefreshSucceeds(t *testing.T) {
	users := newFakeUserStore()
	h, siaToken := newTestHandler(t, users)
	r := chi.NewRouter()
	h.Routes(r)

	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"sia":"`+siaToken+`"}`))
	loginRR := httptest.NewRecorder()
	r.ServeHTTP(loginRR, loginReq)
	if loginRR.Code != http.StatusOK {
		t.Fatalf("login status = %d, body=%s", loginRR.Code, loginRR.Body.String())
	}
	var loginResp tokenResponse
	if err := json.Unmarshal(loginRR.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}

	refreshReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(
		`{"refresh_token":"`+loginResp.RefreshToken+`","include_ws_ticket":true}`))
	refreshRR := httptest.NewRecorder()
	r.ServeHTTP(refreshRR, refreshReq)

	if refreshRR.Code != http.StatusOK {
		t.Fatalf("refresh status = %d, want 200, body=%s", refreshRR.Code, refreshRR.Body.String())
	}
	var refreshResp tokenResponse
	if err := json.Unmarshal(refreshRR.Body.Bytes(), &refreshResp); err != nil {
		t.Fatalf("decoding refresh response: %v", err)
	}
	if refreshResp.RefreshToken == loginResp.RefreshToken {
		t.Fatal("expected a rotated refresh token")
	}
	if refreshResp.WSTicket == "" {
		t.Fatal("expected a ws ticket when include_ws_ticket is true")
	}
}

func TestHandleRefreshRejectsReusedToken(t *testing.T) {
	users := newFakeUserStore()
	h, siaToken := newTestHandler(t, users)
	r := chi.NewRouter()
	h.Routes(r)

	loginReq := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"sia":"`+siaToken+`"}`))
	loginRR := httptest.NewRecorder()
	r.ServeHTTP(loginRR, loginReq)
	var loginResp tokenResponse
	if err := json.Unmarshal(loginRR.Body.Bytes(), &loginResp); err != nil {
		t.Fatalf("decoding login response: %v", err)
	}

	refreshBody := `{"refresh_token":"` + loginResp.RefreshToken + `"}`
	first := httptest.NewRecorder()
	r.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(refreshBody)))
	if first.Code != http.StatusOK {
		t.Fatalf("first refresh status = %d, body=%s", first.Code, first.Body.String())
	}

	second := httptest.NewRecorder()
	r.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", strings.NewReader(refreshBody)))
	if second.Code != http.StatusUnauthorized {
		t.Fatalf("second refresh status = %d, want 401, body=%s", second.Code, second.Body.String())
	}
}
