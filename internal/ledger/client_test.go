package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-softphone/internal/session"
)

type recordedRequest struct {
	method string
	path   string
	auth   string
	body   map[string]any
}

func ledgerStub(t *testing.T, status int, respBody string) (*httptest.Server, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.auth = r.Header.Get("Authorization")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(respBody))
	}))
	t.Cleanup(srv.Close)
	return srv, rec
}

func TestClient_Token(t *testing.T) {
	srv, rec := ledgerStub(t, http.StatusOK,
		`{"success":true,"data":{"userName":"agent@app.acct.voximplant.com","password":"secret"}}`)
	c := NewClient(srv.URL, "bearer-1")

	creds, err := c.Token(context.Background())
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	if creds.UserName != "agent@app.acct.voximplant.com" || creds.Password != "secret" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}
	if rec.method != http.MethodGet || rec.path != "/api/telephony/auth/token" {
		t.Fatalf("unexpected request: %s %s", rec.method, rec.path)
	}
	if rec.auth != "Bearer bearer-1" {
		t.Fatalf("unexpected auth header %q", rec.auth)
	}
}

func TestClient_Initiate(t *testing.T) {
	srv, rec := ledgerStub(t, http.StatusOK, `{"success":true,"data":{"callId":"call-9"}}`)
	c := NewClient(srv.URL, "")

	callID, err := c.Initiate(context.Background(), session.InitiateRequest{
		PhoneNumber:     "14155550100",
		ContactID:       "c1",
		EnableRecording: true,
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if callID != "call-9" {
		t.Fatalf("unexpected call id %q", callID)
	}
	if rec.path != "/api/calls/initiate" {
		t.Fatalf("unexpected path %s", rec.path)
	}
	if rec.body["phoneNumber"] != "14155550100" || rec.body["enableRecording"] != true {
		t.Fatalf("unexpected body %v", rec.body)
	}
	if rec.auth != "" {
		t.Fatalf("no token configured, got auth %q", rec.auth)
	}
}

func TestClient_Ended(t *testing.T) {
	srv, rec := ledgerStub(t, http.StatusOK, `{"success":true}`)
	c := NewClient(srv.URL, "")

	end := time.Date(2025, 6, 1, 12, 5, 0, 0, time.UTC)
	if err := c.Ended(context.Background(), "call-9", end, 300); err != nil {
		t.Fatalf("ended: %v", err)
	}
	if rec.path != "/api/calls/ended" {
		t.Fatalf("unexpected path %s", rec.path)
	}
	if rec.body["callId"] != "call-9" || rec.body["endTime"] != "2025-06-01T12:05:00Z" || rec.body["duration"] != float64(300) {
		t.Fatalf("unexpected body %v", rec.body)
	}
}

func TestClient_CallScopedPaths(t *testing.T) {
	srv, rec := ledgerStub(t, http.StatusOK, `{"success":true}`)
	c := NewClient(srv.URL, "")
	ctx := context.Background()

	if err := c.SetMute(ctx, "call-9", true); err != nil {
		t.Fatalf("mute: %v", err)
	}
	if rec.path != "/api/calls/call-9/mute" || rec.body["muted"] != true {
		t.Fatalf("unexpected mute request: %s %v", rec.path, rec.body)
	}

	if err := c.SetRecording(ctx, "call-9", false); err != nil {
		t.Fatalf("recording: %v", err)
	}
	if rec.path != "/api/calls/call-9/recording" || rec.body["action"] != "stop" {
		t.Fatalf("unexpected recording request: %s %v", rec.path, rec.body)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv, _ := ledgerStub(t, http.StatusNotFound, `{"success":false,"error":"call not found"}`)
	c := NewClient(srv.URL, "")

	err := c.SetHold(context.Background(), "missing", true)
	if err == nil || !strings.Contains(err.Error(), "call not found") {
		t.Fatalf("expected envelope error, got %v", err)
	}
}

func TestClient_FailureWithoutMessage(t *testing.T) {
	srv, _ := ledgerStub(t, http.StatusOK, `{"success":false}`)
	c := NewClient(srv.URL, "")

	if err := c.Transfer(context.Background(), "call-9", "555"); err == nil {
		t.Fatalf("unsuccessful envelope must be an error")
	}
}
