package quota

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nexusgate/nexusgate/common/config"
	"github.com/nexusgate/nexusgate/gatewayerr"
	"github.com/nexusgate/nexusgate/model"
	"github.com/nexusgate/nexusgate/relay/meta"
)

func withCoilEnabled(t *testing.T, url string) func() {
	t.Helper()
	prevEnabled, prevIP := config.CoilEnabled, config.CoilIP
	config.CoilEnabled, config.CoilIP = true, url
	return func() { config.CoilEnabled, config.CoilIP = prevEnabled, prevIP }
}

func newCoil(baseURL string) *Coil {
	return &Coil{BaseURL: baseURL, Client: http.DefaultClient}
}

func TestAdmitDisabledIsANoOp(t *testing.T) {
	prev := config.CoilEnabled
	config.CoilEnabled = false
	defer func() { config.CoilEnabled = prev }()

	c := newCoil("http://unused.invalid")
	err := c.Admit(context.Background(), &meta.Meta{AccountId: "acct-1"}, &model.ModelLimits{})
	if err != nil {
		t.Fatalf("Admit should be a no-op when coil is disabled: %v", err)
	}
}

func TestAdmitNotThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	defer withCoilEnabled(t, server.URL)()

	c := newCoil(server.URL)
	err := c.Admit(context.Background(), &meta.Meta{AccountId: "acct-1"}, &model.ModelLimits{MaxRequestsPerMin: 10, MaxTokensPerMin: 1000})
	if err != nil {
		t.Fatalf("Admit should succeed when neither bucket is throttled: %v", err)
	}
}

func TestAdmitRPMThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/query_and_consume" {
			_, _ = w.Write([]byte(`{"throttled":true}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	defer withCoilEnabled(t, server.URL)()

	c := newCoil(server.URL)
	err := c.Admit(context.Background(), &meta.Meta{AccountId: "acct-1"}, &model.ModelLimits{MaxRequestsPerMin: 10, MaxTokensPerMin: 1000})
	gwErr, ok := err.(*gatewayerr.Error)
	if !ok {
		t.Fatalf("expected *gatewayerr.Error, got %T: %v", err, err)
	}
	if gwErr.Kind != gatewayerr.ThrottledRPM {
		t.Errorf("kind = %s, want %s", gwErr.Kind, gatewayerr.ThrottledRPM)
	}
}

func TestAdmitTPMThrottled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/throttled" {
			_, _ = w.Write([]byte(`{"throttled":true}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()
	defer withCoilEnabled(t, server.URL)()

	c := newCoil(server.URL)
	err := c.Admit(context.Background(), &meta.Meta{AccountId: "acct-1"}, &model.ModelLimits{MaxRequestsPerMin: 10, MaxTokensPerMin: 1000})
	gwErr, ok := err.(*gatewayerr.Error)
	if !ok {
		t.Fatalf("expected *gatewayerr.Error, got %T: %v", err, err)
	}
	if gwErr.Kind != gatewayerr.ThrottledTPM {
		t.Errorf("kind = %s, want %s", gwErr.Kind, gatewayerr.ThrottledTPM)
	}
}

func TestAdmitFailsOpenOnTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	server.Close() // close immediately so calls fail to connect

	defer withCoilEnabled(t, server.URL)()

	c := newCoil(server.URL)
	err := c.Admit(context.Background(), &meta.Meta{AccountId: "acct-1"}, &model.ModelLimits{MaxRequestsPerMin: 10, MaxTokensPerMin: 1000})
	if err != nil {
		t.Fatalf("Admit should fail open on transport errors: %v", err)
	}
}

func TestConsumeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req coilRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.RequestAmount != "42" {
			t.Errorf("request_amount = %q, want 42", req.RequestAmount)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}`))
	}))
	defer server.Close()
	defer withCoilEnabled(t, server.URL)()

	c := newCoil(server.URL)
	if err := c.Consume(context.Background(), &meta.Meta{AccountId: "acct-1"}, 42); err != nil {
		t.Fatalf("Consume: %v", err)
	}
}

func TestConsumeDisabledIsANoOp(t *testing.T) {
	prev := config.CoilEnabled
	config.CoilEnabled = false
	defer func() { config.CoilEnabled = prev }()

	c := newCoil("http://unused.invalid")
	if err := c.Consume(context.Background(), &meta.Meta{AccountId: "acct-1"}, 42); err != nil {
		t.Fatalf("Consume should be a no-op when coil is disabled: %v", err)
	}
}
