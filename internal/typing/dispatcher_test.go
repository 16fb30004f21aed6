package typing_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/omochice/j2me-gateway/internal/config"
	"github.com/omochice/j2me-gateway/internal/typing"
)

type recorder struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.requests = append(r.requests, req.Clone(context.Background()))
	status := r.status
	r.mu.Unlock()
	if status == 0 {
		status = http.StatusNoContent
	}
	w.WriteHeader(status)
}

func (r *recorder) all() []*http.Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*http.Request(nil), r.requests...)
}

func newDispatcher(t *testing.T, rec *recorder) *typing.Dispatcher {
	t.Helper()
	server := httptest.NewServer(rec)
	t.Cleanup(server.Close)

	d, err := typing.NewDispatcher(server.URL+"/api/v9/", time.Second, config.DefaultIdentity(), nil, nil)
	if err != nil {
		t.Fatalf("NewDispatcher() error = %v", err)
	}
	return d
}

func TestDispatcher_Send(t *testing.T) {
	rec := &recorder{}
	d := newDispatcher(t, rec)

	if err := d.Send(context.Background(), "123456789012345678", "secret-token"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	reqs := rec.all()
	if len(reqs) != 1 {
		t.Fatalf("got %d requests, want 1", len(reqs))
	}
	req := reqs[0]
	if req.Method != http.MethodPost {
		t.Errorf("method = %s, want POST", req.Method)
	}
	if req.URL.Path != "/api/v9/channels/123456789012345678/typing" {
		t.Errorf("path = %s", req.URL.Path)
	}

	wantHeaders := map[string]string{
		"Authorization":      "secret-token",
		"User-Agent":         "Discord-Android/262205;RNA",
		"X-Discord-Locale":   "en-US",
		"X-Discord-Timezone": "Europe/Kyiv",
		"Accept":             "*/*",
		"Accept-Language":    "en-US,en;q=0.9",
		"Cookie":             "locale=en-US",
	}
	for name, want := range wantHeaders {
		if got := req.Header.Get(name); got != want {
			t.Errorf("header %s = %q, want %q", name, got, want)
		}
	}
}

func TestDispatcher_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		channel string
		token   string
		want    error
	}{
		{"non numeric", "abc", "token", typing.ErrInvalidChannel},
		{"too short", "1234567890123456", "token", typing.ErrInvalidChannel},
		{"too long", "1234567890123456789012345678901", "token", typing.ErrInvalidChannel},
		{"no token", "123456789012345678", "", typing.ErrNoToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			d := newDispatcher(t, rec)

			err := d.Send(context.Background(), tt.channel, tt.token)
			if !errors.Is(err, tt.want) {
				t.Errorf("Send() error = %v, want %v", err, tt.want)
			}
			if n := len(rec.all()); n != 0 {
				t.Errorf("made %d requests, want 0", n)
			}
		})
	}
}

func TestDispatcher_ErrorStatus(t *testing.T) {
	rec := &recorder{status: http.StatusUnauthorized}
	d := newDispatcher(t, rec)

	if err := d.Send(context.Background(), "123456789012345678", "bad"); err == nil {
		t.Error("Send() succeeded on 401")
	}
}

func TestHeaders_SuperProperties(t *testing.T) {
	headers, err := typing.Headers(config.DefaultIdentity())
	if err != nil {
		t.Fatalf("Headers() error = %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(headers["X-Super-Properties"])
	if err != nil {
		t.Fatalf("X-Super-Properties is not base64: %v", err)
	}
	want := `{"os":"Android","browser":"Discord Android","device":"a20e","system_locale":"en-US",` +
		`"has_client_mods":false,"client_version":"262.5 - rn","release_channel":"alpha",` +
		`"device_vendor_id":"17503929-a4b8-4490-87bf-0222adfdadc8","design_id":2,` +
		`"browser_user_agent":"","browser_version":"","os_version":"34",` +
		`"client_build_number":3463,"client_event_source":null}`
	if diff := cmp.Diff(want, string(raw)); diff != "" {
		t.Errorf("super properties mismatch (-want +got):\n%s", diff)
	}

	var props map[string]any
	if err := json.Unmarshal(raw, &props); err != nil {
		t.Fatalf("super properties are not JSON: %v", err)
	}
}

func TestValidChannelID(t *testing.T) {
	tests := map[string]bool{
		"12345678901234567":               true,
		"123456789012345678901234567890":  true,
		"":                                false,
		"12345678901234567a":              false,
		" 12345678901234567":              false,
		"1234567890123456789012345678901": false,
	}
	for id, want := range tests {
		if got := typing.ValidChannelID(id); got != want {
			t.Errorf("ValidChannelID(%q) = %v, want %v", id, got, want)
		}
	}
}
