package wled

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		ip   string
		port int
		want string
	}{
		{"192.168.1.40", 80, "http://192.168.1.40:80"},
		{"192.168.1.40", 0, "http://192.168.1.40:80"},
		{"10.0.0.5", 8080, "http://10.0.0.5:8080"},
	}
	for _, tt := range tests {
		c := NewClient(tt.ip, tt.port)
		if c.BaseURL != tt.want {
			t.Errorf("NewClient(%q, %d).BaseURL = %s, want %s", tt.ip, tt.port, c.BaseURL, tt.want)
		}
		if c.IP != tt.ip {
			t.Errorf("NewClient(%q, %d).IP = %s, want %s", tt.ip, tt.port, c.IP, tt.ip)
		}
	}

	c := NewClient("192.168.1.40", 80)
	if c.HTTPClient.Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", c.HTTPClient.Timeout, DefaultTimeout)
	}
}

func TestGetStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/json" {
			t.Errorf("path = %s, want /json", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua == "" {
			t.Error("User-Agent header not set")
		}
		_, _ = w.Write([]byte(statusJSON))
	}))
	defer server.Close()

	status, err := NewClientWithURL(server.URL).GetStatus(context.Background())
	if err != nil {
		t.Fatalf("GetStatus() error = %v", err)
	}
	if status.Info.Name != "Desk" {
		t.Errorf("Info.Name = %q, want Desk", status.Info.Name)
	}
	if !status.State.On || status.State.Bri != 128 {
		t.Errorf("State = on:%v bri:%d, want on:true bri:128", status.State.On, status.State.Bri)
	}
	if !status.State.UDPN.Send || status.State.UDPN.Receive {
		t.Errorf("UDPN = %+v, want send:true recv:false", status.State.UDPN)
	}
	if len(status.State.Seg) != 1 || len(status.State.Seg[0].Col) != 3 {
		t.Errorf("Seg = %+v, want one segment with three colors", status.State.Seg)
	}
}

func TestIdentify(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		status    int
		wantErr   bool
		notWLED   bool
		errorType ErrorType
	}{
		{name: "wled board", body: statusJSON, status: http.StatusOK},
		{name: "nameless responder", body: `{"info":{"ver":"1"}}`, status: http.StatusOK, wantErr: true, notWLED: true},
		{name: "html page", body: `<html></html>`, status: http.StatusOK, wantErr: true, errorType: ErrTypeParse},
		{name: "not found", body: `not found`, status: http.StatusNotFound, wantErr: true, errorType: ErrTypeHTTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClientWithURL(server.URL).Identify(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Identify() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			if tt.notWLED {
				if !IsNotWLED(err) {
					t.Errorf("IsNotWLED(%v) = false, want true", err)
				}
				return
			}
			var devErr *DeviceError
			if !errors.As(err, &devErr) || devErr.Type != tt.errorType {
				t.Errorf("error = %v, want type %v", err, tt.errorType)
			}
		})
	}
}

func TestApplySendsPatch(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		want string
	}{
		{"power on", func(c *Client) error { return c.SetPower(context.Background(), true) }, `{"on":true}`},
		{"power off", func(c *Client) error { return c.SetPower(context.Background(), false) }, `{"on":false}`},
		{"brightness", func(c *Client) error { return c.SetBrightness(context.Background(), 42) }, `{"bri":42}`},
		{"brightness clamped high", func(c *Client) error { return c.SetBrightness(context.Background(), 300) }, `{"bri":255}`},
		{"brightness clamped low", func(c *Client) error { return c.SetBrightness(context.Background(), -5) }, `{"bri":0}`},
		{"sync both", func(c *Client) error { return c.SetSync(context.Background(), true, false) }, `{"udpn":{"send":false,"recv":true}}`},
		{"sync send only", func(c *Client) error { return c.SetSyncSend(context.Background(), true) }, `{"udpn":{"send":true}}`},
		{"sync receive only", func(c *Client) error { return c.SetSyncReceive(context.Background(), false) }, `{"udpn":{"recv":false}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.URL.Path != "/json/state" {
					t.Errorf("request = %s %s, want POST /json/state", r.Method, r.URL.Path)
				}
				if ct := r.Header.Get("Content-Type"); ct != "application/json" {
					t.Errorf("Content-Type = %q, want application/json", ct)
				}
				body, _ := io.ReadAll(r.Body)
				got = string(body)
				_, _ = w.Write([]byte(`{"success":true}`))
			}))
			defer server.Close()

			if err := tt.call(NewClientWithURL(server.URL)); err != nil {
				t.Fatalf("call error = %v", err)
			}
			if got != tt.want {
				t.Errorf("body = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestApplyRejectsOutOfRangeBrightness(t *testing.T) {
	c := NewClientWithURL("http://127.0.0.1:1")
	err := c.Apply(context.Background(), StatePatch{Bri: Int(256)})
	if !IsValidationError(err) {
		t.Errorf("Apply(bri=256) error = %v, want validation error", err)
	}
}

func TestApplyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer server.Close()

	c := NewClientWithURL(server.URL)
	c.SetRetry(2, time.Millisecond)

	if err := c.SetPower(context.Background(), true); err != nil {
		t.Fatalf("SetPower() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestApplyDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":9}`))
	}))
	defer server.Close()

	c := NewClientWithURL(server.URL)
	c.SetRetry(3, time.Millisecond)

	err := c.SetBrightness(context.Background(), 10)
	if err == nil {
		t.Fatal("SetBrightness() error = nil, want error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
	if got := ShortMessage(err); got != "WLED error 9" {
		t.Errorf("ShortMessage() = %q, want %q", got, "WLED error 9")
	}
}

func TestApplyRejectedUpdate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false}`))
	}))
	defer server.Close()

	err := NewClientWithURL(server.URL).SetPower(context.Background(), true)
	if !IsValidationError(err) {
		t.Errorf("SetPower() error = %v, want validation error", err)
	}
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	c := NewClientWithURL(server.URL)
	c.SetTimeout(20 * time.Millisecond)

	_, err := c.GetState(context.Background())
	var devErr *DeviceError
	if !errors.As(err, &devErr) || devErr.Type != ErrTypeTimeout {
		t.Fatalf("GetState() error = %v, want timeout", err)
	}
	if got := ShortMessage(err); got != "Board not responding (timeout)" {
		t.Errorf("ShortMessage() = %q", got)
	}
}

func TestCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(statusJSON))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClientWithURL(server.URL).GetStatus(ctx)
	if !IsCanceled(err) {
		t.Fatalf("GetStatus() error = %v, want canceled", err)
	}
	res := Normalize[*StateResponse](nil, err)
	if res.OK || res.Error != "Request canceled" {
		t.Errorf("Normalize() = %+v, want {ok:false error:Request canceled}", res)
	}
}

func TestUDPNDecodesBothSpellings(t *testing.T) {
	tests := []struct {
		in   string
		want UDPN
	}{
		{`{"send":true,"recv":true}`, UDPN{Send: true, Receive: true}},
		{`{"send":false,"receive":true}`, UDPN{Receive: true}},
		{`{"send":true}`, UDPN{Send: true}},
	}
	for _, tt := range tests {
		var got UDPN
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Unmarshal(%s) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestStatePatchApply(t *testing.T) {
	base := State{On: false, Bri: 10, UDPN: UDPN{Send: true, Receive: true}}
	got := StatePatch{On: Bool(true), UDPN: &UDPNPatch{Recv: Bool(false)}}.Apply(base)

	want := State{On: true, Bri: 10, UDPN: UDPN{Send: true, Receive: false}}
	if got.On != want.On || got.Bri != want.Bri || got.UDPN != want.UDPN {
		t.Errorf("Apply() = %+v, want %+v", got, want)
	}
	if base.On {
		t.Error("Apply() modified its input")
	}
}
