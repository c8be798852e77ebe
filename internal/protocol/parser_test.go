package protocol

import (
	"errors"
	"strings"
	"testing"

	"github.com/muurk/wifiprov/internal/provision"
)

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
		verify  func(t *testing.T, req Request)
	}{
		{
			name: "get_networks without data",
			data: `{"event":"get_networks"}`,
			verify: func(t *testing.T, req Request) {
				if req.Op != provision.OpScan || req.Event != EventGetNetworks {
					t.Errorf("req = %+v", req)
				}
			},
		},
		{
			name: "scan_wifi with empty data",
			data: `{"event":"scan_wifi","data":{}}`,
			verify: func(t *testing.T, req Request) {
				if req.Op != provision.OpScan {
					t.Errorf("op = %v, want scan", req.Op)
				}
			},
		},
		{
			name: "connect with password",
			data: `{"event":"connect_wifi","data":{"ssid":"Cafe","password":"pw"}}`,
			verify: func(t *testing.T, req Request) {
				want := provision.ConnectRequest{SSID: "Cafe", Password: "pw"}
				if req.Connect != want {
					t.Errorf("connect = %+v, want %+v", req.Connect, want)
				}
			},
		},
		{
			name: "connect without password",
			data: `{"event":"connect_wifi","data":{"ssid":"OpenNet"}}`,
			verify: func(t *testing.T, req Request) {
				if req.Connect.Password != "" {
					t.Errorf("password = %q, want empty", req.Connect.Password)
				}
			},
		},
		{
			name: "connect with null password",
			data: `{"event":"connect_wifi","data":{"ssid":"OpenNet","password":null}}`,
			verify: func(t *testing.T, req Request) {
				if req.Connect.SSID != "OpenNet" || req.Connect.Password != "" {
					t.Errorf("connect = %+v", req.Connect)
				}
			},
		},
		{
			name: "connect with empty ssid is left for the session",
			data: `{"event":"connect_wifi","data":{"ssid":""}}`,
			verify: func(t *testing.T, req Request) {
				if req.Connect.SSID != "" {
					t.Errorf("ssid = %q", req.Connect.SSID)
				}
			},
		},
		{
			name:    "connect without data",
			data:    `{"event":"connect_wifi"}`,
			wantErr: ErrInvalidPayload,
			verify: func(t *testing.T, req Request) {
				if req.Event != EventConnectWifi {
					t.Errorf("event = %q, want connect_wifi", req.Event)
				}
			},
		},
		{
			name:    "connect with wrong ssid type",
			data:    `{"event":"connect_wifi","data":{"ssid":42}}`,
			wantErr: ErrInvalidPayload,
		},
		{
			name:    "unknown event",
			data:    `{"event":"reboot"}`,
			wantErr: ErrUnknownEvent,
			verify: func(t *testing.T, req Request) {
				if req.Event != "reboot" {
					t.Errorf("event = %q", req.Event)
				}
			},
		},
		{
			name:    "not json",
			data:    `hello`,
			wantErr: ErrMalformed,
		},
		{
			name:    "missing event",
			data:    `{"data":{}}`,
			wantErr: ErrMalformed,
		},
		{
			name:    "oversized",
			data:    `{"event":"scan_wifi","data":"` + strings.Repeat("x", MaxMessageSize) + `"}`,
			wantErr: ErrMalformed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := ParseRequest([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.verify != nil {
				tt.verify(t, req)
			}
		})
	}
}

func TestReplyEvent(t *testing.T) {
	tests := []struct {
		inbound string
		want    string
		ok      bool
	}{
		{EventGetNetworks, EventNetworksList, true},
		{EventScanWifi, EventScanResults, true},
		{EventConnectWifi, EventConnectionResult, true},
		{EventNetworksList, "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := ReplyEvent(tt.inbound)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ReplyEvent(%q) = %q, %v; want %q, %v", tt.inbound, got, ok, tt.want, tt.ok)
		}
	}
}

func TestIsInbound(t *testing.T) {
	for _, e := range []string{EventGetNetworks, EventScanWifi, EventConnectWifi} {
		if !IsInbound(e) {
			t.Errorf("IsInbound(%q) = false", e)
		}
	}
	if IsInbound(EventConnectionResult) {
		t.Error("connection_result is not inbound")
	}
}

func TestDecodeResults(t *testing.T) {
	env, err := ParseEnvelope([]byte(`{"event":"networks_list","data":{"success":true,"networks":[{"ssid":"Home","security":"WPA2"}]}}`))
	if err != nil {
		t.Fatalf("ParseEnvelope() error = %v", err)
	}
	scan, err := DecodeScanResult(env)
	if err != nil {
		t.Fatalf("DecodeScanResult() error = %v", err)
	}
	if !scan.Success || len(scan.Networks) != 1 || scan.Networks[0].Security != provision.SecurityWPA2 {
		t.Errorf("scan = %+v", scan)
	}

	if _, err := DecodeConnectResult(env); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("DecodeConnectResult(networks_list) err = %v", err)
	}

	env, _ = ParseEnvelope([]byte(`{"event":"connection_result","data":{"success":false,"error":"authentication failed"}}`))
	conn, err := DecodeConnectResult(env)
	if err != nil {
		t.Fatalf("DecodeConnectResult() error = %v", err)
	}
	if conn.Success || conn.Error != "authentication failed" {
		t.Errorf("conn = %+v", conn)
	}
}
