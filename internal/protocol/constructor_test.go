package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/muurk/wifiprov/internal/provision"
)

// decodeFrame splits a frame into its event name and generic data map.
func decodeFrame(t *testing.T, frame []byte) (string, map[string]any) {
	t.Helper()
	var env struct {
		Event string         `json:"event"`
		Data  map[string]any `json:"data"`
	}
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("frame is not JSON: %v (%s)", err, frame)
	}
	return env.Event, env.Data
}

func TestBuildOutcome(t *testing.T) {
	tests := []struct {
		name      string
		outcome   provision.Outcome
		wantEvent string
		verify    func(t *testing.T, data map[string]any)
	}{
		{
			name: "get_networks reply",
			outcome: provision.Outcome{
				Op:     provision.OpScan,
				Origin: provision.Origin{Event: EventGetNetworks},
				Scan: &provision.ScanResult{Success: true, Networks: []provision.NetworkInfo{
					{SSID: "Home", Security: provision.SecurityWPA2, Signal: 80},
				}},
			},
			wantEvent: EventNetworksList,
			verify: func(t *testing.T, data map[string]any) {
				nets, ok := data["networks"].([]any)
				if !ok || len(nets) != 1 {
					t.Fatalf("networks = %v", data["networks"])
				}
				n := nets[0].(map[string]any)
				if n["ssid"] != "Home" || n["security"] != "WPA2" {
					t.Errorf("network = %v", n)
				}
				if _, ok := data["error"]; ok {
					t.Error("error field present on success")
				}
			},
		},
		{
			name: "scan_wifi failure",
			outcome: provision.Outcome{
				Op:     provision.OpScan,
				Origin: provision.Origin{Event: EventScanWifi},
				Scan:   &provision.ScanResult{Success: false, Error: "radio busy"},
			},
			wantEvent: EventScanResults,
			verify: func(t *testing.T, data map[string]any) {
				if data["success"] != false || data["error"] != "radio busy" {
					t.Errorf("data = %v", data)
				}
				if nets, ok := data["networks"].([]any); !ok || len(nets) != 0 {
					t.Errorf("networks = %v, want empty array", data["networks"])
				}
			},
		},
		{
			name: "scan without origin",
			outcome: provision.Outcome{
				Op:   provision.OpScan,
				Scan: &provision.ScanResult{Success: true, Networks: []provision.NetworkInfo{}},
			},
			wantEvent: EventScanResults,
		},
		{
			name: "connect success",
			outcome: provision.Outcome{
				Op:      provision.OpConnect,
				Connect: &provision.ConnectResult{Success: true, IP: "192.168.1.42"},
			},
			wantEvent: EventConnectionResult,
			verify: func(t *testing.T, data map[string]any) {
				if data["success"] != true || data["ip"] != "192.168.1.42" {
					t.Errorf("data = %v", data)
				}
				if _, ok := data["error"]; ok {
					t.Error("error present on success")
				}
			},
		},
		{
			name: "connect failure",
			outcome: provision.Outcome{
				Op:      provision.OpConnect,
				Connect: &provision.ConnectResult{Success: false, Error: "authentication failed"},
			},
			wantEvent: EventConnectionResult,
			verify: func(t *testing.T, data map[string]any) {
				if _, ok := data["ip"]; ok {
					t.Error("ip present on failure")
				}
				if data["error"] != "authentication failed" {
					t.Errorf("error = %v", data["error"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := BuildOutcome(tt.outcome)
			if err != nil {
				t.Fatalf("BuildOutcome() error = %v", err)
			}
			event, data := decodeFrame(t, frame)
			if event != tt.wantEvent {
				t.Errorf("event = %q, want %q", event, tt.wantEvent)
			}
			if tt.verify != nil {
				tt.verify(t, data)
			}
		})
	}
}

func TestBuildOutcomeMissingResult(t *testing.T) {
	if _, err := BuildOutcome(provision.Outcome{Op: provision.OpConnect}); err == nil {
		t.Error("expected error for connect outcome without result")
	}
}

func TestBuildRejection(t *testing.T) {
	frame, err := BuildRejection(EventConnectWifi, provision.NewBusyError(provision.OpConnect))
	if err != nil {
		t.Fatalf("BuildRejection() error = %v", err)
	}
	event, data := decodeFrame(t, frame)
	if event != EventConnectionResult || data["success"] != false || data["error"] != "operation in progress" {
		t.Errorf("got %s %v", event, data)
	}

	frame, _ = BuildRejection(EventGetNetworks, provision.NewBusyError(provision.OpScan))
	event, data = decodeFrame(t, frame)
	if event != EventNetworksList || data["error"] != "operation in progress" {
		t.Errorf("got %s %v", event, data)
	}

	if _, err := BuildRejection("reboot", errors.New("x")); !errors.Is(err, ErrUnknownEvent) {
		t.Errorf("err = %v, want ErrUnknownEvent", err)
	}
}

func TestBuildConnectRequestRoundTrip(t *testing.T) {
	frame, err := BuildConnectRequest(provision.ConnectRequest{SSID: "OpenNet"})
	if err != nil {
		t.Fatalf("BuildConnectRequest() error = %v", err)
	}
	_, data := decodeFrame(t, frame)
	if _, ok := data["password"]; ok {
		t.Error("empty password should be omitted")
	}

	req, err := ParseRequest(frame)
	if err != nil {
		t.Fatalf("ParseRequest() error = %v", err)
	}
	if req.Connect != (provision.ConnectRequest{SSID: "OpenNet"}) {
		t.Errorf("connect = %+v", req.Connect)
	}
}

func TestBuildRequestScan(t *testing.T) {
	frame, err := BuildRequest(EventScanWifi, nil)
	if err != nil {
		t.Fatalf("BuildRequest() error = %v", err)
	}
	if string(frame) != `{"event":"scan_wifi"}` {
		t.Errorf("frame = %s", frame)
	}
}
