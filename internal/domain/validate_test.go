package domain

import "testing"

func TestValidate(t *testing.T) {
	good := NetworkConnection{AppName: "Chrome", DestinationIP: "142.250.190.46", Port: 443}
	bad := NetworkConnection{AppName: "Chrome", DestinationIP: "not-an-ip"}

	tests := []struct {
		name    string
		in      any
		wantErr bool
	}{
		{"valid record", good, false},
		{"pointer to record", &good, false},
		{"bad ip", bad, true},
		{"slice with bad item", []NetworkConnection{good, bad}, true},
		{"empty slice", []NetworkConnection{}, false},
		{"nil pointer", (*NetworkConnection)(nil), false},
		{"scalar", 42, false},
		{"trust score over 100", DeviceStats{DeviceTrustScore: 101}, true},
		{"negative data usage", DeviceStats{DataUsageBytes: -1}, true},
		{"unknown connection status passes", NetworkConnection{AppName: "x", DestinationIP: "10.0.0.1", Status: "WEIRD"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Validate(tt.in); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ReportRequest(t *testing.T) {
	sev := 3
	req := ThreatReportRequest{AppName: "Unknown App", TargetIP: "198.51.100.42", DeviceID: "d-1", UserSeverity: &sev}
	if err := Validate(req); err != nil {
		t.Fatalf("valid request rejected: %v", err)
	}

	req.DeviceID = ""
	if err := Validate(req); err == nil {
		t.Error("missing device id accepted")
	}
}

func TestIsValidIP(t *testing.T) {
	for _, ip := range []string{"198.51.100.42", "0.0.0.0", "2001:db8::1", "::1"} {
		if !IsValidIP(ip) {
			t.Errorf("%q rejected", ip)
		}
	}
	for _, ip := range []string{"", "256.1.1.1", "1.2.3", "example.com", "1.2.3.4:80"} {
		if IsValidIP(ip) {
			t.Errorf("%q accepted", ip)
		}
	}
}
