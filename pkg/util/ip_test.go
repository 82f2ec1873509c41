package util

import "testing"

func TestIsValidIPv4(t *testing.T) {
	tests := []struct {
		ip   string
		want bool
	}{
		{"172.20.0.11", true},
		{"192.1.2.12", true},
		{"256.1.1.1", false},
		{"2001:db8::1", false},
		{"", false},
		{"not-an-ip", false},
	}

	for _, tt := range tests {
		if got := IsValidIPv4(tt.ip); got != tt.want {
			t.Errorf("IsValidIPv4(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}
}

func TestIsValidIPv4CIDR(t *testing.T) {
	tests := []struct {
		cidr string
		want bool
	}{
		{"172.20.0.0/24", true},
		{"192.1.2.11/24", true},
		{"192.1.2.11", false},
		{"2001:db8::/32", false},
		{"10.0.0.0/33", false},
	}

	for _, tt := range tests {
		if got := IsValidIPv4CIDR(tt.cidr); got != tt.want {
			t.Errorf("IsValidIPv4CIDR(%q) = %v, want %v", tt.cidr, got, tt.want)
		}
	}
}

func TestSplitIPMask(t *testing.T) {
	ip, mask := SplitIPMask("192.1.2.11/24")
	if ip != "192.1.2.11" || mask != 24 {
		t.Errorf("SplitIPMask = %q/%d, want 192.1.2.11/24", ip, mask)
	}

	ip, mask = SplitIPMask("172.20.0.11")
	if ip != "172.20.0.11" || mask != 0 {
		t.Errorf("SplitIPMask without mask = %q/%d, want 172.20.0.11/0", ip, mask)
	}
}

func TestValidatePort(t *testing.T) {
	if err := ValidatePort(2211); err != nil {
		t.Errorf("ValidatePort(2211) = %v, want nil", err)
	}
	if err := ValidatePort(0); err == nil {
		t.Error("ValidatePort(0) should error")
	}
	if err := ValidatePort(70000); err == nil {
		t.Error("ValidatePort(70000) should error")
	}
}
