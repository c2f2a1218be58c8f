package board

import (
	"strings"
	"testing"
)

func TestValidateManual(t *testing.T) {
	tests := []struct {
		name   string
		in     ManualInput
		fields []string
	}{
		{"valid", ManualInput{Name: "Desk", IP: "192.168.1.40"}, nil},
		{"valid with port", ManualInput{Name: "Desk", IP: "192.168.1.40", Port: "8080"}, nil},
		{"missing name", ManualInput{Name: "  ", IP: "192.168.1.40"}, []string{"name"}},
		{"missing ip", ManualInput{Name: "Desk"}, []string{"ip"}},
		{"bad octet", ManualInput{Name: "Desk", IP: "192.168.1.256"}, []string{"ip"}},
		{"too few octets", ManualInput{Name: "Desk", IP: "192.168.1"}, []string{"ip"}},
		{"hostname", ManualInput{Name: "Desk", IP: "wled.local"}, []string{"ip"}},
		{"port zero", ManualInput{Name: "Desk", IP: "10.0.0.1", Port: "0"}, []string{"port"}},
		{"port too high", ManualInput{Name: "Desk", IP: "10.0.0.1", Port: "65536"}, []string{"port"}},
		{"port not a number", ManualInput{Name: "Desk", IP: "10.0.0.1", Port: "http"}, []string{"port"}},
		{"everything wrong", ManualInput{IP: "x", Port: "-1"}, []string{"name", "ip", "port"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateManual(tt.in)
			if len(errs) != len(tt.fields) {
				t.Fatalf("ValidateManual() = %v, want fields %v", errs, tt.fields)
			}
			for _, f := range tt.fields {
				if _, ok := errs[f]; !ok {
					t.Errorf("ValidateManual() missing error for %s", f)
				}
			}
		})
	}
}

func TestNewManual(t *testing.T) {
	b, err := NewManual(ManualInput{Name: " Desk ", IP: " 192.168.1.40 ", Port: ""})
	if err != nil {
		t.Fatalf("NewManual() error = %v", err)
	}
	if !strings.HasPrefix(b.ID, "manual-") {
		t.Errorf("ID = %q, want manual- prefix", b.ID)
	}
	if b.Name != "Desk" || b.IP != "192.168.1.40" || b.Port != 80 {
		t.Errorf("NewManual() = %+v", b)
	}
	if b.IsOnline || !b.Manual {
		t.Errorf("IsOnline = %v, Manual = %v, want false, true", b.IsOnline, b.Manual)
	}

	other, _ := NewManual(ManualInput{Name: "Desk", IP: "192.168.1.40"})
	if other.ID == b.ID {
		t.Error("NewManual() reused an ID")
	}
}

func TestNewManualInvalid(t *testing.T) {
	_, err := NewManual(ManualInput{Name: "", IP: "1.2.3.4"})
	if err == nil {
		t.Fatal("NewManual() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "name: Name is required") {
		t.Errorf("Error() = %q", err.Error())
	}
}
