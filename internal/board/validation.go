package board

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/muurk/wledui/internal/wled"
)

var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// ManualInput is the raw form a user fills in to add a board by hand.
type ManualInput struct {
	Name string `json:"name"`
	IP   string `json:"ip"`
	Port string `json:"port"`
}

// FieldErrors maps a form field to its message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, fe[k]))
	}
	return strings.Join(parts, "; ")
}

// ValidateIPv4 checks a dotted-quad address.
func ValidateIPv4(ip string) error {
	if !ipv4Pattern.MatchString(ip) {
		return wled.NewValidationError("Invalid IP address format")
	}
	return nil
}

// ValidatePort parses a port. Empty means the default port.
func ValidatePort(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return wled.DefaultPort, nil
	}
	p, err := strconv.Atoi(s)
	if err != nil || p < 1 || p > 65535 {
		return 0, wled.NewValidationError("Port must be between 1 and 65535")
	}
	return p, nil
}

// ValidateManual checks the form and returns every problem found, or nil.
func ValidateManual(in ManualInput) FieldErrors {
	errs := FieldErrors{}

	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = "Name is required"
	}

	ip := strings.TrimSpace(in.IP)
	if ip == "" {
		errs["ip"] = "IP address is required"
	} else if err := ValidateIPv4(ip); err != nil {
		errs["ip"] = "Invalid IP address format"
	}

	if _, err := ValidatePort(in.Port); err != nil {
		errs["port"] = "Port must be between 1 and 65535"
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// NewManual validates the form and builds an offline board with a fresh
// "manual-" ID.
func NewManual(in ManualInput) (Board, error) {
	if errs := ValidateManual(in); errs != nil {
		return Board{}, errs
	}
	port, _ := ValidatePort(in.Port)
	b := New(Params{
		ID:   "manual-" + uuid.NewString(),
		Name: strings.TrimSpace(in.Name),
		IP:   strings.TrimSpace(in.IP),
		Port: port,
	})
	b.Manual = true
	return b, nil
}
