package sandbox

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"
	"strings"
)

// FailureConfig injects faults into the sandbox. Rate is the probability that
// a request is answered with Code instead of being served. Cut aborts every
// download response after that many body bytes.
type FailureConfig struct {
	Rate float64
	Code int
	Cut  int64
}

// Enabled reports whether any fault is configured.
func (c FailureConfig) Enabled() bool {
	return c.Rate > 0 || c.Cut > 0
}

func (c FailureConfig) shouldFail() bool {
	return c.Rate > 0 && rand.Float64() < c.Rate
}

func (c FailureConfig) status() int {
	if c.Code == 0 {
		return http.StatusInternalServerError
	}
	return c.Code
}

// ParseFailureConfig parses "rate=<float>,code=<status>,cut=<bytes>". Every
// key is optional; an empty string disables injection.
func ParseFailureConfig(raw string) (FailureConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return FailureConfig{}, nil
	}
	cfg := FailureConfig{Code: http.StatusInternalServerError}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			return FailureConfig{}, fmt.Errorf("sandbox: invalid fail segment %q", part)
		}
		val = strings.TrimSpace(val)
		switch strings.TrimSpace(key) {
		case "rate":
			rate, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return FailureConfig{}, fmt.Errorf("sandbox: fail rate: %w", err)
			}
			if rate < 0 || rate > 1 {
				return FailureConfig{}, fmt.Errorf("sandbox: fail rate %v outside [0,1]", rate)
			}
			cfg.Rate = rate
		case "code":
			code, err := strconv.Atoi(val)
			if err != nil {
				return FailureConfig{}, fmt.Errorf("sandbox: fail code: %w", err)
			}
			cfg.Code = code
		case "cut":
			cut, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return FailureConfig{}, fmt.Errorf("sandbox: fail cut: %w", err)
			}
			if cut <= 0 {
				return FailureConfig{}, fmt.Errorf("sandbox: fail cut must be positive, got %d", cut)
			}
			cfg.Cut = cut
		default:
			return FailureConfig{}, fmt.Errorf("sandbox: unknown fail key %q", key)
		}
	}
	return cfg, nil
}
