package config

import (
	"errors"
	"strings"
	"testing"
)

func validMonitorConfig(t *testing.T) Config {
	clearEnv(t)
	t.Setenv("DESTINATIONS", "dev1/mod1")
	t.Setenv("HUB_API_URL", "https://hub.example.net")
	return Load()
}

func TestValidate_Valid(t *testing.T) {
	cfg := validMonitorConfig(t)
	if err := Validate(cfg); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	err := Validate(cfg)
	if err == nil {
		t.Fatal("empty config accepted")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("error type = %T, want ValidationErrors", err)
	}

	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	if !fields["DESTINATIONS"] {
		t.Error("missing DESTINATIONS not reported")
	}
	if !fields["HUB_API_URL"] {
		t.Error("missing HUB_API_URL not reported")
	}
}

func TestValidate_MalformedDestinations(t *testing.T) {
	cfg := validMonitorConfig(t)
	cfg.Destinations = "dev1/mod1,badentry"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("malformed destinations accepted")
	}
	if !strings.Contains(err.Error(), "DESTINATIONS") {
		t.Errorf("error does not name the field: %v", err)
	}
}

func TestValidate_Durations(t *testing.T) {
	tests := []struct {
		name  string
		value string
		valid bool
	}{
		{"valid seconds", "30s", true},
		{"valid minutes", "2m", true},
		{"not a duration", "soon", false},
		{"zero", "0s", false},
		{"negative", "-5s", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validMonitorConfig(t)
			cfg.InvokeTimeoutStr = tt.value

			err := Validate(cfg)
			if tt.valid && err != nil {
				t.Errorf("value %q rejected: %v", tt.value, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("value %q accepted", tt.value)
			}
		})
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := validMonitorConfig(t)
	cfg.LogLevelStr = "shouty"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("invalid log level accepted")
	}
	if !strings.Contains(err.Error(), "LOG_LEVEL") {
		t.Errorf("error does not name the field: %v", err)
	}
}

func TestValidateEdge_Valid(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUB_INGEST_URL", "http://monitor:8080/ingest")
	cfg := Load()

	if err := ValidateEdge(cfg); err != nil {
		t.Errorf("valid edge config rejected: %v", err)
	}
}

func TestValidateEdge_MissingIngestURL(t *testing.T) {
	clearEnv(t)
	cfg := Load()

	err := ValidateEdge(cfg)
	if err == nil {
		t.Fatal("edge config without HUB_INGEST_URL accepted")
	}
	if !strings.Contains(err.Error(), "HUB_INGEST_URL") {
		t.Errorf("error does not name the field: %v", err)
	}
}

// The monitor-side required fields are irrelevant to the edge binary.
func TestValidateEdge_IgnoresMonitorFields(t *testing.T) {
	clearEnv(t)
	t.Setenv("HUB_INGEST_URL", "http://monitor:8080/ingest")
	cfg := Load()
	cfg.Destinations = ""
	cfg.HubAPIURL = ""

	if err := ValidateEdge(cfg); err != nil {
		t.Errorf("edge validation rejected monitor-field absence: %v", err)
	}
}

func TestValidationErrorsMessage(t *testing.T) {
	errs := ValidationErrors{
		{Field: "A", Message: "required"},
		{Field: "B", Message: "must be positive"},
	}
	msg := errs.Error()
	if !strings.Contains(msg, "2 validation errors") {
		t.Errorf("message = %q", msg)
	}
	if !strings.Contains(msg, "A: required") || !strings.Contains(msg, "B: must be positive") {
		t.Errorf("message missing details: %q", msg)
	}

	single := ValidationErrors{{Field: "A", Message: "required"}}
	if single.Error() != "A: required" {
		t.Errorf("single error message = %q", single.Error())
	}
}
