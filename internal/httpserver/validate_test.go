package httpserver

import (
	"net/http/httptest"
	"strings"
	"testing"
)

type sampleRequest struct {
	ChannelID string `json:"channel_id" validate:"required"`
	Message   string `json:"message" validate:"required,min=1"`
}

func TestDecodeEmptyBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(""))
	var dst sampleRequest
	if err := Decode(r, &dst); err == nil {
		t.Error("Decode() with empty body should fail")
	}
}

func TestDecodeUnknownField(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"channel_id":"c1","message":"hi","bogus":1}`))
	var dst sampleRequest
	if err := Decode(r, &dst); err == nil {
		t.Error("Decode() with unknown field should fail")
	}
}

func TestDecodeTrailingData(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"channel_id":"c1","message":"hi"}{"again":true}`))
	var dst sampleRequest
	if err := Decode(r, &dst); err == nil {
		t.Error("Decode() with trailing data should fail")
	}
}

func TestValidateMissingRequired(t *testing.T) {
	errs := Validate(sampleRequest{Message: "hi"})
	if len(errs) != 1 {
		t.Fatalf("Validate() returned %d errors, want 1", len(errs))
	}
	if errs[0].Message != "this field is required" {
		t.Errorf("message = %q", errs[0].Message)
	}
}

func TestValidateOK(t *testing.T) {
	errs := Validate(sampleRequest{ChannelID: "c1", Message: "hi"})
	if len(errs) != 0 {
		t.Errorf("Validate() returned %d errors, want 0: %v", len(errs), errs)
	}
}

func TestToSnakeCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Message", "message"},
		{"ChannelName", "channel_name"},
		{"comment", "comment"},
	}
	for _, tt := range tests {
		if got := toSnakeCase(tt.in); got != tt.want {
			t.Errorf("toSnakeCase(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
