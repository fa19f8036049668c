package stage

import (
	"errors"
	"testing"

	"clipforge/internal/services"
)

func TestArgsValidate(t *testing.T) {
	tests := []struct {
		name    string
		stage   Name
		args    Args
		wantErr bool
	}{
		{"audio extract", AudioExtract, Args{ProjectID: "prj_1"}, false},
		{"audio extract missing project", AudioExtract, Args{}, true},
		{"silence map without asset", SilenceMap, Args{ProjectID: "prj_1"}, false},
		{"transcribe needs asset", Transcribe, Args{ProjectID: "prj_1"}, true},
		{"transcribe", Transcribe, Args{ProjectID: "prj_1", AssetID: "a1"}, false},
		{"highlight pick", HighlightPick, Args{ProjectID: "prj_1"}, false},
		{"preview needs clip", PreviewRender, Args{ProjectID: "prj_1"}, true},
		{"preview", PreviewRender, Args{ProjectID: "prj_1", ClipID: "c1"}, false},
		{"unknown stage", Name("export"), Args{ProjectID: "prj_1"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.args.Validate(tt.stage)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected validation error")
				}
				if !errors.Is(err, services.ErrValidation) {
					t.Fatalf("expected ErrValidation, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseName(t *testing.T) {
	got, err := ParseName(" Preview-Render ")
	if err != nil {
		t.Fatalf("ParseName: %v", err)
	}
	if got != PreviewRender {
		t.Fatalf("got %q", got)
	}
	if _, err := ParseName("encode"); err == nil {
		t.Fatal("expected error for unknown stage")
	}
}

func TestHealthConstructors(t *testing.T) {
	if h := Healthy("transcoder"); !h.Ready || h.Name != "transcoder" {
		t.Fatalf("unexpected healthy record: %+v", h)
	}
	if h := Unhealthy("transcoder", "ffmpeg missing"); h.Ready || h.Detail != "ffmpeg missing" {
		t.Fatalf("unexpected unhealthy record: %+v", h)
	}
}
