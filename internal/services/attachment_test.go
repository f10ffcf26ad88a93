package services

import (
	"context"
	"strings"
	"testing"
)

func TestAttachmentKeyRejectsPathTraversal(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		wantKey  string
		wantErr  bool
	}{
		{"plain name", "photo.jpg", "incidents/inc-1/photo.jpg", false},
		{"stripped directory", "uploads/photo.jpg", "incidents/inc-1/photo.jpg", false},
		{"dot dot", "..", "", true},
		{"empty", "   ", "", true},
		{"trailing slash", "photo/", "incidents/inc-1/photo", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key, err := attachmentKey("inc-1", tc.filename)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got key %q", tc.filename, key)
				}
				return
			}
			if err != nil {
				t.Fatalf("attachmentKey(%q): %v", tc.filename, err)
			}
			if key != tc.wantKey {
				t.Fatalf("expected key %q, got %q", tc.wantKey, key)
			}
		})
	}
}

func TestAttachmentServiceDisabledWithoutBackend(t *testing.T) {
	svc := NewAttachmentService(nil)
	if svc.Enabled() {
		t.Fatalf("expected service to be disabled without a backend")
	}

	if _, err := svc.Upload(context.Background(), "inc-1", "photo.jpg", strings.NewReader("x"), 1, "image/jpeg"); err == nil {
		t.Fatalf("expected upload to fail when storage is not configured")
	}
	if _, err := svc.Open(context.Background(), "inc-1", "photo.jpg"); err == nil {
		t.Fatalf("expected open to fail when storage is not configured")
	}
}
