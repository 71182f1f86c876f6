package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestHandleCloudError(t *testing.T) {
	log := zerolog.Nop()
	deadline := fmt.Errorf("recognize: %w", context.DeadlineExceeded)

	tests := []struct {
		name    string
		err     error
		hint    string
		want    string
		wantNot string
	}{
		{
			name:    "deadline without timeout flag",
			err:     deadline,
			want:    "operation timed out",
			wantNot: "--timeout",
		},
		{
			name: "deadline with timeout flag",
			err:  deadline,
			hint: recognizeTimeoutHint,
			want: "operation timed out. Try increasing --timeout",
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: "operation was canceled",
		},
		{
			name: "unauthenticated",
			err:  errors.New("rpc error: code = Unauthenticated desc = bad token"),
			want: "authentication failed",
		},
		{
			name: "quota",
			err:  errors.New("rpc error: code = ResourceExhausted desc = QUOTA_EXCEEDED"),
			want: "quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handleCloudError(tt.err, tt.hint, log)
			if got == nil {
				t.Fatal("handleCloudError() = nil")
			}
			if !strings.Contains(got.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", got, tt.want)
			}
			if tt.wantNot != "" && strings.Contains(got.Error(), tt.wantNot) {
				t.Errorf("error = %q, must not mention %q", got, tt.wantNot)
			}
		})
	}
}

func TestHandleCloudErrorPassesThroughUnknown(t *testing.T) {
	err := errors.New("disk full")
	if got := handleCloudError(err, "", zerolog.Nop()); got != err {
		t.Errorf("handleCloudError() = %v, want original error", got)
	}
}
