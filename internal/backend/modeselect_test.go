package backend

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zsolt-donca/scanout/internal/drm"
)

func TestSelectMode(t *testing.T) {
	modes := []drm.ModeInfo{
		mkMode(1920, 1080, 60),
		mkMode(1920, 1080, 75),
		mkMode(1280, 720, 60),
	}

	tests := []struct {
		name    string
		request string
		saved   *drm.Crtc
		want    *drm.ModeInfo
		wantErr error
	}{
		{
			name:    "preferred picks the hardware's first mode",
			request: "preferred",
			want:    &modes[0],
		},
		{
			name:    "exact resolution and rate",
			request: "1920x1080@75",
			want:    &modes[1],
		},
		{
			name:    "resolution without rate picks first match",
			request: "1920x1080",
			want:    &modes[0],
		},
		{
			name:    "no mode at requested rate",
			request: "1920x1080@144",
			wantErr: ErrModeNotFound,
		},
		{
			name:    "no mode at requested resolution",
			request: "640x480",
			wantErr: ErrModeNotFound,
		},
		{
			name:    "unparseable request",
			request: "fullhd",
			wantErr: ErrBadModeRequest,
		},
		{
			name:    "garbage around a valid shape",
			request: "1920x1080@",
			wantErr: ErrBadModeRequest,
		},
		{
			name:    "current without a snapshot fails",
			request: "current",
			wantErr: ErrNoCurrentMode,
		},
		{
			name:    "current without a configured mode fails",
			request: "current",
			saved:   &drm.Crtc{ID: 100},
			wantErr: ErrNoCurrentMode,
		},
		{
			name:    "current matches the snapshot structurally",
			request: "current",
			saved:   &drm.Crtc{ID: 100, ModeValid: true, Mode: mkMode(1280, 720, 60)},
			want:    &modes[2],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := selectMode(modes, tt.saved, tt.request)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestSelectModeCurrentSnapshotMismatchPanics(t *testing.T) {
	modes := []drm.ModeInfo{mkMode(1920, 1080, 60)}
	saved := &drm.Crtc{ID: 100, ModeValid: true, Mode: mkMode(800, 600, 60)}

	// A snapshot that matches nothing in the connector's list means
	// the two are mutually inconsistent, which is a logic bug.
	require.Panics(t, func() {
		_, _ = selectMode(modes, saved, "current")
	})
}
