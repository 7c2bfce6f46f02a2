package backend

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/zsolt-donca/scanout/internal/drm"
)

var modeRequestRe = regexp.MustCompile(`^(\d+)x(\d+)(?:@(\d+))?$`)

// selectMode picks a timing mode from the hardware-reported list.
// Three request forms:
//
//	"preferred"          the hardware's first (most preferred) mode
//	"current"            the mode saved from the previously active
//	                     pipeline; fails if nothing was configured
//	"<w>x<h>[@<rate>]"   first exact resolution match; the rate must
//	                     also match exactly when given
func selectMode(modes []drm.ModeInfo, saved *drm.Crtc, request string) (*drm.ModeInfo, error) {
	switch request {
	case "preferred":
		return &modes[0], nil

	case "current":
		if saved == nil || !saved.ModeValid {
			return nil, ErrNoCurrentMode
		}
		for i := range modes {
			if modes[i] == saved.Mode {
				return &modes[i], nil
			}
		}
		// The snapshot was taken from this connector's pipeline, so
		// its mode must be in the list the connector reports.
		panic(fmt.Sprintf("saved mode %s missing from connector mode list", saved.Mode))
	}

	m := modeRequestRe.FindStringSubmatch(request)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", ErrBadModeRequest, request)
	}

	width, _ := strconv.ParseUint(m[1], 10, 16)
	height, _ := strconv.ParseUint(m[2], 10, 16)
	var rate uint64
	if m[3] != "" {
		rate, _ = strconv.ParseUint(m[3], 10, 32)
	}

	for i := range modes {
		if uint64(modes[i].Hdisplay) == width &&
			uint64(modes[i].Vdisplay) == height &&
			(rate == 0 || uint64(modes[i].Vrefresh) == rate) {
			return &modes[i], nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrModeNotFound, request)
}
