package api

import (
	"fmt"

	"golang.org/x/mod/semver"

	"poscart/internal/model"
)

// checkServerVersion gates responses on the advertised API version.
// A missing header is accepted (pre-1.1 servers never sent one; the lenient
// ItemState parsing covers them). An unparsable or too-old version is an
// upstream error: proceeding would desynchronize cart state.
func checkServerVersion(got string) error {
	if got == "" {
		return nil
	}
	if !compatibleVersion(got, MinServerVersion) {
		return model.NewUpstreamError("billing",
			fmt.Errorf("server API version %q older than minimum %q", got, MinServerVersion))
	}
	return nil
}

// compatibleVersion reports whether got satisfies the minimum version.
// Versions travel without the "v" prefix semver.Compare expects.
func compatibleVersion(got, min string) bool {
	gv := "v" + got
	mv := "v" + min
	if !semver.IsValid(gv) {
		return false
	}
	return semver.Compare(gv, mv) >= 0
}
