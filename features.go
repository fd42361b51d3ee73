// features.go - Build-time feature report

package main

import (
	"fmt"
	"io"
	"runtime"
	"sort"
)

// compiledFeatures tracks build-time feature flags via init() registration.
var compiledFeatures []string

func printFeatures(w io.Writer) {
	fmt.Fprintf(w, "sf2synth %s\n", version)
	fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
	fmt.Fprintf(w, "  OS/Arch:    %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Compiled features:")

	features := append([]string(nil), compiledFeatures...)
	sort.Strings(features)
	for _, f := range features {
		fmt.Fprintf(w, "  %s\n", f)
	}
	if len(features) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
}
