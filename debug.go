// debug.go - Environment-gated diagnostics.

package main

import (
	"fmt"
	"os"
	"strings"
)

// chipdeckDebug is read once at startup; flipping the environment at
// run time has no effect.
var chipdeckDebug = func() bool {
	value := strings.ToLower(os.Getenv("CHIPDECK_DEBUG"))
	return value == "1" || value == "true" || value == "yes"
}()

func debugf(format string, args ...any) {
	if !chipdeckDebug {
		return
	}
	fmt.Printf(format, args...)
}
