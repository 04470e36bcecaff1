// Command vmcheck fingerprints program snapshots and enumerates choice value
// specifications.
//
// Usage:
//
//	vmcheck fingerprint [--config FILE] [--graph] SNAPSHOT...
//	vmcheck choices [--kind int|double|interval|bool] [--seed N] SPEC
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
