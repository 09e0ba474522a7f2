// holocam turns a webcam into a hologram: it stylizes every frame, keeps
// the subject over a static background using a remote segmentation
// service, and publishes the result to a v4l2loopback virtual camera.
//
// Usage:
//
//	holocam [output-device]
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "holocam: %v\n", err)
		os.Exit(1)
	}
}
