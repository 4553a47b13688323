// Sentinel tracks usage, estimated cost, budget alerts and health of the
// metered services sharing one key-value store.
//
// Usage:
//
//	# Serve the status surface and run the scheduled checks
//	sentinel run --config /etc/sentinel/config.yaml
//
//	# Run every budget check once (for an external scheduler)
//	sentinel budget check
//
//	# Gate a deployment on the health of the critical services
//	sentinel validate-critical maps geocoder
//
//	# Record a health observation from a probe
//	sentinel health record maps ok 120
//
//	# Show the resolved environment
//	sentinel env
package main

import "os"

func main() {
	os.Exit(Execute())
}
