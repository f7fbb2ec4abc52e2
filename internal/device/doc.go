// Package device runs one worker goroutine per physical device and keeps a
// manager-side cache of each device's last known state.
//
// A worker owns its driver exclusively. Callers never talk to hardware;
// they hand the worker a desired state through a single-slot mailbox that
// keeps only the newest value, so a burst of requests collapses into one
// write. Each worker also exposes two one-shot readiness signals, fired
// when the driver connects and when the initial status has been read.
//
// The same Worker and Manager serve every device kind; bulbs instantiate
// them with color.RGB and outlets with bool.
package device
