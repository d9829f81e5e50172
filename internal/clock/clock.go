package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now is a thin wrapper around NowFunc.
func Now() time.Time { return NowFunc() }

// NowUnixMilli returns the current time in unix milliseconds, the unit used
// on the gateway wire (timestamps, expiry).
func NowUnixMilli() int64 { return Now().UnixMilli() }
