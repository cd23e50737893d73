// Package goid reports the runtime ID of the calling goroutine.
package goid

import "runtime"

// Current returns the ID of the calling goroutine, parsed from the header line of
// runtime.Stack ("goroutine 42 [running]:"). It returns 0 if the header is malformed.
func Current() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		c := buf[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}
