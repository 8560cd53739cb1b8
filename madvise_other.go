//go:build !linux

package tabstego

// adviseSequential is a no-op on non-Linux platforms.
func adviseSequential(data []byte) {}
