//go:build !linux

package helpers

// GetTotalSystemMemoryMB is unknown off Linux; callers fall back to 512MB.
func GetTotalSystemMemoryMB() int {
	return 0
}
