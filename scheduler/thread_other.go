//go:build !linux

package scheduler

func osThreadID() int {
	return 0
}
