//go:build mage && !windows
// +build mage,!windows

package main

import (
	"syscall"
)

// the webhook and rpc tests open many short lived connections
func setULimit() error {
	var rLimit syscall.Rlimit
	err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit)
	if err != nil {
		return err
	}
	if rLimit.Cur >= 4096 {
		return nil
	}
	rLimit.Cur = 4096
	if rLimit.Max < rLimit.Cur {
		rLimit.Cur = rLimit.Max
	}
	return syscall.Setrlimit(syscall.RLIMIT_NOFILE, &rLimit)
}
