//go:build !unix

package update

import "syscall"

func detachedProcAttr() *syscall.SysProcAttr { return nil }
