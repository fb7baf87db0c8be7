//go:build linux

package backend

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

func permissionsToProt(perms Permissions) int {
	prot := 0
	if perms&PermRead != 0 {
		prot |= unix.PROT_READ
	}
	if perms&PermWrite != 0 {
		prot |= unix.PROT_WRITE
	}
	if perms&PermExecute != 0 {
		prot |= unix.PROT_EXEC
	}
	return prot
}

var (
	anonOnce sync.Once
	anonFd   int
	anonSize int64
	anonMu   sync.Mutex
)

// anonymousFd returns the shared anonymous file backing routine
// pages, created once per process. A negative fd selects plain
// anonymous mappings.
func anonymousFd() int {
	anonOnce.Do(func() {
		fd, err := unix.MemfdCreate("swgl-routines", 0)
		if err != nil {
			anonFd = -1
			return
		}
		anonFd = fd
	})
	return anonFd
}

func ensureAnonFileSize(length int64) error {
	anonMu.Lock()
	defer anonMu.Unlock()
	if length > anonSize {
		if err := unix.Ftruncate(anonFd, length); err != nil {
			return err
		}
		anonSize = length
	}
	return nil
}

func pageSize() int {
	return unix.Getpagesize()
}

func roundUpPages(n int) int {
	ps := pageSize()
	return (n + ps - 1) &^ (ps - 1)
}

// AllocatePages maps routine memory with the requested permissions,
// backed by the named anonymous file when available.
func AllocatePages(bytes int, perms Permissions) (*PageBlock, error) {
	length := roundUpPages(bytes)
	prot := permissionsToProt(perms)

	fd := anonymousFd()
	var (
		data []byte
		err  error
	)
	if fd >= 0 {
		if err = ensureAnonFileSize(int64(length)); err == nil {
			data, err = unix.Mmap(fd, 0, length, prot, unix.MAP_PRIVATE)
		}
	}
	if data == nil {
		data, err = unix.Mmap(-1, 0, length, prot, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	}
	if err != nil {
		return nil, fmt.Errorf("backend: mmap of %d bytes failed: %w", length, err)
	}
	return &PageBlock{data: data, size: bytes}, nil
}

// Protect changes the page protections of the whole block.
func (p *PageBlock) Protect(perms Permissions) error {
	if p.data == nil {
		return nil
	}
	return unix.Mprotect(p.data, permissionsToProt(perms))
}

// Free unmaps the block.
func (p *PageBlock) Free() error {
	if p.data == nil {
		return nil
	}
	err := unix.Munmap(p.data)
	p.data = nil
	return err
}
