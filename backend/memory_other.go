//go:build !linux

package backend

import (
	"fmt"

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

func roundUpPages(n int) int {
	ps := unix.Getpagesize()
	return (n + ps - 1) &^ (ps - 1)
}

// AllocatePages maps routine memory with the requested permissions.
func AllocatePages(bytes int, perms Permissions) (*PageBlock, error) {
	length := roundUpPages(bytes)
	data, err := unix.Mmap(-1, 0, length, permissionsToProt(perms), unix.MAP_PRIVATE|unix.MAP_ANON)
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
