//go:build !windows

package main

/*
#cgo linux LDFLAGS: -ldl
#define _GNU_SOURCE
#include <dlfcn.h>
#include <stddef.h>

extern void* olive_entry_address(void);

static const char* olive_module_path(void) {
	Dl_info info;
	if (dladdr(olive_entry_address(), &info) == 0 || info.dli_fname == NULL) {
		return NULL;
	}
	return info.dli_fname;
}
*/
import "C"

// modulePath returns the file the entry symbol was loaded from
func modulePath() string {
	p := C.olive_module_path()
	if p == nil {
		return ""
	}
	return C.GoString(p)
}
