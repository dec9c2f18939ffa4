//go:build windows

package main

/*
#include <windows.h>

extern void* olive_entry_address(void);

static DWORD olive_module_path(char* buf, DWORD size) {
	HMODULE mod = NULL;
	if (!GetModuleHandleExA(GET_MODULE_HANDLE_EX_FLAG_FROM_ADDRESS | GET_MODULE_HANDLE_EX_FLAG_UNCHANGED_REFCOUNT,
			(LPCSTR)olive_entry_address(), &mod)) {
		return 0;
	}
	return GetModuleFileNameA(mod, buf, size);
}
*/
import "C"

import "unsafe"

// modulePath returns the DLL the entry symbol was loaded from
func modulePath() string {
	buf := make([]byte, 4096)
	n := C.olive_module_path((*C.char)(unsafe.Pointer(&buf[0])), C.DWORD(len(buf)))
	if n == 0 || int(n) >= len(buf) {
		return ""
	}
	return string(buf[:n])
}
