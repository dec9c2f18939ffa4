// Command olivebridge is built as a C shared library and exposes the
// analysis entry point to native hosts.
//
//	go build -buildmode=c-shared -o libolivebridge.so ./cmd/olivebridge
//
// Exports:
//
//	int   RunOliveMatrixAnalysis(const char* dsm, const char* ndvi,
//	                             const char* shapefile, double* fcov,
//	                             double* mean_ndvi, bool denoise,
//	                             int area_threshold);
//	void* GetRunAnalysisFunctionPointer(void);
//
// The analysis component is looked up next to the library itself.
package main

/*
#include <stdbool.h>

extern void* olive_entry_address(void);
*/
import "C"

import (
	"context"
	"unsafe"

	"github.com/wippyai/olive-bridge/bridge"
)

var entry = bridge.NewEntryPoint(func() unsafe.Pointer {
	return C.olive_entry_address()
})

//export RunOliveMatrixAnalysis
func RunOliveMatrixAnalysis(dsmPath, ndviPath, shapefilePath *C.char, fCovOut, meanNdviOut *C.double, denoise C.bool, areaThreshold C.int) C.int {
	status := bridge.Default(shimDir).InvokeRaw(context.Background(), bridge.Raw{
		DSM:           unsafe.Pointer(dsmPath),
		NDVI:          unsafe.Pointer(ndviPath),
		Shapefile:     unsafe.Pointer(shapefilePath),
		FCovOut:       unsafe.Pointer(fCovOut),
		MeanNDVIOut:   unsafe.Pointer(meanNdviOut),
		Denoise:       bool(denoise),
		AreaThreshold: int32(areaThreshold),
	})
	return C.int(status)
}

//export GetRunAnalysisFunctionPointer
func GetRunAnalysisFunctionPointer() unsafe.Pointer {
	return entry.Address()
}

func main() {}
