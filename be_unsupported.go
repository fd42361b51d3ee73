//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// The oto backend hands float32 buffers to the device as raw bytes in
// FormatFloat32LE, which assumes little-endian byte order.
var _ = "sf2synth requires a little-endian architecture" + 1
