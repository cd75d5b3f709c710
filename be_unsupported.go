//go:build !(amd64 || arm64 || 386 || arm || riscv64 || loong64 || mipsle || mips64le || ppc64le || wasm)

package main

// The audio pull path copies float32 sample buffers to the device as raw
// little-endian bytes through unsafe.Pointer.
var _ = "ChipDeck requires a little-endian architecture" + 1
