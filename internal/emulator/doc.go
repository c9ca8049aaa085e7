// Package emulator is an in-memory implementation of the efi.BootServices
// facade, backed either by programmatic fixtures or by a raw MBR disk image.
// It tracks every caller-owned allocation so tests can assert the bridge
// releases each one exactly once, and it supports failure injection for the
// firmware quirks the bridge has to survive.
package emulator
