// Package efi defines the platform facade the bridge runs against: the
// status domain, opaque handles, protocol identities, device paths, and the
// boot-services surface consumed by the discovery and chain-load flow.
//
// Real firmware is one implementation of BootServices; internal/emulator is
// another, backed by raw disk images, used by tests and bridgectl verify.
package efi
