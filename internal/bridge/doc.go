// Package bridge implements the pre-boot chain-load flow: disconnect
// bindings that would block a filesystem driver, discover the NTFS or exFAT
// partition on the boot disk by its sector-0 OEM ID, replace or provision the
// driver servicing it, open the volume, case-resolve the second-stage loader
// path, and chain-load it.
package bridge
