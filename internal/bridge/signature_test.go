package bridge

import (
	"testing"
	"time"

	"github.com/danmuck/bridgectl/internal/efi"
	"github.com/danmuck/bridgectl/internal/emulator"
)

func TestDetectFilesystem(t *testing.T) {
	cases := []struct {
		oem  string
		want Filesystem
		ok   bool
	}{
		{"NTFS    ", FSNtfs, true},
		{"EXFAT   ", FSExfat, true},
		{"MSDOS5.0", FSUnknown, false},
		{"NTFS", FSUnknown, false}, // unpadded, never matches
		{"ntfs    ", FSUnknown, false},
	}
	for _, tc := range cases {
		fs, ok := DetectFilesystem(emulator.OEMSector(tc.oem))
		if fs != tc.want || ok != tc.ok {
			t.Fatalf("DetectFilesystem(%q) = %v, %v", tc.oem, fs, ok)
		}
	}

	if _, ok := DetectFilesystem(make([]byte, 4)); ok {
		t.Fatalf("short sector matched")
	}
	if _, ok := DetectFilesystem(nil); ok {
		t.Fatalf("nil sector matched")
	}
}

func TestFilesystemNames(t *testing.T) {
	if FSNtfs.String() != "NTFS" || FSExfat.String() != "exFAT" {
		t.Fatalf("display names wrong: %q, %q", FSNtfs, FSExfat)
	}
	if FSNtfs.DriverID() != "ntfs" || FSExfat.DriverID() != "exfat" {
		t.Fatalf("driver ids wrong")
	}
	if FSUnknown.DriverID() != "" {
		t.Fatalf("unknown filesystem has a driver id")
	}
}

func TestHasBootmgrSignature(t *testing.T) {
	sig := []byte("bootmgr.dll\x00")
	place := func(size, off int) []byte {
		code := make([]byte, size)
		copy(code[off:], sig)
		return code
	}

	if !HasBootmgrSignature(place(1024, 0x80)) {
		t.Fatalf("signature in body not found")
	}
	// The scan starts past the image header.
	if HasBootmgrSignature(place(1024, 0x10)) {
		t.Fatalf("signature inside the header region matched")
	}
	if !HasBootmgrSignature(place(1024, 0x40)) {
		t.Fatalf("signature at scan start not found")
	}
	// The scan stops one signature length before the image end.
	if HasBootmgrSignature(place(1024, 1024-len(sig))) {
		t.Fatalf("signature at the very end matched")
	}
	// The trailing NUL is part of the signature.
	noNul := make([]byte, 1024)
	copy(noNul[0x80:], "bootmgr.dllX")
	if HasBootmgrSignature(noNul) {
		t.Fatalf("matched without the terminator")
	}
	if HasBootmgrSignature(make([]byte, 16)) {
		t.Fatalf("matched in an image smaller than the signature")
	}
	if HasBootmgrSignature(nil) {
		t.Fatalf("matched in an empty image")
	}
}

func TestRetryStatus(t *testing.T) {
	// Succeeds on the third attempt: two delays, two failure callbacks.
	attempts, fails, sleeps := 0, 0, 0
	st := retryStatus(4, time.Second, func(time.Duration) { sleeps++ },
		func(try int) efi.Status {
			attempts++
			if try < 2 {
				return efi.Unsupported
			}
			return efi.Success
		},
		func(try int, st efi.Status) { fails++ })
	if st != efi.Success {
		t.Fatalf("retryStatus: %v", st)
	}
	if attempts != 3 || fails != 2 || sleeps != 2 {
		t.Fatalf("attempts=%d fails=%d sleeps=%d", attempts, fails, sleeps)
	}

	// Exhaustion: retries+1 attempts, a delay between each pair, and the
	// last attempt's status is returned.
	attempts, sleeps = 0, 0
	st = retryStatus(4, time.Second, func(time.Duration) { sleeps++ },
		func(try int) efi.Status {
			attempts++
			return efi.DeviceError
		}, nil)
	if st != efi.DeviceError {
		t.Fatalf("retryStatus: %v", st)
	}
	if attempts != 5 || sleeps != 4 {
		t.Fatalf("attempts=%d sleeps=%d", attempts, sleeps)
	}

	// Zero retries means one attempt, no delay.
	attempts, sleeps = 0, 0
	st = retryStatus(0, time.Second, func(time.Duration) { sleeps++ },
		func(try int) efi.Status {
			attempts++
			return efi.NotReady
		}, nil)
	if st != efi.NotReady || attempts != 1 || sleeps != 0 {
		t.Fatalf("st=%v attempts=%d sleeps=%d", st, attempts, sleeps)
	}
}

func TestArchTag(t *testing.T) {
	cases := map[string]string{
		"amd64":   "x64",
		"386":     "ia32",
		"arm64":   "aa64",
		"arm":     "arm",
		"riscv64": "riscv64",
		"loong64": "loongarch64",
		"mips":    "mips",
	}
	for goarch, want := range cases {
		if got := ArchTag(goarch); got != want {
			t.Fatalf("ArchTag(%q) = %q, want %q", goarch, got, want)
		}
	}
}
