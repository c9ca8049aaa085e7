package pathcase

import (
	"testing"

	"github.com/danmuck/bridgectl/internal/efi"
	"github.com/danmuck/bridgectl/internal/emulator"
)

func openRoot(t *testing.T, root *emulator.Dir) efi.File {
	t.Helper()
	vol := &emulator.Volume{Root: root}
	f, st := vol.OpenVolume()
	if st.IsError() {
		t.Fatalf("OpenVolume: %v", st)
	}
	return f
}

func TestResolve(t *testing.T) {
	root := emulator.NewDir().AddDir("EFI",
		emulator.NewDir().AddDir("Boot",
			emulator.NewDir().AddFile("bootx64.efi")))

	cases := []struct {
		guess string
		want  string
	}{
		{`\efi\boot\bootx64.efi`, `\EFI\Boot\bootx64.efi`},
		{`\EFI\BOOT\BOOTX64.EFI`, `\EFI\Boot\bootx64.efi`},
		{`\EFI\Boot\bootx64.efi`, `\EFI\Boot\bootx64.efi`},
		{`efi\boot\bootx64.efi`, `\EFI\Boot\bootx64.efi`},
		{`\efi`, `\EFI`},
	}
	for _, tc := range cases {
		got, st := Resolve(openRoot(t, root), tc.guess)
		if st.IsError() {
			t.Fatalf("Resolve(%q): %v", tc.guess, st)
		}
		if got != tc.want {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.guess, got, tc.want)
		}
	}
}

func TestResolveExactMatchWins(t *testing.T) {
	// Both casings exist; the exact one must be chosen over a fold match.
	root := emulator.NewDir().AddFile("readme.txt").AddFile("README.TXT")

	got, st := Resolve(openRoot(t, root), `\README.TXT`)
	if st.IsError() || got != `\README.TXT` {
		t.Fatalf("Resolve = %q, %v", got, st)
	}
	got, st = Resolve(openRoot(t, root), `\readme.txt`)
	if st.IsError() || got != `\readme.txt` {
		t.Fatalf("Resolve = %q, %v", got, st)
	}
}

func TestResolveNotFound(t *testing.T) {
	root := emulator.NewDir().AddDir("EFI", emulator.NewDir())

	if _, st := Resolve(openRoot(t, root), `\efi\boot\bootx64.efi`); st != efi.NotFound {
		t.Fatalf("missing component: %v", st)
	}
	if _, st := Resolve(openRoot(t, root), `\grub`); st != efi.NotFound {
		t.Fatalf("missing top-level entry: %v", st)
	}
}

func TestResolveFileAsDirectory(t *testing.T) {
	root := emulator.NewDir().AddFile("EFI")

	if _, st := Resolve(openRoot(t, root), `\efi\boot`); st != efi.NotFound {
		t.Fatalf("file used as directory: %v", st)
	}
}

func TestResolveEmptyPath(t *testing.T) {
	root := emulator.NewDir()

	if _, st := Resolve(openRoot(t, root), ``); st != efi.InvalidParameter {
		t.Fatalf("empty path: %v", st)
	}
	if _, st := Resolve(openRoot(t, root), `\`); st != efi.InvalidParameter {
		t.Fatalf("separator-only path: %v", st)
	}
}
