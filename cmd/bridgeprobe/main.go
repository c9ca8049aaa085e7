// bridgeprobe prints the partition table of a raw MBR disk image along with
// the filesystem each partition's OEM ID identifies. Useful for checking a
// prepared boot medium before pointing bridgectl at it.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/bridgectl/internal/bridge"
	"github.com/danmuck/bridgectl/internal/logging"
	"github.com/danmuck/bridgectl/internal/mbr"
)

func main() {
	logging.ConfigureRuntime()

	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: bridgeprobe <image>")
		os.Exit(2)
	}
	if err := probe(os.Args[1]); err != nil {
		log.Fatal().Err(err).Msg("bridgeprobe")
	}
}

func probe(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(raw) < mbr.SectorSize {
		return mbr.ErrInvalidBootRecord
	}
	parts, err := mbr.Parse(raw[:mbr.SectorSize])
	if err != nil {
		return err
	}

	for _, part := range parts {
		oem := "-"
		start := uint64(part.FirstLBA) * mbr.SectorSize
		if start+mbr.SectorSize <= uint64(len(raw)) {
			if fs, ok := bridge.DetectFilesystem(raw[start : start+mbr.SectorSize]); ok {
				oem = fs.String()
			}
		}
		boot := " "
		if part.Bootable {
			boot = "*"
		}
		fmt.Printf("%d %s %-14s lba=%-10d sectors=%-10d oem=%s\n",
			part.Index+1, boot, mbr.TypeName(part.Type), part.FirstLBA, part.Sectors, oem)
	}
	return nil
}
