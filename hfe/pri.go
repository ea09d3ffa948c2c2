package hfe

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/fluxfox-go/fluxfox/diskimage"
	"github.com/fluxfox-go/fluxfox/track"
)

// priMagic identifies a PRI (PCE Raw Image) sector container: a small fixed
// geometry header followed by a flat, headerless run of fixed-size sectors,
// the same body layout IMG uses but with the geometry recorded in the file
// instead of inferred from its size.
var priMagic = [4]byte{'P', 'R', 'I', '1'}

type priHeader struct {
	Magic           [4]byte
	Cylinders       uint16
	Heads           uint8
	SectorsPerTrack uint8
	SectorSize      uint16
}

// ReadPRIImage reads a PRI file into a DiskImage of MetaSectorTracks.
func ReadPRIImage(filename string) (*diskimage.DiskImage, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var h priHeader
	if err := binary.Read(file, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if h.Magic != priMagic {
		return nil, fmt.Errorf("invalid PRI signature")
	}

	body, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read sector data: %w", err)
	}

	return buildFlatDiskImage(body, int(h.Cylinders), int(h.Heads), int(h.SectorsPerTrack), int(h.SectorSize), track.EncodingMFM, 250)
}

// WritePRIImage writes a DiskImage to a PRI file with an explicit geometry
// header.
func WritePRIImage(filename string, img *diskimage.DiskImage, cylinders, heads, sectorsPerTrack, sectorSize int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	h := priHeader{
		Magic:           priMagic,
		Cylinders:       uint16(cylinders),
		Heads:           uint8(heads),
		SectorsPerTrack: uint8(sectorsPerTrack),
		SectorSize:      uint16(sectorSize),
	}
	if err := binary.Write(file, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	data, err := flattenDiskImage(img, cylinders, heads, sectorsPerTrack, sectorSize)
	if err != nil {
		return err
	}
	if _, err := file.Write(data); err != nil {
		return fmt.Errorf("failed to write sector data: %w", err)
	}
	return nil
}

// ReadPRI reads a file in PRI format and returns a Disk structure.
func ReadPRI(filename string) (*Disk, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	var h priHeader
	if err := binary.Read(file, binary.LittleEndian, &h); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	file.Close()

	img, err := ReadPRIImage(filename)
	if err != nil {
		return nil, err
	}
	if h.SectorSize != ibmPCSectorSize {
		return nil, fmt.Errorf("ReadPRI: only %d-byte sectors can be converted to a bitstream Disk", ibmPCSectorSize)
	}
	rpm := uint16(300)
	if int(h.SectorsPerTrack) >= 15 {
		rpm = 360
	}
	return ToBitstreamDiskIBMPC(img, int(h.Cylinders), int(h.Heads), int(h.SectorsPerTrack), 250, rpm)
}

// WritePRI writes a Disk structure to a PRI format file.
func WritePRI(filename string, disk *Disk) error {
	return fmt.Errorf("WritePRI: converting a bitstream Disk to PRI is not supported, use WritePRIImage with a DiskImage")
}
