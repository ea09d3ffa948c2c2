package hfe

import (
	"fmt"
	"os"

	"github.com/fluxfox-go/fluxfox/diskimage"
	"github.com/fluxfox-go/fluxfox/mfm"
	"github.com/fluxfox-go/fluxfox/track"
)

// ReadIMGImage reads a headerless IMG/IMA raw sector dump into a DiskImage
// of MetaSectorTracks. Geometry is inferred from the file size via
// mfm.DetectFormatFromSize, the same table the original fdx image verifier
// uses to recognize the standard PC diskette capacities.
func ReadIMGImage(filename string) (*diskimage.DiskImage, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cylinders, heads, sectorsPerTrack, err := mfm.DetectFormatFromSize(int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to detect IMG geometry: %w", err)
	}

	return buildFlatDiskImage(data, cylinders, heads, sectorsPerTrack, ibmPCSectorSize, track.EncodingMFM, 250)
}

// WriteIMGImage writes a DiskImage to a headerless IMG/IMA raw sector dump.
func WriteIMGImage(filename string, img *diskimage.DiskImage, cylinders, heads, sectorsPerTrack, sectorSize int) error {
	data, err := flattenDiskImage(img, cylinders, heads, sectorsPerTrack, sectorSize)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ReadIMG reads a file in IMG or IMA format and returns a Disk structure,
// by building a DiskImage and MFM-encoding it as an IBM PC bitstream.
func ReadIMG(filename string) (*Disk, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	cylinders, heads, sectorsPerTrack, err := mfm.DetectFormatFromSize(int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to detect IMG geometry: %w", err)
	}

	img, err := buildFlatDiskImage(data, cylinders, heads, sectorsPerTrack, ibmPCSectorSize, track.EncodingMFM, 250)
	if err != nil {
		return nil, err
	}

	rpm := uint16(300)
	if sectorsPerTrack >= 15 {
		rpm = 360
	}
	return ToBitstreamDiskIBMPC(img, cylinders, heads, sectorsPerTrack, 250, rpm)
}

// WriteIMG writes a Disk structure to an IMG or IMA format file by decoding
// every sector off its MFM bitstream and concatenating the raw data.
func WriteIMG(filename string, disk *Disk) error {
	cylinders := int(disk.Header.NumberOfTrack)
	heads := int(disk.Header.NumberOfSide)

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	for c := 0; c < cylinders; c++ {
		for h := 0; h < heads; h++ {
			var sideData []byte
			if h == 0 {
				sideData = disk.Tracks[c].Side0
			} else {
				sideData = disk.Tracks[c].Side1
			}
			if len(sideData) == 0 {
				return fmt.Errorf("empty track %d.%d", c, h)
			}

			reader := mfm.NewReader(sideData)
			count := reader.CountSectorsIBMPC()
			sectors := make(map[int][]byte, count)
			for len(sectors) < count {
				sectorNum, sectorData, err := reader.ReadSectorIBMPC(c, h)
				if err != nil {
					break
				}
				sectors[sectorNum] = sectorData
			}
			for s := 0; s < count; s++ {
				data, ok := sectors[s]
				if !ok {
					return fmt.Errorf("missing sector %d of track %d.%d", s, c, h)
				}
				if _, err := file.Write(data); err != nil {
					return fmt.Errorf("failed to write sector %d of track %d.%d: %w", s, c, h, err)
				}
			}
		}
	}
	return nil
}
