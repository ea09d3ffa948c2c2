package hfe

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/fluxfox-go/fluxfox/chs"
	"github.com/fluxfox-go/fluxfox/diskimage"
	"github.com/fluxfox-go/fluxfox/metasector"
	"github.com/fluxfox-go/fluxfox/track"
)

func TestImdSectorSize(t *testing.T) {
	cases := map[byte]int{0: 128, 1: 256, 2: 512, 3: 1024, 4: 2048}
	for code, want := range cases {
		if got := imdSectorSize(code); got != want {
			t.Errorf("imdSectorSize(%d) = %d, want %d", code, got, want)
		}
	}
}

func syntheticSectorData(cylinder, sector, size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(cylinder + sector + i)
	}
	return data
}

func TestWriteReadIMDImageRoundTrip(t *testing.T) {
	const cylinders, heads, sectorsPerTrack, sectorSize = 2, 1, 9, 512

	src := diskimage.New()
	for c := 0; c < cylinders; c++ {
		mt := metasector.NewMetaSectorTrack(chs.CH{Cylinder: uint8(c), Head: 0}, track.EncodingMFM, 250)
		for s := 1; s <= sectorsPerTrack; s++ {
			mt.AddSector(metasector.SectorDescriptor{
				IDChsn: chs.CHSN{Cylinder: uint8(c), Head: 0, Sector: uint8(s), N: 2},
				Data:   syntheticSectorData(c, s, sectorSize),
			}, false)
		}
		src.AddTrack(mt)
	}

	path := filepath.Join(t.TempDir(), "test.imd")
	if err := WriteIMDImage(path, src, cylinders, heads, sectorsPerTrack, sectorSize); err != nil {
		t.Fatalf("WriteIMDImage() error: %v", err)
	}

	raw, err := ReadIMDFile(path)
	if err != nil {
		t.Fatalf("ReadIMDFile() error: %v", err)
	}
	if len(raw.Tracks) != cylinders*heads {
		t.Fatalf("got %d track records, want %d", len(raw.Tracks), cylinders*heads)
	}
	if int(raw.Tracks[0].Nsec) != sectorsPerTrack {
		t.Errorf("Nsec = %d, want %d", raw.Tracks[0].Nsec, sectorsPerTrack)
	}
	if imdSectorSize(raw.Tracks[0].Ssize) != sectorSize {
		t.Errorf("sector size = %d, want %d", imdSectorSize(raw.Tracks[0].Ssize), sectorSize)
	}

	got, err := ReadIMDImage(path)
	if err != nil {
		t.Fatalf("ReadIMDImage() error: %v", err)
	}

	for c := 0; c < cylinders; c++ {
		for s := 1; s <= sectorsPerTrack; s++ {
			ch := chs.CH{Cylinder: uint8(c), Head: 0}
			q := chs.NewSectorIdQuery(chs.CHS{Cylinder: uint8(c), Head: 0, Sector: uint8(s)}, 2)
			res, err := got.ReadSector(ch, q, track.ScopeDataOnly, false)
			if err != nil {
				t.Fatalf("ReadSector(%s): %v", ch, err)
			}
			want := syntheticSectorData(c, s, sectorSize)
			if !bytes.Equal(res.ReadBuf, want) {
				t.Errorf("cylinder %d sector %d: data mismatch", c, s)
			}
		}
	}
}

func TestWriteIMDImage_MarksUnreadableSectorUnavailable(t *testing.T) {
	const sectorSize = 512

	src := diskimage.New()
	mt := metasector.NewMetaSectorTrack(chs.CH{Cylinder: 0, Head: 0}, track.EncodingMFM, 250)
	mt.AddSector(metasector.SectorDescriptor{
		IDChsn:      chs.CHSN{Cylinder: 0, Head: 0, Sector: 1, N: 2},
		MissingData: true,
		Data:        make([]byte, sectorSize),
	}, false)
	src.AddTrack(mt)

	path := filepath.Join(t.TempDir(), "missing.imd")
	if err := WriteIMDImage(path, src, 1, 1, 1, sectorSize); err != nil {
		t.Fatalf("WriteIMDImage() error: %v", err)
	}

	raw, err := ReadIMDFile(path)
	if err != nil {
		t.Fatalf("ReadIMDFile() error: %v", err)
	}
	if raw.Tracks[0].Sectors[0].Flag != imdSectorUnavailable {
		t.Errorf("Flag = %d, want %d (unavailable)", raw.Tracks[0].Sectors[0].Flag, imdSectorUnavailable)
	}
}
