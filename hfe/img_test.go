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

func TestWriteReadIMGImageRoundTrip(t *testing.T) {
	const cylinders, heads, sectorsPerTrack, sectorSize = 40, 2, 9, 512 // 360 KB

	src := diskimage.New()
	for c := 0; c < cylinders; c++ {
		for h := 0; h < heads; h++ {
			mt := metasector.NewMetaSectorTrack(chs.CH{Cylinder: uint8(c), Head: uint8(h)}, track.EncodingMFM, 250)
			for s := 1; s <= sectorsPerTrack; s++ {
				mt.AddSector(metasector.SectorDescriptor{
					IDChsn: chs.CHSN{Cylinder: uint8(c), Head: uint8(h), Sector: uint8(s), N: 2},
					Data:   syntheticSectorData(c*2+h, s, sectorSize),
				}, false)
			}
			src.AddTrack(mt)
		}
	}

	path := filepath.Join(t.TempDir(), "test.img")
	if err := WriteIMGImage(path, src, cylinders, heads, sectorsPerTrack, sectorSize); err != nil {
		t.Fatalf("WriteIMGImage() error: %v", err)
	}

	got, err := ReadIMGImage(path)
	if err != nil {
		t.Fatalf("ReadIMGImage() error: %v", err)
	}

	for _, tr := range got.Tracks() {
		ch := tr.CH()
		for s := 1; s <= sectorsPerTrack; s++ {
			q := chs.NewSectorIdQuery(chs.CHS{Cylinder: ch.Cylinder, Head: ch.Head, Sector: uint8(s)}, 2)
			res, err := got.ReadSector(ch, q, track.ScopeDataOnly, false)
			if err != nil {
				t.Fatalf("ReadSector(%s): %v", ch, err)
			}
			want := syntheticSectorData(int(ch.Cylinder)*2+int(ch.Head), s, sectorSize)
			if !bytes.Equal(res.ReadBuf, want) {
				t.Errorf("%s sector %d: data mismatch", ch, s)
			}
		}
	}
}
