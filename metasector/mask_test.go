package metasector

import "testing"

func TestEmptyMaskHasNoBits(t *testing.T) {
	m := EmptyMask(4)
	if m.HasBits() {
		t.Error("EmptyMask should report HasBits() == false")
	}
	if m.Len() != 4 {
		t.Errorf("Len() = %d, want 4", m.Len())
	}
}

func TestMaskFromDetectsBits(t *testing.T) {
	m := MaskFrom([]byte{0x00, 0x01, 0x00})
	if !m.HasBits() {
		t.Error("MaskFrom should detect a non-zero byte")
	}
	if m.At(1) != 0x01 {
		t.Errorf("At(1) = %#x, want 0x01", m.At(1))
	}
}

func TestOrSlicePanicsOnLengthMismatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on length mismatch")
		}
	}()
	m := EmptyMask(2)
	m.OrSlice([]byte{1, 2, 3})
}

func TestOrWithAccumulatesBits(t *testing.T) {
	a := EmptyMask(2)
	b := MaskFrom([]byte{0x0f, 0x00})
	a.OrWith(&b)
	if a.At(0) != 0x0f {
		t.Errorf("At(0) = %#x, want 0x0f", a.At(0))
	}
	if !a.HasBits() {
		t.Error("expected HasBits() == true after OrWith")
	}
}

func TestClearResetsHasBits(t *testing.T) {
	m := MaskFrom([]byte{0xff})
	m.Clear()
	if m.HasBits() {
		t.Error("Clear should reset HasBits() to false")
	}
	if m.At(0) != 0 {
		t.Errorf("At(0) = %#x, want 0", m.At(0))
	}
}

func TestReadDataAppliesWeakMaskDeterministically(t *testing.T) {
	sd := SectorDescriptor{
		Data:     []byte{0xff, 0xff},
		WeakMask: []byte{0x0f, 0x00},
	}
	sd.IDChsn.N = 1 // size 256, but we only inspect the first two bytes below
	s := NewMetaSector(sd)
	copy(s.Data, []byte{0xff, 0xff})
	s.WeakMask = MaskFrom(append([]byte{0x0f, 0x00}, make([]byte, len(s.Data)-2)...))

	restore := randomByte
	randomByte = func() byte { return 0x00 }
	defer func() { randomByte = restore }()

	out := s.ReadData()
	if out[0] != 0xf0 {
		t.Errorf("out[0] = %#x, want 0xf0 (high nibble preserved, low nibble randomized to 0)", out[0])
	}
	if out[1] != 0xff {
		t.Errorf("out[1] = %#x, want 0xff (no mask bits set)", out[1])
	}
}
