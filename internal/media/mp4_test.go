package media

import (
	"bytes"
	"testing"
)

func mp4Header(boxCode, brand string) []byte {
	b := []byte{0x00, 0x00, 0x00, 0x18}
	b = append(b, []byte(boxCode)...)
	b = append(b, []byte(brand)...)
	return append(b, []byte{0x00, 0x00, 0x00, 0x01}...)
}

func TestInspectContainerFtyp(t *testing.T) {
	info := InspectContainer(mp4Header("ftyp", "isom"))
	if !info.IsLikelyMP4 {
		t.Fatal("expected ftyp header to be accepted")
	}
	if info.BoxCode != "ftyp" {
		t.Fatalf("box code = %q", info.BoxCode)
	}
	if info.MajorBrand != "isom" {
		t.Fatalf("major brand = %q", info.MajorBrand)
	}
	if len(info.HexPrefix) != 32 {
		t.Fatalf("hex prefix length = %d, want 32", len(info.HexPrefix))
	}
}

func TestInspectContainerOtherBox(t *testing.T) {
	info := InspectContainer(mp4Header("moov", "isom"))
	if info.IsLikelyMP4 {
		t.Fatal("moov box must not pass the signature check")
	}
	if info.BoxCode != "moov" {
		t.Fatalf("box code = %q", info.BoxCode)
	}
}

func TestInspectContainerShortBuffer(t *testing.T) {
	for _, data := range [][]byte{nil, {}, {0x00, 0x01}, bytes.Repeat([]byte{0xff}, 7)} {
		info := InspectContainer(data)
		if info.IsLikelyMP4 {
			t.Fatalf("short buffer %v reported as mp4", data)
		}
		if info.BoxCode != "" {
			t.Fatalf("short buffer %v has box code %q", data, info.BoxCode)
		}
	}
}

func TestInspectContainerEightBytesNoBrand(t *testing.T) {
	info := InspectContainer([]byte{0, 0, 0, 8, 'f', 't', 'y', 'p'})
	if !info.IsLikelyMP4 {
		t.Fatal("eight-byte ftyp buffer must still pass")
	}
	if info.MajorBrand != "" {
		t.Fatalf("major brand = %q, want empty", info.MajorBrand)
	}
}
