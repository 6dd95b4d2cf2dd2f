package media

import "encoding/hex"

// ContainerInfo is the byte-level inspection of a downloaded clip.
// Recorded on the video asset whether or not the signature matched.
type ContainerInfo struct {
	BoxCode     string
	MajorBrand  string
	HexPrefix   string
	IsLikelyMP4 bool
}

// InspectContainer reads the ISO-BMFF signature from the head of the
// buffer. A conforming MP4 spells "ftyp" at bytes [4,8) with the major
// brand right after it. Anything else is reported, not rejected.
func InspectContainer(data []byte) ContainerInfo {
	n := len(data)
	if n > 16 {
		n = 16
	}
	info := ContainerInfo{HexPrefix: hex.EncodeToString(data[:n])}
	if len(data) < 8 {
		return info
	}
	info.BoxCode = string(data[4:8])
	info.IsLikelyMP4 = info.BoxCode == "ftyp"
	if len(data) >= 12 {
		info.MajorBrand = string(data[8:12])
	}
	return info
}
