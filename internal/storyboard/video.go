package storyboard

// Video asset terminal states.
const (
	VideoStatusSkipped = "skipped"
	VideoStatusFailed  = "failed"
	VideoStatusSuccess = "success"
)

// VideoAsset records the outcome of video generation for one run. Built
// once through a named constructor, never mutated afterwards.
type VideoAsset struct {
	Status             string  `json:"status"`
	MP4URL             string  `json:"mp4Url,omitempty"`
	ThumbnailURL       string  `json:"thumbnailUrl,omitempty"`
	DurationSeconds    float64 `json:"durationSeconds"`
	Prompt             string  `json:"prompt,omitempty"`
	OperationID        string  `json:"operationId,omitempty"`
	SourceURL          string  `json:"sourceUrl,omitempty"`
	ThumbnailSourceURL string  `json:"thumbnailSourceUrl,omitempty"`
	Error              string  `json:"error,omitempty"`

	// Byte-level inspection of the returned container, recorded for
	// observability regardless of validity.
	ContentType     string `json:"contentType,omitempty"`
	ByteLength      int    `json:"byteLength,omitempty"`
	ContainerFourCC string `json:"containerFourCc,omitempty"`
	MajorBrand      string `json:"majorBrand,omitempty"`
	HexPrefix       string `json:"hexPrefix,omitempty"`
	IsLikelyMP4     bool   `json:"isLikelyMp4"`
}

// SkippedVideo marks a run where video generation never started.
func SkippedVideo(reason string) VideoAsset {
	return VideoAsset{Status: VideoStatusSkipped, Error: reason}
}

// FailedVideo marks a run where generation was attempted and failed.
func FailedVideo(reason, prompt, operationID string) VideoAsset {
	return VideoAsset{
		Status:      VideoStatusFailed,
		Error:       reason,
		Prompt:      prompt,
		OperationID: operationID,
	}
}

// SuccessVideoParams carries everything a successful clip records.
type SuccessVideoParams struct {
	MP4URL             string
	ThumbnailURL       string
	DurationSeconds    float64
	Prompt             string
	OperationID        string
	SourceURL          string
	ThumbnailSourceURL string
	ContentType        string
	ByteLength         int
	ContainerFourCC    string
	MajorBrand         string
	HexPrefix          string
	IsLikelyMP4        bool
}

func SuccessVideo(p SuccessVideoParams) VideoAsset {
	return VideoAsset{
		Status:             VideoStatusSuccess,
		MP4URL:             p.MP4URL,
		ThumbnailURL:       p.ThumbnailURL,
		DurationSeconds:    p.DurationSeconds,
		Prompt:             p.Prompt,
		OperationID:        p.OperationID,
		SourceURL:          p.SourceURL,
		ThumbnailSourceURL: p.ThumbnailSourceURL,
		ContentType:        p.ContentType,
		ByteLength:         p.ByteLength,
		ContainerFourCC:    p.ContainerFourCC,
		MajorBrand:         p.MajorBrand,
		HexPrefix:          p.HexPrefix,
		IsLikelyMP4:        p.IsLikelyMP4,
	}
}
