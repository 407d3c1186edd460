package adapter

import "context"

// CDR is one call detail record as returned by the PBX list API.
type CDR struct {
	UID            string `json:"uid"`
	CallType       string `json:"call_type"`
	Disposition    string `json:"disposition"`
	Time           string `json:"time"`
	CallFromNumber string `json:"call_from_number"`
	CallFromName   string `json:"call_from_name"`
	CallToNumber   string `json:"call_to_number"`
	CallToName     string `json:"call_to_name"`
	SrcTrunk       string `json:"src_trunk"`
	DstTrunk       string `json:"dst_trunk"`
	Duration       int    `json:"duration"`
	RingDuration   int    `json:"ring_duration"`
	RecordingFile  string `json:"record_file"`
}

// Recording is one entry in the PBX recording list.
type Recording struct {
	UID  string `json:"uid"`
	File string `json:"file"`
}

// PBXClient is the vendor PBX REST surface the pipeline consumes.
type PBXClient interface {
	// GetCDRList returns one page of CDRs, newest first.
	GetCDRList(ctx context.Context, page, pageSize int) ([]CDR, error)
	// GetRecordingList returns one page of recording metadata.
	GetRecordingList(ctx context.Context, page, pageSize int) ([]Recording, error)
	// DownloadRecording fetches the recording file into dir and returns the
	// local path. The caller owns cleanup of the returned file.
	DownloadRecording(ctx context.Context, recordingFile, dir string) (string, error)
}
