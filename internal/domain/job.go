package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusError      = "error"
)

// Error kinds recorded on failed jobs. A failure in one job never touches
// its siblings; the batch keeps draining.
const (
	ErrorKindDecode = "decode_error"
	ErrorKindEncode = "encode_error"
)

var (
	ErrDecode = errors.New("source bytes are not a supported raster image")
	ErrEncode = errors.New("image encode failed")
)

// ErrorKindOf maps an executor failure to the kind stored on the job.
func ErrorKindOf(err error) string {
	if errors.Is(err, ErrDecode) {
		return ErrorKindDecode
	}
	return ErrorKindEncode
}

// Source is one intaken file: raw bytes plus the declared mime type.
type Source struct {
	Name  string
	Mime  string
	Bytes []byte
}

// Result holds the encoded output of one transform execution. The preview
// handle is revocable and lives exactly as long as the job stays terminal;
// it is released on re-arm, replacement and teardown.
type Result struct {
	Bytes          []byte
	Mime           string
	Width          int
	Height         int
	OriginalSize   int
	CompressedSize int
	// SizeTargetMet is false when the size-target search fell back to the
	// fixed mid-quality encode without satisfying the byte budget.
	SizeTargetMet bool
	Filename      string
	PreviewHandle string
}

// Job is one source file moving through the batch. Status transitions are
// owned solely by the scheduler's job store.
type Job struct {
	ID        string
	Source    Source
	Status    string
	Settings  TransformSettings
	Result    *Result
	ErrorKind string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (j Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusError
}

// OutputFilename is the source base name minus its extension, plus the
// tool suffix, plus the extension derived from the output format.
func OutputFilename(sourceName string, settings TransformSettings) string {
	base := sourceName
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "image"
	}
	return base + settings.OutputSuffix() + "." + settings.Format.Ext()
}
