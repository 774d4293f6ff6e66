package media

import (
	"fmt"

	"mediafetch/internal/models"
)

const DefaultAudioBitrate = 192

// Selection is the extractor configuration derived from a download request.
type Selection struct {
	Format       string
	ExtractAudio bool
	AudioFormat  string
	AudioQuality string
	MergeFormat  string
	// Section is a download range such as "*10-95". Empty means the whole media.
	Section        string
	ForceKeyframes bool
	Ext            string
}

// BuildSelection maps a request onto an extractor format query. hasFFmpeg
// controls whether separate streams can be merged or re-encoded.
func BuildSelection(req models.DownloadRequest, hasFFmpeg bool, defaultHeight int) Selection {
	var sel Selection

	if req.Format == models.FormatAudio {
		bitrate := req.AudioBitrate
		if bitrate <= 0 {
			bitrate = DefaultAudioBitrate
		}
		sel.Format = "bestaudio[ext=m4a]/bestaudio/best"
		sel.Ext = "m4a"
		if hasFFmpeg {
			sel.ExtractAudio = true
			sel.AudioFormat = "mp3"
			sel.AudioQuality = fmt.Sprintf("%dK", bitrate)
			sel.Ext = "mp3"
		}
	} else {
		height := req.MaxHeight
		if height <= 0 {
			height = defaultHeight
		}
		if hasFFmpeg {
			sel.Format = fmt.Sprintf(
				"bestvideo[ext=mp4][height<=%[1]d]+bestaudio[ext=m4a]/bestvideo[height<=%[1]d]+bestaudio/best[height<=%[1]d]/best",
				height,
			)
			sel.MergeFormat = "mp4"
		} else {
			sel.Format = fmt.Sprintf("best[ext=mp4][height<=%[1]d]/best[height<=%[1]d]/best", height)
		}
		sel.Ext = "mp4"
	}

	if req.HasClip() {
		start := ParseTime(req.StartTime)
		end := ParseTime(req.EndTime)
		if end > start {
			sel.Section = fmt.Sprintf("*%d-%d", start, end)
			sel.ForceKeyframes = hasFFmpeg
		}
	}

	return sel
}
