package encoder

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/sandersonthethird/meetrec/pkg/ds"
)

// Plan is the negotiated codec pair for one encoder invocation. An empty
// Audio means the output carries no audio track.
type Plan struct {
	Video string
	Audio string
}

// preference order: software H.264, platform hardware H.264, then the
// baseline MPEG-4 encoder every ffmpeg build ships with
var videoPreference = []string{"libx264", "h264_videotoolbox", "mpeg4"}

func ChoosePlan(available ds.Set[string]) Plan {
	return Plan{
		Video: ChooseVideoCodec(available),
		Audio: ChooseAudioCodec(available),
	}
}

// ChooseVideoCodec always returns a codec; mpeg4 is the guaranteed fallback
// so a plan exists even on a minimal host.
func ChooseVideoCodec(available ds.Set[string]) string {
	for _, codec := range videoPreference {
		if available.Contains(codec) {
			return codec
		}
	}
	return "mpeg4"
}

// ChooseAudioCodec returns aac when supported, otherwise empty. A missing
// audio encoder never fails the pipeline.
func ChooseAudioCodec(available ds.Set[string]) string {
	if available.Contains("aac") {
		return "aac"
	}
	return ""
}

// StreamArgs builds the invocation for the live-capture shape: a headerless
// matroska stream on stdin, a seekable fast-start file at outPath. The output
// muxer must be stated explicitly because the temp path carries no extension
// ffmpeg could infer it from.
func StreamArgs(plan Plan, outPath string) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-f", "matroska",
		"-i", "pipe:0",
	}
	args = append(args, codecArgs(plan)...)
	args = append(args, "-f", "mp4", "-movflags", "+faststart", outPath)
	return args
}

// ConvertArgs builds the invocation for the file-to-file shape used by the
// playback transcoder.
func ConvertArgs(plan Plan, inPath, outPath string) []string {
	args := []string{
		"-hide_banner",
		"-y",
		"-i", inPath,
	}
	args = append(args, codecArgs(plan)...)
	args = append(args, "-movflags", "+faststart", outPath)
	return args
}

func codecArgs(plan Plan) []string {
	args := []string{"-c:v", plan.Video}
	if plan.Video == "libx264" {
		args = append(args, "-preset", "veryfast", "-pix_fmt", "yuv420p")
	}
	if plan.Audio == "" {
		args = append(args, "-an")
	} else {
		args = append(args, "-c:a", plan.Audio, "-b:a", "128k")
	}
	return args
}

// ParseEncoderList extracts encoder names from `ffmpeg -encoders` output.
// Entries only start after the "------" separator line.
func ParseEncoderList(out []byte) ds.Set[string] {
	available := ds.NewSet[string]()
	scanner := bufio.NewScanner(bytes.NewReader(out))
	seenSeparator := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !seenSeparator {
			seenSeparator = strings.HasPrefix(line, "---")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		switch fields[0][0] {
		case 'V', 'A', 'S':
			available.Add(fields[1])
		}
	}
	return available
}
