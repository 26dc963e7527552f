package indicator

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
)

type cueKind int

const (
	cueStart cueKind = iota + 1
	cueStop
	cueError
)

const (
	cueSampleRate = 16000
	cueGap        = 22 * time.Millisecond
	cueRampMax    = 5 * time.Millisecond
	cueVolume     = 0.18
)

type toneSpec struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

type cue struct {
	name  string
	tones []toneSpec
}

// Rising pair to start, falling pair to stop, low pair for errors.
var cues = map[cueKind]cue{
	cueStart: {name: "start", tones: []toneSpec{
		{frequencyHz: 784, duration: 60 * time.Millisecond, volume: cueVolume},
		{frequencyHz: 1047, duration: 80 * time.Millisecond, volume: cueVolume},
	}},
	cueStop: {name: "stop", tones: []toneSpec{
		{frequencyHz: 1047, duration: 60 * time.Millisecond, volume: cueVolume},
		{frequencyHz: 784, duration: 100 * time.Millisecond, volume: cueVolume},
	}},
	cueError: {name: "error", tones: []toneSpec{
		{frequencyHz: 440, duration: 80 * time.Millisecond, volume: cueVolume},
		{frequencyHz: 330, duration: 120 * time.Millisecond, volume: cueVolume},
	}},
}

var cuePCM = sync.OnceValue(func() map[cueKind][]int16 {
	out := make(map[cueKind][]int16, len(cues))
	for kind, c := range cues {
		out[kind] = synthesizeCue(c.tones)
	}
	return out
})

// cueSamples returns the PCM for kind, or nil for an unknown cue.
func cueSamples(kind cueKind) []int16 {
	return cuePCM()[kind]
}

// emitCue plays kind through Pulse as appName and blocks until drained.
func emitCue(ctx context.Context, appName string, kind cueKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	samples := cueSamples(kind)
	if len(samples) == 0 {
		return nil
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName(appName),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	stream, err := client.NewPlayback(
		sliceReader(samples),
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(cueSampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName(appName+" "+cues[kind].name+" cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", cues[kind].name, err)
	}
	return nil
}

func sliceReader(samples []int16) pulse.Int16Reader {
	cursor := 0
	return func(buf []int16) (int, error) {
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	}
}

// synthesizeCue joins tones with short silences.
func synthesizeCue(tones []toneSpec) []int16 {
	gap := make([]int16, samplesForDuration(cueGap))
	var pcm []int16
	for i, tone := range tones {
		if i > 0 {
			pcm = append(pcm, gap...)
		}
		pcm = append(pcm, synthesizeTone(tone)...)
	}
	return pcm
}

// synthesizeTone renders a sine with linear attack and release ramps of at
// most cueRampMax.
func synthesizeTone(spec toneSpec) []int16 {
	n := samplesForDuration(spec.duration)
	if n <= 0 || spec.frequencyHz <= 0 || spec.volume <= 0 {
		return nil
	}
	ramp := max(1, min(n/10, samplesForDuration(cueRampMax)))

	pcm := make([]int16, n)
	step := 2 * math.Pi * spec.frequencyHz / cueSampleRate
	for i := range pcm {
		gain := spec.volume * envelope(i, n, ramp)
		pcm[i] = int16(math.Round(math.Sin(step*float64(i)) * gain * math.MaxInt16))
	}
	return pcm
}

func envelope(i, n, ramp int) float64 {
	edge := min(i, n-1-i)
	if edge >= ramp {
		return 1
	}
	return float64(edge) / float64(ramp)
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * cueSampleRate))
}
