package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/lyrehero/lyrehero-engine/pkg/audio"
	"github.com/lyrehero/lyrehero-engine/pkg/calibration"
	"github.com/lyrehero/lyrehero-engine/pkg/dsp"
	"github.com/lyrehero/lyrehero-engine/pkg/verbose"
)

// pollInterval matches the engine's own detection-loop poll rate so a
// bench run exercises the pipeline the same way a live session would.
const pollInterval = 50 * time.Millisecond

// CLI defines lyrehero-calibrate's command-line interface: run one of the
// two calibration wizards against a WAV recording or live
// capture and print the threshold it would apply.
type CLI struct {
	Phase      string        `arg:"" enum:"noise,note" help:"Which calibration phase to run: noise or note."`
	Wav        string        `help:"Path to a 16-bit PCM WAV file to replay instead of live capture." type:"existingfile"`
	Duration   time.Duration `help:"How long to run the phase." default:"5s"`
	SampleRate int           `help:"Sample rate to use for live capture (ignored with --wav)." default:"48000"`
	Gain       float64       `help:"Front-end gain stage multiplier." default:"1.5"`
	Verbose    bool          `help:"Log every sampled frame's RMS, clarity and stable note."`
}

func main() {
	cli := &CLI{}
	kong.Parse(cli,
		kong.Name("lyrehero-calibrate"),
		kong.Description("Run the noise or note calibration wizard against a WAV file or live capture."),
		kong.UsageOnError(),
	)
	verbose.SetEnabled(cli.Verbose)

	if err := run(cli); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}

func run(cli *CLI) error {
	printBanner()

	front, sampleRate, err := buildFrontEnd(cli)
	if err != nil {
		return err
	}

	if err := front.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer front.Stop()

	printSection(fmt.Sprintf("Running %s calibration for %s", cli.Phase, cli.Duration))

	switch cli.Phase {
	case "noise":
		return runNoiseCalibration(front, cli.Duration)
	case "note":
		return runNoteCalibration(front, cli.Duration, sampleRate)
	default:
		return fmt.Errorf("unknown phase: %s", cli.Phase)
	}
}

func buildFrontEnd(cli *CLI) (*audio.FrontEnd, int, error) {
	if cli.Wav == "" {
		fe := audio.NewFrontEnd(audio.Config{SampleRate: cli.SampleRate, Gain: cli.Gain})
		return fe, cli.SampleRate, nil
	}

	samples, sampleRate, err := readWavPCM16(cli.Wav)
	if err != nil {
		return nil, 0, err
	}
	printInfo("Loaded WAV", fmt.Sprintf("%s (%d samples at %d Hz)", cli.Wav, len(samples), sampleRate))

	fe := audio.NewFrontEnd(audio.Config{SampleRate: sampleRate, Gain: cli.Gain})
	fe.SetSource(newWavSource(samples, sampleRate))
	return fe, sampleRate, nil
}

func runNoiseCalibration(front *audio.FrontEnd, duration time.Duration) error {
	cal := calibration.NewNoiseCalibration()

	pollPipeline(front, duration, func(features dsp.Features, _ dsp.PitchEstimate, _ *dsp.NoiseFloor, _ *dsp.Smoother) {
		verbose.Printf("noise sample rms=%.6f", features.RMS)
		cal.Sample(features.RMS)
	})

	threshold := cal.Finish()
	printSuccess(fmt.Sprintf("rms_threshold = %.6f", threshold))
	return nil
}

func runNoteCalibration(front *audio.FrontEnd, duration time.Duration, sampleRate int) error {
	cal := calibration.NewNoteCalibration()
	rmsThreshold, clarityThreshold := calibration.RelaxedThresholds()

	pollPipeline(front, duration, func(features dsp.Features, estimate dsp.PitchEstimate, noiseFloor *dsp.NoiseFloor, smoother *dsp.Smoother) {
		noiseFloor.Update(features.RMS)
		frame := dsp.RawFrame{
			Frequency:        estimate.Frequency,
			Clarity:          estimate.Clarity,
			RMS:              features.RMS,
			ZCR:              features.ZCR,
			SpectralFlatness: features.SpectralFlatness,
			HarmonicPresent:  features.HarmonicPresent,
		}
		rawNote := dsp.Classify(frame, noiseFloor.EffectiveThreshold(rmsThreshold), clarityThreshold)
		smoother.Push(rawNote, estimate.Frequency)
		stableNote := smoother.StableNote()
		verbose.Printf("note sample raw=%s stable=%s clarity=%.4f", rawNote, stableNote, estimate.Clarity)
		cal.Sample(stableNote, estimate.Clarity)
	})

	threshold, err := cal.Finish()
	if err != nil {
		if errors.Is(err, calibration.ErrNoNote) {
			return fmt.Errorf("no stable note was ever detected; play a clear, sustained note and try again")
		}
		return err
	}
	printSuccess(fmt.Sprintf("clarity_threshold = %.6f", threshold))
	return nil
}

// pollPipeline drives the same per-frame dsp.EstimatePitch -> dsp.Extract
// sequence the engine's detectOnce runs, handing each frame's features and
// pitch estimate to sample for the length of duration.
func pollPipeline(front *audio.FrontEnd, duration time.Duration, sample func(dsp.Features, dsp.PitchEstimate, *dsp.NoiseFloor, *dsp.Smoother)) {
	noiseFloor := dsp.NewNoiseFloor()
	smoother := dsp.NewSmoother()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		<-ticker.C

		window := front.ReadTimeWindow()
		spectrum := front.ReadMagnitudeSpectrum()
		binWidth := front.BinWidth()

		estimate := dsp.EstimatePitch(window, float64(front.SampleRate()))
		features := dsp.Extract(window, spectrum, binWidth, estimate.Frequency)

		sample(features, estimate, noiseFloor, smoother)
	}
}
