// main.go - Command line entry point for the SF2 sample bank synthesizer

/*
 ██▓ ███▄    █ ▄▄▄█████▓ █    ██  ██▓▄▄▄█████▓ ██▓ ▒█████   ███▄    █    ▓█████  ███▄    █   ▄████  ██▓ ███▄    █ ▓█████
▓██▒ ██ ▀█   █ ▓  ██▒ ▓▒ ██  ▓██▒▓██▒▓  ██▒ ▓▒▓██▒▒██▒  ██▒ ██ ▀█   █    ▓█   ▀  ██ ▀█   █  ██▒ ▀█▒▓██▒ ██ ▀█   █ ▓█   ▀
▒██▒▓██  ▀█ ██▒▒ ▓██░ ▒░▓██  ▒██░▒██▒▒ ▓██░ ▒░▒██▒▒██░  ██▒▓██  ▀█ ██▒   ▒███   ▓██  ▀█ ██▒▒██░▄▄▄░▒██▒▓██  ▀█ ██▒▒███
░██░▓██▒  ▐▌██▒░ ▓██▓ ░ ▓▓█  ░██░░██░░ ▓██▓ ░ ░██░▒██   ██░▓██▒  ▐▌██▒   ▒▓█  ▄ ▓██▒  ▐▌██▒░▓█  ██▓░██░▓██▒  ▐▌██▒▒▓█  ▄
░██░▒██░   ▓██░  ▒██▒ ░ ▒▒█████▓ ░██░  ▒██▒ ░ ░██░░ ████▓▒░▒██░   ▓██░   ░▒████▒▒██░   ▓██░░▒▓███▀▒░██░▒██░   ▓██░░▒████▒
░▓  ░ ▒░   ▒ ▒   ▒ ░░   ░▒▓▒ ▒ ▒ ░▓    ▒ ░░   ░▓  ░ ▒░▒░▒░ ░ ▒░   ▒ ▒    ░░ ▒░ ░░ ▒░   ▒ ▒  ░▒   ▒ ░▓  ░ ▒░   ▒ ▒ ░░ ▒░ ░
 ▒ ░░ ░░   ░ ▒░    ░    ░░▒░ ░ ░  ▒ ░    ░     ▒ ░  ░ ▒ ▒░ ░ ░░   ░ ▒░    ░ ░  ░░ ░░   ░ ▒░  ░   ░  ▒ ░░ ░░   ░ ▒░ ░ ░  ░
 ▒ ░   ░   ░ ░   ░       ░░░ ░ ░  ▒ ░  ░       ▒ ░░ ░ ░ ▒     ░   ░ ░       ░      ░   ░ ░ ░ ░   ░  ▒ ░   ░   ░ ░    ░
 ░           ░             ░      ░            ░      ░ ░           ░       ░  ░         ░       ░  ░           ░    ░  ░

(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	version = "0.3.0"
	cfg     = defaultSynthConfig()
	logger  = slog.Default()
)

func boilerPlate() {
	fmt.Println("\n\033[38;2;255;20;147mSF2 Synth\033[0m - SoundFont sample bank player " + version)
	fmt.Println("(c) 2024 - 2026 Zayn Otley")
	fmt.Println("https://github.com/IntuitionAmiga/IntuitionEngine")
	fmt.Println("License: GPLv3 or later")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sf2synth",
	Short: "Play, inspect and render SoundFont 2 sample banks",
	Long: `sf2synth decodes SoundFont 2 (.sf2) sample banks and plays them through a
polyphonic sample engine: from the keyboard, from a MIDI device, offline
to WAV, or over HTTP.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		l, err := newLogger(os.Stderr, cfg.LogLevel, cfg.LogJSON)
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <bank.sf2>",
	Short: "Show bank contents and generator usage",
	Long: `Print a summary of a sample bank. Add listings with flags.

Examples:
  sf2synth inspect GeneralUser.sf2 --presets
  sf2synth inspect GeneralUser.sf2 --zones 0
  sf2synth inspect GeneralUser.sf2 --generators`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <bank.sf2>",
	Short: "Emit the program lookup table as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

var renderCmd = &cobra.Command{
	Use:   "render <bank.sf2> <score>",
	Short: "Render a score (.mid, .lua, .json) to WAV",
	Long: `Render a score offline. Scores may be Standard MIDI Files, Lua scripts
or JSON event lists.

Examples:
  sf2synth render piano.sf2 song.mid -o song.wav
  sf2synth render piano.sf2 arp.lua -o arp.wav --program 4`,
	Args: cobra.ExactArgs(2),
	RunE: runRender,
}

var playCmd = &cobra.Command{
	Use:   "play <bank.sf2>",
	Short: "Play a bank from the computer keyboard",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var liveCmd = &cobra.Command{
	Use:   "live <bank.sf2>",
	Short: "Play a bank from a MIDI input device",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLive,
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "List build-time features",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printFeatures(cmd.OutOrStdout())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve bank listings and WAV rendering over HTTP",
	Long: `Start the render server.

Example:
  sf2synth serve --banks ~/soundfonts --default GeneralUser.sf2 --addr :8080`,
	RunE: runServe,
}

var (
	inspectPresets     bool
	inspectInstruments bool
	inspectSamples     bool
	inspectGenerators  bool
	inspectZones       int
	lookupCopy         bool
	lookupOut          string
	renderOut          string
	livePort           string
	liveList           bool
	serveAddr          string
	serveDefault       string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVar(&cfg.SampleRate, "rate", cfg.SampleRate, "output sample rate")
	pf.IntVar(&cfg.Channels, "channels", cfg.Channels, "output channels (1 or 2)")
	pf.IntVar(&cfg.Voices, "voices", cfg.Voices, "polyphony")
	pf.IntVar(&cfg.BlockSize, "block", cfg.BlockSize, "render block size in frames")
	pf.IntVar(&cfg.Bank, "bank", cfg.Bank, "MIDI bank for program lookups")
	pf.IntVar(&cfg.Program, "program", cfg.Program, "initial program")
	pf.IntVar(&cfg.Channel, "channel", cfg.Channel, "MIDI channel for keyboard play")
	pf.StringVar(&cfg.Interpolation, "interp", cfg.Interpolation, "sample interpolation: nearest or linear")
	pf.StringVar(&cfg.Backend, "backend", cfg.Backend, "audio backend: oto, ebiten or alsa")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON")

	inspectCmd.Flags().BoolVar(&inspectPresets, "presets", false, "list presets")
	inspectCmd.Flags().BoolVar(&inspectInstruments, "instruments", false, "list instruments")
	inspectCmd.Flags().BoolVar(&inspectSamples, "samples", false, "list samples")
	inspectCmd.Flags().BoolVar(&inspectGenerators, "generators", false, "count generator usage")
	inspectCmd.Flags().IntVar(&inspectZones, "zones", -1, "analyze the zones of a preset index")

	lookupCmd.Flags().BoolVar(&lookupCopy, "copy", false, "copy the table to the clipboard")
	lookupCmd.Flags().StringVarP(&lookupOut, "output", "o", "", "write the table to a file")

	renderCmd.Flags().StringVarP(&renderOut, "output", "o", "", "output WAV (default: score name with .wav)")

	liveCmd.Flags().StringVar(&livePort, "port", "", "MIDI input name (substring match)")
	liveCmd.Flags().BoolVar(&liveList, "list", false, "list MIDI inputs and exit")

	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringVar(&cfg.BankDir, "banks", ".", "directory of .sf2 files")
	serveCmd.Flags().StringVar(&serveDefault, "default", "", "bank used when a request names none")

	rootCmd.AddCommand(inspectCmd, lookupCmd, renderCmd, playCmd, liveCmd, serveCmd, featuresCmd)
}

func loadBank(path string) (*SF2Bank, error) {
	path, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	h, err := LoadSF2File(path)
	if err != nil {
		return nil, err
	}
	return NewSF2Bank(filepath.Base(path), h, cfg.Bank), nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	bank, err := loadBank(args[0])
	if err != nil {
		return err
	}
	h := bank.Hydra
	out := cmd.OutOrStdout()
	PrintBankSummary(out, h)
	if inspectPresets {
		fmt.Fprintln(out)
		PrintPresets(out, h)
	}
	if inspectInstruments {
		fmt.Fprintln(out)
		PrintInstruments(out, h)
	}
	if inspectSamples {
		fmt.Fprintln(out)
		PrintSamples(out, h)
	}
	if inspectZones >= 0 {
		zones, err := AnalyzePreset(h, inspectZones)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		PrintZones(out, zones)
	}
	if inspectGenerators {
		fmt.Fprintln(out)
		for _, g := range GeneratorUsage(h) {
			fmt.Fprintf(out, "%3d %-28s preset %5d  instrument %5d\n", g.Oper, g.Name, g.Preset, g.Instrument)
		}
	}
	return nil
}

func runLookup(cmd *cobra.Command, args []string) error {
	bank, err := loadBank(args[0])
	if err != nil {
		return err
	}
	data, err := BuildLookupTable(bank, cfg.Program).JSON()
	if err != nil {
		return err
	}
	if lookupOut != "" {
		if err := os.WriteFile(lookupOut, data, 0o644); err != nil {
			return err
		}
		logger.Info("lookup table written", slog.String("path", lookupOut))
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	}
	if lookupCopy {
		if err := CopyToClipboard(data); err != nil {
			return err
		}
		logger.Info("lookup table copied to clipboard", slog.Int("bytes", len(data)))
	}
	return nil
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bank, err := loadBank(args[0])
	if err != nil {
		return err
	}
	bank.Warm()
	score, err := LoadScoreFile(ctx, args[1])
	if err != nil {
		return err
	}
	out := renderOut
	if out == "" {
		out = trimExt(args[1]) + ".wav"
	}

	start := time.Now()
	res, err := RenderScore(ctx, bank, score, cfg.Offline())
	if err != nil {
		return err
	}
	if err := WriteWAVFile(out, res); err != nil {
		return err
	}
	logger.Info("render complete",
		slog.String("output", out),
		slog.Int("events", len(score.Events)),
		slog.Float64("seconds", float64(res.Frames)/float64(res.SampleRate)),
		slog.Float64("peak", float64(res.Peak)),
		slog.Duration("took", time.Since(start)))
	return nil
}

// startEngine opens the audio device and loads the bank asynchronously,
// waiting for the first load to report
func startEngine(ctx context.Context, path string) (*SF2Engine, AudioOutput, error) {
	engine := NewSF2Engine(cfg.SampleRate, cfg.Channels, cfg.Voices, cfg.BlockSize)
	engine.Scheduler().SetInterpolation(cfg.InterpolationMode())

	out, err := NewAudioOutput(cfg.Backend, cfg.SampleRate, engine)
	if err != nil {
		return nil, nil, err
	}

	status := make(chan SF2LoadStatus, 1)
	loader := NewMediaLoader(engine, cfg.Bank, filepath.Dir(path), func(st SF2LoadStatus) {
		status <- st
	}, logger)
	loader.LoadFile(ctx, path)

	select {
	case st := <-status:
		if !st.OK {
			out.Close()
			return nil, nil, errors.Errorf("loading %s: %s", st.Name, st.Reason)
		}
	case <-ctx.Done():
		out.Close()
		return nil, nil, ctx.Err()
	}
	out.Start()
	return engine, out, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := expandPath(args[0])
	if err != nil {
		return err
	}
	boilerPlate()
	engine, out, err := startEngine(ctx, path)
	if err != nil {
		return err
	}
	defer out.Close()
	engine.Send(MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: uint8(cfg.Channel), Data1: uint8(cfg.Program)})

	host := NewTerminalHost(engine, uint8(cfg.Channel), cfg.Program)
	host.Start()
	defer host.Stop()

	select {
	case <-host.Quit():
	case <-ctx.Done():
	}
	return nil
}

func runLive(cmd *cobra.Command, args []string) error {
	if liveList {
		names, err := ListMidiInputs()
		if err != nil {
			return err
		}
		for _, n := range names {
			fmt.Fprintln(cmd.OutOrStdout(), n)
		}
		return nil
	}
	if len(args) == 0 {
		return errors.Errorf("live needs a bank unless --list is given")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	path, err := expandPath(args[0])
	if err != nil {
		return err
	}
	engine, out, err := startEngine(ctx, path)
	if err != nil {
		return err
	}
	defer out.Close()
	engine.Send(MidiEvent{Type: MIDI_PROGRAM_CHANGE, Channel: uint8(cfg.Channel), Data1: uint8(cfg.Program)})

	in, err := OpenMidiInput(livePort, engine, logger)
	if err != nil {
		return err
	}
	defer in.Close()

	fmt.Printf("Listening on %s, Ctrl-C to stop\n", in.Name())
	<-ctx.Done()
	if n := engine.Dropped(); n > 0 {
		logger.Warn("events dropped while the queue was full", slog.Uint64("count", n))
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := NewSynthServer(ServerConfig{
		Addr:        serveAddr,
		BankDir:     cfg.BankDir,
		DefaultBank: serveDefault,
		Render:      cfg.Offline(),
	}, logger)
	return srv.Run(ctx)
}
