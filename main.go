// main.go - ChipDeck command line player

package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

func boilerPlate() {
	fmt.Printf("\033[38;2;255;20;147mChipDeck\033[0m %s - game music player for SPC and VGM rips\n", Version)
	fmt.Println("https://github.com/chipdeck/ChipDeck")
}

func main() {
	var (
		trackIndex  int
		shuffle     bool
		repeatName  string
		volume      int
		serveMode   bool
		listenAddr  string
		libDir      string
		scanMode    bool
		headless    bool
		showVersion bool
	)

	flagSet := flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.IntVar(&trackIndex, "track", 0, "Track index to start at")
	flagSet.BoolVar(&shuffle, "shuffle", false, "Shuffle track order")
	flagSet.StringVar(&repeatName, "repeat", "off", "Repeat mode: off, all or one")
	flagSet.IntVar(&volume, "volume", 100, "Playback volume 0..100")
	flagSet.BoolVar(&serveMode, "serve", false, "Serve a scanned library over HTTP")
	flagSet.StringVar(&listenAddr, "listen", ":8381", "Listen address for -serve")
	flagSet.StringVar(&libDir, "lib", ".", "Library directory for -serve and -scan")
	flagSet.BoolVar(&scanMode, "scan", false, "Scan the library and write manifest.json")
	flagSet.BoolVar(&headless, "headless", false, "Check tracks without opening an audio device")
	flagSet.BoolVar(&showVersion, "version", false, "Print version and compiled features")

	flagSet.Usage = func() {
		flagSet.SetOutput(os.Stdout)
		fmt.Println("Usage: chipdeck [-track n] [-shuffle] [-repeat off|all|one] [-volume 0..100] <file.zip|file.spc|file.vgm|dir>")
		fmt.Println("       chipdeck -serve [-listen :8381] [-lib dir]")
		fmt.Println("       chipdeck -scan [-lib dir]")
		flagSet.PrintDefaults()
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if showVersion {
		printFeatures()
		os.Exit(0)
	}

	boilerPlate()

	if serveMode {
		if err := RunLibraryServer(libDir, listenAddr); err != nil {
			fmt.Printf("Server failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	if scanMode {
		if _, err := ScanLibrary(libDir); err != nil {
			fmt.Printf("Scan failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	path := flagSet.Arg(0)
	if path == "" {
		flagSet.Usage()
		os.Exit(1)
	}

	if headless {
		runHeadless(path)
		return
	}

	repeat, err := parseRepeatFlag(repeatName)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	if volume < 0 || volume > 100 {
		fmt.Println("Error: -volume must be between 0 and 100")
		os.Exit(1)
	}

	runPlayer(path, trackIndex, shuffle, repeat, volume)
}

func runPlayer(path string, trackIndex int, shuffle bool, repeat RepeatMode, volume int) {
	output, err := NewOtoPlayer(SAMPLE_RATE)
	if err != nil {
		fmt.Printf("Failed to initialize audio: %v\n", err)
		os.Exit(1)
	}
	engine := NewPlaybackEngine(output)
	ctrl := NewTransportController(engine)
	ctrl.SetShuffle(shuffle)
	ctrl.SetRepeat(repeat)
	ctrl.SetVolume(float64(volume) / 100)

	loader := NewMediaLoader(ctrl)
	loaded := make(chan error, 1)
	loader.Load(path, func(col *GameCollection, err error) {
		loaded <- err
	})
	if err := <-loaded; err != nil {
		fmt.Printf("Error loading %s: %v\n", path, err)
		os.Exit(1)
	}

	col := ctrl.Collection()
	fmt.Printf("Playing: %s (%d tracks)\n", col.DisplayName(), len(col.Tracks))
	fmt.Println("Keys: space pause, n/p next/prev, s shuffle, r repeat, +/- volume, q quit")

	if err := ctrl.PlayTrack(trackIndex); err != nil {
		fmt.Printf("Error starting track %d: %v\n", trackIndex, err)
		os.Exit(1)
	}

	quit := make(chan struct{})
	var quitOnce sync.Once
	keys := NewTerminalKeys(ctrl, func() {
		quitOnce.Do(func() { close(quit) })
	})
	keys.Start()
	defer keys.Stop()

	status := time.NewTicker(250 * time.Millisecond)
	defer status.Stop()
	lastIndex := -1
	for {
		select {
		case <-quit:
			ctrl.Stop()
			fmt.Print("\r\n")
			return
		case <-status.C:
			if ctrl.State() == StateIdle {
				fmt.Print("\r\nDone.\r\n")
				return
			}
			if idx := ctrl.CurrentIndex(); idx != lastIndex {
				if lastIndex >= 0 {
					fmt.Print("\r\n")
				}
				lastIndex = idx
			}
			printStatusLine(ctrl)
		}
	}
}

// printStatusLine redraws the one-line transport display. Raw mode
// needs explicit carriage returns.
func printStatusLine(ctrl *TransportController) {
	track, ok := ctrl.CurrentTrack()
	if !ok {
		return
	}
	seconds, _ := track.Meta.DurationOrDefault()

	extras := ""
	switch ctrl.State() {
	case StatePaused:
		extras += "  [paused]"
	case StateLoading:
		extras += "  [loading]"
	}
	if ctrl.Shuffle() {
		extras += "  [shuffle]"
	}
	if r := ctrl.Repeat(); r != RepeatOff {
		extras += "  [repeat " + r.String() + "]"
	}

	fmt.Printf("\r\033[K[%d/%d] %s  %s/%s  vol %3d%%%s",
		ctrl.CurrentIndex()+1, len(ctrl.Collection().Tracks),
		track.DisplayTitle(),
		formatDuration(ctrl.Elapsed().Seconds()), formatDuration(seconds),
		int(ctrl.Volume()*100+0.5), extras)
}

// runHeadless decodes a burst of every track and prints the listing,
// for checking rips without an audio device.
func runHeadless(path string) {
	col, err := loadMediaPath(path)
	if err != nil {
		fmt.Printf("Error loading %s: %v\n", path, err)
		os.Exit(1)
	}

	fmt.Printf("%s (%d tracks)\n", col.DisplayName(), len(col.Tracks))
	buf := make([]int16, 2048*2)
	for i, track := range col.Tracks {
		seconds, fadeMs := track.Meta.DurationOrDefault()
		status := "ok"
		if eng, err := EngineFor(track.Format); err != nil {
			status = err.Error()
		} else if session, err := eng.Initialize(track.Data); err != nil {
			status = err.Error()
		} else {
			if session.DecodeFrames(buf, 2048) == 0 {
				status = "no audio"
			}
			session.Release()
		}
		fmt.Printf("  %2d  %-40s %7s  fade %4.1fs  [%s] %s\n",
			i+1, track.DisplayTitle(), formatDuration(seconds),
			float64(fadeMs)/1000, track.Format, status)
	}
}

func parseRepeatFlag(value string) (RepeatMode, error) {
	switch value {
	case "off":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	}
	return RepeatOff, fmt.Errorf("unknown repeat mode %q (want off, all or one)", value)
}
