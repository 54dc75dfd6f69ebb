package cmd

import (
	"fmt"
	"log"

	"github.com/cskr/pubsub"
	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/klangd/klang/events"
	"github.com/klangd/klang/player"
	"github.com/klangd/klang/webserver"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon [tracks...]",
	Short: "Run the player and its web control surface",
	Long: `Run the klang playback engine.

The daemon opens the configured sound card, starts the effects chain
and serves the web control surface. Audio files given as arguments are
queued for playback.
`,
	Run: daemon,
}

type parmError struct {
	parm string
	msg  string
}

func (p *parmError) Error() string {
	return fmt.Sprintf("%s: %s", p.parm, p.msg)
}

func init() {
	RootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().StringP("output-device", "o", "default", "output device name")
	daemonCmd.Flags().Float64("samplerate", 48000, "engine sampling rate")
	daemonCmd.Flags().Int("channels", 2, "output channels (1 = mono, 2 = stereo)")
	daemonCmd.Flags().Int("frame-length", 1024, "sample frames per processing block")
	daemonCmd.Flags().Int("buffer-length", 8192, "playback ring buffer length in frames")
	daemonCmd.Flags().StringP("http-host", "w", "127.0.0.1", "webserver host (use 0.0.0.0 for public access)")
	daemonCmd.Flags().IntP("http-port", "k", 9090, "webserver port")
}

func checkAudioParameterValues() error {

	if chs := viper.GetInt("output-device.channels"); chs < 1 || chs > 2 {
		return &parmError{
			parm: "output-device.channels",
			msg:  "allowed values are [1 (Mono), 2 (Stereo)]",
		}
	}

	if sr := viper.GetFloat64("output-device.samplerate"); sr < 8000 || sr > 192000 {
		return &parmError{
			parm: "output-device.samplerate",
			msg:  "allowed values are [8000...192000]",
		}
	}

	if viper.GetInt("audio.frame-length") <= 0 {
		return &parmError{
			parm: "audio.frame-length",
			msg:  "value must be > 0",
		}
	}

	if viper.GetInt("audio.buffer-length") < viper.GetInt("audio.frame-length") {
		return &parmError{
			parm: "audio.buffer-length",
			msg:  "value must be >= audio.frame-length",
		}
	}

	return nil
}

func daemon(cmd *cobra.Command, args []string) {

	// bind the pflags to viper settings
	viper.BindPFlag("output-device.device-name", cmd.Flags().Lookup("output-device"))
	viper.BindPFlag("output-device.samplerate", cmd.Flags().Lookup("samplerate"))
	viper.BindPFlag("output-device.channels", cmd.Flags().Lookup("channels"))
	viper.BindPFlag("audio.frame-length", cmd.Flags().Lookup("frame-length"))
	viper.BindPFlag("audio.buffer-length", cmd.Flags().Lookup("buffer-length"))
	viper.BindPFlag("http.host", cmd.Flags().Lookup("http-host"))
	viper.BindPFlag("http.port", cmd.Flags().Lookup("http-port"))

	if err := checkAudioParameterValues(); err != nil {
		log.Fatal(err)
	}

	// viper settings need to be copied in local variables
	// since viper lookups allocate of each lookup a copy
	// and are quite inperformant
	oDeviceName := viper.GetString("output-device.device-name")
	oSamplerate := viper.GetFloat64("output-device.samplerate")
	oChannels := viper.GetInt("output-device.channels")
	audioFramesPerBuffer := viper.GetInt("audio.frame-length")
	audioBufferLength := viper.GetInt("audio.buffer-length")
	httpHost := viper.GetString("http.host")
	httpPort := viper.GetInt("http.port")

	if err := portaudio.Initialize(); err != nil {
		log.Fatal(err)
	}
	defer portaudio.Terminate()

	evPS := pubsub.New(100)

	p, err := player.New(
		player.DeviceName(oDeviceName),
		player.Samplerate(oSamplerate),
		player.Channels(oChannels),
		player.FrameLength(audioFramesPerBuffer),
		player.RingBufferSize(audioBufferLength),
		player.EventBus(evPS),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	if len(args) > 0 {
		if err := p.SetQueue(args); err != nil {
			log.Printf("unable to queue tracks: %v", err)
		} else if err := p.Play(); err != nil {
			log.Printf("unable to start playback: %v", err)
		}
	}

	web, err := webserver.NewWebServer(httpHost, httpPort, p, evPS)
	if err != nil {
		log.Fatal(err)
	}

	go func() {
		if err := web.Start(); err != nil {
			log.Println(err)
			evPS.Pub(true, events.OsExit)
		}
	}()

	go events.WatchSystemEvents(evPS)

	trackEndCh := evPS.Sub(events.TrackEnd)
	trackErrCh := evPS.Sub(events.TrackError)
	deviceErrCh := evPS.Sub(events.DeviceError)
	osExitCh := evPS.Sub(events.OsExit)
	shutdownCh := evPS.Sub(events.Shutdown)

	for {
		select {
		case ev := <-trackEndCh:
			log.Printf("track finished: %v", ev)

		case ev := <-trackErrCh:
			log.Printf("track error: %v", ev)

		case ev := <-deviceErrCh:
			log.Printf("audio device error: %v", ev)

		case <-osExitCh:
			return

		case <-shutdownCh:
			return
		}
	}
}
