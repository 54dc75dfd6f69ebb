package webserver

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/klangd/klang/dsp"
	"github.com/klangd/klang/player"
	"github.com/klangd/klang/utils"
)

// wire messages; pointer fields distinguish absent from zero values

type playbackPosition struct {
	Position *float64 `json:"position,omitempty"` // seconds
	Percent  *float64 `json:"percent,omitempty"`
}

type controlVolume struct {
	Volume *int `json:"volume,omitempty"` // percent
}

type controlMute struct {
	Muted *bool `json:"muted,omitempty"`
}

type controlShuffle struct {
	Shuffle *bool `json:"shuffle,omitempty"`
}

type controlRepeat struct {
	Repeat *string `json:"repeat,omitempty"`
}

type controlCrossfade struct {
	Crossfade *float64 `json:"crossfade,omitempty"` // seconds, 0 = off
}

type loopPoints struct {
	A *float64 `json:"a,omitempty"` // seconds
	B *float64 `json:"b,omitempty"`
}

type controlQueue struct {
	Tracks []string `json:"tracks"`
}

type controlDevice struct {
	Device *string `json:"device,omitempty"`
}

type eqGain struct {
	Gain *float64 `json:"gain,omitempty"` // dB
}

var repeatModes = []string{"off", "all", "one"}

func stateJSON(s player.PlaybackState) ([]byte, error) {
	return json.Marshal(s)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to encode response"))
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	w.WriteHeader(http.StatusBadRequest)
	w.Write([]byte("400 - " + msg))
}

// simpleAction wraps the bodyless transport commands (play, pause, ...).
func (web *WebServer) simpleAction(action func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer req.Body.Close()
		w.Header().Set("Content-Type", "application/json; charset=UTF-8")

		if err := action(); err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()
		writeJSON(w, web.player.State())
	}
}

func (web *WebServer) playHdlr(w http.ResponseWriter, req *http.Request) {
	web.simpleAction(web.player.Play)(w, req)
}

func (web *WebServer) pauseHdlr(w http.ResponseWriter, req *http.Request) {
	web.simpleAction(web.player.Pause)(w, req)
}

func (web *WebServer) stopHdlr(w http.ResponseWriter, req *http.Request) {
	web.simpleAction(web.player.Stop)(w, req)
}

func (web *WebServer) nextHdlr(w http.ResponseWriter, req *http.Request) {
	web.simpleAction(web.player.Next)(w, req)
}

func (web *WebServer) previousHdlr(w http.ResponseWriter, req *http.Request) {
	web.simpleAction(web.player.Previous)(w, req)
}

func (web *WebServer) stateHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	writeJSON(w, web.player.State())
}

func (web *WebServer) positionHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		pos := web.player.State().Position
		writeJSON(w, &playbackPosition{Position: &pos})

	case "PUT":
		var msg playbackPosition
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}

		var err error
		switch {
		case msg.Position != nil:
			err = web.player.Seek(time.Duration(*msg.Position * float64(time.Second)))
		case msg.Percent != nil:
			err = web.player.SeekPercent(*msg.Percent)
		default:
			badRequest(w, "invalid request")
			return
		}
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) queueHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	var msg controlQueue
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if len(msg.Tracks) == 0 {
		badRequest(w, "invalid request")
		return
	}
	if err := web.player.SetQueue(msg.Tracks); err != nil {
		badRequest(w, err.Error())
		return
	}
	web.updateWsClients()
	writeJSON(w, web.player.State())
}

func (web *WebServer) volumeHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		vol := int(web.player.State().Volume * 100)
		writeJSON(w, &controlVolume{Volume: &vol})

	case "PUT":
		var msg controlVolume
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if msg.Volume == nil {
			badRequest(w, "invalid request")
			return
		}
		if err := web.player.SetVolume(float32(*msg.Volume) / 100); err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) muteHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		muted := web.player.State().Muted
		writeJSON(w, &controlMute{Muted: &muted})

	case "PUT":
		var msg controlMute
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if msg.Muted == nil {
			badRequest(w, "invalid request")
			return
		}
		web.player.SetMute(*msg.Muted)
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) shuffleHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		shuffle := web.player.State().Shuffle
		writeJSON(w, &controlShuffle{Shuffle: &shuffle})

	case "PUT":
		var msg controlShuffle
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if msg.Shuffle == nil {
			badRequest(w, "invalid request")
			return
		}
		web.player.SetShuffle(*msg.Shuffle)
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) repeatHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		mode := web.player.State().Repeat.String()
		writeJSON(w, &controlRepeat{Repeat: &mode})

	case "PUT":
		var msg controlRepeat
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if msg.Repeat == nil || !utils.StringInSlice(*msg.Repeat, repeatModes) {
			badRequest(w, "invalid repeat mode")
			return
		}
		mode, err := player.ParseRepeatMode(*msg.Repeat)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		web.player.SetRepeat(mode)
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) crossfadeHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		cf := web.player.State().Crossfade
		writeJSON(w, &controlCrossfade{Crossfade: &cf})

	case "PUT":
		var msg controlCrossfade
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if msg.Crossfade == nil {
			badRequest(w, "invalid request")
			return
		}
		d := time.Duration(*msg.Crossfade * float64(time.Second))
		if err := web.player.SetCrossfade(d); err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) abLoopHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		writeJSON(w, web.player.State().ABLoop)

	case "PUT":
		var msg loopPoints
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}

		// a single point may be set on its own; the loop engages
		// once both are in place
		var err error
		switch {
		case msg.A != nil && msg.B != nil:
			a := time.Duration(*msg.A * float64(time.Second))
			b := time.Duration(*msg.B * float64(time.Second))
			err = web.player.SetABLoop(a, b)
		case msg.A != nil:
			err = web.player.SetABPoint("a", time.Duration(*msg.A*float64(time.Second)))
		case msg.B != nil:
			err = web.player.SetABPoint("b", time.Duration(*msg.B*float64(time.Second)))
		default:
			badRequest(w, "invalid request")
			return
		}
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()

	case "DELETE":
		if point := req.URL.Query().Get("point"); point != "" {
			if err := web.player.ClearABPoint(point); err != nil {
				badRequest(w, err.Error())
				return
			}
		} else {
			web.player.ClearABLoop()
		}
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) effectsHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		writeJSON(w, web.player.Effects())

	case "PUT":
		var params dsp.Params
		if err := json.NewDecoder(req.Body).Decode(&params); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if err := web.player.SetEffects(params); err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) eqBandHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	vars := mux.Vars(req)
	band, err := strconv.Atoi(vars["band"])
	if err != nil {
		badRequest(w, "invalid band index")
		return
	}

	var msg eqGain
	if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
		badRequest(w, "invalid JSON")
		return
	}
	if msg.Gain == nil {
		badRequest(w, "invalid request")
		return
	}
	if err := web.player.SetEQBand(band, float32(*msg.Gain)); err != nil {
		badRequest(w, err.Error())
		return
	}
	web.updateWsClients()
	writeJSON(w, web.player.Effects())
}

func (web *WebServer) visualizerHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	writeJSON(w, web.player.VisualizerData())
}

func (web *WebServer) devicesHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	devs, err := web.player.Devices()
	if err != nil {
		log.Println(err)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("500 - unable to enumerate audio devices"))
		return
	}
	writeJSON(w, devs)
}

func (web *WebServer) deviceHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")

	switch req.Method {
	case "GET":
		dev := web.player.Stats().Device
		writeJSON(w, &controlDevice{Device: &dev})

	case "PUT":
		var msg controlDevice
		if err := json.NewDecoder(req.Body).Decode(&msg); err != nil {
			badRequest(w, "invalid JSON")
			return
		}
		if msg.Device == nil {
			badRequest(w, "invalid request")
			return
		}
		if err := web.player.SetDevice(*msg.Device); err != nil {
			badRequest(w, err.Error())
			return
		}
		web.updateWsClients()

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (web *WebServer) statsHdlr(w http.ResponseWriter, req *http.Request) {
	defer req.Body.Close()
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	writeJSON(w, web.player.Stats())
}

func (web *WebServer) webSocketHdlr(w http.ResponseWriter, req *http.Request) {

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		http.NotFound(w, req)
		log.Printf("unable to open ws for %v\n", req.RemoteAddr)
		return
	}

	client := &wsClient{
		ws:           conn,
		send:         make(chan []byte, 8),
		removeClient: web.removeWsClient,
	}

	go client.write()
	go client.read()

	web.addWsClient <- client
}
