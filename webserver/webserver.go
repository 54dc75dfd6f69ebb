package webserver

import (
	"embed"
	"fmt"
	"io/fs"
	"log"
	"net"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/cskr/pubsub"
	nolistfs "github.com/dh1tw/nolistfs"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/klangd/klang/analyzer"
	"github.com/klangd/klang/audio/sinks/scWriter"
	"github.com/klangd/klang/dsp"
	"github.com/klangd/klang/events"
	"github.com/klangd/klang/player"
)

//go:embed html
var htmlFS embed.FS

var upgrader = websocket.Upgrader{}

// Controller is the part of the playback engine the web interface
// drives.
type Controller interface {
	Play() error
	Pause() error
	Stop() error
	Next() error
	Previous() error
	Seek(time.Duration) error
	SeekPercent(float64) error
	SetQueue([]string) error
	SetVolume(float32) error
	SetMute(bool)
	SetShuffle(bool)
	SetRepeat(player.RepeatMode)
	SetABLoop(a, b time.Duration) error
	SetABPoint(point string, at time.Duration) error
	ClearABPoint(point string) error
	ClearABLoop()
	SetCrossfade(time.Duration) error
	SetEffects(dsp.Params) error
	Effects() dsp.Params
	SetEQBand(band int, gain float32) error
	State() player.PlaybackState
	VisualizerData() analyzer.Snapshot
	Devices() ([]scWriter.Device, error)
	SetDevice(string) error
	Stats() player.Stats
}

// WebServer exposes the player's control surface over HTTP and pushes
// state changes to connected websocket clients.
type WebServer struct {
	url        string
	port       int
	router     *mux.Router
	apiVersion string
	apiMatch   *regexp.Regexp
	player     Controller
	events     *pubsub.PubSub

	muClients      sync.Mutex
	wsClients      map[*wsClient]bool
	addWsClient    chan *wsClient
	removeWsClient chan *wsClient
}

// NewWebServer returns a control surface webserver bound to the given
// address.
func NewWebServer(url string, port int, p Controller, bus *pubsub.PubSub) (*WebServer, error) {

	web := &WebServer{
		url:            url,
		port:           port,
		router:         mux.NewRouter().StrictSlash(true),
		apiVersion:     "1.0",
		apiMatch:       regexp.MustCompile(`api\/v\d\.\d\/`),
		player:         p,
		events:         bus,
		wsClients:      make(map[*wsClient]bool),
		addWsClient:    make(chan *wsClient),
		removeWsClient: make(chan *wsClient),
	}

	web.routes()

	return web, nil
}

// Start launches the webserver. It blocks until the listener fails or
// is shut down.
func (web *WebServer) Start() error {

	defer web.closeWsClients()

	go web.handleClients()

	baseFS, err := fs.Sub(htmlFS, "html")
	if err != nil {
		return err
	}
	web.router.PathPrefix("/").Handler(
		http.FileServer(http.FS(nolistfs.New(baseFS))))

	serverMux := http.NewServeMux()
	serverMux.Handle("/", web.apiRedirectRouter(web.router))

	url := fmt.Sprintf("%s:%d", web.url, web.port)
	listener, err := net.Listen("tcp", url)
	if err != nil {
		return fmt.Errorf("unable to listen on %s: %w", url, err)
	}

	log.Printf("webserver listening on %s\n", url)

	return http.Serve(listener, serverMux)
}

// handleClients registers and unregisters websocket clients and pushes
// player state changes to all of them.
func (web *WebServer) handleClients() {

	var stateCh, visCh chan interface{}
	if web.events != nil {
		stateCh = web.events.Sub(events.StateChange)
		visCh = web.events.Sub(events.TrackEnd)
	}

	for {
		select {
		case <-stateCh:
			web.updateWsClients()

		case <-visCh:
			web.updateWsClients()

		case client := <-web.addWsClient:
			log.Println("websocket client connected")
			web.muClients.Lock()
			web.wsClients[client] = true
			web.muClients.Unlock()
			web.updateWsClients()

		case client := <-web.removeWsClient:
			log.Println("websocket client disconnected")
			web.muClients.Lock()
			if _, ok := web.wsClients[client]; ok {
				delete(web.wsClients, client)
				close(client.send)
			}
			web.muClients.Unlock()
		}
	}
}

// updateWsClients pushes the current playback state to all connected
// websocket clients.
func (web *WebServer) updateWsClients() {

	data, err := stateJSON(web.player.State())
	if err != nil {
		log.Println(err)
		return
	}

	web.muClients.Lock()
	defer web.muClients.Unlock()
	for client := range web.wsClients {
		select {
		case client.send <- data:
		default: // drop the update for slow clients
		}
	}
}

func (web *WebServer) closeWsClients() {
	web.muClients.Lock()
	defer web.muClients.Unlock()
	for client := range web.wsClients {
		close(client.send)
		delete(web.wsClients, client)
	}
}

type wsClient struct {
	ws           *websocket.Conn
	send         chan []byte
	removeClient chan<- *wsClient
}

func (c *wsClient) write() {
	defer c.ws.Close()

	for message := range c.send {
		c.ws.WriteMessage(websocket.TextMessage, message)
	}
	c.ws.WriteMessage(websocket.CloseMessage, []byte{})
}

func (c *wsClient) read() {
	defer func() {
		c.removeClient <- c
		c.ws.Close()
	}()

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			break
		}
	}
}
