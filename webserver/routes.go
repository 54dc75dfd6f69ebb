package webserver

func (web *WebServer) routes() {
	web.router.HandleFunc("/api/v1.0/state", web.stateHdlr).Methods("GET")
	web.router.HandleFunc("/api/v1.0/playback/play", web.playHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/playback/pause", web.pauseHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/playback/stop", web.stopHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/playback/next", web.nextHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/playback/previous", web.previousHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/playback/position", web.positionHdlr)
	web.router.HandleFunc("/api/v1.0/queue", web.queueHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/volume", web.volumeHdlr)
	web.router.HandleFunc("/api/v1.0/mute", web.muteHdlr)
	web.router.HandleFunc("/api/v1.0/shuffle", web.shuffleHdlr)
	web.router.HandleFunc("/api/v1.0/repeat", web.repeatHdlr)
	web.router.HandleFunc("/api/v1.0/crossfade", web.crossfadeHdlr)
	web.router.HandleFunc("/api/v1.0/abloop", web.abLoopHdlr)
	web.router.HandleFunc("/api/v1.0/effects", web.effectsHdlr)
	web.router.HandleFunc("/api/v1.0/effects/eq/{band}", web.eqBandHdlr).Methods("PUT")
	web.router.HandleFunc("/api/v1.0/visualizer", web.visualizerHdlr).Methods("GET")
	web.router.HandleFunc("/api/v1.0/devices", web.devicesHdlr).Methods("GET")
	web.router.HandleFunc("/api/v1.0/device", web.deviceHdlr)
	web.router.HandleFunc("/api/v1.0/stats", web.statsHdlr).Methods("GET")
	web.router.HandleFunc("/ws", web.webSocketHdlr)
}
