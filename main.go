package main

import (
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	arena := DefaultArena()
	if err := arena.Validate(); err != nil {
		log.Fatalf("arena: %v", err)
	}

	var (
		db        *DB
		auth      *Auth
		analytics *Analytics
		events    EventSink
	)
	if cfg.DBPath != "" {
		db, err = OpenDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		if auth, err = NewAuth(db); err != nil {
			log.Fatalf("auth: %v", err)
		}
		analytics = NewAnalytics(db)
		defer analytics.Stop()
		events = analytics
		log.Printf("Persisting stats to %s", cfg.DBPath)
	}

	world := NewWorld(arena, events)
	hub := NewHub(cfg, world, db, auth, analytics)

	// Bind failure is fatal; there is no retry
	ln, err := net.Listen("tcp", cfg.TCPAddr)
	if err != nil {
		log.Fatalf("listen %s: %v", cfg.TCPAddr, err)
	}
	tcpDone := make(chan struct{})
	go func() {
		defer close(tcpDone)
		if err := hub.ServeTCP(ln); err != nil {
			log.Printf("tcp: %v", err)
		}
	}()
	log.Printf("Waiting for connections on %s", ln.Addr())

	var server *http.Server
	if cfg.HTTPAddr != "" {
		server = &http.Server{Addr: cfg.HTTPAddr, Handler: SetupRoutes(hub)}
		go func() {
			log.Printf("HTTP/WebSocket listening on %s", cfg.HTTPAddr)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("ListenAndServe: %v", err)
			}
		}()
	}

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	ln.Close()
	<-tcpDone
	if server != nil {
		server.Close()
	}
	hub.CloseAll()
}
