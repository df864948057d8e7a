package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/Lokiisunny/collabarative-drawing-app/internal/api"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/room"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/sweeper"
	"github.com/Lokiisunny/collabarative-drawing-app/internal/ws"
)

func main() {
	// Optional .env; real environment wins
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}

	rooms := room.NewManager()
	hub := ws.NewHub(rooms)
	go hub.Run()

	sweep := sweeper.New(hub, sweeper.Config{
		Interval:     envDuration("SWEEP_INTERVAL", 30*time.Second),
		MaxStrokeAge: envDuration("SWEEP_MAX_STROKE_AGE", 2*time.Minute),
	})
	sweep.Start()

	router := mux.NewRouter()
	router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})
	api.New(hub).Register(router)

	handler := corsMiddleware(router)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("shutting down server...")
		sweep.Stop()
		os.Exit(0)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Printf("drawing server starting on :%s", port)
	log.Println("endpoints:")
	log.Println("  - WebSocket: /ws?room={roomId}&name={userName}")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Rooms:     GET /api/rooms")

	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return d
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
