package main

import (
	"log"
	"mime"
	"net/http"

	"github.com/rs/cors"

	"vidconv/internal/application/convert"
	"vidconv/internal/config"
	"vidconv/internal/infrastructure/ffmpeg"
	"vidconv/internal/infrastructure/filesystem"
	httptransport "vidconv/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	_ = mime.AddExtensionType(".m3u8", "application/vnd.apple.mpegurl")
	_ = mime.AddExtensionType(".ts", "video/mp2t")
	_ = mime.AddExtensionType(".mpd", "application/dash+xml")
	_ = mime.AddExtensionType(".m4s", "video/iso.segment")

	store := filesystem.NewStore(cfg.StorageDir)
	if err := store.EnsureDirs(); err != nil {
		log.Fatalf("storage init failed: %v", err)
	}

	converter := ffmpeg.NewConverter()
	service := convert.NewService(store, converter, converter, log.Default(), convert.Options{
		Workers:        cfg.Workers,
		StageTimeout:   cfg.StageTimeout(),
		RetentionDelay: cfg.RetentionDelay(),
	})

	handler := httptransport.NewHandler(service, cfg.MaxUploadBytes)
	router := httptransport.NewRouter(handler, cfg.PublicDir)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
	})

	log.Printf("Video converter running on %s", cfg.ServerAddr)
	log.Fatal(http.ListenAndServe(cfg.ServerAddr, c.Handler(router)))
}
