package main

import (
	"cmp"
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/labstack/gommon/log"

	"plottheplot/pkg/auth"
	"plottheplot/pkg/gutenberg"
	"plottheplot/pkg/inference"
	"plottheplot/pkg/plot"
	"plottheplot/pkg/server"
	"plottheplot/pkg/store"
)

func main() {
	ctx, done := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGKILL)

	var inf inference.Inferencer
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		gemini, err := inference.NewGeminiInferencer(apiKey, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatal(err)
		}
		inf = gemini
	} else {
		openAI := inference.NewOpenAIInferencer(os.Getenv("OPENAI_API_KEY"), cmp.Or(os.Getenv("OPENAI_MODEL"), "gpt-4o-mini"))
		if os.Getenv("OPENAI_API_KEY") == "" {
			openAI.ChangeBaseURL("http://localhost:1234/v1")
			openAI.SetModel("")
		}
		inf = openAI
	}

	if grokKey := os.Getenv("GROK_API_KEY"); grokKey != "" {
		inf = inference.NewGrokInferencer(grokKey, os.Getenv("GROK_MODEL"))
	}

	db, err := store.Open(cmp.Or(os.Getenv("DB_PATH"), "plottheplot.db"))
	if err != nil {
		log.Fatal(err)
	}

	tokens, err := auth.NewManager(os.Getenv("JWT_SECRET"), 24*time.Hour)
	if err != nil {
		log.Fatal(err)
	}

	source := gutenberg.NewClient(30*time.Second, "plottheplot/1.0", 10<<20, 15*time.Minute)
	pipeline := plot.NewPipeline(source, plot.NewAnalyzer(inf), db)

	srv := server.NewServer(pipeline, db, tokens)
	srv.Echo.Logger.SetLevel(log.DEBUG)

	addr := ":8080"
	if envAddr := os.Getenv("PORT"); envAddr != "" {
		addr = ":" + envAddr
	}

	finishedShutDown := make(chan struct{})
	go func() {
		<-ctx.Done()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error(err)
		}
		if err := db.Close(); err != nil {
			log.Error(err)
		}
		done()
		close(finishedShutDown)
	}()

	log.Infof("Server listening at %s", addr)
	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error(err)
	}
	<-finishedShutDown
}
