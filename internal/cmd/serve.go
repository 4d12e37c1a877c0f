package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dissemin/urltheory/classify"
	"github.com/dissemin/urltheory/internal/cliutil"
	"github.com/dissemin/urltheory/smoothing"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve predictions over HTTP",
	Long: `Serve starts an HTTP endpoint backed by the forest at --dir:
GET /predict?class=ID&url=URL&min_confidence=0.2 answers with the facade's
Classify decision as JSON, without performing any external fetch (no
Fetcher is wired in, so an inconclusive forest prediction simply reports
"unknown" rather than reaching out to the network).`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	rootCmd.AddCommand(serveCmd)
}

type predictResponse struct {
	ClassID     string  `json:"class_id"`
	URL         string  `json:"url"`
	Outcome     string  `json:"outcome"`
	Probability float64 `json:"probability"`
	Source      string  `json:"source"`
}

func runServe(cmd *cobra.Command, args []string) error {
	strat := smoothing.NewConstantDirichlet(1, 1)
	f, err := cliutil.LoadOrNewForest(filterDir, cliutil.NewFilterFactory(threshold, strat))
	if err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	classifier := classify.New(f, classify.WithLogger(logger))

	mux := http.NewServeMux()
	mux.HandleFunc("/predict", predictHandler(classifier))

	srv := &http.Server{Addr: serveAddr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(err.Error())
		}
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	logger.Info("listening", zap.String("addr", serveAddr))

	select {
	case <-signalChannel:
	case <-cmd.Context().Done():
	}

	logger.Info("the server is shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func predictHandler(c *classify.Classifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		class := r.URL.Query().Get("class")
		url := r.URL.Query().Get("url")
		if class == "" || url == "" {
			http.Error(w, "class and url query parameters are required", http.StatusBadRequest)
			return
		}
		minConfidence := 0.2
		if raw := r.URL.Query().Get("min_confidence"); raw != "" {
			if parsed, err := strconv.ParseFloat(raw, 64); err == nil {
				minConfidence = parsed
			}
		}

		decision, err := c.Classify(r.Context(), class, url, r.Referer(), minConfidence)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(predictResponse{
			ClassID:     class,
			URL:         url,
			Outcome:     decision.Outcome.String(),
			Probability: decision.Probability,
			Source:      decision.Source,
		})
	}
}
