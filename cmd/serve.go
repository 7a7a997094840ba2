package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/osulel12/itc-parser/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the captcha answer webhook server",
	Long:  "Receives Telegram webhook updates from the operator chat and writes captcha answers and resume requests into the checkpoint store, where a running fetch picks them up.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/telegram/webhook", telegramWebhook(st))

		r.Get("/sessions/{chatID}", func(w http.ResponseWriter, req *http.Request) {
			sess, err := st.GetSession(req.Context(), chi.URLParam(req, "chatID"))
			if err != nil {
				if errors.Is(err, store.ErrSessionNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failure"})
				return
			}
			writeJSON(w, http.StatusOK, sess)
		})

		r.Post("/sessions/{chatID}/resume", func(w http.ResponseWriter, req *http.Request) {
			chatID := chi.URLParam(req, "chatID")
			if err := st.MarkResume(req.Context(), chatID); err != nil {
				if errors.Is(err, store.ErrSessionNotFound) {
					writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
					return
				}
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failure"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]string{"status": "resume marked"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			zap.L().Info("starting server", zap.Int("port", port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "server listen")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

// telegramUpdate is the slice of the Bot API update payload the relay needs.
type telegramUpdate struct {
	Message struct {
		MessageID int64 `json:"message_id"`
		Chat      struct {
			ID int64 `json:"id"`
		} `json:"chat"`
		Text string `json:"text"`
	} `json:"message"`
}

// telegramWebhook turns operator chat messages into store writes: /start
// registers the session, /resume marks the resume flag, any other text is
// taken as the captcha answer.
func telegramWebhook(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if secret := cfg.Telegram.WebhookSecret; secret != "" {
			if req.Header.Get("X-Telegram-Bot-Api-Secret-Token") != secret {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "bad secret token"})
				return
			}
		}

		var upd telegramUpdate
		if err := json.NewDecoder(req.Body).Decode(&upd); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid update body"})
			return
		}
		if upd.Message.Chat.ID == 0 {
			// Not a message update; acknowledge so Telegram stops retrying.
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		}
		chatID := strconv.FormatInt(upd.Message.Chat.ID, 10)
		text := strings.TrimSpace(upd.Message.Text)

		var err error
		switch {
		case text == "":
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
			return
		case text == "/start":
			err = st.RegisterSession(req.Context(), chatID)
		case text == "/resume":
			err = st.MarkResume(req.Context(), chatID)
		default:
			err = st.SetCaptchaAnswer(req.Context(), chatID, text)
		}

		if err != nil {
			if errors.Is(err, store.ErrSessionNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found, send /start first"})
				return
			}
			zap.L().Error("webhook store write failed", zap.String("chat_id", chatID), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "store failure"})
			return
		}

		zap.L().Info("webhook handled", zap.String("chat_id", chatID), zap.String("text", text))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
