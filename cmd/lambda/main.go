// Command lambda serves the LINE webhook from an AWS Lambda function URL.
//
// Configuration comes from the same environment variables as the server
// binary. SQLite is not available here, so state lives in Postgres
// (DATABASE_URL), Supabase (SUPABASE_URL and SUPABASE_KEY), or memory.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"

	"github.com/BTreeMap/LineConcierge/internal/api"
	"github.com/BTreeMap/LineConcierge/internal/genai"
	"github.com/BTreeMap/LineConcierge/internal/messaging"
	"github.com/BTreeMap/LineConcierge/internal/notify"
	"github.com/BTreeMap/LineConcierge/internal/store"
	"github.com/BTreeMap/LineConcierge/internal/util"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	app, err := api.Build(storeOptions(), genaiOptions(), lineOptions(), notifyOptions(), apiOptions(), appOptions()...)
	if err != nil {
		slog.Error("lambda: failed to build application", "error", err)
		os.Exit(1)
	}
	lambda.Start(newHandler(app.Server.Handler()))
}

func storeOptions() []store.Option {
	if url, key := os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_KEY"); url != "" && key != "" {
		opts := []store.Option{store.WithSupabase(url, key)}
		if table := os.Getenv("SUPABASE_TABLE"); table != "" {
			opts = append(opts, store.WithSupabaseTable(table))
		}
		return opts
	}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && store.DetectDSNType(dsn) == "postgres" {
		return []store.Option{store.WithPostgresDSN(dsn)}
	}
	slog.Warn("lambda: no Postgres or Supabase configured, user state will not survive cold starts")
	return nil
}

func genaiOptions() []genai.Option {
	var opts []genai.Option
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		opts = append(opts, genai.WithAPIKey(key))
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		opts = append(opts, genai.WithModel(model))
	}
	return opts
}

func lineOptions() []messaging.Option {
	return []messaging.Option{messaging.WithChannelAccessToken(os.Getenv("LINE_CHANNEL_ACCESS_TOKEN"))}
}

func notifyOptions() []notify.Option {
	if u := os.Getenv("DISCORD_WEBHOOK_URL"); u != "" {
		return []notify.Option{notify.WithWebhookURL(u)}
	}
	return nil
}

func apiOptions() []api.Option {
	return []api.Option{api.WithChannelSecret(os.Getenv("LINE_CHANNEL_SECRET"))}
}

func appOptions() []api.AppOption {
	opts := []api.AppOption{api.WithDedupEnabled(util.ParseBoolEnv("DEDUP_ENABLED", true))}
	if path := os.Getenv("CATALOG_FILE"); path != "" {
		opts = append(opts, api.WithCatalogFile(path))
	}
	if u := os.Getenv("COMMUNITY_INVITE_URL"); u != "" {
		opts = append(opts, api.WithCommunityURL(u))
	}
	return opts
}

type urlHandler func(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error)

// newHandler serves function URL requests through h.
func newHandler(h http.Handler) urlHandler {
	return func(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
		httpReq, err := toHTTPRequest(ctx, req)
		if err != nil {
			slog.Warn("lambda: bad request", "error", err)
			return events.LambdaFunctionURLResponse{StatusCode: http.StatusBadRequest}, nil
		}
		w := newResponseWriter()
		h.ServeHTTP(w, httpReq)
		return w.toResponse(), nil
	}
}

func toHTTPRequest(ctx context.Context, req events.LambdaFunctionURLRequest) (*http.Request, error) {
	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 body: %w", err)
		}
		body = decoded
	}
	path := req.RawPath
	if path == "" {
		path = "/"
	}
	if req.RawQueryString != "" {
		path += "?" + req.RawQueryString
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.RequestContext.HTTP.Method, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// responseWriter buffers a handler's response for the Lambda runtime.
type responseWriter struct {
	header http.Header
	body   bytes.Buffer
	status int
}

func newResponseWriter() *responseWriter {
	return &responseWriter{header: make(http.Header)}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.body.Write(b)
}

func (w *responseWriter) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
}

func (w *responseWriter) toResponse() events.LambdaFunctionURLResponse {
	status := w.status
	if status == 0 {
		status = http.StatusOK
	}
	headers := make(map[string]string, len(w.header))
	for k, v := range w.header {
		headers[k] = strings.Join(v, ",")
	}
	return events.LambdaFunctionURLResponse{
		StatusCode: status,
		Headers:    headers,
		Body:       w.body.String(),
	}
}
