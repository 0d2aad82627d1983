package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pavelanni/quizgen/internal/handler"
	appI18n "github.com/pavelanni/quizgen/internal/i18n"
	"github.com/pavelanni/quizgen/internal/llm"
	"github.com/pavelanni/quizgen/internal/model"
	"github.com/pavelanni/quizgen/internal/quiz"
	"github.com/pavelanni/quizgen/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "quizgen",
		Short:        "Generate quiz questions from lesson content with an LLM",
		SilenceUsage: true,
	}

	serve := serveCmd()
	root.AddCommand(serve, lambdaCmd(), generateCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addPipelineFlags(f *pflag.FlagSet) {
	d := model.DefaultPipelineConfig()
	f.String("llm-url", "https://api.openai.com/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "", "API key for the LLM (falls back to OPENAI_API_KEY)")
	f.String("llm-model", d.Model, "LLM model name")
	f.Int("llm-max-tokens", d.MaxTokens, "Maximum tokens in the model reply")
	f.Float64("llm-temperature", float64(d.Temperature), "Sampling temperature")
	f.Duration("llm-timeout", d.Timeout, "Deadline for the model call")
	f.Bool("llm-json-mode", d.JSONMode, "Ask the model for a JSON object response")
	f.Bool("llm-stream", d.Stream, "Stream the model reply")
	f.Int("max-content-length", d.MaxContentLength, "Lesson content budget in characters (0 disables optimization)")
	f.Int("max-points", d.MaxPoints, "Highest points value a question may carry")
	f.StringP("lang", "l", "en", "Default language for placeholder texts (en, es, sr)")
	addLogFlags(f)
}

func addLogFlags(f *pflag.FlagSet) {
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP quiz generation server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "quizgen.db", "SQLite database path for the run ledger (empty disables it)")
	f.Bool("ping", false, "Check the LLM endpoint before serving")
	addPipelineFlags(f)
	return cmd
}

func lambdaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lambda",
		Short: "Serve quiz generation as an AWS Lambda function behind API Gateway",
		RunE:  runLambda,
	}
	f := cmd.Flags()
	f.String("db", "", "SQLite database path for the run ledger (empty disables it)")
	addPipelineFlags(f)
	return cmd
}

func generateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a quiz once and print the response JSON",
		RunE:  runGenerate,
	}
	f := cmd.Flags()
	f.StringP("file", "f", "-", "Lesson file (- for stdin)")
	f.IntP("num-questions", "n", model.DefaultNumQuestions, "Number of questions")
	f.String("title", "", "Quiz title (used when no lesson content is given)")
	f.String("description", "", "Quiz description")
	f.String("language", "", "Language to write the questions in (e.g. sr, es)")
	f.String("variant", "", "Prompt variant: lesson or outline (default: inferred)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addPipelineFlags(f)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded generation runs as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "quizgen.db", "SQLite database path")
	f.String("since", "", "Only runs created since this RFC 3339 time or duration ago (e.g. 24h)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(f)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("QUIZGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("quizgen")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/quizgen")
	v.AddConfigPath("/etc/quizgen")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func pipelineConfig(v *viper.Viper) model.PipelineConfig {
	return model.PipelineConfig{
		Model:            v.GetString("llm-model"),
		MaxTokens:        v.GetInt("llm-max-tokens"),
		Temperature:      float32(v.GetFloat64("llm-temperature")),
		Timeout:          v.GetDuration("llm-timeout"),
		MaxContentLength: v.GetInt("max-content-length"),
		MaxPoints:        v.GetInt("max-points"),
		JSONMode:         v.GetBool("llm-json-mode"),
		Stream:           v.GetBool("llm-stream"),
	}
}

// newGenerator builds the pipeline. Without an API key the returned client
// is nil and the generator reports itself unconfigured.
func newGenerator(v *viper.Viper) (*quiz.Generator, *llm.Client) {
	cfg := pipelineConfig(v)
	key := v.GetString("llm-key")
	if key == "" {
		key = os.Getenv("OPENAI_API_KEY")
	}
	if key == "" {
		slog.Warn("no LLM API key configured; generation requests will fail with 500")
		return quiz.NewGenerator(nil, cfg), nil
	}
	client := llm.New(v.GetString("llm-url"), key, cfg)
	return quiz.NewGenerator(client, cfg), client
}

func openLedger(path string) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	db, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func newRouter(gen *quiz.Generator, client *llm.Client, db *store.Store, lang string) *chi.Mux {
	var pinger handler.Pinger
	if client != nil {
		pinger = client
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	handler.New(gen, db, pinger, lang).Routes(r)
	return r
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen, client := newGenerator(v)
	if client != nil && v.GetBool("ping") {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := client.Ping(ctx); err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", gen.Model())
	}

	db, err := openLedger(v.GetString("db"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if err := db.SetMetadata("model", gen.Model()); err != nil {
			slog.Warn("failed to write ledger metadata", "error", err)
		}
		if err := db.SetMetadata("last_started_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
			slog.Warn("failed to write ledger metadata", "error", err)
		}
	}

	addr := v.GetString("addr")
	srv := &http.Server{
		Addr:              addr,
		Handler:           newRouter(gen, client, db, lang),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("starting server",
		"addr", addr,
		"model", gen.Model(),
		"llm_url", v.GetString("llm-url"),
		"configured", gen.Configured(),
		"timeout", v.GetDuration("llm-timeout"),
		"max_points", v.GetInt("max-points"),
		"stream", v.GetBool("llm-stream"),
		"lang", lang,
		"ledger", v.GetString("db"),
	)
	return srv.ListenAndServe()
}

func runLambda(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	gen, client := newGenerator(v)
	db, err := openLedger(v.GetString("db"))
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
	}

	adapter := chiadapter.New(newRouter(gen, client, db, lang))
	slog.Info("starting lambda handler", "model", gen.Model(), "configured", gen.Configured())
	lambda.Start(adapter.ProxyWithContext)
	return nil
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	var lesson []byte
	var err error
	if path := v.GetString("file"); path == "" || path == "-" {
		if v.GetString("title") == "" {
			lesson, err = io.ReadAll(os.Stdin)
		}
	} else {
		lesson, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read lesson: %w", err)
	}

	n := v.GetInt("num-questions")
	req := model.GenerateRequest{
		LessonContent:   string(lesson),
		NumQuestions:    &n,
		QuizTitle:       v.GetString("title"),
		QuizDescription: v.GetString("description"),
		Language:        v.GetString("language"),
		Variant:         v.GetString("variant"),
	}

	langs := []string{lang}
	if req.Language != "" {
		langs = append([]string{req.Language}, langs...)
	}
	ctx := appI18n.WithLocalizer(context.Background(), appI18n.NewLocalizer(langs...))
	genReq := req
	genReq.Language = appI18n.LanguageName(req.Language)

	gen, _ := newGenerator(v)
	if !gen.Configured() {
		return errors.New(appI18n.T(ctx, "MissingAPIKey"))
	}
	res, err := gen.Generate(ctx, genReq, appI18n.Labels(ctx))
	if err != nil {
		return fmt.Errorf("generate quiz: %w", err)
	}

	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	if err := writeOutput(v.GetString("output"), data); err != nil {
		return err
	}

	fmt.Fprintln(os.Stderr, appI18n.Tp(ctx, "QuestionsGenerated", len(res.Questions)))
	if res.Status == model.StatusFailedWithFallback {
		fmt.Fprintln(os.Stderr, appI18n.Td(ctx, "GenerationFellBack", map[string]any{"Error": res.Error}))
	}
	return nil
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	since, err := parseSince(v.GetString("since"), time.Now())
	if err != nil {
		return err
	}

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	export, err := db.ExportRuns(since)
	if err != nil {
		return fmt.Errorf("export runs: %w", err)
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	return writeOutput(v.GetString("output"), data)
}

// parseSince accepts an RFC 3339 timestamp or a duration counted back from now.
func parseSince(s string, now time.Time) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, fmt.Errorf("invalid --since %q: want an RFC 3339 time or a duration", s)
	}
	t := now.Add(-d)
	return &t, nil
}

func writeOutput(outPath string, data []byte) error {
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
