// Package app はサブコマンドの解析と、各モードの依存関係の組み立てを行う。
package app

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/burlingtondeals/dealsapi/internal/auth"
	"github.com/burlingtondeals/dealsapi/internal/config"
	"github.com/burlingtondeals/dealsapi/internal/contact"
	"github.com/burlingtondeals/dealsapi/internal/database"
	"github.com/burlingtondeals/dealsapi/internal/deal"
	"github.com/burlingtondeals/dealsapi/internal/handler"
	"github.com/burlingtondeals/dealsapi/internal/importer"
	"github.com/burlingtondeals/dealsapi/internal/logger"
	"github.com/burlingtondeals/dealsapi/internal/metrics"
	"github.com/burlingtondeals/dealsapi/internal/middleware"
	"github.com/burlingtondeals/dealsapi/internal/notify"
	"github.com/burlingtondeals/dealsapi/internal/recaptcha"
	"github.com/burlingtondeals/dealsapi/internal/repository"
	"github.com/burlingtondeals/dealsapi/internal/restaurant"
	"github.com/burlingtondeals/dealsapi/internal/security"
	"github.com/burlingtondeals/dealsapi/internal/user"
	"github.com/burlingtondeals/dealsapi/internal/worker/cleanup"
)

const (
	shutdownTimeout  = 30 * time.Second
	dbPingTimeout    = 5 * time.Second
	recaptchaTimeout = 10 * time.Second
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w)

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefaultWithLevel(w, cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)
	var rest []string
	if len(args) > 1 {
		rest = args[1:]
	}

	// 設定やDBを必要としないサブコマンド
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandHashPassword:
		return runHashPassword(w, os.Stdin, rest)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandImport:
		return runImport(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// openDB は接続を開いて疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := database.Ping(context.Background(), db, dbPingTimeout); err != nil {
		db.Close()
		return nil, err
	}
	slog.Info("database connection established")
	return db, nil
}

// newRegistry はプロセス・ランタイムのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newMailer はSMTP設定があればSMTP送信、なければログ出力のMailerを返す。
func newMailer(cfg *config.Config, log *slog.Logger) notify.Mailer {
	if !cfg.MailEnabled() {
		log.Warn("SMTP_HOST is not set; emails will be logged instead of sent")
		return notify.NewLogMailer(log)
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host: cfg.SMTPHost,
		Port: cfg.SMTPPort,
		User: cfg.SMTPUser,
		Pass: cfg.SMTPPass,
		From: cfg.MailFrom,
	})
}

// newFormLimiter はREDIS_URLがあればRedis、なければインメモリのレート制限を返す。
// 戻り値の関数で後始末を行う。
func newFormLimiter(cfg *config.Config) (middleware.KeyLimiter, func(), error) {
	if cfg.RedisURL == "" {
		ml := middleware.NewMemoryLimiter(cfg.ContactRateLimit, cfg.ContactRateWindow)
		return ml, ml.Stop, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	limiter := middleware.NewRedisLimiter(rdb, "", cfg.ContactRateLimit, cfg.ContactRateWindow)
	return limiter, func() { _ = rdb.Close() }, nil
}

// newRecaptchaVerifier はRECAPTCHA_SECRETが空の場合にnilを返す。
func newRecaptchaVerifier(cfg *config.Config, log *slog.Logger) recaptcha.Verifier {
	if cfg.RecaptchaSecret == "" {
		log.Warn("RECAPTCHA_SECRET is not set; contact form tokens will not be verified")
		return nil
	}
	return recaptcha.NewClient(security.NewOutboundClient(recaptchaTimeout), cfg.RecaptchaSecret, cfg.RecaptchaVerify, log)
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	log := slog.Default()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// リポジトリ
	userRepo := repository.NewPostgresUserRepo(db)
	resetRepo := repository.NewPostgresPasswordResetRepo(db)
	restaurantRepo := repository.NewPostgresRestaurantRepo(db)
	dealRepo := repository.NewPostgresDealRepo(db)
	contactRepo := repository.NewPostgresContactRepo(db)
	newsletterRepo := repository.NewPostgresNewsletterRepo(db)

	// メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 通知はレスポンス返却後にバックグラウンドで送る
	dispatcher := notify.NewDispatcher(newMailer(cfg, log), cfg.NotifyQueueSize, collector, log)
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	go dispatcher.Run(dispatchCtx)
	defer func() {
		stopDispatch()
		<-dispatcher.Done()
	}()

	limiter, closeLimiter, err := newFormLimiter(cfg)
	if err != nil {
		return err
	}
	defer closeLimiter()

	// ドメインサービス
	sanitizer := security.NewTextSanitizer()
	tokens := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	authService := auth.NewService(userRepo, resetRepo, tokens, dispatcher, auth.ServiceConfig{
		FrontendURL:   cfg.FrontendURL,
		ResetTokenTTL: cfg.ResetTokenTTL,
	}, log)
	contactService := contact.NewService(
		contactRepo, newRecaptchaVerifier(cfg, log), dispatcher, sanitizer,
		contact.Config{Recipient: cfg.ContactEmail}, log,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HealthChecker:     db,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(reg),
		TokenVerifier:     tokens,
		UserFinder:        userRepo,
		AuthService:       authService,
		FormLimiter:       limiter,
		DealService:       deal.NewService(dealRepo, restaurantRepo, log),
		Feed: handler.FeedConfig{
			Title:       "Burlington Deals",
			Link:        cfg.FrontendURL,
			Description: "Daily food and drink deals in Burlington, Ontario.",
		},
		RestaurantService: restaurant.NewService(restaurantRepo, sanitizer, log),
		UserService:       user.NewService(userRepo, log),
		ContactService:    contactService,
		NewsletterService: contact.NewNewsletterService(newsletterRepo, log),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はSIGINT/SIGTERMを受けるまでサーバーを動かし、
// shutdownTimeout以内にグレースフルシャットダウンする。
func serveUntilSignal(server *http.Server, name string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s listen error: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down " + name + "...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// プロモーション期限切れジョブを定期実行し、/metrics のみを公開する。
func runWorker(cfg *config.Config) error {
	log := slog.Default()

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := newRegistry()
	collector := metrics.NewCollector(reg)
	job := cleanup.NewPromotionJob(repository.NewPostgresDealRepo(db), collector, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	jobDone := make(chan struct{})
	go func() {
		defer close(jobDone)
		job.Start(ctx, cfg.PromotionSweepInterval)
	}()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           metrics.SetupMetricsRoute(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}
	err = serveUntilSignal(server, "worker metrics server")

	cancel()
	<-jobDone
	return err
}

// runMigrate はすべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations")

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// importOptions はimportサブコマンドの引数。
type importOptions struct {
	restaurants string
	deals       string
}

func parseImportArgs(args []string) (importOptions, error) {
	var opts importOptions
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&opts.restaurants, "restaurants", "", "店舗CSVのパス")
	fs.StringVar(&opts.deals, "deals", "", "ディールCSVのパス（省略可）")
	if err := fs.Parse(args); err != nil {
		return opts, fmt.Errorf("invalid import arguments: %w", err)
	}
	if opts.restaurants == "" {
		return opts, errors.New("import requires -restaurants <path>")
	}
	return opts, nil
}

// runImport はCSVから店舗とディールを登録する。
func runImport(cfg *config.Config, args []string) error {
	opts, err := parseImportArgs(args)
	if err != nil {
		return err
	}

	restaurantsFile, err := os.Open(opts.restaurants)
	if err != nil {
		return fmt.Errorf("failed to open restaurants csv: %w", err)
	}
	defer restaurantsFile.Close()

	var deals io.Reader
	if opts.deals != "" {
		dealsFile, err := os.Open(opts.deals)
		if err != nil {
			return fmt.Errorf("failed to open deals csv: %w", err)
		}
		defer dealsFile.Close()
		deals = dealsFile
	}

	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	im := importer.New(repository.NewPostgresRestaurantRepo(db), repository.NewPostgresDealRepo(db), slog.Default())
	if _, err := im.Run(context.Background(), restaurantsFile, deals); err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	return nil
}

// runHashPassword は引数または標準入力の1行目のパスワードをbcryptでハッシュ化して出力する。
func runHashPassword(w io.Writer, stdin io.Reader, args []string) error {
	var password string
	if len(args) > 0 {
		password = args[0]
	} else {
		line, err := bufio.NewReader(stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return errors.New("usage: hash-password <password> (or pass it on stdin)")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, hash)
	return err
}

// runHealthcheck は /health にリクエストを送り、結果を返す。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードを伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
