package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"illusion-quiz-service/internal/app"
	"illusion-quiz-service/internal/config"
	"illusion-quiz-service/internal/domain"
	"illusion-quiz-service/internal/infra/memory"
	pginfra "illusion-quiz-service/internal/infra/postgres"
	redisinfra "illusion-quiz-service/internal/infra/redis"
	transport "illusion-quiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)
	var catalog app.Catalog = memory.NewStaticCatalog(sampleQuestions())
	if pool != nil {
		catalog = memory.NewCachingCatalog(pginfra.NewCatalogLoader(pool), catalogTTL)
	}

	var voteStore app.VoteStore = memory.NewVoteStore()
	if pool != nil {
		voteStore = pginfra.NewVoteStore(pool)
	}
	votes := app.NewVoteService(voteStore)

	var stats app.StatsProvider = votes
	if redisClient != nil {
		statsTTL := config.TTLDuration(cfg.Redis.StatsTTL, 30*time.Second)
		stats = redisinfra.NewStatsCache(redisClient, votes, statsTTL)
	}

	var profiles transport.ProfileStores
	if redisClient != nil {
		profiles = func(fingerprint string) app.ProfileStore {
			return redisinfra.NewProfileStore(redisClient, fingerprint, 0)
		}
	} else {
		registry := memory.NewProfileStores()
		profiles = func(fingerprint string) app.ProfileStore {
			return registry.For(fingerprint)
		}
	}

	daily := app.NewDailySelector(catalog)
	handler := transport.NewHandler(votes, stats, catalog, daily, profiles)
	wsHandler := transport.NewWSHandler(votes)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/stats", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting illusion quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuestions provides a minimal catalog for running without Postgres;
// production loads the full catalog from the questions table.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID: "coffee-preference",
			Title: domain.LocalizedText{
				KO: "아침에 커피를 마시는 것을 좋아한다",
				EN: "I enjoy having coffee in the morning",
			},
			Description: domain.LocalizedText{
				KO: "이 의견에 동의하는 사람은 몇 %일까요?",
				EN: "What percentage of people agree with this?",
			},
			ActualPercentage: 64,
			Source:           domain.Source{Name: "National Coffee Association", URL: "https://www.ncausa.org/", Year: 2023},
			Insight: domain.LocalizedText{
				KO: "64%의 성인이 매일 커피를 마십니다.",
				EN: "64% of adults drink coffee daily.",
			},
			Category: domain.CategoryLifestyle,
		},
		{
			ID: "weekend-rest",
			Title: domain.LocalizedText{
				KO: "주말에는 집에서 쉬는 것이 좋다",
				EN: "I prefer staying home to rest on weekends",
			},
			Description: domain.LocalizedText{
				KO: "이 의견에 동의하는 사람은 몇 %일까요?",
				EN: "What percentage of people agree with this?",
			},
			ActualPercentage: 58,
			Source:           domain.Source{Name: "Pew Research", URL: "https://www.pewresearch.org/", Year: 2023},
			Insight: domain.LocalizedText{
				KO: "58%의 사람들이 주말에 집에서 휴식을 선호합니다.",
				EN: "58% prefer resting at home on weekends.",
			},
			Category: domain.CategoryLifestyle,
		},
		{
			ID: "same-sex-marriage",
			Title: domain.LocalizedText{
				KO: "동성결혼을 법적으로 인정해야 한다",
				EN: "Same-sex marriage should be legally recognized",
			},
			Description: domain.LocalizedText{
				KO: "이 의견에 동의하는 사람은 몇 %일까요?",
				EN: "What percentage of people agree with this?",
			},
			ActualPercentage: 71,
			Source:           domain.Source{Name: "Gallup", URL: "https://news.gallup.com/poll/393197/same-sex-marriage-support-inches-new-high.aspx", Year: 2022},
			Insight: domain.LocalizedText{
				KO: "미국에서 동성결혼 지지율은 71%로 역대 최고치입니다.",
				EN: "Support for same-sex marriage in the US reached a record high of 71%.",
			},
			Category: domain.CategorySocial,
		},
		{
			ID: "political-dialogue",
			Title: domain.LocalizedText{
				KO: "정치적으로 다른 의견을 가진 사람과 대화할 의향이 있다",
				EN: "Willing to have conversations with people of different political views",
			},
			Description: domain.LocalizedText{
				KO: "이 의견에 동의하는 사람은 몇 %일까요?",
				EN: "What percentage of people agree with this?",
			},
			ActualPercentage: 77,
			Source:           domain.Source{Name: "More in Common", URL: "https://www.moreincommon.com/hidden-tribes/", Year: 2018},
			Insight: domain.LocalizedText{
				KO: "77%의 사람들이 다른 정치적 견해를 가진 사람들과 대화할 의향이 있습니다.",
				EN: "77% of people are willing to talk with those of different political views.",
			},
			Category: domain.CategoryPolitical,
		},
		{
			ID: "workplace-voice",
			Title: domain.LocalizedText{
				KO: "직장에서 자신의 의견을 솔직하게 말하기 어렵다",
				EN: "It's difficult to speak up honestly at work",
			},
			Description: domain.LocalizedText{
				KO: "이렇게 느끼는 사람은 몇 %일까요?",
				EN: "What percentage of people feel this way?",
			},
			ActualPercentage: 53,
			Source:           domain.Source{Name: "Gallup", URL: "https://www.gallup.com/workplace/236198/create-culture-psychological-safety.aspx", Year: 2023},
			Insight: domain.LocalizedText{
				KO: "53%의 직원들이 직장에서 솔직하게 말하기 어렵다고 느낍니다.",
				EN: "53% of employees find it hard to speak up at work.",
			},
			Category: domain.CategoryWorkplace,
		},
		{
			ID: "money-vs-meaning",
			Title: domain.LocalizedText{
				KO: "돈보다 일의 의미가 더 중요하다",
				EN: "Meaning in work matters more than money",
			},
			Description: domain.LocalizedText{
				KO: "이 의견에 동의하는 사람은 몇 %일까요?",
				EN: "What percentage of people agree with this?",
			},
			ActualPercentage: 67,
			Source:           domain.Source{Name: "World Values Survey", URL: "https://www.worldvaluessurvey.org/", Year: 2022},
			Insight: domain.LocalizedText{
				KO: "전 세계적으로 67%의 사람들이 일에서 의미를 중요하게 생각합니다.",
				EN: "Globally, 67% of people value meaning in their work.",
			},
			Category: domain.CategoryValues,
		},
	}
}
