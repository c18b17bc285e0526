package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"elderpass/internal/analyze"
	"elderpass/internal/auth"
	"elderpass/internal/checkin"
	"elderpass/internal/config"
	"elderpass/internal/directory"
	"elderpass/internal/flush"
	"elderpass/internal/httpmiddleware"
	"elderpass/internal/logging"
	"elderpass/internal/queue"
	"elderpass/internal/sink"
)

// Student ids are STU followed by digits; anything else is rejected before it
// reaches the core.
var studentIDPattern = regexp.MustCompile(`^STU\d+$`)

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func run(cfg config.App) error {
	logger := logging.New(cfg.LogLevel)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return err
	}

	dir, err := directory.Load(cfg.RosterPath, logger)
	if err != nil {
		return err
	}

	var q queue.Queue
	if cfg.QueueBackend == "redis" {
		q = queue.NewRedis(queue.NewRedisClient(cfg.RedisAddr), "elderpass:submissions")
	} else {
		q = queue.NewMemory()
	}

	var store sink.Sink
	if cfg.SinkBackend == "memory" {
		store = sink.NewMemory(loc)
	} else {
		pg := sink.NewPostgres(cfg.DatabaseURL, loc, cfg.SinkTimeout, logger)
		defer pg.Close()
		store = pg
	}

	svc := checkin.NewService(dir, q, logger)
	engine := analyze.NewEngine(store, logger)
	scheduler := flush.NewScheduler(q, store, cfg.FlushInterval, logger)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		scheduler.Run(schedulerCtx)
	}()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(httpmiddleware.RequestID())
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewRateLimiter(cfg.RateLimitPerMin).Middleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/healthz", func(c *gin.Context) {
		depth, qErr := q.Len(c.Request.Context())
		_, sErr := store.Partitions(c.Request.Context())
		status := http.StatusOK
		if qErr != nil || sErr != nil {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"status":      "ok",
			"queue_depth": depth,
			"sink":        sErr == nil,
		})
	})

	r.POST("/v1/sessions", func(c *gin.Context) {
		var req struct {
			Name     string `json:"name" binding:"required"`
			Email    string `json:"email" binding:"required,email"`
			Passcode string `json:"passcode" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if cfg.SessionPasscode == "" || req.Passcode != cfg.SessionPasscode {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid passcode"})
			return
		}

		tokens, err := auth.Issue(req.Name, req.Email, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"access_token":  tokens.AccessToken,
			"refresh_token": tokens.RefreshToken,
			"expires_at":    tokens.AccessExp.Unix(),
		})
	})

	authGroup := r.Group("/v1", auth.TeacherAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	authGroup.POST("/checkins", func(c *gin.Context) {
		var req struct {
			StudentID string `json:"student_id" binding:"required"`
			Direction string `json:"direction" binding:"required"`
			Time      string `json:"time"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"data": gin.H{}, "error": err.Error()})
			return
		}
		if !studentIDPattern.MatchString(req.StudentID) {
			c.JSON(http.StatusBadRequest, gin.H{"data": gin.H{}, "error": "invalid student id"})
			return
		}
		direction, err := checkin.ParseDirection(req.Direction)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"data": gin.H{}, "error": "use direction IN or OUT"})
			return
		}
		at := time.Now()
		if req.Time != "" {
			parsed, err := time.Parse(time.RFC3339, req.Time)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"data": gin.H{}, "error": "time must be RFC3339"})
				return
			}
			at = parsed
		}

		claims, _ := auth.TeacherFrom(c)
		teacher := checkin.Teacher{Name: claims.Name, Email: claims.Email}

		student, err := svc.Record(c.Request.Context(), req.StudentID, direction, at, teacher)
		if err != nil {
			if errors.Is(err, directory.ErrStudentNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"data": gin.H{}, "error": "student " + req.StudentID + " was not found"})
				return
			}
			logger.Error("enqueue failed", "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"data": gin.H{}, "error": "could not queue submission"})
			return
		}
		// 202: the event is queued; durable persistence is eventual.
		c.JSON(http.StatusAccepted, gin.H{"data": student, "error": ""})
	})

	authGroup.GET("/students/:id", func(c *gin.Context) {
		id := c.Param("id")
		if !studentIDPattern.MatchString(id) {
			c.JSON(http.StatusBadRequest, gin.H{"data": gin.H{}, "error": "invalid student id"})
			return
		}
		student, err := dir.Lookup(id)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"data": gin.H{}, "error": "student " + id + " was not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": student, "error": ""})
	})

	authGroup.GET("/students", func(c *gin.Context) {
		query := c.Query("query")
		if query == "" {
			c.JSON(http.StatusBadRequest, gin.H{"data": []directory.Student{}, "error": "query parameter required"})
			return
		}
		matches := dir.Search(query)
		if matches == nil {
			matches = []directory.Student{}
		}
		c.JSON(http.StatusOK, gin.H{"data": matches, "error": ""})
	})

	authGroup.GET("/analysis", func(c *gin.Context) {
		day := c.Query("date")
		if day != "" && !sink.ValidDayKey(day) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		report, err := engine.Analyze(c.Request.Context(), day)
		if err != nil {
			if errors.Is(err, sink.ErrSinkUnavailable) {
				c.JSON(http.StatusBadGateway, gin.H{"error": "durable store unreachable"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, report)
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", "err", err)
	}

	// Stop the scheduler last so its final best-effort drain can run after
	// request traffic has ended.
	stopScheduler()
	<-schedulerDone

	logger.Info("server exited")
	return nil
}

// corsMiddleware allows the kiosk frontend to call the API from another
// origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
