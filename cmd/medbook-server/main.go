package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medbook/medbook/internal/config"
	"github.com/medbook/medbook/internal/domain/appointment"
	"github.com/medbook/medbook/internal/domain/catalog"
	"github.com/medbook/medbook/internal/domain/patient"
	"github.com/medbook/medbook/internal/domain/roster"
	"github.com/medbook/medbook/internal/engine"
	"github.com/medbook/medbook/internal/platform/auth"
	"github.com/medbook/medbook/internal/platform/cache"
	"github.com/medbook/medbook/internal/platform/db"
	"github.com/medbook/medbook/internal/platform/events"
	"github.com/medbook/medbook/internal/platform/lock"
	"github.com/medbook/medbook/internal/platform/middleware"
	"github.com/medbook/medbook/internal/platform/notification"
	"github.com/medbook/medbook/internal/platform/telemetry"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "medbook-server",
		Short: "Clinic appointment booking API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := loadAndConnect()
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			count, err := migrator.Up(context.Background())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, pool, err := loadAndConnect()
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			statuses, err := migrator.Status(context.Background())
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func loadAndConnect() (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	pool, err := db.NewPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}

func runServer() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		logger = logger.Level(level)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Schedule lock: Redis when configured, in-process otherwise.
	var redisClient *redis.Client
	locker := lock.NewLocalLocker()
	if cfg.RedisURL != "" {
		redisClient, err = lock.NewRedisClient(cfg.RedisURL, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		locker = lock.NewRedisLocker(redisClient, time.Duration(cfg.LockTTLSeconds)*time.Second)
		logger.Info().Msg("using redis schedule lock")
	} else {
		logger.Warn().Msg("REDIS_URL not set; schedule lock is process-local")
	}

	// Event publisher: AMQP when configured.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.AMQPURL != "" {
		amqpPub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.EventsExchange, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to amqp broker")
		}
		publisher = amqpPub
		logger.Info().Str("exchange", cfg.EventsExchange).Msg("publishing appointment events")
	}
	defer publisher.Close()

	var scheduleCache *cache.ScheduleCache
	if cfg.CacheEnabled {
		scheduleCache, err = cache.NewScheduleCache(cfg.CacheSize, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to create schedule cache")
		}
	}

	tp := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName: "medbook-server",
		Environment: cfg.Env,
	})

	notifier := notification.NewNotificationManager(
		&notification.MockEmailSender{}, &notification.MockSMSSender{}, notification.NewTemplateEngine())

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(tp.TracingMiddleware())
	e.Use(tp.MetricsMiddleware())

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.JWTIssuer,
			Audience:   cfg.JWTAudience,
			JWKSURL:    cfg.JWTJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}
	e.Use(middleware.Audit(logger))

	apiV1 := e.Group("/api/v1")
	rateCfg := middleware.RateLimitConfig{
		RequestsPerMinute: cfg.RateLimitPerMinute,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateCfg.RequestsPerMinute <= 0 {
		rateCfg = middleware.DefaultRateLimitConfig()
	}
	limiter := middleware.NewRateLimiter(rateCfg)
	apiV1.Use(limiter.Middleware())
	cleanupCtx, stopCleanup := context.WithCancel(context.Background())
	defer stopCleanup()
	go limiter.StartCleanup(cleanupCtx, 10*time.Minute)

	// Domain wiring
	clinicRepo := roster.NewClinicRepoPG(pool)
	doctorRepo := roster.NewDoctorRepoPG(pool)
	hoursRepo := roster.NewWorkingHoursRepoPG(pool)
	holidayRepo := roster.NewHolidayRepoPG(pool)
	blockedRepo := roster.NewBlockedSlotRepoPG(pool)
	rosterSvc := roster.NewService(clinicRepo, doctorRepo, hoursRepo, holidayRepo, blockedRepo)
	hoursSource := roster.NewHoursSource(hoursRepo, holidayRepo, blockedRepo)

	catalogMgr := catalog.NewManager(catalog.NewServiceRepoPG(pool))
	patientSvc := patient.NewService(patient.NewRepoPG(pool))

	bookingEngine := engine.New(hoursSource)
	apptSvc := appointment.NewService(appointment.Deps{
		Repo:      appointment.NewRepoPG(pool),
		Directory: &directoryAdapter{clinics: clinicRepo, doctors: doctorRepo, patients: patient.NewRepoPG(pool)},
		Catalog:   catalogMgr,
		Blocked:   hoursSource,
		Engine:    bookingEngine,
		Locker:    locker,
		Tx: func(ctx context.Context, fn func(ctx context.Context) error) error {
			return db.WithTx(ctx, pool, fn)
		},
		Publisher:   publisher,
		Notifier:    notifier,
		Cache:       scheduleCache,
		Logger:      logger,
		Metrics:     func(op string) { tp.BookingOperationCounter("appointment", op) },
		SlotMinutes: cfg.DefaultSlotMinutes,
	})

	roster.NewHandler(rosterSvc).RegisterRoutes(apiV1)
	catalog.NewHandler(catalogMgr).RegisterRoutes(apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	appointment.NewHandler(apptSvc).RegisterRoutes(apiV1)
	notification.NewNotificationHandler(notifier).RegisterRoutes(apiV1.Group("", auth.RequireRole("admin", "manager")))

	// Health, readiness and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": "0.1.0"})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	checks := []readyCheck{{name: "database", ping: pool.Ping}}
	if redisClient != nil {
		checks = append(checks, readyCheck{name: "redis", ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	e.GET("/ready", readyHandler(checks...))
	e.GET("/metrics", tp.PrometheusHandler())

	// Start and wait for shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server starting")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
		return err
	}
	return nil
}

// readyCheck is one dependency probed by the readiness endpoint.
type readyCheck struct {
	name string
	ping func(ctx context.Context) error
}

// readyHandler reports 200 only when every dependency answers a ping.
func readyHandler(checks ...readyCheck) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		for _, check := range checks {
			if err := check.ping(ctx); err != nil {
				return c.JSON(http.StatusServiceUnavailable, echo.Map{
					"status": "unavailable",
					"failed": check.name,
				})
			}
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	}
}

// directoryAdapter narrows the roster and patient repositories to the
// lookups booking needs, translating the driver's no-rows sentinel into
// the booking package's ErrNotFound.
type directoryAdapter struct {
	clinics  roster.ClinicRepository
	doctors  roster.DoctorRepository
	patients patient.Repository
}

func (d *directoryAdapter) Patient(ctx context.Context, id uuid.UUID) (*appointment.PatientInfo, error) {
	p, err := d.patients.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &appointment.PatientInfo{ID: p.ID, FullName: p.FullName, Email: p.Email, Phone: p.Phone, Active: p.Active}, nil
}

func (d *directoryAdapter) Doctor(ctx context.Context, id uuid.UUID) (*appointment.DoctorInfo, error) {
	doc, err := d.doctors.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &appointment.DoctorInfo{ID: doc.ID, FullName: doc.FullName, Active: doc.Active}, nil
}

func (d *directoryAdapter) Clinic(ctx context.Context, id uuid.UUID) (*appointment.ClinicInfo, error) {
	c, err := d.clinics.GetByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, appointment.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &appointment.ClinicInfo{ID: c.ID, Name: c.Name, Active: c.Active}, nil
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo data",
		RunE: func(cmd *cobra.Command, args []string) error {
			seedValue, _ := cmd.Flags().GetInt64("seed")
			return runSeed(seedValue)
		},
	}
	cmd.Flags().Int64("seed", 0, "Faker seed for reproducible data (0 = random)")
	return cmd
}

func runSeed(seedValue int64) error {
	_, pool, err := loadAndConnect()
	if err != nil {
		return err
	}
	defer pool.Close()

	faker := gofakeit.New(uint64(seedValue))
	ctx := context.Background()

	clinicRepo := roster.NewClinicRepoPG(pool)
	doctorRepo := roster.NewDoctorRepoPG(pool)
	hoursRepo := roster.NewWorkingHoursRepoPG(pool)
	holidayRepo := roster.NewHolidayRepoPG(pool)
	serviceRepo := catalog.NewServiceRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)
	apptRepo := appointment.NewRepoPG(pool)

	// Clinics with Monday-Friday hours
	var clinics []*roster.Clinic
	for i := 0; i < 2; i++ {
		addr := faker.Address().Address
		phone := faker.Phone()
		c := &roster.Clinic{Name: faker.Company() + " Clinic", Address: &addr, Phone: &phone, Active: true}
		if err := clinicRepo.Create(ctx, c); err != nil {
			return fmt.Errorf("seed clinic: %w", err)
		}
		if err := seedWeekdays(ctx, hoursRepo, roster.OwnerClinic, c.ID, "08:00", "20:00", nil, nil); err != nil {
			return err
		}
		clinics = append(clinics, c)
	}

	// Doctors with working hours and a lunch break
	var doctors []*roster.Doctor
	for i := 0; i < 5; i++ {
		specialty := faker.RandomString([]string{"General Practice", "Dermatology", "Cardiology", "Pediatrics"})
		email := faker.Email()
		d := &roster.Doctor{FullName: "Dr. " + faker.Name(), Specialty: &specialty, Email: &email, Active: true}
		if err := doctorRepo.Create(ctx, d); err != nil {
			return fmt.Errorf("seed doctor: %w", err)
		}
		lunchStart, lunchEnd := "12:00", "13:00"
		if err := seedWeekdays(ctx, hoursRepo, roster.OwnerDoctor, d.ID, "09:00", "17:00", &lunchStart, &lunchEnd); err != nil {
			return err
		}
		doctors = append(doctors, d)
	}

	// Patients
	var patients []*patient.Patient
	for i := 0; i < 20; i++ {
		email := faker.Email()
		phone := faker.Phone()
		dob := faker.DateRange(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2010, 12, 31, 0, 0, 0, 0, time.UTC))
		p := &patient.Patient{FullName: faker.Name(), Email: &email, Phone: &phone, DateOfBirth: &dob, Active: true}
		if err := patientRepo.Create(ctx, p); err != nil {
			return fmt.Errorf("seed patient: %w", err)
		}
		patients = append(patients, p)
	}

	// Services, one with a session plan
	var services []*catalog.Service
	for i, name := range []string{"General Consultation", "Dental Cleaning", "Annual Checkup", "Vaccination"} {
		price := int64(faker.Number(2000, 20000))
		s := &catalog.Service{Name: name, DurationMinutes: 30 + 15*(i%2), PriceCents: &price, Active: true}
		if err := serviceRepo.Create(ctx, s); err != nil {
			return fmt.Errorf("seed service: %w", err)
		}
		services = append(services, s)
	}
	course := &catalog.Service{Name: "Physiotherapy Course", DurationMinutes: 45, Active: true}
	for pos, name := range []string{"Assessment", "Treatment", "Review"} {
		n := name
		course.Sessions = append(course.Sessions, catalog.Session{Position: pos + 1, Name: &n})
	}
	if err := serviceRepo.Create(ctx, course); err != nil {
		return fmt.Errorf("seed course service: %w", err)
	}
	services = append(services, course)

	// An organization-wide holiday two months out
	holidayStart := engine.DateOf(time.Now().AddDate(0, 2, 0))
	if err := holidayRepo.Create(ctx, &roster.Holiday{
		Scope:     roster.ScopeOrganization,
		Name:      "Staff Training Day",
		StartDate: holidayStart,
		EndDate:   holidayStart,
	}); err != nil {
		return fmt.Errorf("seed holiday: %w", err)
	}

	// A spread of appointments over the coming two weeks
	now := time.Now()
	created := 0
	courseBooked := map[uuid.UUID]bool{}
	for day := 1; day <= 14; day++ {
		date := engine.DateOf(now.AddDate(0, 0, day))
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for i, doc := range doctors {
			pat := patients[(day*len(doctors)+i)%len(patients)]
			svc := services[(day+i)%len(services)]
			appt := &engine.Appointment{
				PatientID: pat.ID,
				DoctorID:  doc.ID,
				ClinicID:  clinics[i%len(clinics)].ID,
				ServiceID: svc.ID,
				Date:      date,
				Start:     engine.TimeOfDay((9 + i) * 60),
				Minutes:   svc.DurationMinutes,
				Status:    engine.StatusScheduled,
				History: []engine.StatusHistoryEntry{
					{Status: engine.StatusScheduled, ChangedAt: now, ChangedBy: uuid.Nil},
				},
			}
			if len(svc.Sessions) > 0 {
				if courseBooked[pat.ID] {
					continue
				}
				courseBooked[pat.ID] = true
				sessionID := svc.Sessions[0].ID
				appt.SessionID = &sessionID
			}
			err := db.WithTx(ctx, pool, func(ctx context.Context) error {
				return apptRepo.Create(ctx, appt)
			})
			if err != nil {
				return fmt.Errorf("seed appointment: %w", err)
			}
			created++
		}
	}

	fmt.Printf("Seeded %d clinics, %d doctors, %d patients, %d services, %d appointments.\n",
		len(clinics), len(doctors), len(patients), len(services), created)
	return nil
}

func seedWeekdays(ctx context.Context, repo roster.WorkingHoursRepository, kind roster.OwnerKind, ownerID uuid.UUID,
	opening, closing string, breakStart, breakEnd *string) error {

	open, err := engine.ParseTimeOfDay(opening)
	if err != nil {
		return err
	}
	shut, err := engine.ParseTimeOfDay(closing)
	if err != nil {
		return err
	}
	var bs, be *engine.TimeOfDay
	if breakStart != nil && breakEnd != nil {
		s, err := engine.ParseTimeOfDay(*breakStart)
		if err != nil {
			return err
		}
		e, err := engine.ParseTimeOfDay(*breakEnd)
		if err != nil {
			return err
		}
		bs, be = &s, &e
	}

	for weekday := int(time.Monday); weekday <= int(time.Friday); weekday++ {
		w := &roster.WorkingHours{
			OwnerKind:  kind,
			OwnerID:    ownerID,
			Weekday:    weekday,
			IsWorking:  true,
			Opening:    open,
			Closing:    shut,
			BreakStart: bs,
			BreakEnd:   be,
		}
		if err := repo.Upsert(ctx, w); err != nil {
			return fmt.Errorf("seed working hours: %w", err)
		}
	}
	return nil
}
