package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
// Make fields public so they can be accessed from other packages.
type AppMetrics struct {
	LoginSuccessTotal     metric.Int64Counter
	LoginFailureTotal     metric.Int64Counter
	AccountLockoutsTotal  metric.Int64Counter
	RegistrationsTotal    metric.Int64Counter
	PasswordResetsTotal   metric.Int64Counter
	VideoUploadsTotal     metric.Int64Counter
	VideoUploadBytesTotal metric.Int64Counter
	LoginDurationSeconds  metric.Float64Histogram
}

var (
	// Global instance of AppMetrics (initialized once)
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments ONLY ONCE.
// It gets the Meter from the globally configured MeterProvider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("StreamHub")
		var err error
		m := &AppMetrics{}

		m.LoginSuccessTotal, err = meter.Int64Counter(
			"login_success_total",
			metric.WithDescription("Total number of successful logins"),
			metric.WithUnit("{login}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_success_total: %v", err)
		}

		m.LoginFailureTotal, err = meter.Int64Counter(
			"login_failure_total",
			metric.WithDescription("Total number of failed login attempts"),
			metric.WithUnit("{login}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_failure_total: %v", err)
		}

		m.AccountLockoutsTotal, err = meter.Int64Counter(
			"account_lockouts_total",
			metric.WithDescription("Total number of accounts locked after repeated failures"),
			metric.WithUnit("{lockout}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create account_lockouts_total: %v", err)
		}

		m.RegistrationsTotal, err = meter.Int64Counter(
			"registrations_total",
			metric.WithDescription("Total number of accounts registered"),
			metric.WithUnit("{account}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create registrations_total: %v", err)
		}

		m.PasswordResetsTotal, err = meter.Int64Counter(
			"password_resets_total",
			metric.WithDescription("Total number of completed password resets"),
			metric.WithUnit("{reset}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create password_resets_total: %v", err)
		}

		m.VideoUploadsTotal, err = meter.Int64Counter(
			"video_uploads_total",
			metric.WithDescription("Total number of videos uploaded"),
			metric.WithUnit("{video}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create video_uploads_total: %v", err)
		}

		m.VideoUploadBytesTotal, err = meter.Int64Counter(
			"video_upload_bytes_total",
			metric.WithDescription("Total bytes of video content uploaded"),
			metric.WithUnit("By"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create video_upload_bytes_total: %v", err)
		}

		m.LoginDurationSeconds, err = meter.Float64Histogram(
			"login_duration_seconds",
			metric.WithDescription("Duration of login requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create login_duration_seconds: %v", err)
		}

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the globally initialized AppMetrics instance.
// Panics if InitAppMetrics was not called first.
func Get() *AppMetrics {
	if appMetrics == nil {
		// This indicates a programming error - InitAppMetrics must be called at startup.
		panic("metrics instruments not initialized. Call metrics.InitAppMetrics() first.")
	}
	return appMetrics
}
