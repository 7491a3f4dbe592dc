package instrumentation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the telemetry settings of one resender process.
type Config struct {
	// ServiceName is reported as service.name (default: resender).
	ServiceName string

	// ServiceVersion is reported as service.version.
	ServiceVersion string

	// Command is the resender subcommand (resend, serve, auth), reported as
	// the resender.command resource attribute.
	Command string

	// Enabled turns metrics and tracing on (INSTRUMENTATION_ENABLED, default: true).
	Enabled bool

	// MetricsExporter is prometheus, otlp or stdout (default: prometheus).
	MetricsExporter string

	// TracingExporter is otlp, stdout or none (default: none).
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string

	// OTLPInsecure exports over plain HTTP. Traces carry message ids, so
	// keep this for local collectors.
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of sampled runs (default: 0.1).
	TraceSamplingRate float64

	// ExportInterval is how often push exporters (otlp, stdout) flush.
	// A resend run is short, so the default is well below the SDK's minute.
	ExportInterval time.Duration

	// DetailedLabels adds recipient domains to exclusion metrics.
	DetailedLabels bool

	// AuditLogging configures the audit log of MCP tool calls.
	AuditLogging AuditLoggingConfig

	// Registerer receives the prometheus collector. Nil means the default
	// registry, which the serve metrics endpoint scrapes.
	Registerer prometheus.Registerer
}

// AuditLoggingConfig holds configuration for audit logging.
type AuditLoggingConfig struct {
	// Enabled determines if audit logging of MCP tool calls is active (default: true)
	Enabled bool

	// IncludePII controls whether to include full recipient addresses in audit logs.
	// When false (default), only the recipient domain is logged.
	IncludePII bool
}

// DefaultExportInterval is the push exporter flush interval.
const DefaultExportInterval = 10 * time.Second

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		ServiceName:       "resender",
		ServiceVersion:    "dev",
		Enabled:           true,
		MetricsExporter:   ExporterPrometheus,
		TracingExporter:   ExporterNone,
		TraceSamplingRate: 0.1,
		ExportInterval:    DefaultExportInterval,
		AuditLogging: AuditLoggingConfig{
			Enabled: true,
		},
	}
}

// LoadConfig applies the telemetry variables read through getenv (usually
// os.Getenv) on top of Defaults. Malformed values keep their default and are
// reported in the returned error together with Validate's findings, so the
// caller can decide whether to run with what was loaded.
func LoadConfig(getenv func(string) string) (Config, error) {
	c := Defaults()
	env := envReader{getenv: getenv}

	c.ServiceName = env.str("OTEL_SERVICE_NAME", c.ServiceName)
	c.Enabled = env.boolean("INSTRUMENTATION_ENABLED", c.Enabled)
	c.MetricsExporter = strings.ToLower(env.str("METRICS_EXPORTER", c.MetricsExporter))
	c.TracingExporter = strings.ToLower(env.str("TRACING_EXPORTER", c.TracingExporter))
	c.OTLPEndpoint = env.str("OTEL_EXPORTER_OTLP_ENDPOINT", c.OTLPEndpoint)
	c.OTLPInsecure = env.boolean("OTEL_EXPORTER_OTLP_INSECURE", c.OTLPInsecure)
	c.TraceSamplingRate = env.float("OTEL_TRACES_SAMPLER_ARG", c.TraceSamplingRate)
	c.ExportInterval = env.duration("METRICS_EXPORT_INTERVAL", c.ExportInterval)
	c.DetailedLabels = env.boolean("METRICS_DETAILED_LABELS", c.DetailedLabels)
	c.AuditLogging.Enabled = env.boolean("AUDIT_LOGGING_ENABLED", c.AuditLogging.Enabled)
	c.AuditLogging.IncludePII = env.boolean("AUDIT_LOGGING_INCLUDE_PII", c.AuditLogging.IncludePII)

	if !c.Enabled {
		return c, errors.Join(env.errs...)
	}
	return c, errors.Join(append(env.errs, c.Validate())...)
}

// Validate checks the exporter selection of an enabled configuration.
func (c *Config) Validate() error {
	var errs []error

	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		errs = append(errs, fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate))
	}

	switch c.MetricsExporter {
	case "", ExporterPrometheus, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP endpoint is required for the otlp metrics exporter; set OTEL_EXPORTER_OTLP_ENDPOINT"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid metrics exporter %q, must be one of: prometheus, otlp, stdout", c.MetricsExporter))
	}

	switch c.TracingExporter {
	case "", ExporterNone, ExporterStdout:
	case ExporterOTLP:
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP endpoint is required for the otlp tracing exporter; set OTEL_EXPORTER_OTLP_ENDPOINT"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid tracing exporter %q, must be one of: otlp, stdout, none", c.TracingExporter))
	}

	if c.ExportInterval < 0 {
		errs = append(errs, fmt.Errorf("export interval must not be negative, got %s", c.ExportInterval))
	}

	return errors.Join(errs...)
}

// envReader reads typed variables and collects parse failures.
type envReader struct {
	getenv func(string) string
	errs   []error
}

func (r *envReader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *envReader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return parsed
}

func (r *envReader) float(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid number %q", key, v))
		return def
	}
	return parsed
}

func (r *envReader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return parsed
}

// Constants for metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	OAuthResultSuccess = "success"
	OAuthResultFailure = "failure"

	// Exclusion sources
	ExclusionSourceAuto = "auto"
	ExclusionSourceUser = "user"

	ServiceGmail = "gmail"

	// Exporter types
	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"
)
