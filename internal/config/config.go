package config

import (
	"fmt"
	"os"
	"reflect"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	// MinPort is the minimum valid port number
	MinPort = 1
	// MaxPort is the maximum valid port number
	MaxPort = 65535
)

// Job kinds accepted in the jobs section
const (
	KindCopyTable  = "copy-table"
	KindUploadCSV  = "upload-csv"
	KindSendReport = "send-report"
)

// Config represents the complete application configuration
type Config struct {
	App       AppConfig       `yaml:"app"`
	Logging   LoggingConfig   `yaml:"logging"`
	Databases DatabasesConfig `yaml:"databases"`
	SMTP      SMTPConfig      `yaml:"smtp"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Jobs      []JobConfig     `yaml:"jobs"`
	Schedule  []ScheduleEntry `yaml:"schedule"`
	Server    ServerConfig    `yaml:"server"`
	RabbitMQ  RabbitMQConfig  `yaml:"rabbitmq"`
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Environment string `yaml:"environment"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level        string `yaml:"level"`
	Format       string `yaml:"format"`
	Output       string `yaml:"output"`
	EnableCaller bool   `yaml:"enable_caller"`
}

// DatabasesConfig holds the two logical databases
type DatabasesConfig struct {
	Source DatabaseConfig `yaml:"source"`
	Target DatabaseConfig `yaml:"target"`
}

// DatabaseConfig holds the endpoint of one logical database
type DatabaseConfig struct {
	Dialect  string `yaml:"dialect"` // oracle, postgres, sqlserver, sqlite
	Driver   string `yaml:"driver"`  // optional, "pgx" selects pgx for postgres
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Service  string `yaml:"service"` // service name, database name, or sqlite file
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	DSN      string `yaml:"dsn"`
}

// SMTPConfig holds mail relay configuration
type SMTPConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	Sender    string `yaml:"sender"`
	Password  string `yaml:"password"`
	Recipient string `yaml:"recipient"`
}

// SchedulerConfig holds polling loop configuration
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	JobTimeout   time.Duration `yaml:"job_timeout"` // 0 disables the watchdog
	Timezone     string        `yaml:"timezone"`
	QueueSize    int           `yaml:"queue_size"`
}

// JobConfig defines one named job
type JobConfig struct {
	Name   string       `yaml:"name"`
	Kind   string       `yaml:"kind"`
	Copy   CopyConfig   `yaml:"copy"`
	Upload UploadConfig `yaml:"upload"`
	Report ReportConfig `yaml:"report"`
}

// CopyConfig holds copy-table job settings
type CopyConfig struct {
	SourceTable string `yaml:"source_table"`
	TargetTable string `yaml:"target_table"`
}

// UploadConfig holds upload-csv job settings
type UploadConfig struct {
	File      string `yaml:"file"`
	Table     string `yaml:"table"`
	Database  string `yaml:"database"` // source or target
	Delimiter string `yaml:"delimiter"`
	Encoding  string `yaml:"encoding"`
}

// ReportConfig holds send-report job settings
type ReportConfig struct {
	Table   string   `yaml:"table"`
	Columns []string `yaml:"columns"`
	Limit   int      `yaml:"limit"`
	Subject string   `yaml:"subject"`
}

// ScheduleEntry binds a trigger time to a job name. At is either "HH:MM"
// for a daily run or a standard five-field cron expression.
type ScheduleEntry struct {
	At  string `yaml:"at"`
	Job string `yaml:"job"`
}

// CronExpr returns At as a cron expression
func (e ScheduleEntry) CronExpr() string {
	if t, err := time.Parse("15:04", e.At); err == nil {
		return fmt.Sprintf("%d %d * * *", t.Minute(), t.Hour())
	}
	return e.At
}

// ServerConfig holds the admin HTTP server configuration
type ServerConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RabbitMQConfig holds run-event publishing configuration
type RabbitMQConfig struct {
	Enabled    bool             `yaml:"enabled"`
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	User       string           `yaml:"user"`
	Password   string           `yaml:"password"`
	VHost      string           `yaml:"vhost"`
	Exchange   ExchangeConfig   `yaml:"exchange"`
	Queue      QueueConfig      `yaml:"queue"`
	RoutingKey string           `yaml:"routing_key"`
	Connection ConnectionConfig `yaml:"connection"`
	Publish    PublishConfig    `yaml:"publish"`
}

// ExchangeConfig holds RabbitMQ exchange configuration
type ExchangeConfig struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type"`
	Durable    bool   `yaml:"durable"`
	AutoDelete bool   `yaml:"auto_delete"`
}

// QueueConfig holds RabbitMQ queue configuration
type QueueConfig struct {
	Name    string `yaml:"name"`
	Durable bool   `yaml:"durable"`
}

// ConnectionConfig holds RabbitMQ connection settings
type ConnectionConfig struct {
	RetryAttempts int           `yaml:"retry_attempts"`
	RetryInterval time.Duration `yaml:"retry_interval"`
	Heartbeat     time.Duration `yaml:"heartbeat"`
}

// PublishConfig holds RabbitMQ publish retry settings
type PublishConfig struct {
	RetryAttempts     int           `yaml:"retry_attempts"`
	RetryInterval     time.Duration `yaml:"retry_interval"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier"`
}

// Load reads and parses the configuration file. ${VAR} references inside
// string values are expanded from the environment after parsing; any other
// '$' is kept literally.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	expandEnv(reflect.ValueOf(&config).Elem())
	config.applyDefaults()

	return &config, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv replaces ${VAR} in every string reachable from v
func expandEnv(v reflect.Value) {
	switch v.Kind() {
	case reflect.String:
		if v.CanSet() {
			v.SetString(envRef.ReplaceAllStringFunc(v.String(), func(ref string) string {
				return os.Getenv(ref[2 : len(ref)-1])
			}))
		}
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandEnv(v.Field(i))
		}
	case reflect.Slice:
		for i := 0; i < v.Len(); i++ {
			expandEnv(v.Index(i))
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = time.Minute
	}
	if c.Scheduler.QueueSize <= 0 {
		c.Scheduler.QueueSize = 8
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}

	for i := range c.Jobs {
		job := &c.Jobs[i]
		switch job.Kind {
		case KindCopyTable:
			if job.Copy.TargetTable == "" {
				job.Copy.TargetTable = job.Copy.SourceTable
			}
		case KindUploadCSV:
			if job.Upload.Table == "" {
				job.Upload.Table = "EMPLOYEE"
			}
			if job.Upload.Database == "" {
				job.Upload.Database = "source"
			}
		case KindSendReport:
			if job.Report.Limit <= 0 {
				job.Report.Limit = 10
			}
			if job.Report.Subject == "" {
				job.Report.Subject = "DB Report"
			}
		}
	}
}

// ValidateRunnerConfig checks if the configuration is valid for the sync runner
func (c *Config) ValidateRunnerConfig() error {
	if err := validateDatabase("source", c.Databases.Source); err != nil {
		return err
	}
	if err := validateDatabase("target", c.Databases.Target); err != nil {
		return err
	}

	if len(c.Jobs) == 0 {
		return fmt.Errorf("at least one job is required")
	}

	names := make(map[string]string, len(c.Jobs))
	needsSMTP := false
	for _, job := range c.Jobs {
		if job.Name == "" {
			return fmt.Errorf("job name is required")
		}
		if _, dup := names[job.Name]; dup {
			return fmt.Errorf("duplicate job name: %s", job.Name)
		}
		names[job.Name] = job.Kind

		switch job.Kind {
		case KindCopyTable:
			if job.Copy.SourceTable == "" {
				return fmt.Errorf("job %s: copy.source_table is required", job.Name)
			}
		case KindUploadCSV:
			if job.Upload.File == "" {
				return fmt.Errorf("job %s: upload.file is required", job.Name)
			}
			if job.Upload.Database != "source" && job.Upload.Database != "target" {
				return fmt.Errorf("job %s: upload.database must be source or target", job.Name)
			}
			if len([]rune(job.Upload.Delimiter)) > 1 {
				return fmt.Errorf("job %s: upload.delimiter must be a single character", job.Name)
			}
		case KindSendReport:
			if job.Report.Table == "" || len(job.Report.Columns) == 0 {
				return fmt.Errorf("job %s: report.table and report.columns are required", job.Name)
			}
			needsSMTP = true
		default:
			return fmt.Errorf("job %s: unknown kind %q", job.Name, job.Kind)
		}
	}

	for _, entry := range c.Schedule {
		if _, err := cron.ParseStandard(entry.CronExpr()); err != nil {
			return fmt.Errorf("invalid schedule time %q (want HH:MM or a cron expression): %w", entry.At, err)
		}
		if _, ok := names[entry.Job]; !ok {
			return fmt.Errorf("schedule references unknown job: %s", entry.Job)
		}
	}

	if needsSMTP {
		if c.SMTP.Host == "" {
			return fmt.Errorf("smtp host is required")
		}
		if c.SMTP.Port < MinPort || c.SMTP.Port > MaxPort {
			return fmt.Errorf("invalid smtp port: %d (must be between %d and %d)", c.SMTP.Port, MinPort, MaxPort)
		}
		if c.SMTP.Sender == "" || c.SMTP.Recipient == "" {
			return fmt.Errorf("smtp sender and recipient are required")
		}
	}

	if c.Scheduler.Timezone != "" {
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("invalid scheduler timezone: %w", err)
		}
	}

	if c.Server.Enabled && (c.Server.Port < MinPort || c.Server.Port > MaxPort) {
		return fmt.Errorf("invalid server port: %d (must be between %d and %d)", c.Server.Port, MinPort, MaxPort)
	}

	if c.RabbitMQ.Enabled {
		if c.RabbitMQ.Host == "" {
			return fmt.Errorf("rabbitmq host is required")
		}
		if c.RabbitMQ.Exchange.Name == "" {
			return fmt.Errorf("rabbitmq exchange name is required")
		}
	}

	return nil
}

func validateDatabase(role string, db DatabaseConfig) error {
	if db.Dialect == "" {
		return fmt.Errorf("%s database dialect is required", role)
	}
	if db.DSN != "" {
		return nil
	}
	if db.Dialect == "sqlite" {
		if db.Service == "" {
			return fmt.Errorf("%s database service (file path) is required", role)
		}
		return nil
	}
	if db.Host == "" {
		return fmt.Errorf("%s database host is required", role)
	}
	if db.Port < MinPort || db.Port > MaxPort {
		return fmt.Errorf("invalid %s database port: %d (must be between %d and %d)", role, db.Port, MinPort, MaxPort)
	}
	if db.Service == "" {
		return fmt.Errorf("%s database service is required", role)
	}
	return nil
}
