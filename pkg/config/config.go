package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Policy       PolicyConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Policy.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SHIFTBID_APP_ENV" required:"true"`
	Port         string `envconfig:"SHIFTBID_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SHIFTBID_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SHIFTBID_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SHIFTBID_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SHIFTBID_DB_DSN"`
	Driver string `envconfig:"SHIFTBID_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"SHIFTBID_DB_HOST"`
	Port     int    `envconfig:"SHIFTBID_DB_PORT" default:"5432"`
	User     string `envconfig:"SHIFTBID_DB_USER"`
	Password string `envconfig:"SHIFTBID_DB_PASSWORD"`
	Name     string `envconfig:"SHIFTBID_DB_NAME"`
	SSLMode  string `envconfig:"SHIFTBID_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SHIFTBID_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SHIFTBID_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SHIFTBID_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SHIFTBID_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SHIFTBID_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SHIFTBID_REDIS_ADDR"`
	Password     string        `envconfig:"SHIFTBID_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHIFTBID_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHIFTBID_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SHIFTBID_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SHIFTBID_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHIFTBID_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SHIFTBID_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SHIFTBID_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SHIFTBID_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SHIFTBID_JWT_EXPIRATION_MINUTES" default:"60"`
}

// PolicyConfig carries every business-policy constant the engine consults.
// Thresholds are injected here rather than hard-coded so operations can tune
// them without a deploy.
type PolicyConfig struct {
	// BusinessTimezone anchors all calendar-day logic regardless of server
	// locale.
	BusinessTimezone string `envconfig:"SHIFTBID_BUSINESS_TIMEZONE" default:"America/New_York"`
	// WeekStartDay is the weekly-cap boundary, 0=Sunday..6=Saturday.
	WeekStartDay int `envconfig:"SHIFTBID_WEEK_START_DAY" default:"0"`

	WindowDefaultDuration    time.Duration `envconfig:"SHIFTBID_WINDOW_DEFAULT_DURATION" default:"4h"`
	WindowNearStartThreshold time.Duration `envconfig:"SHIFTBID_WINDOW_NEAR_START_THRESHOLD" default:"4h"`
	ArrivalGrace             time.Duration `envconfig:"SHIFTBID_ARRIVAL_GRACE" default:"30m"`
	ParcelEditWindow         time.Duration `envconfig:"SHIFTBID_PARCEL_EDIT_WINDOW" default:"24h"`

	FamiliarityCap     int `envconfig:"SHIFTBID_FAMILIARITY_CAP" default:"20"`
	PreferredRouteTopN int `envconfig:"SHIFTBID_PREFERRED_ROUTE_TOP_N" default:"3"`

	EmergencyBonusPercent float64 `envconfig:"SHIFTBID_EMERGENCY_BONUS_PERCENT" default:"15"`

	AttendanceFlagThreshold float64 `envconfig:"SHIFTBID_ATTENDANCE_FLAG_THRESHOLD" default:"0.80"`
	NewDriverFlagThreshold  float64 `envconfig:"SHIFTBID_NEW_DRIVER_FLAG_THRESHOLD" default:"0.70"`
	NewDriverGraceShifts    int     `envconfig:"SHIFTBID_NEW_DRIVER_GRACE_SHIFTS" default:"10"`
	FlagGraceWeeks          int     `envconfig:"SHIFTBID_FLAG_GRACE_WEEKS" default:"2"`
	HardStopAttendanceFloor float64 `envconfig:"SHIFTBID_HARD_STOP_ATTENDANCE_FLOOR" default:"0.50"`
	RewardAttendance        float64 `envconfig:"SHIFTBID_REWARD_ATTENDANCE" default:"0.95"`
	RewardCompletion        float64 `envconfig:"SHIFTBID_REWARD_COMPLETION" default:"0.90"`
	WeeklyCapMin            int     `envconfig:"SHIFTBID_WEEKLY_CAP_MIN" default:"2"`
	WeeklyCapMax            int     `envconfig:"SHIFTBID_WEEKLY_CAP_MAX" default:"6"`
	WeeklyCapDefault        int     `envconfig:"SHIFTBID_WEEKLY_CAP_DEFAULT" default:"5"`
}

func (p PolicyConfig) validate() error {
	if p.WeekStartDay < 0 || p.WeekStartDay > 6 {
		return fmt.Errorf("week start day must be 0..6, got %d", p.WeekStartDay)
	}
	if p.FamiliarityCap <= 0 {
		return fmt.Errorf("familiarity cap must be positive")
	}
	if p.WindowDefaultDuration <= 0 || p.WindowNearStartThreshold <= 0 {
		return fmt.Errorf("window durations must be positive")
	}
	if p.HardStopAttendanceFloor > p.AttendanceFlagThreshold {
		return fmt.Errorf("hard stop floor cannot exceed flag threshold")
	}
	return nil
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"SHIFTBID_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"SHIFTBID_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID string `envconfig:"SHIFTBID_GCP_PROJECT_ID"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"SHIFTBID_PUBSUB_EVENTS_TOPIC" default:"shiftbid-domain-events"`
	EventsSubscription string `envconfig:"SHIFTBID_PUBSUB_EVENTS_SUBSCRIPTION"`
	BroadcastTopic     string `envconfig:"SHIFTBID_PUBSUB_BROADCAST_TOPIC" default:"shiftbid-dashboard-broadcast"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SHIFTBID_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SHIFTBID_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SHIFTBID_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

type CronConfig struct {
	// CloserInterval paces the bid-window closer sweep; it tolerates being
	// invoked far more often than windows expire.
	CloserInterval time.Duration `envconfig:"SHIFTBID_CRON_CLOSER_INTERVAL" default:"1m"`
	DailyInterval  time.Duration `envconfig:"SHIFTBID_CRON_DAILY_INTERVAL" default:"24h"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	for env, value := range map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	} {
		if value == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("database config incomplete: set %s or provide %s", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:     db.Name,
		RawQuery: fmt.Sprintf("sslmode=%s", db.SSLMode),
	}
	db.DSN = dsn.String()
	return nil
}
