package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"stockflow-service/internal/utils/runtime"
)

const (
	developmentFlag = "development"
	httpPortFlag    = "http-port"
	grpcPortFlag    = "grpc-port"

	mongoDBURIFlag = "mongodb-uri"

	redisAddrFlag     = "redis-addr"
	redisPasswordFlag = "redis-password"
	redisDBFlag       = "redis-db"

	kafkaHostFlag    = "kafka-host"
	kafkaPortFlag    = "kafka-port"
	kafkaTopicFlag   = "kafka-topic"
	kafkaGroupIDFlag = "kafka-group-id"

	sessionCookieNameFlag = "session-cookie-name"
	sessionTTLFlag        = "session-ttl"
	cookieSecureFlag      = "cookie-secure"

	heartbeatTimeoutFlag       = "heartbeat-timeout"
	heartbeatSweepIntervalFlag = "heartbeat-sweep-interval"
	hubInvocationRateFlag      = "hub-invocation-rate"
	allowedOriginsFlag         = "allowed-origins"

	seedAdminEmailFlag    = "seed-admin-email"
	seedAdminPasswordFlag = "seed-admin-password"
)

type Config struct {
	Kafka   KafkaConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
	Session SessionConfig
	Hub     HubConfig
	Seed    SeedConfig

	Development bool

	HTTPPort int
	GRPCPort int
}

type KafkaConfig struct {
	Host    string
	Port    int
	Topic   string
	GroupID string
}

type MongoDBConfig struct {
	URI string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type SessionConfig struct {
	CookieName   string
	TTL          time.Duration
	CookieSecure bool
}

type HubConfig struct {
	// HeartbeatTimeout of zero disables the staleness sweep.
	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	// InvocationRate is the sustained number of client invocations allowed per second per connection.
	InvocationRate float64
	AllowedOrigins []string
}

// SeedConfig creates an initial admin account on startup when both fields are set.
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

func LoadGlobalConfig() (*Config, error) {
	viper.SetDefault(developmentFlag, true)
	viper.SetDefault(httpPortFlag, 8080)
	viper.SetDefault(grpcPortFlag, 10010)
	viper.SetDefault(mongoDBURIFlag, "mongodb://localhost:27017")
	viper.SetDefault(redisAddrFlag, "localhost:6379")
	viper.SetDefault(redisPasswordFlag, "")
	viper.SetDefault(redisDBFlag, 0)
	viper.SetDefault(kafkaHostFlag, "localhost")
	viper.SetDefault(kafkaPortFlag, 9092)
	viper.SetDefault(kafkaTopicFlag, "stockflow-events")
	viper.SetDefault(kafkaGroupIDFlag, "")
	viper.SetDefault(sessionCookieNameFlag, "StockFlowProAuth")
	viper.SetDefault(sessionTTLFlag, 12*time.Hour)
	viper.SetDefault(cookieSecureFlag, false)
	viper.SetDefault(heartbeatTimeoutFlag, 2*time.Minute)
	viper.SetDefault(heartbeatSweepIntervalFlag, 30*time.Second)
	viper.SetDefault(hubInvocationRateFlag, 20.0)
	viper.SetDefault(allowedOriginsFlag, []string{})
	viper.SetDefault(seedAdminEmailFlag, "")
	viper.SetDefault(seedAdminPasswordFlag, "")

	pflag.Bool(developmentFlag, viper.GetBool(developmentFlag), "Development mode")
	pflag.Int32(httpPortFlag, viper.GetInt32(httpPortFlag), "HTTP port")
	pflag.Int32(grpcPortFlag, viper.GetInt32(grpcPortFlag), "gRPC port")
	pflag.String(mongoDBURIFlag, viper.GetString(mongoDBURIFlag), "MongoDB URI")
	pflag.String(redisAddrFlag, viper.GetString(redisAddrFlag), "Redis address")
	pflag.String(redisPasswordFlag, viper.GetString(redisPasswordFlag), "Redis password")
	pflag.Int(redisDBFlag, viper.GetInt(redisDBFlag), "Redis database")
	pflag.String(kafkaHostFlag, viper.GetString(kafkaHostFlag), "Kafka host")
	pflag.Int32(kafkaPortFlag, viper.GetInt32(kafkaPortFlag), "Kafka port")
	pflag.String(kafkaTopicFlag, viper.GetString(kafkaTopicFlag), "Kafka topic for domain events")
	pflag.String(kafkaGroupIDFlag, viper.GetString(kafkaGroupIDFlag), "Kafka consumer group (empty: one group per instance)")
	pflag.String(sessionCookieNameFlag, viper.GetString(sessionCookieNameFlag), "Session cookie name")
	pflag.Duration(sessionTTLFlag, viper.GetDuration(sessionTTLFlag), "Session lifetime")
	pflag.Bool(cookieSecureFlag, viper.GetBool(cookieSecureFlag), "Mark the session cookie Secure")
	pflag.Duration(heartbeatTimeoutFlag, viper.GetDuration(heartbeatTimeoutFlag), "Close realtime connections idle for longer than this (0 disables)")
	pflag.Duration(heartbeatSweepIntervalFlag, viper.GetDuration(heartbeatSweepIntervalFlag), "How often stale realtime connections are swept")
	pflag.Float64(hubInvocationRateFlag, viper.GetFloat64(hubInvocationRateFlag), "Realtime invocations per second per connection")
	pflag.StringSlice(allowedOriginsFlag, viper.GetStringSlice(allowedOriginsFlag), "Allowed websocket origins")
	pflag.String(seedAdminEmailFlag, viper.GetString(seedAdminEmailFlag), "Email of the admin account created on startup")
	pflag.String(seedAdminPasswordFlag, viper.GetString(seedAdminPasswordFlag), "Password of the admin account created on startup")
	pflag.Parse()

	if err := viper.BindPFlags(pflag.CommandLine); err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	// Bind the viper flags to environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	for _, key := range []string{
		developmentFlag, httpPortFlag, grpcPortFlag, mongoDBURIFlag,
		redisAddrFlag, redisPasswordFlag, redisDBFlag,
		kafkaHostFlag, kafkaPortFlag, kafkaTopicFlag, kafkaGroupIDFlag,
		sessionCookieNameFlag, sessionTTLFlag, cookieSecureFlag,
		heartbeatTimeoutFlag, heartbeatSweepIntervalFlag, hubInvocationRateFlag, allowedOriginsFlag,
		seedAdminEmailFlag, seedAdminPasswordFlag,
	} {
		runtime.Must(viper.BindEnv(key))
	}

	cfg := &Config{
		Kafka: KafkaConfig{
			Host:    viper.GetString(kafkaHostFlag),
			Port:    int(viper.GetInt32(kafkaPortFlag)),
			Topic:   viper.GetString(kafkaTopicFlag),
			GroupID: viper.GetString(kafkaGroupIDFlag),
		},
		MongoDB: MongoDBConfig{
			URI: viper.GetString(mongoDBURIFlag),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString(redisAddrFlag),
			Password: viper.GetString(redisPasswordFlag),
			DB:       viper.GetInt(redisDBFlag),
		},
		Session: SessionConfig{
			CookieName:   viper.GetString(sessionCookieNameFlag),
			TTL:          viper.GetDuration(sessionTTLFlag),
			CookieSecure: viper.GetBool(cookieSecureFlag),
		},
		Hub: HubConfig{
			HeartbeatTimeout: viper.GetDuration(heartbeatTimeoutFlag),
			SweepInterval:    viper.GetDuration(heartbeatSweepIntervalFlag),
			InvocationRate:   viper.GetFloat64(hubInvocationRateFlag),
			AllowedOrigins:   viper.GetStringSlice(allowedOriginsFlag),
		},
		Seed: SeedConfig{
			AdminEmail:    viper.GetString(seedAdminEmailFlag),
			AdminPassword: viper.GetString(seedAdminPasswordFlag),
		},
		Development: viper.GetBool(developmentFlag),
		HTTPPort:    int(viper.GetInt32(httpPortFlag)),
		GRPCPort:    int(viper.GetInt32(grpcPortFlag)),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Session.TTL <= 0 {
		return fmt.Errorf("%s must be positive, got %s", sessionTTLFlag, c.Session.TTL)
	}
	if c.Hub.HeartbeatTimeout < 0 {
		return fmt.Errorf("%s must not be negative", heartbeatTimeoutFlag)
	}
	if c.Hub.HeartbeatTimeout > 0 && c.Hub.SweepInterval <= 0 {
		return fmt.Errorf("%s must be positive when %s is set", heartbeatSweepIntervalFlag, heartbeatTimeoutFlag)
	}
	if c.Hub.InvocationRate <= 0 {
		return fmt.Errorf("%s must be positive", hubInvocationRateFlag)
	}
	if c.Kafka.Topic == "" {
		return fmt.Errorf("%s must be set", kafkaTopicFlag)
	}
	return nil
}
