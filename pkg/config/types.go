package config

import "time"

const (
	UpstreamFormatJSONAPI = "jsonapi"
	UpstreamFormatGTFSRT  = "gtfs-rt"
)

// Config is the root configuration structure
type Config struct {
	Upstream      UpstreamConfig      `yaml:"upstream"`
	Collector     CollectorConfig     `yaml:"collector"`
	MongoDB       MongoDBConfig       `yaml:"mongodb"`
	Redis         RedisConfig         `yaml:"redis"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	API           APIConfig           `yaml:"api"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Cache         CacheConfig         `yaml:"cache"`
	Archive       ArchiveConfig       `yaml:"archive"`
}

// UpstreamConfig describes the agency vehicles feed
type UpstreamConfig struct {
	BaseURL     string        `yaml:"baseURL" validate:"required,url"`
	APIKey      string        `yaml:"apiKey"`
	Routes      []string      `yaml:"routes" validate:"min=1,dive,required"`
	Format      string        `yaml:"format" validate:"oneof=jsonapi gtfs-rt"`
	Timeout     time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxAttempts int           `yaml:"maxAttempts" validate:"gte=1"`
	MaxWait     time.Duration `yaml:"maxWait" validate:"gte=0"`
}

type CollectorConfig struct {
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type MongoDBConfig struct {
	Connection string `yaml:"connection"`
	Database   string `yaml:"database"`
}

// RedisConfig is optional, an empty address disables the event queue and response cache
type RedisConfig struct {
	Address  string `yaml:"address" validate:"omitempty,hostname_port"`
	Password string `yaml:"password"`
	Database int    `yaml:"database" validate:"gte=0"`
}

// ElasticsearchConfig is optional, an empty address disables indexing
type ElasticsearchConfig struct {
	Address  string `yaml:"address" validate:"omitempty,url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type APIConfig struct {
	Listen      string `yaml:"listen"`
	CORSOrigins string `yaml:"corsOrigins"`
}

// AnalyticsConfig holds the thresholds used by the delay, headway and alert calculations
type AnalyticsConfig struct {
	ScheduledHeadways     map[string]float64 `yaml:"scheduledHeadways" validate:"dive,gt=0"`
	DefaultHeadwayMinutes float64            `yaml:"defaultHeadwayMinutes" validate:"gt=0"`
	DelayHoursBack        int                `yaml:"delayHoursBack" validate:"gt=0"`

	HeadwayWindow time.Duration `yaml:"headwayWindow" validate:"gt=0"`

	RecentWindow      time.Duration `yaml:"recentWindow" validate:"gt=0"`
	BunchingThreshold time.Duration `yaml:"bunchingThreshold" validate:"gt=0"`
	SpeedThreshold    float64       `yaml:"speedThreshold" validate:"gt=0"`
	StalledAfter      time.Duration `yaml:"stalledAfter" validate:"gt=0"`

	VehicleWindow    time.Duration `yaml:"vehicleWindow" validate:"gt=0"`
	HealthStaleAfter time.Duration `yaml:"healthStaleAfter" validate:"gt=0"`

	RouteBunchingThreshold time.Duration `yaml:"routeBunchingThreshold" validate:"gt=0"`
}

// ArchiveConfig controls how long telemetry events stay in MongoDB before
// being bundled to disk, and optionally a cloud storage bucket
type ArchiveConfig struct {
	Retention       time.Duration `yaml:"retention" validate:"gt=0"`
	OutputDirectory string        `yaml:"outputDirectory" validate:"required"`
	BucketName      string        `yaml:"bucketName"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl" validate:"gte=0"`
}

// ExpectedHeadway returns the scheduled headway in minutes for a route
func (a *AnalyticsConfig) ExpectedHeadway(routeID string) float64 {
	if headway, ok := a.ScheduledHeadways[routeID]; ok {
		return headway
	}

	return a.DefaultHeadwayMinutes
}
