package config

import "time"

const defaultUpstreamBaseURL = "https://api-v3.mbta.com"
const defaultMongoConnectionString = "mongodb://localhost:27017/"
const defaultMongoDatabase = "telemetry"
const defaultListen = ":8080"

var defaultRoutes = []string{"Red", "Orange", "Green", "Blue"}

var defaultScheduledHeadways = map[string]float64{
	"Red":    6,
	"Orange": 6,
	"Green":  5,
	"Blue":   7,
	"1":      10,
	"39":     8,
}

func Default() *Config {
	headways := make(map[string]float64, len(defaultScheduledHeadways))
	for route, headway := range defaultScheduledHeadways {
		headways[route] = headway
	}

	return &Config{
		Upstream: UpstreamConfig{
			BaseURL:     defaultUpstreamBaseURL,
			Routes:      append([]string{}, defaultRoutes...),
			Format:      UpstreamFormatJSONAPI,
			Timeout:     30 * time.Second,
			MaxAttempts: 3,
			MaxWait:     60 * time.Second,
		},
		Collector: CollectorConfig{
			Interval: 10 * time.Second,
		},
		MongoDB: MongoDBConfig{
			Connection: defaultMongoConnectionString,
			Database:   defaultMongoDatabase,
		},
		API: APIConfig{
			Listen:      defaultListen,
			CORSOrigins: "*",
		},
		Analytics: AnalyticsConfig{
			ScheduledHeadways:      headways,
			DefaultHeadwayMinutes:  10,
			DelayHoursBack:         24,
			HeadwayWindow:          time.Hour,
			RecentWindow:           5 * time.Minute,
			BunchingThreshold:      180 * time.Second,
			SpeedThreshold:         60,
			StalledAfter:           10 * time.Minute,
			VehicleWindow:          2 * time.Minute,
			HealthStaleAfter:       2 * time.Minute,
			RouteBunchingThreshold: 300 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 30 * time.Second,
		},
		Archive: ArchiveConfig{
			Retention:       7 * 24 * time.Hour,
			OutputDirectory: ".",
		},
	}
}
