package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	DB                string  // connection string for the database
	NatsURL           string  // URL of NATS server
	RedisAddr         string  // address of redis server
	Storage           string  // storage backend (memory, file, nats, postgres, redis)
	StorageURL        string  // backend specific location (file path for file backend)
	WaitForServices   string  // duration to wait for other services to be ready
	LogLevel          string  // sets the log level (zap log level values)
	LogFormat         string  // text vs json
	LogFilter         string  // zapfilter rules applied on top of LogLevel
	EnableTelemetry   bool    // enable telemetry
	TelemetryEndpoint string  // endpoint for telemetry
	RoutingURL        string  // base url of the routing service
	RoutingAPIKey     string  // api key for the routing service
	RoutingLanguage   string  // language for route instructions
	RouteFile         string  // canned routing response used instead of the routing service
	HazardFile        string  // path to hazard feed (json or yaml)
	HazardSelector    string  // optional JSONPath to the hazard entries within the feed
	FineAmount        float64 // amount of money a potential ticket costs
	AvoidTolls        bool    // routing preference
	AvoidHighways     bool    // routing preference
	AvoidHazards      bool    // routing preference
)
