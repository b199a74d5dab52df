package proximity

import "time"

type Config struct {
	DangerFeet   float64
	ApproachFeet float64
	// used for approach and exit alerts
	EntryCooldown    time.Duration
	SpeedingCooldown time.Duration
	// speeding alert fires above limit + tolerance
	SpeedingToleranceMph float64
	// samples closer than this to the last processed one are ignored
	MinMoveMeters float64
	ZenPenalty    int
	InitialZen    int
}

func DefaultConfig() Config {
	return Config{
		DangerFeet:           500,
		ApproachFeet:         1000,
		EntryCooldown:        3 * time.Minute,
		SpeedingCooldown:     10 * time.Second,
		SpeedingToleranceMph: 3,
		MinMoveMeters:        5,
		ZenPenalty:           5,
		InitialZen:           100,
	}
}
