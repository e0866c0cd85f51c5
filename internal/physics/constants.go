package physics

const (
	DefaultGravity    = -9.81
	DefaultTickRateHz = 60
	DefaultQueueSize  = 1024

	DefaultMass = 1.0

	// Residual velocities below these are zeroed after integration so resting
	// bodies do not creep.
	MinimumResidualHorizontalSpeed = 1e-4
	MinimumResidualVerticalSpeed   = 1e-4
	CollisionAxisTolerance         = 1e-9
)
