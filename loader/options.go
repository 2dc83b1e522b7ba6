package loader

// Config holds the loader configuration.
type Config struct {
	// Status receives progress strings for the UI (optional)
	Status StatusFunc

	// Logger is used for logging operations (optional)
	Logger Logger

	// StatusInterval is the number of programmed blocks between progress
	// strings
	StatusInterval int

	// VerifyAfterProgram enables readback verification of every
	// programmed page
	VerifyAfterProgram bool
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		StatusInterval:     100,
		VerifyAfterProgram: true,
	}
}

// Option is a functional option for configuring the Loader.
type Option func(*Config)

// WithStatus sets the callback that receives UI progress strings.
//
// Example:
//
//	l := loader.New(dev, target, loader.WithStatus(ui.SetStatus))
func WithStatus(status StatusFunc) Option {
	return func(c *Config) {
		c.Status = status
	}
}

// WithLogger sets a logger for the load operations.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithStatusInterval sets how many programmed blocks pass between progress
// strings. Default is 100.
func WithStatusInterval(blocks int) Option {
	return func(c *Config) {
		if blocks > 0 {
			c.StatusInterval = blocks
		}
	}
}

// WithVerifyAfterProgram enables or disables page readback verification.
// Default is true.
func WithVerifyAfterProgram(verify bool) Option {
	return func(c *Config) {
		c.VerifyAfterProgram = verify
	}
}
