package ipc

// Defaults of Config.
const (
	DefaultCapacity    = 8
	DefaultPayloadSize = 32
)

// Config defines the fixed parameters of a ring and the protocol roles
// using it. They don't change for the lifetime of a ring.
type Config struct {
	Capacity    int
	PayloadSize int
	Checksum    Checksum
	FirstID     MessageID
	// InFlightLimit bounds the sender's unacknowledged window, zero means
	// twice the capacity.
	InFlightLimit int
}

// DefaultConfig returns a Config with defaults.
func DefaultConfig() Config {
	return Config{
		Capacity:    DefaultCapacity,
		PayloadSize: DefaultPayloadSize,
		Checksum:    DefaultChecksum,
	}
}

// Validate checks the configuration once before anything is created.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "capacity", Value: c.Capacity, Err: ErrInvalidCapacity}
	}
	if c.PayloadSize <= 0 {
		return &ConfigError{Field: "payload size", Value: c.PayloadSize, Err: ErrInvalidPayloadSize}
	}
	if !c.Checksum.IsValid() {
		return &ConfigError{Field: "checksum", Value: int(c.Checksum), Err: ErrUnknownChecksum}
	}
	return nil
}

// NewRing creates a ring from the config.
func (c Config) NewRing() (*Ring, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewRing(c.Capacity, c.PayloadSize)
}

// NewSender creates a Sender producing into ring.
func (c Config) NewSender(ring *Ring) *Sender {
	s := NewSender(ring, c.Checksum).WithFirstID(c.FirstID)
	s.InFlightLimit = c.InFlightLimit
	return s
}

// NewReceiver creates a Receiver consuming from ring.
func (c Config) NewReceiver(ring *Ring) *Receiver {
	return NewReceiver(ring, c.Checksum)
}

// NewAckRing creates the ack return path sized like the message ring.
func (c Config) NewAckRing() (*AckRing, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return NewAckRing(c.Capacity, c.Checksum)
}
