package ipc

// Pair wires both roles in one process: a message ring from Sender to
// Receiver and an AckRing back.
type Pair struct {
	Config   Config
	Ring     *Ring
	Acks     *AckRing
	Sender   *Sender
	Receiver *Receiver
}

// NewPair creates a Pair from config.
func NewPair(conf Config) (*Pair, error) {
	ring, err := conf.NewRing()
	if err != nil {
		return nil, err
	}
	acks, err := conf.NewAckRing()
	if err != nil {
		return nil, err
	}
	return &Pair{
		Config:   conf,
		Ring:     ring,
		Acks:     acks,
		Sender:   conf.NewSender(ring),
		Receiver: conf.NewReceiver(ring),
	}, nil
}

// Send sends a payload from MCU1.
func (p *Pair) Send(payload []byte) (MessageID, error) {
	return p.Sender.Send(payload)
}

// Receive receives one message on MCU2 and returns the ack through the
// ack ring.
func (p *Pair) Receive() (Message, Ack, error) {
	return p.Receiver.ReceiveAndAck(p.Acks)
}

// CollectAcks lets MCU1 retire everything acknowledged so far.
func (p *Pair) CollectAcks() (int, error) {
	return p.Sender.PollAcks(p.Acks)
}

// Status gets the occupancy of the message ring.
func (p *Pair) Status() Status {
	return p.Ring.Status()
}
