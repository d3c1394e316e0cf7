package sh

import (
	"fmt"
	"strconv"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/mcuipc/pkg/cli"
	"github.com/robotalks/mcuipc/pkg/ipc"
)

func parseID(s string) (ipc.MessageID, error) {
	val, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("Invalid ID: %v", err)
	}
	return ipc.MessageID(val), nil
}

// SentResult is printed after a send.
type SentResult struct {
	ID  ipc.MessageID `json:"id"`
	Len int           `json:"len"`
}

func (r SentResult) String() string {
	return fmt.Sprintf("sent #%d (%d bytes)", r.ID, r.Len)
}

// StatusResult is the occupancy of both rings.
type StatusResult struct {
	Len      int  `json:"len"`
	Capacity int  `json:"capacity"`
	Empty    bool `json:"empty"`
	Full     bool `json:"full"`
	Acks     int  `json:"acks"`
	InFlight int  `json:"in_flight"`
	NextID   int  `json:"next_id"`
}

func (r StatusResult) String() string {
	state := ""
	if r.Empty {
		state = " empty"
	} else if r.Full {
		state = " full"
	}
	return fmt.Sprintf("ring %d/%d%s, acks pending %d, in flight %d, next #%d",
		r.Len, r.Capacity, state, r.Acks, r.InFlight, r.NextID)
}

// Status collects StatusResult.
func (s *Shell) Status() StatusResult {
	st := s.Pair.Status()
	return StatusResult{
		Len:      st.Len,
		Capacity: st.Capacity,
		Empty:    st.Empty,
		Full:     st.Full,
		Acks:     s.Pair.Acks.Ring().Len(),
		InFlight: len(s.Pair.Sender.InFlight()),
		NextID:   int(s.Pair.Sender.NextID()),
	}
}

// StatsResult holds the counters of all parts.
type StatsResult struct {
	Ring     ipc.RingStats     `json:"ring"`
	Acks     ipc.RingStats     `json:"acks"`
	Sender   ipc.SenderStats   `json:"sender"`
	Receiver ipc.ReceiverStats `json:"receiver"`
}

// Stats collects StatsResult.
func (s *Shell) Stats() StatsResult {
	return StatsResult{
		Ring:     s.Pair.Ring.Stats(),
		Acks:     s.Pair.Acks.Ring().Stats(),
		Sender:   s.Pair.Sender.Stats(),
		Receiver: s.Pair.Receiver.Stats(),
	}
}

// Demo sends count payloads. Whenever the ring fills up, MCU2 drains it and
// MCU1 collects the acks before sending continues, so count may exceed the
// capacity.
func (s *Shell) Demo(count int) ([]Delivery, error) {
	var items []Delivery
	round := func() error {
		received, err := s.Drain()
		items = append(items, received...)
		if err != nil {
			return err
		}
		_, err = s.Pair.CollectAcks()
		return err
	}
	for n := 1; n <= count; n++ {
		payload := []byte(fmt.Sprintf("msg%d", n))
		_, err := s.Send(payload)
		if errors.Is(err, ipc.ErrFull) {
			if err = round(); err != nil {
				return items, err
			}
			_, err = s.Send(payload)
		}
		if err != nil {
			return items, errors.Wrapf(err, "send %d", n)
		}
	}
	return items, round()
}

func printDeliveries(c *ishell.Context, items []Delivery) {
	s := ShellFrom(c)
	if s.OutputJSON {
		if items == nil {
			items = []Delivery{}
		}
		s.Print(c, items)
		return
	}
	if len(items) == 0 {
		c.Println("No messages")
		return
	}
	for _, d := range items {
		c.Println(d.String())
	}
}

var (
	// SendCmd sends a message from MCU1.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT... | 0xHEX",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			payload, err := cli.ParsePayload(c.Args)
			if err != nil {
				c.Err(err)
				return
			}
			id, err := s.Send(payload)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, SentResult{ID: id, Len: len(payload)})
		},
	}

	// RecvCmd receives one message on MCU2.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"r"},
		Help:    "",
		Func: func(c *ishell.Context) {
			d, ok, err := ShellFrom(c).Receive()
			if err != nil {
				c.Err(err)
				return
			}
			if !ok {
				c.Err(ipc.ErrNoMessage)
				return
			}
			printDeliveries(c, []Delivery{d})
		},
	}

	// DrainCmd receives all queued messages.
	DrainCmd = ishell.Cmd{
		Name:    "drain",
		Aliases: []string{"d"},
		Help:    "",
		Func: func(c *ishell.Context) {
			items, err := ShellFrom(c).Drain()
			printDeliveries(c, items)
			if err != nil {
				c.Err(err)
			}
		},
	}

	// AcksCmd lets MCU1 handle pending acks.
	AcksCmd = ishell.Cmd{
		Name:    "acks",
		Aliases: []string{"a"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			n, err := s.Pair.CollectAcks()
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("%d acks handled\n", n)
		},
	}

	// ResendCmd resends a tracked message.
	ResendCmd = ishell.Cmd{
		Name: "resend",
		Help: "ID",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 1 {
				c.Err(fmt.Errorf("ID required"))
				return
			}
			id, err := parseID(c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			s := ShellFrom(c)
			defer s.updatePrompt()
			newID, err := s.Pair.Sender.Resend(id)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("#%d resent as #%d\n", id, newID)
		},
	}

	// CorruptCmd simulates corruption of a queued message.
	CorruptCmd = ishell.Cmd{
		Name: "corrupt",
		Help: "OFFSET [INDEX] [MASK]",
		Func: func(c *ishell.Context) {
			vals := []int{0, 2, 1}
			if len(c.Args) > len(vals) {
				c.Err(fmt.Errorf("too many arguments"))
				return
			}
			for n, arg := range c.Args {
				val, err := strconv.ParseInt(arg, 0, 32)
				if err != nil {
					c.Err(fmt.Errorf("Invalid argument %q: %v", arg, err))
					return
				}
				vals[n] = int(val)
			}
			if err := ShellFrom(c).Corrupt(vals[0], vals[1], byte(vals[2])); err != nil {
				c.Err(err)
			}
		},
	}

	// InFlightCmd lists unacknowledged messages.
	InFlightCmd = ishell.Cmd{
		Name:    "inflight",
		Aliases: []string{"i"},
		Help:    "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			items := s.Pair.Sender.InFlight()
			if s.OutputJSON {
				s.Print(c, items)
				return
			}
			for _, f := range items {
				status := "pending"
				if f.Status != 0 {
					status = f.Status.String()
				}
				c.Printf("#%d %s %s\n", f.ID, cli.FormatPayload(f.Payload), status)
			}
		},
	}

	// StatusCmd prints occupancy.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.Print(c, s.Status())
		},
	}

	// StatsCmd prints counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			s.Print(c, s.Stats())
		},
	}

	// ResetCmd recreates the rings.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: func(c *ishell.Context) {
			if err := ShellFrom(c).Reset(); err != nil {
				c.Err(err)
			}
		},
	}

	// DemoCmd sends COUNT messages, receiving and acking whenever the ring
	// fills up.
	DemoCmd = ishell.Cmd{
		Name: "demo",
		Help: "[COUNT] (default 3, may exceed capacity)",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			count := 3
			if len(c.Args) > 0 {
				val, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("Invalid COUNT: %v", err))
					return
				}
				count = val
			}
			items, err := s.Demo(count)
			printDeliveries(c, items)
			if err != nil {
				c.Err(err)
				return
			}
			s.Print(c, s.Status())
		},
	}
)
