package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"

	"github.com/abiosoft/ishell"
	"github.com/pkg/errors"

	"github.com/robotalks/mcuipc/pkg/cli"
	"github.com/robotalks/mcuipc/pkg/config"
	"github.com/robotalks/mcuipc/pkg/ipc"
)

// Shell provides ishell backed interactive simulator of both MCUs sharing
// a ring in one process.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Config ipc.Config
	Pair   *ipc.Pair
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&SendCmd,
		&RecvCmd,
		&DrainCmd,
		&AcksCmd,
		&ResendCmd,
		&CorruptCmd,
		&InFlightCmd,
		&StatusCmd,
		&StatsCmd,
		&ResetCmd,
		&DemoCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// AddCmds is used by other commands providers during init func.
func AddCmds(cmds ...*ishell.Cmd) {
	commands = append(commands, cmds...)
}

// New creates a new shell with a fresh pair.
func New(conf ipc.Config) (*Shell, error) {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Config: conf,
	}
	if err := s.Reset(); err != nil {
		return nil, err
	}
	s.Shell.Set(shellKey, s)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Reset recreates both rings, dropping everything queued or in flight.
func (s *Shell) Reset() error {
	pair, err := ipc.NewPair(s.Config)
	if err != nil {
		return err
	}
	s.Pair = pair
	s.updatePrompt()
	return nil
}

func (s *Shell) updatePrompt() {
	if s.Shell == nil {
		return
	}
	st := s.Pair.Status()
	s.Shell.SetPrompt(fmt.Sprintf("[%d/%d] > ", st.Len, st.Capacity))
}

// Delivery is the result of receiving a message.
type Delivery struct {
	ID      ipc.MessageID `json:"id"`
	Payload string        `json:"payload"`
	Status  string        `json:"status"`
	AckErr  string        `json:"ack_error,omitempty"`
}

func (d Delivery) String() string {
	str := fmt.Sprintf("#%d %s %s", d.ID, d.Payload, d.Status)
	if d.AckErr != "" {
		str += " (ack not sent: " + d.AckErr + ")"
	}
	return str
}

// Send sends a payload from MCU1.
func (s *Shell) Send(payload []byte) (ipc.MessageID, error) {
	defer s.updatePrompt()
	return s.Pair.Send(payload)
}

// Receive receives one message on MCU2. ok is false if the ring is empty.
func (s *Shell) Receive() (d Delivery, ok bool, err error) {
	defer s.updatePrompt()
	msg, ack, err := s.Pair.Receive()
	if errors.Is(err, ipc.ErrNoMessage) {
		return d, false, nil
	}
	d = Delivery{ID: msg.ID, Payload: cli.FormatPayload(msg.Payload), Status: ack.Status.String()}
	if err != nil {
		// the message is consumed even if its ack is lost.
		d.AckErr = err.Error()
	}
	return d, true, nil
}

// Drain receives until MCU2's ring is empty.
func (s *Shell) Drain() ([]Delivery, error) {
	var items []Delivery
	for {
		d, ok, err := s.Receive()
		if err != nil || !ok {
			return items, err
		}
		items = append(items, d)
	}
}

// Corrupt flips bits of a queued message, index 0 and 1 address the id
// bytes, the rest the payload.
func (s *Shell) Corrupt(offset, index int, mask byte) error {
	if !s.Pair.Ring.Tamper(offset, index, mask) {
		return errors.Errorf("no byte %d in queued message %d", index, offset)
	}
	return nil
}

// Print prints v in JSON or its String form.
func (s *Shell) Print(c *ishell.Context, v interface{}) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	if str, ok := v.(fmt.Stringer); ok {
		c.Println(str.String())
		return
	}
	c.Println(fmt.Sprintf("%+v", v))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Printf("Ring of %d slots, %d bytes payload, %s\n",
			s.Config.Capacity, s.Config.PayloadSize, s.Config.Checksum)
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf, err := config.Load(flag.CommandLine)
	if err != nil {
		log.Fatalln(err)
	}
	ipcConf, err := conf.IPC()
	if err != nil {
		log.Fatalln(err)
	}
	s, err := New(ipcConf)
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
