package main

//go-build: CGO_ENABLED=0

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/golang/glog"

	"github.com/robotalks/mcuipc/pkg/cli"
	"github.com/robotalks/mcuipc/pkg/config"
	fx "github.com/robotalks/mcuipc/pkg/framework"
	"github.com/robotalks/mcuipc/pkg/ipc"
	"github.com/robotalks/mcuipc/pkg/link"
	"github.com/robotalks/mcuipc/pkg/metrics"
)

func init() {
	config.SetupFlags()
}

// senderNode owns the Sender from a single poller goroutine. Lines from
// stdin are queued into inputCh and sent on the next iteration.
type senderNode struct {
	sender  *ipc.Sender
	acks    *ipc.AckRing
	inputCh chan []byte
	waker   fx.Waker
	pending [][]byte
}

func (n *senderNode) readInput(ctx context.Context) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		payload, err := cli.ParsePayload([]string{scanner.Text()})
		if err != nil {
			glog.Errorf("skip input: %v", err)
			continue
		}
		select {
		case n.inputCh <- payload:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		glog.Errorf("read input: %v", err)
	}
}

func (n *senderNode) poll(ctx context.Context) error {
drain:
	for {
		select {
		case payload := <-n.inputCh:
			n.pending = append(n.pending, payload)
		default:
			break drain
		}
	}
	for len(n.pending) > 0 {
		id, err := n.sender.Send(n.pending[0])
		if err != nil {
			if errors.Is(err, ipc.ErrFull) {
				break
			}
			glog.Errorf("drop payload: %v", err)
		} else {
			fmt.Printf("sent #%d\n", id)
			n.waker.TriggerNext()
		}
		n.pending = n.pending[1:]
	}
	for {
		ack, err := n.acks.ReceiveAck()
		if errors.Is(err, ipc.ErrNoAck) {
			return nil
		}
		if err != nil {
			glog.Warningf("drop ack: %v", err)
			continue
		}
		if f, ok := n.sender.HandleAck(ack); ok && ack.Status == ipc.ChecksumFailed {
			newID, err := n.sender.Resend(f.ID)
			if err != nil {
				glog.Errorf("resend #%d failed: %v", f.ID, err)
			} else {
				glog.Infof("resent #%d as #%d", f.ID, newID)
			}
		}
		fmt.Println(ack.String())
	}
}

func runSender(r *fx.Runner, conf *config.Config, ipcConf ipc.Config, rw link.PacketReadWriter, collector *metrics.Collector) error {
	ring, err := ipcConf.NewRing()
	if err != nil {
		return err
	}
	acks, err := ipcConf.NewAckRing()
	if err != nil {
		return err
	}
	fwd := link.NewForwarder(rw, ring, acks, ipcConf).WithInterval(conf.PollInterval)
	fwd.LinkID = conf.ResolveLinkID()
	node := &senderNode{
		sender:  ipcConf.NewSender(ring),
		acks:    acks,
		inputCh: make(chan []byte, ipcConf.Capacity),
		waker:   fwd,
	}
	// stdin can't be interrupted, so it's not waited by the runner.
	go node.readInput(r.Context)
	collector.WithRing("tx", ring).WithRing("ack", acks.Ring())
	collector.Sender, collector.Forwarder = node.sender, fwd
	r.Go(
		fx.NamedRun("forwarder", fwd),
		fx.NamedRun("sender", fx.NewPoller(conf.PollInterval).Add(fx.PollFunc(node.poll))),
	)
	return nil
}

func runReceiver(r *fx.Runner, conf *config.Config, ipcConf ipc.Config, rw link.PacketReadWriter, collector *metrics.Collector) error {
	ring, err := ipcConf.NewRing()
	if err != nil {
		return err
	}
	mirror := link.NewMirror(rw, ring, ipcConf)
	receiver := ipcConf.NewReceiver(ring)
	collector.WithRing("rx", ring)
	collector.Receiver, collector.Mirror = receiver, mirror
	poll := func(ctx context.Context) error {
		for {
			msg, ack, err := receiver.ReceiveAndAck(mirror)
			if errors.Is(err, ipc.ErrNoMessage) {
				return nil
			}
			if errors.Is(err, ipc.ErrAckLost) {
				glog.Warning(err)
			} else if err != nil {
				return err
			}
			if ack.Status == ipc.Delivered {
				fmt.Printf("#%d %s\n", msg.ID, cli.FormatPayload(msg.Payload))
			}
		}
	}
	r.Go(
		fx.NamedRun("mirror", mirror),
		fx.NamedRun("receiver", fx.NewPoller(conf.PollInterval).Add(fx.PollFunc(poll))),
	)
	return nil
}

func main() {
	flag.Parse()

	conf, err := config.Load(flag.CommandLine)
	if err != nil {
		glog.Exitf("config: %v", err)
	}
	if err = conf.Validate(); err != nil {
		glog.Exitf("config: %v", err)
	}
	ipcConf, err := conf.IPC()
	if err != nil {
		glog.Exitf("config: %v", err)
	}

	r := fx.NewRunner().HandleSignals()
	rw, err := conf.OpenTransport(r.Context, ipcConf)
	if err != nil {
		glog.Exitf("transport %s: %v", conf.Transport, err)
	}
	if closer, ok := rw.(io.Closer); ok {
		defer closer.Close()
	}

	collector := metrics.NewCollector()
	if conf.Role == config.RoleSender {
		err = runSender(r, conf, ipcConf, rw, collector)
	} else {
		err = runReceiver(r, conf, ipcConf, rw, collector)
	}
	if err != nil {
		glog.Exit(err)
	}
	if conf.MetricsAddr != "" {
		r.Go(fx.NamedRun("metrics", metrics.NewServer(conf.MetricsAddr, collector)))
	}
	if err = r.Wait(); err != nil {
		glog.Exit(err)
	}
}
