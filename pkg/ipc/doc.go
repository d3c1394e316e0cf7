// Package ipc provides the shared ring protocol between MCU1 and MCU2.
package ipc

// The protocol is communicated between two roles sharing one fixed
// capacity ring of message slots:
//
// Producer: MCU1 (Sender) stamps each payload with an id and a checksum
// and pushes it into the ring.
// Consumer: MCU2 (Receiver) pops messages in FIFO order, verifies the
// checksum and produces an Ack for every message popped.
//
// The ring is safe for exactly one producer and one consumer running
// concurrently. Push and Pop never block: a full ring fails with
// ErrBufferFull and an empty ring with ErrBufferEmpty. Retries, polling
// and timeouts are layered by callers.
//
// Acks travel back through an AckChannel, normally an AckRing which is a
// second ring with the same layout.
