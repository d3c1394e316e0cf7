// Package link extends a ring across two processes or chips.
//
// The Forwarder runs next to the Sender and consumes the local tx ring.
// The Mirror runs next to the Receiver and produces into the local rx
// ring. Message frames flow from Forwarder to Mirror, ack frames flow
// back. The Forwarder only sends while it has credit, so the rx ring
// never overflows and its fail-on-full behavior is preserved end to end.
package link
