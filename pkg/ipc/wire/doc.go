// Package wire defines the frames exchanged by the two ends of a link.
package wire

// Every packet on a transport is one encoded Frame. The Frame carries a
// kind and the protobuf encoding of the body for that kind.
//
// Forwarder (MCU1 side) -> Mirror (MCU2 side): Hello, MessageFrame
// Mirror -> Forwarder: HelloAck, AckFrame
