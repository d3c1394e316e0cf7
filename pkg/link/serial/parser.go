package serial

// SyncByte starts every frame on the wire.
const SyncByte byte = 0x7e

// MaxFrameSize is the largest data length the 2-byte length can express.
const MaxFrameSize = 0xffff

// Parser extracts frames from a byte stream: SYNC LEN(2, big-endian) DATA.
// A length over the limit drops the frame and the parser scans for the
// next sync byte. Corrupted data isn't detected here, it's left to the
// frame decoder and the message checksum.
type Parser struct {
	// MaxLen limits the data length, zero means MaxFrameSize.
	MaxLen int

	state   parseState
	data    []byte
	recvLen int
	resyncs uint64
	skipped uint64
}

type parseState int

const (
	stateSync  parseState = iota // waiting for SyncByte
	stateLenHi                   // waiting for high byte of length
	stateLenLo                   // waiting for low byte of length
	stateData                    // waiting for data
)

// InFrame indicates the parser is in the middle of a frame.
func (p *Parser) InFrame() bool {
	return p.state != stateSync
}

// Resyncs is the number of frames dropped because of lost sync.
func (p *Parser) Resyncs() uint64 {
	return p.resyncs
}

// Skipped is the number of bytes discarded while waiting for sync.
func (p *Parser) Skipped() uint64 {
	return p.skipped
}

// Reset drops any partial frame.
func (p *Parser) Reset() {
	p.state, p.data, p.recvLen = stateSync, nil, 0
}

// Timeout tells the parser the line went idle. A partial frame can't be
// completed anymore and is dropped.
func (p *Parser) Timeout() {
	if p.state != stateSync {
		p.resync()
	}
}

// Parse consumes one byte. It returns the data and true when a frame is
// complete.
func (p *Parser) Parse(b byte) ([]byte, bool) {
	switch p.state {
	case stateSync:
		if b == SyncByte {
			p.state = stateLenHi
		} else {
			p.skipped++
		}
	case stateLenHi:
		p.recvLen = int(b) << 8
		p.state = stateLenLo
	case stateLenLo:
		size := p.recvLen | int(b)
		if size > p.maxLen() {
			p.resync()
			return nil, false
		}
		if size == 0 {
			return p.frameReady()
		}
		p.data, p.recvLen = make([]byte, size), 0
		p.state = stateData
	case stateData:
		p.data[p.recvLen] = b
		p.recvLen++
		if p.recvLen >= len(p.data) {
			return p.frameReady()
		}
	}
	return nil, false
}

func (p *Parser) maxLen() int {
	if p.MaxLen > 0 && p.MaxLen < MaxFrameSize {
		return p.MaxLen
	}
	return MaxFrameSize
}

func (p *Parser) resync() {
	p.resyncs++
	p.Reset()
}

func (p *Parser) frameReady() ([]byte, bool) {
	data := p.data
	if data == nil {
		data = []byte{}
	}
	p.Reset()
	return data, true
}

// Encode frames data for the wire.
func Encode(data []byte) []byte {
	b := make([]byte, len(data)+3)
	b[0], b[1], b[2] = SyncByte, byte(len(data)>>8), byte(len(data))
	copy(b[3:], data)
	return b
}
