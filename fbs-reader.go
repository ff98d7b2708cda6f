package vnc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/amitbet/vncclone/logger"
)

// FbsVersion is the header of an FBS 1.0 session recording.
const FbsVersion = "FBS 001.000\n"

const maxFbsSegment = 1 << 26

// FbsSegment is one chunk of recorded server data.
type FbsSegment struct {
	bytes     []byte
	timestamp uint32
}

// FbsReader reads the server byte stream back out of an FBS recording.
type FbsReader struct {
	reader           io.ReadCloser
	buffer           bytes.Buffer
	currentTimestamp int
	// onSegment is called before the bytes of a new segment are returned.
	onSegment func(timestampMs int)
}

func (fbs *FbsReader) Close() error {
	return fbs.reader.Close()
}

// CurrentTimestamp is the time in ms, relative to the start of the
// recording, of the last segment read.
func (fbs *FbsReader) CurrentTimestamp() int {
	return fbs.currentTimestamp
}

func (fbs *FbsReader) Read(p []byte) (n int, err error) {
	for fbs.buffer.Len() == 0 {
		seg, err := fbs.ReadSegment()
		if err != nil {
			return 0, err
		}
		fbs.currentTimestamp = int(seg.timestamp)
		if fbs.onSegment != nil {
			fbs.onSegment(fbs.currentTimestamp)
		}
		fbs.buffer.Write(seg.bytes)
	}
	return fbs.buffer.Read(p)
}

// NewFbsReader opens an FBS file and checks its header.
func NewFbsReader(fbsFile string) (*FbsReader, error) {
	reader, err := os.Open(fbsFile)
	if err != nil {
		logger.Error("NewFbsReader: can't open fbs file: ", fbsFile)
		return nil, err
	}
	fbs, err := newFbsReader(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return fbs, nil
}

func newFbsReader(r io.ReadCloser) (*FbsReader, error) {
	header := make([]byte, len(FbsVersion))
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("reading fbs header: %w", err)
	}
	if string(header) != FbsVersion {
		return nil, fmt.Errorf("not an fbs 1.0 file: header %q", header)
	}
	return &FbsReader{reader: r}, nil
}

// ReadSegment reads the next length prefixed, 4 byte padded segment and its timestamp.
func (fbs *FbsReader) ReadSegment() (*FbsSegment, error) {
	reader := fbs.reader
	var bytesLen uint32

	//read length
	if err := binary.Read(reader, binary.BigEndian, &bytesLen); err != nil {
		return nil, err
	}

	if bytesLen > maxFbsSegment {
		return nil, fmt.Errorf("fbs segment of %d bytes", bytesLen)
	}
	paddedSize := (bytesLen + 3) & 0x7FFFFFFC

	//read bytes
	data := make([]byte, paddedSize)
	if _, err := io.ReadFull(reader, data); err != nil {
		logger.Error("FbsReader.ReadSegment: reading bytes, error reading fbs file: ", err)
		return nil, err
	}

	//read timestamp
	var timeSinceStart uint32
	if err := binary.Read(reader, binary.BigEndian, &timeSinceStart); err != nil {
		logger.Error("FbsReader.ReadSegment: read timestamp, error reading fbs file: ", err)
		return nil, err
	}

	return &FbsSegment{bytes: data[:bytesLen], timestamp: timeSinceStart}, nil
}
