package gossip

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/continuity-consensus/core/dag"
)

// ErrInvalidEncoding is returned when a wire-format Exchange cannot be
// decoded.
var ErrInvalidEncoding = errors.New("gossip: invalid encoding")

// Wire format for an Exchange:
//
//	event_hash[32] || truncated[1] || heads_count[4] || { creator_len[2] || creator || generation[4] }...
//	|| history_count[4] || { event_hash[32] || creator_len[2] || creator || type[1] || tree_hash[32]
//	   || parent_count[2] || { parent_hash[32] }... }...
func Encode(ex *Exchange) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, ex.EventHash[:]...)
	if ex.Truncated {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}

	buf = appendUint32(buf, uint32(len(ex.Heads)))
	for creator, gen := range ex.Heads {
		buf = appendString(buf, creator)
		buf = appendUint32(buf, uint32(gen))
	}

	buf = appendUint32(buf, uint32(len(ex.History)))
	for _, e := range ex.History {
		buf = append(buf, e.Hash[:]...)
		buf = appendString(buf, e.Creator)
		buf = append(buf, byte(e.Type))
		buf = append(buf, e.TreeHash[:]...)
		buf = appendUint16(buf, uint16(len(e.ParentHash)))
		for _, p := range e.ParentHash {
			buf = append(buf, p[:]...)
		}
	}
	return buf
}

// Decode parses the wire format produced by Encode.
func Decode(data []byte) (*Exchange, error) {
	r := &reader{data: data}

	ex := &Exchange{Heads: make(Heads)}
	if err := r.readHash(&ex.EventHash); err != nil {
		return nil, err
	}
	truncated, err := r.readByte()
	if err != nil {
		return nil, err
	}
	ex.Truncated = truncated == 1

	headsCount, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < headsCount; i++ {
		creator, err := r.readString()
		if err != nil {
			return nil, err
		}
		gen, err := r.readUint32()
		if err != nil {
			return nil, err
		}
		ex.Heads[creator] = int(gen)
	}

	historyCount, err := r.readUint32()
	if err != nil {
		return nil, err
	}
	ex.History = make([]*dag.Event, 0, historyCount)
	for i := uint32(0); i < historyCount; i++ {
		e := &dag.Event{}
		if err := r.readHash(&e.Hash); err != nil {
			return nil, err
		}
		creator, err := r.readString()
		if err != nil {
			return nil, err
		}
		e.Creator = creator
		typ, err := r.readByte()
		if err != nil {
			return nil, err
		}
		e.Type = dag.EventType(typ)
		if err := r.readHash(&e.TreeHash); err != nil {
			return nil, err
		}
		parentCount, err := r.readUint16()
		if err != nil {
			return nil, err
		}
		for j := uint16(0); j < parentCount; j++ {
			var p dag.EventHash
			if err := r.readHash(&p); err != nil {
				return nil, err
			}
			e.ParentHash = append(e.ParentHash, p)
		}
		ex.History = append(ex.History, e)
	}

	return ex, nil
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendString(buf []byte, s string) []byte {
	buf = appendUint16(buf, uint16(len(s)))
	return append(buf, s...)
}

type reader struct {
	data []byte
	off  int
}

func (r *reader) readHash(h *dag.EventHash) error {
	if r.off+32 > len(r.data) {
		return fmt.Errorf("%w: truncated hash", ErrInvalidEncoding)
	}
	copy(h[:], r.data[r.off:r.off+32])
	r.off += 32
	return nil
}

func (r *reader) readByte() (byte, error) {
	if r.off+1 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated byte", ErrInvalidEncoding)
	}
	b := r.data[r.off]
	r.off++
	return b, nil
}

func (r *reader) readUint32() (uint32, error) {
	if r.off+4 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated uint32", ErrInvalidEncoding)
	}
	v := binary.BigEndian.Uint32(r.data[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) readUint16() (uint16, error) {
	if r.off+2 > len(r.data) {
		return 0, fmt.Errorf("%w: truncated uint16", ErrInvalidEncoding)
	}
	v := binary.BigEndian.Uint16(r.data[r.off : r.off+2])
	r.off += 2
	return v, nil
}

func (r *reader) readString() (string, error) {
	n, err := r.readUint16()
	if err != nil {
		return "", err
	}
	if r.off+int(n) > len(r.data) {
		return "", fmt.Errorf("%w: truncated string", ErrInvalidEncoding)
	}
	s := string(r.data[r.off : r.off+int(n)])
	r.off += int(n)
	return s, nil
}
