package network

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

var snapshotMagic = [4]byte{'L', 'D', 'Q', 'N'}

const snapshotVersion = 2

// maxDimension bounds Filters and Hidden read from a snapshot header.
const maxDimension = 1 << 16

// ErrShapeMismatch is returned when a snapshot was taken from a network with
// a different architecture.
var ErrShapeMismatch = errors.New("network: snapshot shape mismatch")

type snapshotHeader struct {
	Magic   [4]byte
	Version uint32
	Filters uint32
	Hidden  uint32
	Count   uint64
}

// MarshalBinary encodes every parameter bit-exactly.
func (n *Network) MarshalBinary() ([]byte, error) {
	params := n.flat()
	var buf bytes.Buffer
	buf.Grow(24 + 8*len(params))
	hdr := snapshotHeader{
		Magic:   snapshotMagic,
		Version: snapshotVersion,
		Filters: uint32(n.cfg.Filters),
		Hidden:  uint32(n.cfg.Hidden),
		Count:   uint64(len(params)),
	}
	if err := binary.Write(&buf, binary.LittleEndian, hdr); err != nil {
		return nil, err
	}
	b := make([]byte, 8)
	for _, p := range params {
		binary.LittleEndian.PutUint64(b, math.Float64bits(p))
		buf.Write(b)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary restores parameters into a network of the same shape.
func (n *Network) UnmarshalBinary(data []byte) error {
	cfg, params, err := decode(data)
	if err != nil {
		return err
	}
	if cfg != n.cfg {
		return fmt.Errorf("%w: snapshot %+v, network %+v", ErrShapeMismatch, cfg, n.cfg)
	}
	n.setFlat(params)
	return nil
}

// Load builds a network from a snapshot, taking the architecture from it.
func Load(data []byte) (*Network, error) {
	cfg, params, err := decode(data)
	if err != nil {
		return nil, err
	}
	return restore(cfg, params), nil
}

func decode(data []byte) (Config, []float64, error) {
	r := bytes.NewReader(data)
	var hdr snapshotHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return Config{}, nil, fmt.Errorf("read snapshot header: %w", err)
	}
	if hdr.Magic != snapshotMagic {
		return Config{}, nil, errors.New("network: not a snapshot")
	}
	if hdr.Version != snapshotVersion {
		return Config{}, nil, fmt.Errorf("network: unsupported snapshot version %d", hdr.Version)
	}
	cfg := Config{Filters: int(hdr.Filters), Hidden: int(hdr.Hidden)}
	if hdr.Filters == 0 || hdr.Hidden == 0 || hdr.Filters > maxDimension || hdr.Hidden > maxDimension {
		return Config{}, nil, fmt.Errorf("%w: invalid sizes %+v", ErrShapeMismatch, cfg)
	}
	if want := newLayout(cfg).size; uint64(want) != hdr.Count {
		return Config{}, nil, fmt.Errorf("%w: header says %d params, architecture has %d", ErrShapeMismatch, hdr.Count, want)
	}
	if r.Len() != int(hdr.Count)*8 {
		return Config{}, nil, fmt.Errorf("%w: truncated snapshot", ErrShapeMismatch)
	}
	params := make([]float64, hdr.Count)
	b := make([]byte, 8)
	for i := range params {
		if _, err := r.Read(b); err != nil {
			return Config{}, nil, fmt.Errorf("read parameter %d: %w", i, err)
		}
		params[i] = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
	return cfg, params, nil
}
