package net

import (
	"bufio"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/FlavioCFOliveira/GoStyle/internal/tensor"
)

const checkpointVersion = 1

// ErrCheckpointMismatch is returned when a checkpoint does not fit the
// network it is loaded into.
var ErrCheckpointMismatch = errors.New("checkpoint does not match network")

type checkpoint struct {
	Version int          `msgpack:"version"`
	Network string       `msgpack:"network"`
	Params  []paramState `msgpack:"params"`
}

type paramState struct {
	Shape []int     `msgpack:"shape"`
	Data  []float64 `msgpack:"data"`
}

// Encode writes params to w, tagged with the network name.
func Encode(w io.Writer, name string, params []*tensor.Tensor) error {
	ckpt := checkpoint{Version: checkpointVersion, Network: name}
	for _, p := range params {
		ckpt.Params = append(ckpt.Params, paramState{Shape: p.Shape, Data: p.Data})
	}
	if err := msgpack.NewEncoder(w).Encode(&ckpt); err != nil {
		return errors.Wrapf(err, "encode %s checkpoint", name)
	}
	return nil
}

// Decode reads a checkpoint from r and copies it into params in place. Every
// shape must match; nothing is modified when any does not.
func Decode(r io.Reader, name string, params []*tensor.Tensor) error {
	var ckpt checkpoint
	if err := msgpack.NewDecoder(r).Decode(&ckpt); err != nil {
		return errors.Wrapf(err, "decode %s checkpoint", name)
	}
	if ckpt.Version != checkpointVersion {
		return errors.Wrapf(ErrCheckpointMismatch, "%s: unsupported version %d", name, ckpt.Version)
	}
	if ckpt.Network != name {
		return errors.Wrapf(ErrCheckpointMismatch, "checkpoint is for %q, want %q", ckpt.Network, name)
	}
	if len(ckpt.Params) != len(params) {
		return errors.Wrapf(ErrCheckpointMismatch, "%s: %d tensors, network has %d", name, len(ckpt.Params), len(params))
	}
	for i, p := range params {
		st := ckpt.Params[i]
		if !sameShape(st.Shape, p.Shape) || len(st.Data) != p.Len() {
			return errors.Wrapf(ErrCheckpointMismatch, "%s tensor %d: shape %v, network has %v", name, i, st.Shape, p.Shape)
		}
	}
	for i, p := range params {
		copy(p.Data, ckpt.Params[i].Data)
	}
	return nil
}

// SaveFile writes params to path, replacing any existing file.
func SaveFile(path, name string, params []*tensor.Tensor) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "failed to create checkpoint file")
	}
	w := bufio.NewWriter(f)
	if err := Encode(w, name, params); err != nil {
		f.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return errors.Wrap(err, "failed to write checkpoint file")
	}
	return errors.Wrap(f.Close(), "failed to close checkpoint file")
}

// LoadFile restores params from path. A missing file yields an error
// satisfying errors.Is(err, os.ErrNotExist).
func LoadFile(path, name string, params []*tensor.Tensor) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "failed to open checkpoint file")
	}
	defer f.Close()
	return Decode(bufio.NewReader(f), name, params)
}

func sameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
