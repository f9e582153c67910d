package fusion

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
)

// safetensors layout: an 8-byte little-endian header length, a JSON header
// describing each tensor, then the raw little-endian tensor bytes.

type tensorInfo struct {
	DType       string   `json:"dtype"`
	Shape       []int    `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

const maxHeaderSize = 100 << 20

// ReadSafetensors decodes every F32 or F64 tensor of a safetensors stream.
func ReadSafetensors(r io.Reader) (StateDict, error) {
	var headerLen uint64
	if err := binary.Read(r, binary.LittleEndian, &headerLen); err != nil {
		return nil, fmt.Errorf("read header length: %w", err)
	}
	if headerLen == 0 || headerLen > maxHeaderSize {
		return nil, fmt.Errorf("invalid header length %d", headerLen)
	}

	header := make([]byte, headerLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	var entries map[string]json.RawMessage
	if err := json.Unmarshal(header, &entries); err != nil {
		return nil, fmt.Errorf("parse header: %w", err)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read tensor data: %w", err)
	}

	sd := make(StateDict, len(entries))
	for name, raw := range entries {
		if name == "__metadata__" {
			continue
		}
		var info tensorInfo
		if err := json.Unmarshal(raw, &info); err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		t, err := decodeTensor(info, data)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		sd[name] = t
	}
	return sd, nil
}

func decodeTensor(info tensorInfo, data []byte) (Tensor, error) {
	begin, end := info.DataOffsets[0], info.DataOffsets[1]
	if begin < 0 || end < begin || end > int64(len(data)) {
		return Tensor{}, fmt.Errorf("data offsets [%d, %d) outside %d bytes", begin, end, len(data))
	}
	buf := data[begin:end]

	t := Tensor{Shape: info.Shape}
	n := t.size()

	switch info.DType {
	case "F32":
		if len(buf) != 4*n {
			return Tensor{}, fmt.Errorf("F32 tensor of shape %v needs %d bytes, has %d", info.Shape, 4*n, len(buf))
		}
		t.Data = make([]float64, n)
		for i := range t.Data {
			t.Data[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:])))
		}
	case "F64":
		if len(buf) != 8*n {
			return Tensor{}, fmt.Errorf("F64 tensor of shape %v needs %d bytes, has %d", info.Shape, 8*n, len(buf))
		}
		t.Data = make([]float64, n)
		for i := range t.Data {
			t.Data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
	default:
		return Tensor{}, errors.New("unsupported dtype " + info.DType)
	}
	return t, nil
}

// WriteSafetensors encodes sd as F32 tensors in name order.
func WriteSafetensors(w io.Writer, sd StateDict) error {
	names := make([]string, 0, len(sd))
	for name := range sd {
		names = append(names, name)
	}
	sort.Strings(names)

	header := make(map[string]tensorInfo, len(names))
	var data bytes.Buffer
	for _, name := range names {
		t := sd[name]
		begin := int64(data.Len())
		for _, v := range t.Data {
			var b [4]byte
			binary.LittleEndian.PutUint32(b[:], math.Float32bits(float32(v)))
			data.Write(b[:])
		}
		header[name] = tensorInfo{DType: "F32", Shape: t.Shape, DataOffsets: [2]int64{begin, int64(data.Len())}}
	}

	hdr, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	// Pad so tensor data starts 8-byte aligned.
	if pad := (8 - len(hdr)%8) % 8; pad > 0 {
		hdr = append(hdr, bytes.Repeat([]byte(" "), pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(hdr))); err != nil {
		return err
	}
	if _, err := w.Write(hdr); err != nil {
		return err
	}
	_, err = w.Write(data.Bytes())
	return err
}
