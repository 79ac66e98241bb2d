/* Copyright 2023 The SLID Authors
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package cosave reads and writes the tagged-record stream that
// survives between sessions.
//
// The wire format is contractual: little-endian integers, strings as a
// u16 length followed by bytes, each record headed by a 4-byte tag, a
// u32 version, and a u32 payload length.  Versions rise monotonically;
// old versions are migrated by the current Load path, never rejected.
package cosave

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/slid-mod/slid/host"
)

// Tag is a 4-byte record type.
type Tag [4]byte

// MakeTag builds a Tag from a 4-character string.
func MakeTag(s string) Tag {
	var t Tag
	copy(t[:], s)
	return t
}

func (t Tag) String() string {
	return string(t[:])
}

// RemapFunc translates a saved FormID into the current load order.  A
// false return means the source plugin is gone and the owning record
// should be dropped.
type RemapFunc func(host.FormID) (host.FormID, bool)

// IdentityRemap resolves every FormID to itself.
func IdentityRemap(fid host.FormID) (host.FormID, bool) {
	return fid, true
}

// Encoder writes primitives.  The first error sticks; check Err once at
// the end.
type Encoder struct {
	w   io.Writer
	err error
}

// NewEncoder wraps a writer.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Err returns the first write error.
func (e *Encoder) Err() error {
	return e.err
}

func (e *Encoder) write(b []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(b)
}

func (e *Encoder) U8(v uint8) {
	e.write([]byte{v})
}

func (e *Encoder) Bool(v bool) {
	if v {
		e.U8(1)
	} else {
		e.U8(0)
	}
}

func (e *Encoder) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	e.write(b[:])
}

func (e *Encoder) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.write(b[:])
}

func (e *Encoder) F32(v float32) {
	e.U32(math.Float32bits(v))
}

func (e *Encoder) FormID(fid host.FormID) {
	e.U32(uint32(fid))
}

func (e *Encoder) String(s string) {
	if len(s) > math.MaxUint16 {
		s = s[:math.MaxUint16]
	}
	e.U16(uint16(len(s)))
	e.write([]byte(s))
}

// Decoder reads primitives.  Remap, when set, is applied by FormID.
type Decoder struct {
	r     io.Reader
	err   error
	Remap RemapFunc
}

// NewDecoder wraps a reader with an identity remap.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r, Remap: IdentityRemap}
}

// Err returns the first read error.
func (d *Decoder) Err() error {
	return d.err
}

func (d *Decoder) read(b []byte) {
	if d.err != nil {
		return
	}
	_, d.err = io.ReadFull(d.r, b)
}

func (d *Decoder) U8() uint8 {
	var b [1]byte
	d.read(b[:])
	return b[0]
}

func (d *Decoder) Bool() bool {
	return d.U8() != 0
}

func (d *Decoder) U16() uint16 {
	var b [2]byte
	d.read(b[:])
	return binary.LittleEndian.Uint16(b[:])
}

func (d *Decoder) U32() uint32 {
	var b [4]byte
	d.read(b[:])
	return binary.LittleEndian.Uint32(b[:])
}

func (d *Decoder) F32() float32 {
	return math.Float32frombits(d.U32())
}

// FormID reads a saved FormID and remaps it.  ok=false means the form's
// plugin is absent; the caller drops the owning record.
func (d *Decoder) FormID() (host.FormID, bool) {
	raw := host.FormID(d.U32())
	if d.err != nil {
		return 0, false
	}
	if raw == 0 {
		// Zero is "none", never remapped.
		return 0, true
	}
	return d.Remap(raw)
}

func (d *Decoder) String() string {
	n := d.U16()
	if d.err != nil {
		return ""
	}
	b := make([]byte, int(n))
	d.read(b)
	return string(b)
}

type recordHeader struct {
	tag     Tag
	version uint32
	length  uint32
}

func writeHeader(w io.Writer, h recordHeader) error {
	var b [12]byte
	copy(b[:4], h.tag[:])
	binary.LittleEndian.PutUint32(b[4:8], h.version)
	binary.LittleEndian.PutUint32(b[8:12], h.length)
	_, err := w.Write(b[:])
	return err
}

func readHeader(r io.Reader) (recordHeader, error) {
	var b [12]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return recordHeader{}, err
	}
	var h recordHeader
	copy(h.tag[:], b[:4])
	h.version = binary.LittleEndian.Uint32(b[4:8])
	h.length = binary.LittleEndian.Uint32(b[8:12])
	if h.length > 1<<28 {
		return recordHeader{}, fmt.Errorf("cosave: absurd record length %d", h.length)
	}
	return h, nil
}

// RecordInfo describes one record of a stream without decoding its
// payload.
type RecordInfo struct {
	Tag     Tag
	Version uint32
	Length  uint32
}

// Records walks a stream and returns its table of contents.
func Records(r io.Reader) ([]RecordInfo, error) {
	var acc []RecordInfo
	for {
		h, err := readHeader(r)
		if errors.Is(err, io.EOF) {
			return acc, nil
		}
		if err != nil {
			return acc, err
		}
		if _, err := io.CopyN(io.Discard, r, int64(h.length)); err != nil {
			return acc, err
		}
		acc = append(acc, RecordInfo{Tag: h.tag, Version: h.version, Length: h.length})
	}
}
