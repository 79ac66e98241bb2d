package cosave

import (
	"bytes"
	"testing"

	"github.com/slid-mod/slid/host"
)

func TestScalarRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.U8(7)
	e.Bool(true)
	e.Bool(false)
	e.U16(0xBEEF)
	e.U32(0xDEADBEEF)
	e.F32(2.5)
	e.String("The Pantry")
	e.FormID(0x01000200)
	if err := e.Err(); err != nil {
		t.Fatal(err)
	}

	d := NewDecoder(bytes.NewReader(buf.Bytes()))
	if d.U8() != 7 || !d.Bool() || d.Bool() {
		t.Fatal("u8/bool")
	}
	if d.U16() != 0xBEEF || d.U32() != 0xDEADBEEF {
		t.Fatal("u16/u32")
	}
	if d.F32() != 2.5 {
		t.Fatal("f32")
	}
	if d.String() != "The Pantry" {
		t.Fatal("string")
	}
	fid, ok := d.FormID()
	if !ok || fid != 0x01000200 {
		t.Fatal("formid")
	}
	if err := d.Err(); err != nil {
		t.Fatal(err)
	}
	// The stream is fully consumed.
	if d.U8(); d.Err() == nil {
		t.Fatal("read past the end")
	}
}

func TestZeroFormIDNeverRemapped(t *testing.T) {
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.FormID(0)
	d := NewDecoder(bytes.NewReader(buf.Bytes()))
	d.Remap = func(host.FormID) (host.FormID, bool) {
		t.Fatal("remapped the null form")
		return 0, false
	}
	if fid, ok := d.FormID(); !ok || fid != 0 {
		t.Fatalf("%v %v", fid, ok)
	}
}

func TestLongStringTruncates(t *testing.T) {
	long := make([]byte, 0x10010)
	for i := range long {
		long[i] = 'a'
	}
	var buf bytes.Buffer
	e := NewEncoder(&buf)
	e.String(string(long))
	if err := e.Err(); err != nil {
		t.Fatal(err)
	}
	d := NewDecoder(bytes.NewReader(buf.Bytes()))
	if got := d.String(); len(got) != 0xFFFF {
		t.Fatalf("length %d", len(got))
	}
}

type phantomComponent struct {
	tag      Tag
	version  uint32
	payload  []byte
	loaded   [][]byte
	reverted bool
}

func (c *phantomComponent) Tag() Tag        { return c.tag }
func (c *phantomComponent) Version() uint32 { return c.version }
func (c *phantomComponent) Revert()         { c.reverted = true }

func (c *phantomComponent) Save(e *Encoder) error {
	for _, b := range c.payload {
		e.U8(b)
	}
	return e.Err()
}

func (c *phantomComponent) Load(d *Decoder, version uint32) error {
	got := make([]byte, len(c.payload))
	for i := range got {
		got[i] = d.U8()
	}
	c.loaded = append(c.loaded, got)
	return d.Err()
}

func TestRegistrySkipsUnknownAndNewer(t *testing.T) {
	a := &phantomComponent{tag: MakeTag("AAAA"), version: 1, payload: []byte{1, 2}}
	b := &phantomComponent{tag: MakeTag("BBBB"), version: 3, payload: []byte{9}}

	src := NewRegistry(nil)
	src.Register(a)
	src.Register(b)
	var buf bytes.Buffer
	if err := src.Save(&buf); err != nil {
		t.Fatal(err)
	}

	// The reader knows AAAA, and only an older BBBB.
	a2 := &phantomComponent{tag: MakeTag("AAAA"), version: 1, payload: []byte{0, 0}}
	b2 := &phantomComponent{tag: MakeTag("BBBB"), version: 2, payload: []byte{0}}
	dst := NewRegistry(nil)
	dst.Register(a2)
	dst.Register(b2)
	if err := dst.Load(bytes.NewReader(buf.Bytes()), nil); err != nil {
		t.Fatal(err)
	}
	if len(a2.loaded) != 1 || !bytes.Equal(a2.loaded[0], []byte{1, 2}) {
		t.Fatalf("AAAA loaded %v", a2.loaded)
	}
	if len(b2.loaded) != 0 {
		t.Fatal("newer BBBB was not skipped")
	}

	// An entirely unknown record is skipped and the rest still load.
	only := &phantomComponent{tag: MakeTag("BBBB"), version: 3, payload: []byte{0}}
	dst2 := NewRegistry(nil)
	dst2.Register(only)
	if err := dst2.Load(bytes.NewReader(buf.Bytes()), nil); err != nil {
		t.Fatal(err)
	}
	if len(only.loaded) != 1 || only.loaded[0][0] != 9 {
		t.Fatalf("BBBB loaded %v", only.loaded)
	}

	dst2.Revert()
	if !only.reverted {
		t.Fatal("revert not forwarded")
	}
}

func TestRecords(t *testing.T) {
	a := &phantomComponent{tag: MakeTag("AAAA"), version: 1, payload: []byte{1, 2}}
	b := &phantomComponent{tag: MakeTag("BBBB"), version: 3, payload: []byte{9}}
	reg := NewRegistry(nil)
	reg.Register(a)
	reg.Register(b)
	var buf bytes.Buffer
	if err := reg.Save(&buf); err != nil {
		t.Fatal(err)
	}

	recs, err := Records(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("%d records", len(recs))
	}
	if recs[0].Tag != MakeTag("AAAA") || recs[0].Length != 2 {
		t.Fatalf("record %+v", recs[0])
	}
	if recs[1].Tag != MakeTag("BBBB") || recs[1].Version != 3 {
		t.Fatalf("record %+v", recs[1])
	}

	// Truncated payload reports an error.
	trunc := buf.Bytes()[:buf.Len()-1]
	if _, err := Records(bytes.NewReader(trunc)); err == nil {
		t.Fatal("truncation unreported")
	}
}

func TestStore(t *testing.T) {
	path := t.TempDir() + "/cosave.db"
	store, err := OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	src := &phantomComponent{tag: MakeTag("AAAA"), version: 1, payload: []byte{1, 2, 3}}
	reg := NewRegistry(nil)
	reg.Register(src)

	if err := store.SaveSlot("quicksave", reg); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveSlot("auto1", reg); err != nil {
		t.Fatal(err)
	}

	dst := &phantomComponent{tag: MakeTag("AAAA"), version: 1, payload: []byte{0, 0, 0}}
	reg2 := NewRegistry(nil)
	reg2.Register(dst)
	if err := store.LoadSlot("quicksave", reg2, nil); err != nil {
		t.Fatal(err)
	}
	if len(dst.loaded) != 1 || !bytes.Equal(dst.loaded[0], []byte{1, 2, 3}) {
		t.Fatalf("loaded %v", dst.loaded)
	}

	slots, err := store.Slots()
	if err != nil || len(slots) != 2 {
		t.Fatalf("%v %v", slots, err)
	}
	if err := store.LoadSlot("nope", reg2, nil); err == nil {
		t.Fatal("missing slot loaded")
	}

	// Overwrite wins.
	src.payload = []byte{7, 7, 7}
	if err := store.SaveSlot("quicksave", reg); err != nil {
		t.Fatal(err)
	}
	raw, err := store.RawSlot("quicksave")
	if err != nil || len(raw) == 0 {
		t.Fatalf("%v %v", raw, err)
	}
	dst.loaded = nil
	if err := store.LoadSlot("quicksave", reg2, nil); err != nil {
		t.Fatal(err)
	}
	if len(dst.loaded) != 1 || !bytes.Equal(dst.loaded[0], []byte{7, 7, 7}) {
		t.Fatalf("loaded %v", dst.loaded)
	}
}
