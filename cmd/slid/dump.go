package main

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/slid-mod/slid/cosave"
)

// runDump prints the slots in a cosave store and the record table of
// the chosen slot.
func runDump(dbPath, slot string, log *slog.Logger) error {
	store, err := cosave.OpenStore(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	slots, err := store.Slots()
	if err != nil {
		return err
	}
	if len(slots) == 0 {
		fmt.Println("store is empty")
		return nil
	}
	for _, name := range slots {
		fmt.Printf("slot %q\n", name)
	}

	stream, err := store.RawSlot(slot)
	if err != nil {
		return err
	}
	recs, err := cosave.Records(bytes.NewReader(stream))
	if err != nil {
		return fmt.Errorf("slot %q is corrupt: %w", slot, err)
	}
	fmt.Printf("\nslot %q: %d bytes, %d records\n", slot, len(stream), len(recs))
	for _, r := range recs {
		fmt.Printf("  %s v%d  %d bytes\n", r.Tag, r.Version, r.Length)
	}
	return nil
}
