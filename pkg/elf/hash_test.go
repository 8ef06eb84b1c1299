package elf

import (
	"debug/elf"
	"encoding/binary"
	"os"
	"testing"
)

// buildGNUHashTable constructs the raw bytes of a DT_GNU_HASH table with
// the given bucket/chain contents, for exercising gnuHashSymbolCount
// without a real ELF file.
func buildGNUHashTable(order binary.ByteOrder, symOffset uint32, buckets []uint32, chain []uint32, bloomZero bool) []byte {
	bloomSize := uint32(1)
	buf := make([]byte, 16+8*bloomSize+4*uint32(len(buckets))+4*uint32(len(chain)))

	order.PutUint32(buf[0:], uint32(len(buckets)))
	order.PutUint32(buf[4:], symOffset)
	order.PutUint32(buf[8:], bloomSize)
	order.PutUint32(buf[12:], 6) // shift, unused

	if !bloomZero {
		order.PutUint64(buf[16:], 1) // any non-zero bloom word
	}

	off := 16 + 8*bloomSize
	for i, b := range buckets {
		order.PutUint32(buf[off+uint32(i)*4:], b)
	}
	off += 4 * uint32(len(buckets))
	for i, c := range chain {
		order.PutUint32(buf[off+uint32(i)*4:], c)
	}

	return buf
}

func writeTemp(t *testing.T, data []byte) *os.File {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "gnuhash")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		t.Fatal(err)
	}
	return f
}

// fakeBase is the virtual address the fake PT_LOAD segment is mapped at. It
// is non-zero because vaddrToOffset treats address 0 as an absent tag.
const fakeBase = 0x1000

// fakeFile builds just enough of an *elf.File for vaddrToOffset/ByteOrder to
// work: a single PT_LOAD segment that maps the whole synthetic buffer (file
// offset 0) at vaddr fakeBase.
func fakeFile(size uint64) *elf.File {
	f := &elf.File{
		FileHeader: elf.FileHeader{
			Class:     elf.ELFCLASS64,
			ByteOrder: binary.LittleEndian,
		},
	}
	f.Progs = []*elf.Prog{
		{
			ProgHeader: elf.ProgHeader{
				Type:   elf.PT_LOAD,
				Vaddr:  fakeBase,
				Off:    0,
				Filesz: size,
			},
		},
	}
	return f
}

func TestGNUHashSymbolCount_EmptyBloomFilter(t *testing.T) {
	data := buildGNUHashTable(binary.LittleEndian, 1, []uint32{0}, []uint32{1}, true)
	raw := writeTemp(t, data)
	defer raw.Close()

	f := fakeFile(uint64(len(data)))

	n, err := gnuHashSymbolCount(f, raw, fakeBase)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected symbol count 1 for all-zero bloom filter, got %d", n)
	}
}

func TestGNUHashSymbolCount_WalksChain(t *testing.T) {
	// symOffset 1, one bucket pointing at index 1, chain has two entries:
	// index1 (non-terminal, LSB 0) then index2 (terminal, LSB 1).
	data := buildGNUHashTable(binary.LittleEndian, 1, []uint32{1}, []uint32{0b10, 0b11}, false)
	raw := writeTemp(t, data)
	defer raw.Close()

	f := fakeFile(uint64(len(data)))

	n, err := gnuHashSymbolCount(f, raw, fakeBase)
	if err != nil {
		t.Fatal(err)
	}
	// maxIndex starts at bucket value 1, chain[1-1]=0b10 (not terminal) -> maxIndex=2,
	// chain[2-1]=0b11 (terminal) -> stop. count = maxIndex+1 = 3.
	if n != 3 {
		t.Fatalf("expected symbol count 3, got %d", n)
	}
}

func TestSysvHashSymbolCount(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint32(data[0:], 4)  // nbucket
	binary.LittleEndian.PutUint32(data[4:], 17) // nchain
	raw := writeTemp(t, data)
	defer raw.Close()

	f := fakeFile(uint64(len(data)))

	n, err := sysvHashSymbolCount(f, raw, fakeBase)
	if err != nil {
		t.Fatal(err)
	}
	if n != 17 {
		t.Fatalf("expected symbol count 17, got %d", n)
	}
}
