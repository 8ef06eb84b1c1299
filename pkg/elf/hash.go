package elf

import (
	"debug/elf"
	"fmt"
	"os"
)

// symbolCount determines the dynamic symbol table length via DT_GNU_HASH
// (preferred, if present) or DT_HASH, exactly following the algorithm
// ccheck.c's loadDL() runs against a live link_map:
//
//   - DT_HASH: the second 32-bit word (nchain) is the symbol count.
//   - DT_GNU_HASH: read (nbuckets, sym_offset, bloom_size, _shift), then a
//     bloom filter of bloom_size machine words, then nbuckets 32-bit bucket
//     heads, then chain words. An all-zero bloom filter means the hash
//     table is empty and the symbol count is 1 (just the undefined
//     symbol). Otherwise the symbol count is one past the last chain
//     entry reachable from the largest bucket head.
func symbolCount(f *elf.File, raw *os.File, dyn dynamicTags) (uint64, error) {
	if dyn.hasGNU {
		n, err := gnuHashSymbolCount(f, raw, dyn.gnuHash)
		if err != nil {
			return 0, fmt.Errorf("read DT_GNU_HASH: %w", err)
		}
		return n, nil
	}

	if dyn.hasHash {
		n, err := sysvHashSymbolCount(f, raw, dyn.hash)
		if err != nil {
			return 0, fmt.Errorf("read DT_HASH: %w", err)
		}
		return n, nil
	}

	return 0, fmt.Errorf("object has neither DT_HASH nor DT_GNU_HASH")
}

func sysvHashSymbolCount(f *elf.File, raw *os.File, vaddr uint64) (uint64, error) {
	off, ok := vaddrToOffset(f, vaddr)
	if !ok {
		return 0, fmt.Errorf("DT_HASH points outside any PT_LOAD segment")
	}

	// struct { uint32 nbucket; uint32 nchain; uint32 bucket[nbucket]; uint32 chain[nchain]; }
	hdr, err := readAt(raw, off, 8)
	if err != nil {
		return 0, err
	}
	nchain := f.ByteOrder.Uint32(hdr[4:])
	return uint64(nchain), nil
}

func gnuHashSymbolCount(f *elf.File, raw *os.File, vaddr uint64) (uint64, error) {
	off, ok := vaddrToOffset(f, vaddr)
	if !ok {
		return 0, fmt.Errorf("DT_GNU_HASH points outside any PT_LOAD segment")
	}

	hdr, err := readAt(raw, off, 16)
	if err != nil {
		return 0, err
	}

	nbuckets := f.ByteOrder.Uint32(hdr[0:])
	symOffset := f.ByteOrder.Uint32(hdr[4:])
	bloomSize := f.ByteOrder.Uint32(hdr[8:])
	// hdr[12:16] is the bloom shift; unused here.

	wordSize := uint64(8)
	if f.Class == elf.ELFCLASS32 {
		wordSize = 4
	}

	bloomOff := off + 16
	bloom, err := readAt(raw, bloomOff, int(uint64(bloomSize)*wordSize))
	if err != nil {
		return 0, err
	}

	empty := true
	for _, b := range bloom {
		if b != 0 {
			empty = false
			break
		}
	}
	if empty {
		// spec.md §8 boundary behavior: bloom_size entirely zero -> symbol
		// count 1 (no discovery, no tests).
		return 1, nil
	}

	bucketsOff := bloomOff + uint64(bloomSize)*wordSize
	bucketsRaw, err := readAt(raw, bucketsOff, int(nbuckets)*4)
	if err != nil {
		return 0, err
	}

	maxIndex := uint64(symOffset)
	for i := uint32(0); i < nbuckets; i++ {
		b := uint64(f.ByteOrder.Uint32(bucketsRaw[i*4:]))
		if b > maxIndex {
			maxIndex = b
		}
	}

	if maxIndex < uint64(symOffset) {
		// No bucket ever pointed past the first exported symbol: table is
		// as small as the offset implies.
		return uint64(symOffset), nil
	}

	chainOff := bucketsOff + uint64(nbuckets)*4

	// Walk the chain for the bucket with the highest index until a
	// terminator (LSB set) is found, advancing maxIndex one entry at a
	// time, mirroring ccheck.c's `while((chain[maxInd - symOff] & 1) == 0) ++maxInd;`.
	for {
		word, err := readAt(raw, chainOff+(maxIndex-uint64(symOffset))*4, 4)
		if err != nil {
			return 0, err
		}
		chainWord := f.ByteOrder.Uint32(word)
		if chainWord&1 != 0 {
			break
		}
		maxIndex++
	}

	return maxIndex + 1, nil
}
