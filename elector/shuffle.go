// Package elector implements the ElectorSelector external collaborator
// (spec.md §6): deriving the elector set that stands for a given block
// height from a deterministic, seed-driven shuffle of the candidate
// pool. The shuffle itself is the swap-or-not permutation, ported from
// the teacher's beacon-committee selection.
package elector

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
)

// ShuffleRounds is the number of swap-or-not rounds applied per index.
const ShuffleRounds = 90

// ErrZeroPool is returned when a shuffle or selection is attempted
// against an empty candidate pool.
var ErrZeroPool = errors.New("elector: empty candidate pool")

// ErrIndexOutOfRange is returned when computeShuffledIndex is asked to
// permute an index outside [0, poolSize).
var ErrIndexOutOfRange = errors.New("elector: index out of range")

// computeShuffledIndex implements the swap-or-not shuffle: given a
// position in [0, poolSize) and a seed, it returns the position's image
// under a deterministic pseudorandom permutation of the pool.
func computeShuffledIndex(index, poolSize uint64, seed [32]byte) (uint64, error) {
	if poolSize == 0 {
		return 0, ErrZeroPool
	}
	if index >= poolSize {
		return 0, fmt.Errorf("%w: %d >= %d", ErrIndexOutOfRange, index, poolSize)
	}
	if poolSize == 1 {
		return 0, nil
	}

	cur := index
	for round := uint64(0); round < ShuffleRounds; round++ {
		var pivotInput [33]byte
		copy(pivotInput[:32], seed[:])
		pivotInput[32] = byte(round)
		pivotHash := sha256.Sum256(pivotInput[:])
		pivot := binary.LittleEndian.Uint64(pivotHash[:8]) % poolSize

		flip := (pivot + poolSize - cur) % poolSize
		position := flip
		if cur > flip {
			position = cur
		}

		var srcInput [37]byte
		copy(srcInput[:32], seed[:])
		srcInput[32] = byte(round)
		binary.LittleEndian.PutUint32(srcInput[33:], uint32(position/256))
		source := sha256.Sum256(srcInput[:])

		byteIdx := (position % 256) / 8
		bitIdx := position % 8
		if (source[byteIdx]>>bitIdx)&1 != 0 {
			cur = flip
		}
	}
	return cur, nil
}

// shuffle returns the pool's indices permuted by seed.
func shuffle(poolSize int, seed [32]byte) ([]uint64, error) {
	if poolSize == 0 {
		return nil, ErrZeroPool
	}
	out := make([]uint64, poolSize)
	for i := uint64(0); i < uint64(poolSize); i++ {
		shuffled, err := computeShuffledIndex(i, uint64(poolSize), seed)
		if err != nil {
			return nil, err
		}
		out[i] = shuffled
	}
	return out, nil
}
