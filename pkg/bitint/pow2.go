// SPDX-License-Identifier: MIT
/*
Package bitint provides the bit manipulation helpers used by the radix-2
transform: power-of-two checks for buffer sizing, the base-2 logarithm that
gives the number of butterfly stages, and a reference bit reversal.

Design Principles:
- Zero Allocations: All operations use stack memory only
- Predictable Performance: O(1) constant time operations
- Real-Time Safe: No locks, syscalls, or blocking operations

Usage:

	// Verify the transform size is valid
	isValid := bitint.IsPowerOfTwo(fftSize)

	// Number of butterfly stages for a 1024 point transform
	stages := bitint.Log2(1024) // Returns 10

	// Index 1 in a 10-bit field moves to 512
	j := bitint.Reverse(1, 10)

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo returns the next power of 2 greater than or
	equal to size. The subtraction (size-1) keeps exact powers of
	two unchanged:

	- For input 8: size-1 = 7 (binary 0111), bits.Len(7) = 3,
	  1 << 3 = 8.
	- Without the subtraction bits.Len(8) = 4 and the input
	  would be doubled to 16.

	Reverse mirrors the lowest width bits of an index. The
	transform itself never calls it (it tracks the reversed index
	incrementally), it exists so the permutation can be checked
	against an independent definition.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size.
//
// Examples:
//
//	Input  Output  Explanation
//	4      4      Already power of 2 (preserved)
//	5      8      Next power after 5
//	0      1      Handle zero case
//	-1     1      Handle negative case
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo checks if n is a power of 2 using bit manipulation.
// The expression (n & (n-1)) == 0 works because:
//   - Powers of 2 have exactly one bit set
//   - Subtracting 1 from a power of 2 sets all lower bits
//   - AND operation will be 0 only for powers of 2
//
// Examples:
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
//	-8     false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns floor(log2(n)) for n > 0 and 0 otherwise. For a power of two
// this is the exponent, i.e. the number of radix-2 stages.
func Log2(n int) int {
	if n <= 0 {
		return 0
	}
	return bits.Len(uint(n)) - 1
}

// Reverse returns i with its lowest width bits in reverse order.
func Reverse(i uint, width int) uint {
	if width <= 0 {
		return 0
	}
	return bits.Reverse(i) >> (bits.UintSize - width)
}
